package models

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/sid"
)

// GroupTypeFlags is a bitset describing the nature of a group.
type GroupTypeFlags uint32

const (
	GroupSecurity     GroupTypeFlags = 0x8000_0000
	GroupDistribution GroupTypeFlags = 0x0000_0001
	GroupBuiltin      GroupTypeFlags = 0x0000_0002
)

// Has reports whether all bits in flag are set.
func (f GroupTypeFlags) Has(flag GroupTypeFlags) bool {
	return f&flag == flag
}

// groupType attribute bit advertised for security-enabled groups.
const groupTypeSecurityEnabled = 0x0000_0008

// GroupScope is the replication scope of a group.
type GroupScope string

const (
	ScopeDomainLocal GroupScope = "DomainLocal"
	ScopeGlobal      GroupScope = "Global"
	ScopeUniversal   GroupScope = "Universal"
)

// Group is a named collection of users within a domain.
type Group struct {
	ID             uuid.UUID         `json:"id" msgpack:"id"`
	SID            *sid.SID          `json:"sid" msgpack:"sid"`
	Name           string            `json:"name" msgpack:"name"`
	SAMAccountName string            `json:"sam_account_name" msgpack:"sam_account_name"`
	Description    string            `json:"description,omitempty" msgpack:"description"`
	Members        []uuid.UUID       `json:"members" msgpack:"members"`
	DomainID       uuid.UUID         `json:"domain_id" msgpack:"domain_id"`
	Scope          GroupScope        `json:"scope" msgpack:"scope"`
	TypeFlags      GroupTypeFlags    `json:"type_flags" msgpack:"type_flags"`
	CreatedAt      time.Time         `json:"created_at" msgpack:"created_at"`
	Meta           map[string]string `json:"meta,omitempty" msgpack:"meta"`
}

// NewGroup builds a group with a fresh ID and an NT authority SID stem.
func NewGroup(name, samAccountName string, domainID uuid.UUID, flags GroupTypeFlags, scope GroupScope) *Group {
	return &Group{
		ID:             uuid.New(),
		SID:            sid.NewNTAuthority(512),
		Name:           name,
		SAMAccountName: samAccountName,
		Members:        []uuid.UUID{},
		DomainID:       domainID,
		Scope:          scope,
		TypeFlags:      flags,
		CreatedAt:      time.Now().UTC(),
		Meta:           map[string]string{},
	}
}

// IsSecurityGroup reports whether the group can appear in access tokens.
func (g *Group) IsSecurityGroup() bool {
	return g.TypeFlags.Has(GroupSecurity)
}

// IsBuiltin reports whether the group is a well-known builtin.
func (g *Group) IsBuiltin() bool {
	return g.TypeFlags.Has(GroupBuiltin)
}

// AddMember appends userID to the member list if not already present.
func (g *Group) AddMember(userID uuid.UUID) {
	for _, m := range g.Members {
		if m == userID {
			return
		}
	}
	g.Members = append(g.Members, userID)
}

// RemoveMember deletes userID from the member list.
func (g *Group) RemoveMember(userID uuid.UUID) {
	out := g.Members[:0]
	for _, m := range g.Members {
		if m != userID {
			out = append(out, m)
		}
	}
	g.Members = out
}

// HasMember reports whether userID is a direct member.
func (g *Group) HasMember(userID uuid.UUID) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// RID derives the group's relative identifier from its ID. Builtin groups
// land in the 512..611 range; all others in 1000..1000999, keyed off the low
// 32 bits of the UUID read as a big-endian u128 (the last four bytes).
func (g *Group) RID() uint32 {
	if g.TypeFlags.Has(GroupBuiltin) {
		return 512 + uint32(g.ID[0])%100
	}
	low := binary.BigEndian.Uint32(g.ID[12:16])
	return 1000 + low%1_000_000
}

// PrimaryGroupToken returns the SID advertised as primaryGroupToken: the
// group's SID with its final sub-authority replaced by the derived RID.
func (g *Group) PrimaryGroupToken() *sid.SID {
	subs := make([]uint32, len(g.SID.SubAuthorities))
	copy(subs, g.SID.SubAuthorities)
	if len(subs) > 0 {
		subs = subs[:len(subs)-1]
	}
	subs = append(subs, g.RID())
	return sid.NewFromParts(g.SID.Authority, subs)
}

// ToLDAPEntry projects the group into an LDAP attribute map rooted at dn.
func (g *Group) ToLDAPEntry(dn string) map[string][]string {
	entry := map[string][]string{
		"objectClass":       {"top", "group"},
		"distinguishedName": {dn},
		"cn":                {g.Name},
		"sAMAccountName":    {g.SAMAccountName},
		"name":              {g.Name},
		"objectSid":         {g.SID.String()},
		"whenCreated":       {FormatLDAPTime(g.CreatedAt)},
	}

	if g.Description != "" {
		entry["description"] = []string{g.Description}
	}

	var groupType uint32
	if g.TypeFlags.Has(GroupSecurity) {
		groupType |= groupTypeSecurityEnabled
	}
	entry["groupType"] = []string{strconv.FormatUint(uint64(groupType), 10)}

	return entry
}
