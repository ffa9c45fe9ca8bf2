package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// OrganizationalUnit is a container node in the directory tree. GPOs link to
// OUs; users and groups live inside them.
type OrganizationalUnit struct {
	ID          uuid.UUID `json:"id" msgpack:"id"`
	Name        string    `json:"name" msgpack:"name"`
	DisplayName string    `json:"display_name,omitempty" msgpack:"display_name"`
	Description string    `json:"description,omitempty" msgpack:"description"`

	// DN is the distinguished name, e.g. OU=IT,DC=corp,DC=com.
	DN string `json:"dn" msgpack:"dn"`

	// Parent is the enclosing OU, or nil for a domain-level OU.
	Parent *uuid.UUID `json:"parent,omitempty" msgpack:"parent"`

	Users    []uuid.UUID `json:"users" msgpack:"users"`
	Groups   []uuid.UUID `json:"groups" msgpack:"groups"`
	ChildOUs []uuid.UUID `json:"child_ous" msgpack:"child_ous"`

	// LinkedGPOs are the policies applied at this OU, in link order.
	LinkedGPOs []uuid.UUID `json:"linked_gpos" msgpack:"linked_gpos"`

	// BlockInheritance stops policies from ancestor OUs applying here,
	// except those marked enforced.
	BlockInheritance bool `json:"block_inheritance" msgpack:"block_inheritance"`

	// Enforced marks this OU's links as surviving a descendant's
	// BlockInheritance.
	Enforced bool `json:"enforced" msgpack:"enforced"`

	// GPLink and GPOptions are derived LDAP projections of the link state,
	// refreshed by UpdateGPLink and UpdateGPOptions.
	GPLink    string `json:"gplink" msgpack:"gplink"`
	GPOptions uint32 `json:"gpoptions" msgpack:"gpoptions"`

	Meta map[string]string `json:"meta,omitempty" msgpack:"meta"`

	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// NewOU builds an empty OU with derived attributes initialized.
func NewOU(name, dn string, parent *uuid.UUID) *OrganizationalUnit {
	now := time.Now().UTC()
	ou := &OrganizationalUnit{
		ID:         uuid.New(),
		Name:       name,
		DN:         dn,
		Parent:     parent,
		Users:      []uuid.UUID{},
		Groups:     []uuid.UUID{},
		ChildOUs:   []uuid.UUID{},
		LinkedGPOs: []uuid.UUID{},
		Meta:       map[string]string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ou.UpdateGPLink()
	ou.UpdateGPOptions()
	return ou
}

// UpdateGPLink refreshes the gPLink attribute from LinkedGPOs. The format is
// "[{GUID};flag]..." where flag 1 = enabled, 2 = enabled and enforced.
func (ou *OrganizationalUnit) UpdateGPLink() {
	var b strings.Builder
	for _, gpoID := range ou.LinkedGPOs {
		flag := 1
		if ou.Enforced {
			flag = 2
		}
		fmt.Fprintf(&b, "[%s;%d]", gpoID, flag)
	}
	ou.GPLink = b.String()
}

// UpdateGPOptions refreshes gPOptions from BlockInheritance
// (0 = inherit, 1 = block).
func (ou *OrganizationalUnit) UpdateGPOptions() {
	if ou.BlockInheritance {
		ou.GPOptions = 1
	} else {
		ou.GPOptions = 0
	}
}

// ToLDAPEntry projects the OU into an LDAP attribute map.
func (ou *OrganizationalUnit) ToLDAPEntry() map[string][]string {
	entry := map[string][]string{
		"objectClass":       {"top", "organizationalUnit"},
		"distinguishedName": {ou.DN},
		"ou":                {ou.Name},
		"name":              {ou.Name},
		"gPLink":            {ou.GPLink},
		"gPOptions":         {strconv.FormatUint(uint64(ou.GPOptions), 10)},
		"whenCreated":       {FormatLDAPTime(ou.CreatedAt)},
		"whenChanged":       {FormatLDAPTime(ou.UpdatedAt)},
	}

	if ou.DisplayName != "" {
		entry["displayName"] = []string{ou.DisplayName}
	}
	if ou.Description != "" {
		entry["description"] = []string{ou.Description}
	}

	for k, v := range ou.Meta {
		entry[k] = []string{v}
	}

	return entry
}
