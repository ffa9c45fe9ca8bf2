// Package models defines the directory entities: users, groups,
// organizational units, domains, group policies, and their projections into
// LDAP attribute maps. Entities carry msgpack tags; pkg/directory owns the
// serialization into the store.
package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/sid"
)

// ldapTimeLayout is LDAP Generalized Time (YYYYMMDDHHMMSS.0Z).
const ldapTimeLayout = "20060102150405.0Z"

// FormatLDAPTime formats t as LDAP Generalized Time in UTC.
func FormatLDAPTime(t time.Time) string {
	return t.UTC().Format(ldapTimeLayout)
}

// userAccountControl values (subset).
const (
	uacNormalAccount   = 512
	uacAccountDisabled = 514
)

// accountExpires sentinel for an account that never expires / is disabled.
const accountNeverExpires = "0"
const accountExpiresDisabled = "9223372036854775807"

// User is a directory security principal that can authenticate.
type User struct {
	ID                 uuid.UUID         `json:"id" msgpack:"id"`
	SID                *sid.SID          `json:"sid" msgpack:"sid"`
	Username           string            `json:"username" msgpack:"username"`
	UserPrincipalName  string            `json:"user_principal_name" msgpack:"user_principal_name"`
	Email              string            `json:"email,omitempty" msgpack:"email"`
	DisplayName        string            `json:"display_name,omitempty" msgpack:"display_name"`
	GivenName          string            `json:"given_name,omitempty" msgpack:"given_name"`
	Surname            string            `json:"surname,omitempty" msgpack:"surname"`
	PasswordHash       PasswordHash      `json:"-" msgpack:"password_hash"`
	PasswordExpires    *time.Time        `json:"password_expires,omitempty" msgpack:"password_expires"`
	LastPasswordChange time.Time         `json:"last_password_change" msgpack:"last_password_change"`
	LockoutUntil       *time.Time        `json:"lockout_until,omitempty" msgpack:"lockout_until"`
	FailedLogins       uint32            `json:"failed_logins" msgpack:"failed_logins"`
	Enabled            bool              `json:"enabled" msgpack:"enabled"`
	MFAEnabled         bool              `json:"mfa_enabled" msgpack:"mfa_enabled"`
	MFAMethods         []MFAMethod       `json:"mfa_methods,omitempty" msgpack:"mfa_methods"`
	Domains            []uuid.UUID       `json:"domains" msgpack:"domains"`
	Groups             []uuid.UUID       `json:"groups" msgpack:"groups"`
	OrganizationalUnit *uuid.UUID        `json:"organizational_unit,omitempty" msgpack:"organizational_unit"`
	CreatedAt          time.Time         `json:"created_at" msgpack:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" msgpack:"updated_at"`
	LastLogin          *time.Time        `json:"last_login,omitempty" msgpack:"last_login"`
	ProfilePath        string            `json:"profile_path,omitempty" msgpack:"profile_path"`
	ScriptPath         string            `json:"script_path,omitempty" msgpack:"script_path"`
	Meta               map[string]string `json:"meta,omitempty" msgpack:"meta"`

	// PrimaryGroupID is the RID of the primary group (513 = Domain Users).
	PrimaryGroupID *uint32 `json:"primary_group_id,omitempty" msgpack:"primary_group_id"`
}

// CN returns the common name used in LDAP entries: the display name when
// set, otherwise the username.
func (u *User) CN() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// GroupLookup resolves group membership for LDAP projection. Implemented by
// the directory service; kept narrow so the projection stays testable.
type GroupLookup interface {
	FindGroupsByMember(userID uuid.UUID) ([]*Group, error)
	FindGroupByRID(rid uint32) (*Group, error)
	TokenGroups(userID uuid.UUID) ([]*sid.SID, error)
	GroupDN(g *Group) string
}

// ToLDAPEntry projects the user into an LDAP attribute map rooted at dn.
// Membership attributes (memberOf, primaryGroupToken, tokenGroups) are
// resolved through lookup.
func (u *User) ToLDAPEntry(dn string, lookup GroupLookup) (map[string][]string, error) {
	entry := map[string][]string{
		"objectClass":       {"top", "person", "organizationalPerson", "user"},
		"distinguishedName": {dn},
		"cn":                {u.CN()},
		"sAMAccountName":    {u.Username},
		"userPrincipalName": {u.UserPrincipalName},
		"uid":               {u.Username},
		"name":              {u.CN()},
		"objectSid":         {u.SID.String()},
		"whenCreated":       {FormatLDAPTime(u.CreatedAt)},
		"whenChanged":       {FormatLDAPTime(u.UpdatedAt)},
	}

	if u.Email != "" {
		entry["mail"] = []string{u.Email}
	}
	if u.GivenName != "" {
		entry["givenName"] = []string{u.GivenName}
	}
	if u.Surname != "" {
		entry["sn"] = []string{u.Surname}
	}

	if u.Enabled {
		entry["accountExpires"] = []string{accountNeverExpires}
		entry["userAccountControl"] = []string{strconv.Itoa(uacNormalAccount)}
	} else {
		entry["accountExpires"] = []string{accountExpiresDisabled}
		entry["userAccountControl"] = []string{strconv.Itoa(uacAccountDisabled)}
	}

	if u.LastLogin != nil {
		entry["lastLogon"] = []string{FormatLDAPTime(*u.LastLogin)}
	}
	if u.ProfilePath != "" {
		entry["profilePath"] = []string{u.ProfilePath}
	}
	if u.ScriptPath != "" {
		entry["scriptPath"] = []string{u.ScriptPath}
	}

	if lookup != nil {
		groups, err := lookup.FindGroupsByMember(u.ID)
		if err != nil {
			return nil, err
		}
		memberOf := make([]string, 0, len(groups))
		for _, g := range groups {
			memberOf = append(memberOf, lookup.GroupDN(g))
		}
		if len(memberOf) > 0 {
			entry["memberOf"] = memberOf
		}

		if u.PrimaryGroupID != nil {
			group, err := lookup.FindGroupByRID(*u.PrimaryGroupID)
			if err != nil {
				return nil, err
			}
			if group != nil {
				entry["primaryGroupToken"] = []string{group.PrimaryGroupToken().String()}
			}
		}

		// tokenGroups is best-effort: a resolution failure drops the
		// attribute rather than failing the whole entry.
		if sids, err := lookup.TokenGroups(u.ID); err == nil && len(sids) > 0 {
			tokens := make([]string, 0, len(sids))
			for _, s := range sids {
				tokens = append(tokens, s.String())
			}
			entry["tokenGroups"] = tokens
		}
	}

	for k, v := range u.Meta {
		entry[k] = []string{v}
	}

	return entry, nil
}
