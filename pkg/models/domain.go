package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/sid"
)

// FunctionalLevel is the feature level a domain advertises.
type FunctionalLevel string

const (
	LevelWindows2016 FunctionalLevel = "Windows2016"
	LevelWindows2022 FunctionalLevel = "Windows2022"
	LevelNative      FunctionalLevel = "Native"
)

// Domain is the root naming context holding users, groups, and OUs.
type Domain struct {
	ID                  uuid.UUID         `json:"id" msgpack:"id"`
	SID                 *sid.SID          `json:"sid" msgpack:"sid"`
	Name                string            `json:"name" msgpack:"name"`
	DNSName             string            `json:"dns_name" msgpack:"dns_name"`
	NetBIOSName         string            `json:"netbios_name" msgpack:"netbios_name"`
	ParentDomain        *uuid.UUID        `json:"parent_domain,omitempty" msgpack:"parent_domain"`
	ChildDomains        []uuid.UUID       `json:"child_domains" msgpack:"child_domains"`
	FunctionalLevel     FunctionalLevel   `json:"functional_level" msgpack:"functional_level"`
	Users               []uuid.UUID       `json:"users" msgpack:"users"`
	Groups              []uuid.UUID       `json:"groups" msgpack:"groups"`
	OrganizationalUnits []uuid.UUID       `json:"organizational_units" msgpack:"organizational_units"`
	Policies            []uuid.UUID       `json:"policies" msgpack:"policies"`
	Enabled             bool              `json:"enabled" msgpack:"enabled"`
	CreatedAt           time.Time         `json:"created_at" msgpack:"created_at"`
	Meta                map[string]string `json:"meta,omitempty" msgpack:"meta"`
}

// NewDomain builds an enabled domain with a fresh ID. The NetBIOS name
// defaults to the first DNS label, uppercased.
func NewDomain(name, dnsName string, domainSID *sid.SID) *Domain {
	netbios := dnsName
	if i := strings.IndexByte(dnsName, '.'); i > 0 {
		netbios = dnsName[:i]
	}
	return &Domain{
		ID:                  uuid.New(),
		SID:                 domainSID,
		Name:                name,
		DNSName:             dnsName,
		NetBIOSName:         strings.ToUpper(netbios),
		ChildDomains:        []uuid.UUID{},
		FunctionalLevel:     LevelNative,
		Users:               []uuid.UUID{},
		Groups:              []uuid.UUID{},
		OrganizationalUnits: []uuid.UUID{},
		Policies:            []uuid.UUID{},
		Enabled:             true,
		CreatedAt:           time.Now().UTC(),
		Meta:                map[string]string{},
	}
}

// DN returns the domain's distinguished name, e.g. DC=corp,DC=acme,DC=com.
func (d *Domain) DN() string {
	parts := strings.Split(d.DNSName, ".")
	for i, p := range parts {
		parts[i] = "DC=" + p
	}
	return strings.Join(parts, ",")
}
