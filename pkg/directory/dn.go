package directory

import (
	"github.com/mextdomen/mextdomen/pkg/models"
)

// UserDN builds the distinguished name of a user inside a domain,
// e.g. CN=alice,DC=corp,DC=acme,DC=com.
func UserDN(user *models.User, domain *models.Domain) string {
	return "CN=" + user.CN() + "," + domain.DN()
}

// OUDN builds the distinguished name of an OU, optionally under a parent DN.
func OUDN(name string, parentDN string) string {
	if parentDN == "" {
		return "OU=" + name
	}
	return "OU=" + name + "," + parentDN
}

// GroupDN builds the distinguished name of a group under its domain. Groups
// whose domain cannot be resolved fall back to a bare CN.
func (s *Service) GroupDN(g *models.Group) string {
	domain, err := s.GetDomain(g.DomainID)
	if err != nil || domain == nil {
		return "CN=" + g.Name
	}
	return "CN=" + g.Name + "," + domain.DN()
}
