package directory

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

// CreateDomain stores a new domain and registers it in the domain index.
func (s *Service) CreateDomain(domain *models.Domain) error {
	if domain.DNSName == "" {
		return fmt.Errorf("%w: domain dns_name is required", ErrInvalidInput)
	}

	if existing, err := s.FindDomainByDNS(domain.DNSName); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: domain with dns_name %s", ErrAlreadyExists, domain.DNSName)
	}

	staged := make(map[string][]byte)
	if err := stage(staged, domainKey(domain.ID), domain); err != nil {
		return err
	}
	if err := s.appendToIDList(allDomainsIndex, domain.ID, staged); err != nil {
		return err
	}

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("create_domain", fmt.Sprintf("dns=%s, id=%s", domain.DNSName, domain.ID), nil)
	return nil
}

// GetDomain returns the domain with the given ID, or nil when absent.
func (s *Service) GetDomain(id uuid.UUID) (*models.Domain, error) {
	var domain models.Domain
	ok, err := s.load(domainKey(id), &domain)
	if err != nil || !ok {
		return nil, err
	}
	return &domain, nil
}

// ListDomains returns every domain in creation order.
func (s *Service) ListDomains() ([]*models.Domain, error) {
	ids, err := s.loadIDList(allDomainsIndex)
	if err != nil {
		return nil, err
	}
	domains := make([]*models.Domain, 0, len(ids))
	for _, id := range ids {
		domain, err := s.GetDomain(id)
		if err != nil {
			return nil, err
		}
		if domain != nil {
			domains = append(domains, domain)
		}
	}
	return domains, nil
}

// FindDomainByDNS scans the domain index for a matching DNS name.
func (s *Service) FindDomainByDNS(dnsName string) (*models.Domain, error) {
	domains, err := s.ListDomains()
	if err != nil {
		return nil, err
	}
	for _, domain := range domains {
		if strings.EqualFold(domain.DNSName, dnsName) {
			return domain, nil
		}
	}
	return nil, nil
}

// BootstrapDomain creates a domain together with its well-known container
// OUs and the builtin Domain Users / Domain Admins groups.
func (s *Service) BootstrapDomain(name, dnsName string) (*models.Domain, error) {
	domain := models.NewDomain(name, dnsName, sid.NewNTAuthority(500))
	if err := s.CreateDomain(domain); err != nil {
		return nil, err
	}

	wk := models.NewWellKnownContainers(domain.DN())
	for _, dn := range wk.List() {
		ou := models.NewOU(extractCN(dn), dn, nil)
		if err := s.CreateOU(ou); err != nil {
			return nil, err
		}
	}

	domainUsers := models.NewGroup("Domain Users", "DOMAIN USERS", domain.ID,
		models.GroupSecurity, models.ScopeGlobal)
	if err := s.CreateGroup(domainUsers); err != nil {
		return nil, err
	}

	domainAdmins := models.NewGroup("Domain Admins", "DOMAIN ADMINS", domain.ID,
		models.GroupSecurity, models.ScopeGlobal)
	if err := s.CreateGroup(domainAdmins); err != nil {
		return nil, err
	}

	s.logAction("bootstrap_domain", fmt.Sprintf("name=%s, dns=%s", domain.Name, domain.DNSName), nil)
	return domain, nil
}

// extractCN returns the leading CN component of a DN, or "Unknown".
func extractCN(dn string) string {
	rest, ok := strings.CutPrefix(dn, "CN=")
	if !ok {
		return "Unknown"
	}
	if i := strings.IndexByte(rest, ','); i >= 0 {
		return rest[:i]
	}
	return rest
}

// CreateOrganization stores a new tenant organization.
func (s *Service) CreateOrganization(org *models.Organization) error {
	if err := s.store(orgKey(org.ID), org); err != nil {
		return err
	}
	s.logAction("create_organization", fmt.Sprintf("name=%s, id=%s", org.Name, org.ID), nil)
	return nil
}

// GetOrganization returns the organization with the given ID, or nil.
func (s *Service) GetOrganization(id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	ok, err := s.load(orgKey(id), &org)
	if err != nil || !ok {
		return nil, err
	}
	return &org, nil
}
