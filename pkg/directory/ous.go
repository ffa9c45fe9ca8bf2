package directory

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
)

// CreateOU stores a new organizational unit and its DN index. DNs are unique
// directory-wide.
func (s *Service) CreateOU(ou *models.OrganizationalUnit) error {
	if ou.DN == "" {
		return fmt.Errorf("%w: OU DN is required", ErrInvalidInput)
	}

	if existing, err := s.FindOUByDN(ou.DN); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: OU with DN %s", ErrAlreadyExists, ou.DN)
	}

	staged := make(map[string][]byte)
	if err := stage(staged, ouKey(ou.ID), ou); err != nil {
		return err
	}
	if err := stage(staged, dnIndexKey(ou.DN), ou.ID); err != nil {
		return err
	}
	if err := s.appendToIDList(allOUsIndex, ou.ID, staged); err != nil {
		return err
	}

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("create_ou", fmt.Sprintf("dn=%s, id=%s", ou.DN, ou.ID), nil)
	return nil
}

// GetOU returns the OU with the given ID, or nil when absent.
func (s *Service) GetOU(id uuid.UUID) (*models.OrganizationalUnit, error) {
	var ou models.OrganizationalUnit
	ok, err := s.load(ouKey(id), &ou)
	if err != nil || !ok {
		return nil, err
	}
	return &ou, nil
}

// FindOUByDN resolves an OU through the DN index.
func (s *Service) FindOUByDN(dn string) (*models.OrganizationalUnit, error) {
	id, ok, err := s.loadIDRef(dnIndexKey(dn))
	if err != nil || !ok {
		return nil, err
	}
	return s.GetOU(id)
}

// ListOUs returns every OU in creation order.
func (s *Service) ListOUs() ([]*models.OrganizationalUnit, error) {
	ids, err := s.loadIDList(allOUsIndex)
	if err != nil {
		return nil, err
	}
	ous := make([]*models.OrganizationalUnit, 0, len(ids))
	for _, id := range ids {
		ou, err := s.GetOU(id)
		if err != nil {
			return nil, err
		}
		if ou != nil {
			ous = append(ous, ou)
		}
	}
	return ous, nil
}

// DeleteOU removes an OU and its DN index.
func (s *Service) DeleteOU(ouID uuid.UUID) error {
	ou, err := s.GetOU(ouID)
	if err != nil {
		return err
	}
	if ou == nil {
		return fmt.Errorf("%w: OU %s", ErrNotFound, ouID)
	}

	staged := make(map[string][]byte)
	if err := s.removeFromIDList(allOUsIndex, ouID, staged); err != nil {
		return err
	}

	s.db.Remove(ouKey(ouID))
	s.db.Remove(dnIndexKey(ou.DN))

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("delete_ou", fmt.Sprintf("dn=%s, id=%s", ou.DN, ouID), nil)
	return nil
}

// saveOU persists an updated OU under its existing keys.
func (s *Service) saveOU(ou *models.OrganizationalUnit) error {
	return s.store(ouKey(ou.ID), ou)
}
