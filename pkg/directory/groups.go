package directory

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

// CreateGroup stores a new group, its SAM index, and member index entries.
// SAM account names are unique directory-wide, compared case-insensitively.
func (s *Service) CreateGroup(group *models.Group) error {
	if group.SAMAccountName == "" {
		return fmt.Errorf("%w: sam_account_name is required", ErrInvalidInput)
	}

	if existing, err := s.FindGroupBySAMAccountName(group.SAMAccountName); err != nil {
		return err
	} else if existing != nil {
		return fmt.Errorf("%w: group with sam_account_name %s", ErrAlreadyExists, group.SAMAccountName)
	}

	staged := make(map[string][]byte)
	if err := stage(staged, groupKey(group.ID), group); err != nil {
		return err
	}
	if err := stage(staged, samIndexKey(group.SAMAccountName), group.ID); err != nil {
		return err
	}
	for _, memberID := range group.Members {
		if err := s.stageMemberIndexAdd(memberID, group.ID, staged); err != nil {
			return err
		}
	}
	if err := s.appendToIDList(allGroupsIndex, group.ID, staged); err != nil {
		return err
	}

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("create_group", fmt.Sprintf("name=%s, id=%s", group.Name, group.ID), nil)
	return nil
}

// GetGroup returns the group with the given ID, or nil when absent.
func (s *Service) GetGroup(id uuid.UUID) (*models.Group, error) {
	var group models.Group
	ok, err := s.load(groupKey(id), &group)
	if err != nil || !ok {
		return nil, err
	}
	return &group, nil
}

// FindGroupBySAMAccountName resolves a group through the SAM index.
func (s *Service) FindGroupBySAMAccountName(sam string) (*models.Group, error) {
	id, ok, err := s.loadIDRef(samIndexKey(sam))
	if err != nil || !ok {
		return nil, err
	}
	return s.GetGroup(id)
}

// FindGroupByRID scans all groups for one whose derived RID matches.
func (s *Service) FindGroupByRID(rid uint32) (*models.Group, error) {
	ids, err := s.loadIDList(allGroupsIndex)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		group, err := s.GetGroup(id)
		if err != nil {
			return nil, err
		}
		if group != nil && group.RID() == rid {
			return group, nil
		}
	}
	return nil, nil
}

// ListGroups returns every group in creation order.
func (s *Service) ListGroups() ([]*models.Group, error) {
	ids, err := s.loadIDList(allGroupsIndex)
	if err != nil {
		return nil, err
	}
	groups := make([]*models.Group, 0, len(ids))
	for _, id := range ids {
		group, err := s.GetGroup(id)
		if err != nil {
			return nil, err
		}
		if group != nil {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

// AddMemberToGroup adds userID to the group and its member index. Adding an
// existing member is a no-op.
func (s *Service) AddMemberToGroup(groupID, userID uuid.UUID) error {
	group, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}

	if group.HasMember(userID) {
		return nil
	}
	group.AddMember(userID)

	staged := make(map[string][]byte)
	if err := stage(staged, groupKey(groupID), group); err != nil {
		return err
	}
	if err := s.stageMemberIndexAdd(userID, groupID, staged); err != nil {
		return err
	}
	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("add_member", fmt.Sprintf("group=%s, user=%s", groupID, userID), nil)
	return nil
}

// RemoveMemberFromGroup removes userID from the group and its member index.
// Removing a non-member is a no-op.
func (s *Service) RemoveMemberFromGroup(groupID, userID uuid.UUID) error {
	group, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}

	if !group.HasMember(userID) {
		return nil
	}
	group.RemoveMember(userID)

	staged := make(map[string][]byte)
	if err := stage(staged, groupKey(groupID), group); err != nil {
		return err
	}
	if err := s.stageMemberIndexRemove(userID, groupID, staged); err != nil {
		return err
	}
	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("remove_member", fmt.Sprintf("group=%s, user=%s", groupID, userID), nil)
	return nil
}

// DeleteGroup removes a group, its SAM index, and all member index entries.
func (s *Service) DeleteGroup(groupID uuid.UUID) error {
	group, err := s.GetGroup(groupID)
	if err != nil {
		return err
	}
	if group == nil {
		return fmt.Errorf("%w: group %s", ErrNotFound, groupID)
	}

	staged := make(map[string][]byte)
	if err := s.removeFromIDList(allGroupsIndex, groupID, staged); err != nil {
		return err
	}
	for _, userID := range group.Members {
		if err := s.stageMemberIndexRemove(userID, groupID, staged); err != nil {
			return err
		}
	}

	s.db.Remove(groupKey(groupID))
	s.db.Remove(samIndexKey(group.SAMAccountName))

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("delete_group", fmt.Sprintf("name=%s, id=%s", group.Name, groupID), nil)
	return nil
}

// FindGroupsByMember returns every group the user is a direct member of.
func (s *Service) FindGroupsByMember(userID uuid.UUID) ([]*models.Group, error) {
	groupIDs, err := s.loadIDList(memberIndexKey(userID))
	if err != nil {
		return nil, err
	}
	groups := make([]*models.Group, 0, len(groupIDs))
	for _, groupID := range groupIDs {
		group, err := s.GetGroup(groupID)
		if err != nil {
			return nil, err
		}
		if group != nil {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

// TokenGroups returns the SIDs of the user's direct groups plus the primary
// group token, in the shape LDAP clients expect from the tokenGroups
// attribute.
func (s *Service) TokenGroups(userID uuid.UUID) ([]*sid.SID, error) {
	var tokens []*sid.SID

	direct, err := s.FindGroupsByMember(userID)
	if err != nil {
		return nil, err
	}
	for _, group := range direct {
		tokens = append(tokens, group.SID)
	}

	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user != nil && user.PrimaryGroupID != nil {
		group, err := s.FindGroupByRID(*user.PrimaryGroupID)
		if err != nil {
			return nil, err
		}
		if group != nil {
			tokens = append(tokens, group.PrimaryGroupToken())
		}
	}

	return tokens, nil
}

// stageMemberIndexAdd stages userID's member index with groupID added.
// The index is a sorted-insertion-free set kept as a slice.
func (s *Service) stageMemberIndexAdd(userID, groupID uuid.UUID, staged map[string][]byte) error {
	key := memberIndexKey(userID)
	ids, err := s.stagedOrLoadedIDList(key, staged)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == groupID {
			return stage(staged, key, ids)
		}
	}
	return stage(staged, key, append(ids, groupID))
}

// stageMemberIndexRemove stages userID's member index with groupID removed.
func (s *Service) stageMemberIndexRemove(userID, groupID uuid.UUID, staged map[string][]byte) error {
	key := memberIndexKey(userID)
	ids, err := s.stagedOrLoadedIDList(key, staged)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != groupID {
			out = append(out, id)
		}
	}
	return stage(staged, key, out)
}

// stagedOrLoadedIDList reads an ID list, preferring an already staged value
// so that multiple stagings within one mutation compose.
func (s *Service) stagedOrLoadedIDList(key string, staged map[string][]byte) ([]uuid.UUID, error) {
	if data, ok := staged[key]; ok {
		var ids []uuid.UUID
		if err := unmarshalIDs(data, &ids); err != nil {
			return nil, err
		}
		return ids, nil
	}
	return s.loadIDList(key)
}
