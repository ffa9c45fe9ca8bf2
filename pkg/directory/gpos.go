package directory

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

// CreateGPO stores a new group policy and a link index entry for every
// target it is already linked to. The policy must have a name, a version of
// at least 1, and either links or an All target.
func (s *Service) CreateGPO(gpo *models.GroupPolicy) error {
	if gpo.Name == "" {
		return fmt.Errorf("%w: GPO name must not be empty", ErrInvalidInput)
	}
	if gpo.Version < 1 {
		return fmt.Errorf("%w: GPO version must be at least 1", ErrInvalidInput)
	}
	if len(gpo.LinkedTo) == 0 && gpo.Target.Kind != models.TargetAll {
		return fmt.Errorf("%w: GPO must be linked to a target or apply to all", ErrInvalidInput)
	}

	staged := make(map[string][]byte)
	if err := stage(staged, gpoKey(gpo.ID), gpo); err != nil {
		return err
	}
	for _, targetID := range gpo.LinkedTo {
		if err := s.stageGPOLinkAdd(targetID, gpo.ID, staged); err != nil {
			return err
		}
	}
	if err := s.appendToIDList(allGPOsIndex, gpo.ID, staged); err != nil {
		return err
	}

	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("create_gpo", fmt.Sprintf("name=%s, id=%s", gpo.Name, gpo.ID), nil)
	return nil
}

// GetGPO returns the policy with the given ID, or nil when absent.
func (s *Service) GetGPO(id uuid.UUID) (*models.GroupPolicy, error) {
	var gpo models.GroupPolicy
	ok, err := s.load(gpoKey(id), &gpo)
	if err != nil || !ok {
		return nil, err
	}
	return &gpo, nil
}

// ListGPOs returns every policy in creation order.
func (s *Service) ListGPOs() ([]*models.GroupPolicy, error) {
	ids, err := s.loadIDList(allGPOsIndex)
	if err != nil {
		return nil, err
	}
	gpos := make([]*models.GroupPolicy, 0, len(ids))
	for _, id := range ids {
		gpo, err := s.GetGPO(id)
		if err != nil {
			return nil, err
		}
		if gpo != nil {
			gpos = append(gpos, gpo)
		}
	}
	return gpos, nil
}

// FindGPOsForOU returns the policies linked to an OU.
func (s *Service) FindGPOsForOU(ouID uuid.UUID) ([]*models.GroupPolicy, error) {
	return s.findGPOsForTarget(ouID)
}

// FindGPOsForDomain returns the policies linked to a domain.
func (s *Service) FindGPOsForDomain(domainID uuid.UUID) ([]*models.GroupPolicy, error) {
	return s.findGPOsForTarget(domainID)
}

func (s *Service) findGPOsForTarget(targetID uuid.UUID) ([]*models.GroupPolicy, error) {
	gpoIDs, err := s.loadIDList(gpoLinkKey(targetID))
	if err != nil {
		return nil, err
	}
	gpos := make([]*models.GroupPolicy, 0, len(gpoIDs))
	for _, gpoID := range gpoIDs {
		gpo, err := s.GetGPO(gpoID)
		if err != nil {
			return nil, err
		}
		if gpo != nil {
			gpos = append(gpos, gpo)
		}
	}
	return gpos, nil
}

// LinkGPOToOU links a policy to an OU, refreshing the OU's derived gPLink
// attribute and the link index. Both sides must exist. Linking also marks
// the OU enforced, so the new link survives inheritance blocks below it.
func (s *Service) LinkGPOToOU(gpoID, ouID uuid.UUID) error {
	gpo, err := s.GetGPO(gpoID)
	if err != nil {
		return err
	}
	if gpo == nil {
		return fmt.Errorf("%w: GPO %s", ErrNotFound, gpoID)
	}

	ou, err := s.GetOU(ouID)
	if err != nil {
		return err
	}
	if ou == nil {
		return fmt.Errorf("%w: OU %s", ErrNotFound, ouID)
	}

	for _, linked := range ou.LinkedGPOs {
		if linked == gpoID {
			return nil
		}
	}

	ou.LinkedGPOs = append(ou.LinkedGPOs, gpoID)
	ou.Enforced = true
	ou.UpdateGPLink()
	ou.UpdatedAt = time.Now().UTC()

	staged := make(map[string][]byte)
	if err := stage(staged, ouKey(ouID), ou); err != nil {
		return err
	}
	if err := s.stageGPOLinkAdd(ouID, gpoID, staged); err != nil {
		return err
	}
	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("link_gpo_to_ou", fmt.Sprintf("gpo=%s, ou=%s", gpoID, ouID), nil)
	return nil
}

// UnlinkGPOFromOU removes a policy link from an OU. Unlinking a policy that
// is not linked is a no-op.
func (s *Service) UnlinkGPOFromOU(gpoID, ouID uuid.UUID) error {
	ou, err := s.GetOU(ouID)
	if err != nil {
		return err
	}
	if ou == nil {
		return fmt.Errorf("%w: OU %s", ErrNotFound, ouID)
	}

	found := false
	out := ou.LinkedGPOs[:0]
	for _, linked := range ou.LinkedGPOs {
		if linked == gpoID {
			found = true
			continue
		}
		out = append(out, linked)
	}
	if !found {
		return nil
	}

	ou.LinkedGPOs = out
	ou.UpdateGPLink()
	ou.UpdatedAt = time.Now().UTC()

	staged := make(map[string][]byte)
	if err := stage(staged, ouKey(ouID), ou); err != nil {
		return err
	}
	if err := s.stageGPOLinkRemove(ouID, gpoID, staged); err != nil {
		return err
	}
	if err := s.commit(staged); err != nil {
		return err
	}

	s.logAction("unlink_gpo_from_ou", fmt.Sprintf("gpo=%s, ou=%s", gpoID, ouID), nil)
	return nil
}

// SetBlockInheritance toggles inheritance blocking on an OU.
func (s *Service) SetBlockInheritance(ouID uuid.UUID, block bool) error {
	ou, err := s.GetOU(ouID)
	if err != nil {
		return err
	}
	if ou == nil {
		return fmt.Errorf("%w: OU %s", ErrNotFound, ouID)
	}

	ou.BlockInheritance = block
	ou.UpdateGPOptions()
	ou.UpdatedAt = time.Now().UTC()

	if err := s.saveOU(ou); err != nil {
		return err
	}

	s.logAction("set_block_inheritance", fmt.Sprintf("ou=%s, block=%t", ouID, block), nil)
	return nil
}

// SetGPOEnforced toggles the enforced flag on an OU's links.
func (s *Service) SetGPOEnforced(ouID uuid.UUID, enforced bool) error {
	ou, err := s.GetOU(ouID)
	if err != nil {
		return err
	}
	if ou == nil {
		return fmt.Errorf("%w: OU %s", ErrNotFound, ouID)
	}

	ou.Enforced = enforced
	ou.UpdateGPLink()
	ou.UpdatedAt = time.Now().UTC()

	if err := s.saveOU(ou); err != nil {
		return err
	}

	s.logAction("set_gpo_enforced", fmt.Sprintf("ou=%s, enforced=%t", ouID, enforced), nil)
	return nil
}

// IsGPOApplicableTo evaluates the policy's security filtering against a
// principal SID. An empty filter list applies to everyone.
func (s *Service) IsGPOApplicableTo(gpo *models.GroupPolicy, principal *sid.SID) bool {
	if len(gpo.SecurityFiltering) == 0 {
		return true
	}
	for _, filter := range gpo.SecurityFiltering {
		if filter.SID != nil && filter.SID.Equal(principal) {
			return true
		}
	}
	return false
}

// EffectiveGPOsForOU walks the OU ancestry and collects applicable policies.
// An OU with BlockInheritance stops the walk once policies have been
// collected below it, except that its own enforced policies still apply.
// Cycles in the parent chain are rejected as invalid input.
func (s *Service) EffectiveGPOsForOU(ouID uuid.UUID) ([]*models.GroupPolicy, error) {
	var all []*models.GroupPolicy
	visited := make(map[uuid.UUID]bool)
	current := &ouID

	for current != nil {
		id := *current
		if visited[id] {
			return nil, fmt.Errorf("%w: circular OU hierarchy detected", ErrInvalidInput)
		}
		visited[id] = true

		ou, err := s.GetOU(id)
		if err != nil {
			return nil, err
		}
		if ou == nil {
			return nil, fmt.Errorf("%w: OU %s", ErrNotFound, id)
		}

		gpos, err := s.FindGPOsForOU(id)
		if err != nil {
			return nil, err
		}

		if len(all) > 0 && ou.BlockInheritance {
			// Only this ancestor's enforced policies cross the block.
			for _, gpo := range gpos {
				if gpo.Enforced {
					all = append(all, gpo)
				}
			}
			break
		}

		sortGPOs(gpos)
		all = append(all, gpos...)

		current = ou.Parent
	}

	return dedupeGPOs(all), nil
}

// EffectiveGPOsForUser collects the policies applying to a user: those of
// its OU chain plus those linked directly to its primary domain. Group
// membership does not contribute policies.
func (s *Service) EffectiveGPOsForUser(userID uuid.UUID) ([]*models.GroupPolicy, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}

	var all []*models.GroupPolicy

	if user.OrganizationalUnit != nil {
		gpos, err := s.EffectiveGPOsForOU(*user.OrganizationalUnit)
		if err != nil {
			return nil, err
		}
		all = append(all, gpos...)
	}

	if len(user.Domains) > 0 {
		gpos, err := s.FindGPOsForDomain(user.Domains[0])
		if err != nil {
			return nil, err
		}
		all = append(all, gpos...)
	}

	unique := dedupeGPOs(all)
	sortGPOs(unique)
	return unique, nil
}

// sortGPOs orders policies enforced-first, then by ascending link order.
func sortGPOs(gpos []*models.GroupPolicy) {
	sort.SliceStable(gpos, func(i, j int) bool {
		if gpos[i].Enforced != gpos[j].Enforced {
			return gpos[i].Enforced
		}
		return gpos[i].Order < gpos[j].Order
	})
}

// dedupeGPOs keeps the first occurrence of each policy ID.
func dedupeGPOs(gpos []*models.GroupPolicy) []*models.GroupPolicy {
	seen := make(map[uuid.UUID]bool, len(gpos))
	unique := make([]*models.GroupPolicy, 0, len(gpos))
	for _, gpo := range gpos {
		if !seen[gpo.ID] {
			seen[gpo.ID] = true
			unique = append(unique, gpo)
		}
	}
	return unique
}

// stageGPOLinkAdd stages the link index for targetID with gpoID added.
func (s *Service) stageGPOLinkAdd(targetID, gpoID uuid.UUID, staged map[string][]byte) error {
	key := gpoLinkKey(targetID)
	ids, err := s.stagedOrLoadedIDList(key, staged)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == gpoID {
			return stage(staged, key, ids)
		}
	}
	return stage(staged, key, append(ids, gpoID))
}

// stageGPOLinkRemove stages the link index for targetID with gpoID removed.
func (s *Service) stageGPOLinkRemove(targetID, gpoID uuid.UUID, staged map[string][]byte) error {
	key := gpoLinkKey(targetID)
	ids, err := s.stagedOrLoadedIDList(key, staged)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, id := range ids {
		if id != gpoID {
			out = append(out, id)
		}
	}
	return stage(staged, key, out)
}
