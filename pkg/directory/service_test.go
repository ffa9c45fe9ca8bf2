package directory

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/raddb"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

func testKey() raddb.MasterKey {
	var key raddb.MasterKey
	for i := range key {
		key[i] = byte(i * 3)
	}
	return key
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dir.raddb")
	svc, err := Open(path, testKey())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return svc
}

func newTestUser(t *testing.T, svc *Service, username string) *models.User {
	t.Helper()
	now := time.Now().UTC()
	hash, err := models.NewBcryptHash("test-password-1")
	if err != nil {
		t.Fatalf("NewBcryptHash failed: %v", err)
	}
	user := &models.User{
		ID:                 uuid.New(),
		SID:                sid.MustParse("S-1-5-21-1-2-3").WithRID(1105),
		Username:           username,
		UserPrincipalName:  username + "@corp.acme.com",
		Email:              username + "@acme.com",
		PasswordHash:       hash,
		Enabled:            true,
		CreatedAt:          now,
		UpdatedAt:          now,
		LastPasswordChange: now,
	}
	if err := svc.CreateUser(user); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", username, err)
	}
	return user
}

func newTestGroup(t *testing.T, svc *Service, name string) *models.Group {
	t.Helper()
	group := models.NewGroup(name, strings.ToUpper(name), uuid.New(), models.GroupSecurity, models.ScopeGlobal)
	if err := svc.CreateGroup(group); err != nil {
		t.Fatalf("CreateGroup(%s) failed: %v", name, err)
	}
	return group
}

func newTestOU(t *testing.T, svc *Service, name string, parent *uuid.UUID) *models.OrganizationalUnit {
	t.Helper()
	parentDN := "DC=corp,DC=com"
	ou := models.NewOU(name, OUDN(name, parentDN), parent)
	if err := svc.CreateOU(ou); err != nil {
		t.Fatalf("CreateOU(%s) failed: %v", name, err)
	}
	return ou
}

func TestCreateAndFindUser(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")

	got, err := svc.GetUser(user.ID)
	if err != nil || got == nil {
		t.Fatalf("GetUser = %v, %v", got, err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %s", got.Username)
	}

	// Username lookup is case-insensitive.
	got, err = svc.FindUserByUsername("ALICE")
	if err != nil || got == nil || got.ID != user.ID {
		t.Errorf("FindUserByUsername(ALICE) = %v, %v", got, err)
	}

	got, err = svc.FindUserByEmail("Alice@acme.com")
	if err != nil || got == nil || got.ID != user.ID {
		t.Errorf("FindUserByEmail = %v, %v", got, err)
	}
}

func TestCreateUserDuplicates(t *testing.T) {
	svc := newTestService(t)
	newTestUser(t, svc, "alice")

	dup := &models.User{ID: uuid.New(), SID: sid.NewNTAuthority(21), Username: "Alice"}
	if err := svc.CreateUser(dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate username = %v, want ErrAlreadyExists", err)
	}

	dup2 := &models.User{ID: uuid.New(), SID: sid.NewNTAuthority(21), Username: "bob", Email: "alice@acme.com"}
	if err := svc.CreateUser(dup2); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate email = %v, want ErrAlreadyExists", err)
	}
}

func TestDeleteUserCleansUp(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")
	group := newTestGroup(t, svc, "Staff")

	if err := svc.AddMemberToGroup(group.ID, user.ID); err != nil {
		t.Fatalf("AddMemberToGroup failed: %v", err)
	}

	if err := svc.DeleteUser(user.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}

	if got, _ := svc.GetUser(user.ID); got != nil {
		t.Error("user still present after delete")
	}
	if got, _ := svc.FindUserByUsername("alice"); got != nil {
		t.Error("username index still resolves after delete")
	}
	if got, _ := svc.FindUserByEmail("alice@acme.com"); got != nil {
		t.Error("email index still resolves after delete")
	}

	reloaded, err := svc.GetGroup(group.ID)
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}
	if reloaded.HasMember(user.ID) {
		t.Error("group still lists deleted user")
	}

	if err := svc.DeleteUser(user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestRenameUser(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")
	newTestUser(t, svc, "bob")

	taken := "bob"
	if err := svc.RenameUser(user.ID, &taken, nil); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("rename to taken username = %v, want ErrAlreadyExists", err)
	}

	newName := "alice2"
	display := "Alice the Second"
	if err := svc.RenameUser(user.ID, &newName, &display); err != nil {
		t.Fatalf("RenameUser failed: %v", err)
	}

	if got, _ := svc.FindUserByUsername("alice"); got != nil {
		t.Error("old username still resolves")
	}
	got, err := svc.FindUserByUsername("alice2")
	if err != nil || got == nil {
		t.Fatalf("new username lookup = %v, %v", got, err)
	}
	if got.DisplayName != display {
		t.Errorf("DisplayName = %s", got.DisplayName)
	}
}

func TestUpdateUser(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")
	newTestUser(t, svc, "bob")

	takenEmail := "bob@acme.com"
	if _, err := svc.UpdateUser(user.ID, UserPatch{Email: &takenEmail}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("update to taken email = %v, want ErrAlreadyExists", err)
	}

	newEmail := "alice@example.com"
	disabled := false
	updated, err := svc.UpdateUser(user.ID, UserPatch{Email: &newEmail, Enabled: &disabled})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.Email != newEmail || updated.Enabled {
		t.Errorf("updated = %+v", updated)
	}

	if got, _ := svc.FindUserByEmail("alice@acme.com"); got != nil {
		t.Error("old email still resolves")
	}
	if got, _ := svc.FindUserByEmail(newEmail); got == nil {
		t.Error("new email does not resolve")
	}
}

func TestRecordLogin(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")

	if err := svc.RecordLogin(user.ID, false); err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}
	if err := svc.RecordLogin(user.ID, false); err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}

	got, _ := svc.GetUser(user.ID)
	if got.FailedLogins != 2 {
		t.Errorf("FailedLogins = %d, want 2", got.FailedLogins)
	}

	if err := svc.RecordLogin(user.ID, true); err != nil {
		t.Fatalf("RecordLogin failed: %v", err)
	}
	got, _ = svc.GetUser(user.ID)
	if got.FailedLogins != 0 {
		t.Errorf("FailedLogins after success = %d, want 0", got.FailedLogins)
	}
	if got.LastLogin == nil {
		t.Error("LastLogin not set")
	}
}

func TestGroupMembership(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")
	group := newTestGroup(t, svc, "Engineering")

	if err := svc.AddMemberToGroup(group.ID, user.ID); err != nil {
		t.Fatalf("AddMemberToGroup failed: %v", err)
	}
	// Second add is a no-op.
	if err := svc.AddMemberToGroup(group.ID, user.ID); err != nil {
		t.Fatalf("idempotent add failed: %v", err)
	}

	groups, err := svc.FindGroupsByMember(user.ID)
	if err != nil || len(groups) != 1 || groups[0].ID != group.ID {
		t.Fatalf("FindGroupsByMember = %v, %v", groups, err)
	}

	reloaded, _ := svc.GetGroup(group.ID)
	if len(reloaded.Members) != 1 {
		t.Errorf("Members = %d, want 1", len(reloaded.Members))
	}

	if err := svc.RemoveMemberFromGroup(group.ID, user.ID); err != nil {
		t.Fatalf("RemoveMemberFromGroup failed: %v", err)
	}
	groups, _ = svc.FindGroupsByMember(user.ID)
	if len(groups) != 0 {
		t.Errorf("groups after removal = %d, want 0", len(groups))
	}

	if err := svc.AddMemberToGroup(uuid.New(), user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("add to missing group = %v, want ErrNotFound", err)
	}
}

func TestGroupSAMUniqueness(t *testing.T) {
	svc := newTestService(t)
	newTestGroup(t, svc, "Staff")

	dup := models.NewGroup("Other", "staff", uuid.New(), models.GroupSecurity, models.ScopeGlobal)
	if err := svc.CreateGroup(dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate SAM = %v, want ErrAlreadyExists", err)
	}
}

func TestDeleteGroupCleansMemberIndex(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")
	group := newTestGroup(t, svc, "Staff")

	if err := svc.AddMemberToGroup(group.ID, user.ID); err != nil {
		t.Fatalf("AddMemberToGroup failed: %v", err)
	}
	if err := svc.DeleteGroup(group.ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	if got, _ := svc.GetGroup(group.ID); got != nil {
		t.Error("group still present")
	}
	if got, _ := svc.FindGroupBySAMAccountName("STAFF"); got != nil {
		t.Error("SAM index still resolves")
	}
	groups, _ := svc.FindGroupsByMember(user.ID)
	if len(groups) != 0 {
		t.Errorf("member index still lists deleted group")
	}
}

func TestTokenGroups(t *testing.T) {
	svc := newTestService(t)
	user := newTestUser(t, svc, "alice")
	group := newTestGroup(t, svc, "Engineering")
	primary := newTestGroup(t, svc, "Domain Users")

	if err := svc.AddMemberToGroup(group.ID, user.ID); err != nil {
		t.Fatalf("AddMemberToGroup failed: %v", err)
	}

	rid := primary.RID()
	user.PrimaryGroupID = &rid
	if err := svc.store(userKey(user.ID), user); err != nil {
		t.Fatalf("store user: %v", err)
	}

	tokens, err := svc.TokenGroups(user.ID)
	if err != nil {
		t.Fatalf("TokenGroups failed: %v", err)
	}
	if len(tokens) != 2 {
		t.Fatalf("tokens = %d, want 2 (direct + primary)", len(tokens))
	}
	if !tokens[0].Equal(group.SID) {
		t.Errorf("first token = %s, want group SID %s", tokens[0], group.SID)
	}
	if !tokens[1].Equal(primary.PrimaryGroupToken()) {
		t.Errorf("second token = %s, want primary group token", tokens[1])
	}
}

func TestOULifecycle(t *testing.T) {
	svc := newTestService(t)
	ou := newTestOU(t, svc, "IT", nil)

	got, err := svc.FindOUByDN(ou.DN)
	if err != nil || got == nil || got.ID != ou.ID {
		t.Fatalf("FindOUByDN = %v, %v", got, err)
	}

	dup := models.NewOU("IT", ou.DN, nil)
	if err := svc.CreateOU(dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate DN = %v, want ErrAlreadyExists", err)
	}

	if err := svc.DeleteOU(ou.ID); err != nil {
		t.Fatalf("DeleteOU failed: %v", err)
	}
	if got, _ := svc.FindOUByDN(ou.DN); got != nil {
		t.Error("DN index still resolves after delete")
	}
}

func TestDomainLifecycle(t *testing.T) {
	svc := newTestService(t)

	domain := models.NewDomain("corp", "corp.acme.com", sid.NewNTAuthority(500))
	if err := svc.CreateDomain(domain); err != nil {
		t.Fatalf("CreateDomain failed: %v", err)
	}

	dup := models.NewDomain("corp2", "CORP.ACME.COM", sid.NewNTAuthority(500))
	if err := svc.CreateDomain(dup); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("duplicate dns = %v, want ErrAlreadyExists", err)
	}

	got, err := svc.FindDomainByDNS("corp.acme.com")
	if err != nil || got == nil || got.ID != domain.ID {
		t.Fatalf("FindDomainByDNS = %v, %v", got, err)
	}
}

func TestBootstrapDomain(t *testing.T) {
	svc := newTestService(t)

	domain, err := svc.BootstrapDomain("corp", "corp.acme.com")
	if err != nil {
		t.Fatalf("BootstrapDomain failed: %v", err)
	}
	if domain.DN() != "DC=corp,DC=acme,DC=com" {
		t.Errorf("domain DN = %s", domain.DN())
	}

	ous, err := svc.ListOUs()
	if err != nil {
		t.Fatalf("ListOUs failed: %v", err)
	}
	if len(ous) != 5 {
		t.Errorf("well-known OUs = %d, want 5", len(ous))
	}

	users, err := svc.FindGroupBySAMAccountName("DOMAIN USERS")
	if err != nil || users == nil {
		t.Errorf("Domain Users group missing: %v, %v", users, err)
	}
	admins, err := svc.FindGroupBySAMAccountName("DOMAIN ADMINS")
	if err != nil || admins == nil {
		t.Errorf("Domain Admins group missing: %v, %v", admins, err)
	}
}

func TestGPOLinking(t *testing.T) {
	svc := newTestService(t)
	ou := newTestOU(t, svc, "IT", nil)

	gpo := &models.GroupPolicy{
		ID:         uuid.New(),
		Name:       "Password Policy",
		Version:    1,
		PolicyType: models.PolicySecurity,
		Target:     models.PolicyTarget{Kind: models.TargetAll},
		Enabled:    true,
	}
	if err := svc.CreateGPO(gpo); err != nil {
		t.Fatalf("CreateGPO failed: %v", err)
	}

	if err := svc.LinkGPOToOU(gpo.ID, ou.ID); err != nil {
		t.Fatalf("LinkGPOToOU failed: %v", err)
	}

	linked, err := svc.FindGPOsForOU(ou.ID)
	if err != nil || len(linked) != 1 || linked[0].ID != gpo.ID {
		t.Fatalf("FindGPOsForOU = %v, %v", linked, err)
	}

	reloaded, _ := svc.GetOU(ou.ID)
	if !strings.Contains(reloaded.GPLink, gpo.ID.String()) {
		t.Errorf("gPLink %q does not reference the GPO", reloaded.GPLink)
	}
	if !reloaded.Enforced {
		t.Error("linking did not set the OU enforced flag")
	}

	if err := svc.UnlinkGPOFromOU(gpo.ID, ou.ID); err != nil {
		t.Fatalf("UnlinkGPOFromOU failed: %v", err)
	}
	linked, _ = svc.FindGPOsForOU(ou.ID)
	if len(linked) != 0 {
		t.Errorf("GPOs after unlink = %d, want 0", len(linked))
	}
	reloaded, _ = svc.GetOU(ou.ID)
	if reloaded.GPLink != "" {
		t.Errorf("gPLink after unlink = %q, want empty", reloaded.GPLink)
	}
}

func TestCreateGPOValidation(t *testing.T) {
	svc := newTestService(t)
	ou := newTestOU(t, svc, "IT", nil)

	tests := []struct {
		name string
		gpo  *models.GroupPolicy
	}{
		{
			name: "empty name",
			gpo: &models.GroupPolicy{
				ID:      uuid.New(),
				Version: 1,
				Target:  models.PolicyTarget{Kind: models.TargetAll},
			},
		},
		{
			name: "zero version",
			gpo: &models.GroupPolicy{
				ID:     uuid.New(),
				Name:   "no-version",
				Target: models.PolicyTarget{Kind: models.TargetAll},
			},
		},
		{
			name: "no links and narrow target",
			gpo: &models.GroupPolicy{
				ID:      uuid.New(),
				Name:    "dangling",
				Version: 1,
				Target:  models.PolicyTarget{Kind: models.TargetOU, ID: ou.ID},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.CreateGPO(tt.gpo); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("CreateGPO = %v, want ErrInvalidInput", err)
			}
		})
	}

	// linked_to satisfies the invariant without an All target.
	linked := &models.GroupPolicy{
		ID:       uuid.New(),
		Name:     "linked",
		Version:  1,
		Target:   models.PolicyTarget{Kind: models.TargetOU, ID: ou.ID},
		LinkedTo: []uuid.UUID{ou.ID},
	}
	if err := svc.CreateGPO(linked); err != nil {
		t.Errorf("CreateGPO with links failed: %v", err)
	}
}

func TestLinkGPORequiresBothSides(t *testing.T) {
	svc := newTestService(t)
	ou := newTestOU(t, svc, "IT", nil)

	gpo := &models.GroupPolicy{
		ID:      uuid.New(),
		Name:    "baseline",
		Version: 1,
		Target:  models.PolicyTarget{Kind: models.TargetAll},
	}
	if err := svc.CreateGPO(gpo); err != nil {
		t.Fatalf("CreateGPO failed: %v", err)
	}

	if err := svc.LinkGPOToOU(uuid.New(), ou.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("link with unknown GPO = %v, want ErrNotFound", err)
	}
	if err := svc.LinkGPOToOU(gpo.ID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("link with unknown OU = %v, want ErrNotFound", err)
	}

	// No dangling index entry was left behind.
	linked, err := svc.FindGPOsForOU(ou.ID)
	if err != nil || len(linked) != 0 {
		t.Errorf("FindGPOsForOU = %v, %v, want empty", linked, err)
	}
}

func linkGPO(t *testing.T, svc *Service, ouID uuid.UUID, name string, enforced bool, order uint32) *models.GroupPolicy {
	t.Helper()
	gpo := &models.GroupPolicy{
		ID:         uuid.New(),
		Name:       name,
		Version:    1,
		PolicyType: models.PolicySecurity,
		Target:     models.PolicyTarget{Kind: models.TargetAll},
		Enabled:    true,
		Enforced:   enforced,
		Order:      order,
	}
	if err := svc.CreateGPO(gpo); err != nil {
		t.Fatalf("CreateGPO(%s) failed: %v", name, err)
	}
	if err := svc.LinkGPOToOU(gpo.ID, ouID); err != nil {
		t.Fatalf("LinkGPOToOU(%s) failed: %v", name, err)
	}
	return gpo
}

func TestEffectiveGPOsInheritance(t *testing.T) {
	svc := newTestService(t)

	root := newTestOU(t, svc, "Root", nil)
	mid := newTestOU(t, svc, "Mid", &root.ID)
	leaf := newTestOU(t, svc, "Leaf", &mid.ID)

	rootGPO := linkGPO(t, svc, root.ID, "root-policy", false, 1)
	midGPO := linkGPO(t, svc, mid.ID, "mid-policy", false, 1)
	leafGPO := linkGPO(t, svc, leaf.ID, "leaf-policy", false, 1)

	gpos, err := svc.EffectiveGPOsForOU(leaf.ID)
	if err != nil {
		t.Fatalf("EffectiveGPOsForOU failed: %v", err)
	}
	if len(gpos) != 3 {
		t.Fatalf("effective GPOs = %d, want 3", len(gpos))
	}
	// Leaf's own policies come before ancestors'.
	if gpos[0].ID != leafGPO.ID || gpos[1].ID != midGPO.ID || gpos[2].ID != rootGPO.ID {
		t.Errorf("order = %s, %s, %s", gpos[0].Name, gpos[1].Name, gpos[2].Name)
	}
}

func TestEffectiveGPOsBlockInheritance(t *testing.T) {
	svc := newTestService(t)

	root := newTestOU(t, svc, "Root", nil)
	mid := newTestOU(t, svc, "Mid", &root.ID)
	leaf := newTestOU(t, svc, "Leaf", &mid.ID)

	linkGPO(t, svc, root.ID, "root-policy", false, 1)
	midEnforced := linkGPO(t, svc, mid.ID, "mid-enforced", true, 1)
	linkGPO(t, svc, mid.ID, "mid-normal", false, 2)
	leafGPO := linkGPO(t, svc, leaf.ID, "leaf-policy", false, 1)

	if err := svc.SetBlockInheritance(mid.ID, true); err != nil {
		t.Fatalf("SetBlockInheritance failed: %v", err)
	}

	gpos, err := svc.EffectiveGPOsForOU(leaf.ID)
	if err != nil {
		t.Fatalf("EffectiveGPOsForOU failed: %v", err)
	}

	// The block at Mid stops the walk: Leaf's policy applies, Mid contributes
	// only its enforced policy, Root contributes nothing.
	if len(gpos) != 2 {
		names := make([]string, len(gpos))
		for i, g := range gpos {
			names[i] = g.Name
		}
		t.Fatalf("effective GPOs = %v, want [leaf-policy mid-enforced]", names)
	}
	if gpos[0].ID != leafGPO.ID || gpos[1].ID != midEnforced.ID {
		t.Errorf("order = %s, %s", gpos[0].Name, gpos[1].Name)
	}
}

func TestEffectiveGPOsBlockOnQueriedOU(t *testing.T) {
	svc := newTestService(t)

	root := newTestOU(t, svc, "Root", nil)
	child := newTestOU(t, svc, "Child", &root.ID)

	rootNormal := linkGPO(t, svc, root.ID, "root-normal", false, 10)
	childGPO := linkGPO(t, svc, child.ID, "child-policy", false, 5)
	rootEnforced := linkGPO(t, svc, root.ID, "root-enforced", true, 20)

	if err := svc.SetBlockInheritance(child.ID, true); err != nil {
		t.Fatalf("SetBlockInheritance failed: %v", err)
	}

	// The cut-off only triggers at an ancestor once something has been
	// collected: a block on the starting OU neither suppresses its own
	// links nor stops the walk.
	gpos, err := svc.EffectiveGPOsForOU(child.ID)
	if err != nil {
		t.Fatalf("EffectiveGPOsForOU failed: %v", err)
	}
	if len(gpos) != 3 {
		names := make([]string, len(gpos))
		for i, g := range gpos {
			names[i] = g.Name
		}
		t.Fatalf("effective GPOs = %v, want [child-policy root-enforced root-normal]", names)
	}
	if gpos[0].ID != childGPO.ID || gpos[1].ID != rootEnforced.ID || gpos[2].ID != rootNormal.ID {
		t.Errorf("order = %s, %s, %s", gpos[0].Name, gpos[1].Name, gpos[2].Name)
	}
}

func TestEffectiveGPOsCycleDetection(t *testing.T) {
	svc := newTestService(t)

	a := newTestOU(t, svc, "A", nil)
	b := newTestOU(t, svc, "B", &a.ID)

	// Introduce a cycle: A's parent becomes B.
	a.Parent = &b.ID
	if err := svc.saveOU(a); err != nil {
		t.Fatalf("saveOU failed: %v", err)
	}

	_, err := svc.EffectiveGPOsForOU(b.ID)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("cycle = %v, want ErrInvalidInput", err)
	}
}

func TestEffectiveGPOsForUser(t *testing.T) {
	svc := newTestService(t)

	domain := models.NewDomain("corp", "corp.acme.com", sid.NewNTAuthority(500))
	if err := svc.CreateDomain(domain); err != nil {
		t.Fatalf("CreateDomain failed: %v", err)
	}

	ou := newTestOU(t, svc, "IT", nil)
	ouGPO := linkGPO(t, svc, ou.ID, "ou-policy", false, 5)

	domainGPO := &models.GroupPolicy{
		ID:         uuid.New(),
		Name:       "domain-policy",
		Version:    1,
		PolicyType: models.PolicySecurity,
		Enabled:    true,
		Enforced:   true,
		Order:      1,
		LinkedTo:   []uuid.UUID{domain.ID},
	}
	if err := svc.CreateGPO(domainGPO); err != nil {
		t.Fatalf("CreateGPO failed: %v", err)
	}

	user := newTestUser(t, svc, "alice")
	user.OrganizationalUnit = &ou.ID
	user.Domains = []uuid.UUID{domain.ID}
	if err := svc.store(userKey(user.ID), user); err != nil {
		t.Fatalf("store user: %v", err)
	}

	gpos, err := svc.EffectiveGPOsForUser(user.ID)
	if err != nil {
		t.Fatalf("EffectiveGPOsForUser failed: %v", err)
	}
	if len(gpos) != 2 {
		t.Fatalf("effective GPOs = %d, want 2", len(gpos))
	}
	// Enforced domain policy sorts first.
	if gpos[0].ID != domainGPO.ID || gpos[1].ID != ouGPO.ID {
		t.Errorf("order = %s, %s", gpos[0].Name, gpos[1].Name)
	}
}

func TestIsGPOApplicableTo(t *testing.T) {
	svc := newTestService(t)

	alice := sid.MustParse("S-1-5-21-1-2-3-1105")
	bob := sid.MustParse("S-1-5-21-1-2-3-1106")

	open := &models.GroupPolicy{ID: uuid.New()}
	if !svc.IsGPOApplicableTo(open, alice) {
		t.Error("empty filtering should apply to everyone")
	}

	filtered := &models.GroupPolicy{
		ID:                uuid.New(),
		SecurityFiltering: []models.SidOrID{{SID: alice}},
	}
	if !svc.IsGPOApplicableTo(filtered, alice) {
		t.Error("filtered GPO should apply to listed SID")
	}
	if svc.IsGPOApplicableTo(filtered, bob) {
		t.Error("filtered GPO should not apply to unlisted SID")
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dir.raddb")
	svc, err := Open(path, testKey())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	user := newTestUser(t, svc, "alice")
	if err := svc.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	svc2, err := Open(path, testKey())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, err := svc2.FindUserByUsername("alice")
	if err != nil || got == nil || got.ID != user.ID {
		t.Errorf("after reopen FindUserByUsername = %v, %v", got, err)
	}
	ok, err := got.PasswordHash.Verify("test-password-1")
	if err != nil || !ok {
		t.Errorf("password verify after reopen = %v, %v", ok, err)
	}
}

func TestAuditLogFormat(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "mextdomen.log")
	svc, err := Open(filepath.Join(dir, "dir.raddb"), testKey(), WithAuditLog(auditPath))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	newTestUser(t, svc, "alice")

	data, err := os.ReadFile(auditPath)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	if !strings.Contains(line, "| ACTION: create_user |") {
		t.Errorf("audit line missing action: %q", line)
	}
	if !strings.Contains(line, "| USER: None") {
		t.Errorf("audit line missing user field: %q", line)
	}
	parts := strings.SplitN(line, " | ", 2)
	if _, err := time.Parse(time.RFC3339, parts[0]); err != nil {
		t.Errorf("audit timestamp %q not RFC3339: %v", parts[0], err)
	}
}
