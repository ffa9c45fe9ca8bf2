package models

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/sid"
)

func TestDomainDN(t *testing.T) {
	tests := []struct {
		dnsName string
		want    string
	}{
		{"corp.acme.com", "DC=corp,DC=acme,DC=com"},
		{"example.org", "DC=example,DC=org"},
		{"local", "DC=local"},
	}

	for _, tt := range tests {
		d := NewDomain("test", tt.dnsName, sid.NewNTAuthority(21))
		if got := d.DN(); got != tt.want {
			t.Errorf("DN(%s) = %s, want %s", tt.dnsName, got, tt.want)
		}
	}
}

func TestNewDomainNetBIOS(t *testing.T) {
	d := NewDomain("corp", "corp.acme.com", sid.NewNTAuthority(21))
	if d.NetBIOSName != "CORP" {
		t.Errorf("NetBIOSName = %s, want CORP", d.NetBIOSName)
	}
	if !d.Enabled {
		t.Error("new domain not enabled")
	}
}

func TestFormatLDAPTime(t *testing.T) {
	ts := time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)
	if got := FormatLDAPTime(ts); got != "20240315093045.0Z" {
		t.Errorf("FormatLDAPTime = %s, want 20240315093045.0Z", got)
	}
}

func TestOUGPLink(t *testing.T) {
	ou := NewOU("IT", "OU=IT,DC=corp,DC=com", nil)
	if ou.GPLink != "" {
		t.Errorf("fresh OU gPLink = %q, want empty", ou.GPLink)
	}

	a := uuid.New()
	b := uuid.New()
	ou.LinkedGPOs = []uuid.UUID{a, b}
	ou.UpdateGPLink()

	want := "[" + a.String() + ";1][" + b.String() + ";1]"
	if ou.GPLink != want {
		t.Errorf("gPLink = %q, want %q", ou.GPLink, want)
	}

	ou.Enforced = true
	ou.UpdateGPLink()
	if !strings.Contains(ou.GPLink, ";2]") {
		t.Errorf("enforced gPLink = %q, want flag 2", ou.GPLink)
	}
}

func TestOUGPOptions(t *testing.T) {
	ou := NewOU("HR", "OU=HR,DC=corp,DC=com", nil)
	if ou.GPOptions != 0 {
		t.Errorf("gPOptions = %d, want 0", ou.GPOptions)
	}
	ou.BlockInheritance = true
	ou.UpdateGPOptions()
	if ou.GPOptions != 1 {
		t.Errorf("gPOptions after block = %d, want 1", ou.GPOptions)
	}
}

func TestOUToLDAPEntry(t *testing.T) {
	ou := NewOU("IT", "OU=IT,DC=corp,DC=com", nil)
	ou.Description = "Information Technology"

	entry := ou.ToLDAPEntry()
	if got := entry["ou"]; len(got) != 1 || got[0] != "IT" {
		t.Errorf("entry[ou] = %v", got)
	}
	if got := entry["gPOptions"]; len(got) != 1 || got[0] != "0" {
		t.Errorf("entry[gPOptions] = %v", got)
	}
	if oc := entry["objectClass"]; len(oc) != 2 || oc[1] != "organizationalUnit" {
		t.Errorf("objectClass = %v", oc)
	}
}

func TestPasswordHashVerify(t *testing.T) {
	h, err := NewBcryptHash("s3cr3t-pass")
	if err != nil {
		t.Fatalf("NewBcryptHash failed: %v", err)
	}

	ok, err := h.Verify("s3cr3t-pass")
	if err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v", ok, err)
	}

	ok, err = h.Verify("wrong")
	if err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestPasswordHashUnsupportedAlgorithm(t *testing.T) {
	h := PasswordHash{Hash: "x", Algorithm: AlgorithmArgon2}
	if _, err := h.Verify("any"); err != ErrNotImplemented {
		t.Errorf("Verify = %v, want ErrNotImplemented", err)
	}
}

func TestUserToLDAPEntryBasic(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	u := &User{
		ID:                uuid.New(),
		SID:               sid.MustParse("S-1-5-21-1-2-3-1105"),
		Username:          "alice",
		UserPrincipalName: "alice@corp.acme.com",
		Email:             "alice@acme.com",
		DisplayName:       "Alice Liddell",
		Enabled:           true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	entry, err := u.ToLDAPEntry("CN=Alice Liddell,DC=corp,DC=acme,DC=com", nil)
	if err != nil {
		t.Fatalf("ToLDAPEntry failed: %v", err)
	}

	checks := map[string]string{
		"cn":                 "Alice Liddell",
		"sAMAccountName":     "alice",
		"userPrincipalName":  "alice@corp.acme.com",
		"mail":               "alice@acme.com",
		"objectSid":          "S-1-5-21-1-2-3-1105",
		"userAccountControl": "512",
		"accountExpires":     "0",
		"whenCreated":        "20240102030405.0Z",
	}
	for attr, want := range checks {
		got, ok := entry[attr]
		if !ok || len(got) != 1 || got[0] != want {
			t.Errorf("entry[%q] = %v, want [%q]", attr, got, want)
		}
	}
}

func TestUserToLDAPEntryDisabled(t *testing.T) {
	u := &User{
		ID:       uuid.New(),
		SID:      sid.MustParse("S-1-5-21-1-2-3-1106"),
		Username: "bob",
		Enabled:  false,
	}

	entry, err := u.ToLDAPEntry("CN=bob,DC=corp,DC=com", nil)
	if err != nil {
		t.Fatalf("ToLDAPEntry failed: %v", err)
	}
	if got := entry["userAccountControl"][0]; got != "514" {
		t.Errorf("userAccountControl = %s, want 514", got)
	}
	if got := entry["accountExpires"][0]; got != "9223372036854775807" {
		t.Errorf("accountExpires = %s", got)
	}
	// cn falls back to username when display name is empty
	if got := entry["cn"][0]; got != "bob" {
		t.Errorf("cn = %s, want bob", got)
	}
}

func TestWellKnownContainers(t *testing.T) {
	w := NewWellKnownContainers("DC=corp,DC=com")

	dn, ok := w.Get(GUIDUsersContainer)
	if !ok || dn != "CN=Users,DC=corp,DC=com" {
		t.Errorf("Get(users) = %q, %v", dn, ok)
	}
	if !w.IsWellKnownDN("CN=Computers,DC=corp,DC=com") {
		t.Error("IsWellKnownDN(computers) = false")
	}
	if w.IsWellKnownDN("OU=IT,DC=corp,DC=com") {
		t.Error("IsWellKnownDN(random OU) = true")
	}
	if len(w.List()) != 5 {
		t.Errorf("List() = %d entries, want 5", len(w.List()))
	}
}
