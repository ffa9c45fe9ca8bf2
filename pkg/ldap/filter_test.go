package ldap

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		input string
		kind  FilterKind
		attr  string
	}{
		{"(objectClass=*)", FilterPresent, "objectClass"},
		{"(sAMAccountName=alice)", FilterEquality, "sAMAccountName"},
		{"(&(objectClass=user)(mail=*))", FilterAnd, ""},
		{"(|(cn=a)(cn=b))", FilterOr, ""},
		{"(!(mail=*))", FilterNot, ""},
		{"(cn=al*ce)", FilterSubstring, "cn"},
		{"(cn=*admin*)", FilterSubstring, "cn"},
		{"(created_at>=2024-01-01T00:00:00Z)", FilterGreaterOrEqual, "created_at"},
		{"(created_at<=2024-01-01T00:00:00Z)", FilterLessOrEqual, "created_at"},
		{"(displayName~=jon)", FilterApprox, "displayName"},
		{"(member:dn=CN=Admins)", FilterExtensible, "member"},
		{"(uid:caseExactMatch=alice)", FilterExtensible, "uid"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			f, err := ParseFilter(tt.input)
			if err != nil {
				t.Fatalf("ParseFilter failed: %v", err)
			}
			if f.Kind != tt.kind {
				t.Errorf("Kind = %d, want %d", f.Kind, tt.kind)
			}
			if tt.attr != "" && f.Attr != tt.attr {
				t.Errorf("Attr = %s, want %s", f.Attr, tt.attr)
			}
			if got := f.String(); got != tt.input {
				t.Errorf("String() = %s, want %s", got, tt.input)
			}
		})
	}
}

func TestParseFilterDetails(t *testing.T) {
	f, err := ParseFilter("(cn=al*mi*ce)")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if f.Initial != "al" || f.Final != "ce" || len(f.Any) != 1 || f.Any[0] != "mi" {
		t.Errorf("substring parts = %q %v %q", f.Initial, f.Any, f.Final)
	}

	f, err = ParseFilter("(member:dn=CN=Admins)")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if !f.DNAttrs || f.Value != "CN=Admins" {
		t.Errorf("extensible = %+v", f)
	}

	f, err = ParseFilter("(&(objectClass=user)(sAMAccountName=alice))")
	if err != nil {
		t.Fatalf("ParseFilter failed: %v", err)
	}
	if len(f.Subs) != 2 || f.Subs[1].Value != "alice" {
		t.Errorf("and children = %+v", f.Subs)
	}
}

func TestParseFilterErrors(t *testing.T) {
	inputs := []string{
		"",
		"no-parens",
		"()",
		"(cn~alice)",
		"(&(cn=a)(cn=b)",
		"(=value)",
	}
	for _, input := range inputs {
		if _, err := ParseFilter(input); !errors.Is(err, ErrFilterSyntax) {
			t.Errorf("ParseFilter(%q) err = %v, want ErrFilterSyntax", input, err)
		}
	}
}

func filterTestUser() *models.User {
	created, _ := time.Parse(time.RFC3339, "2024-06-01T12:00:00Z")
	return &models.User{
		ID:                uuid.New(),
		Username:          "alice",
		UserPrincipalName: "alice@corp.acme.com",
		Email:             "alice@acme.com",
		DisplayName:       "Alice Smith",
		CreatedAt:         created,
	}
}

func TestMatchesUser(t *testing.T) {
	user := filterTestUser()

	tests := []struct {
		filter string
		want   bool
	}{
		{"(sAMAccountName=alice)", true},
		{"(sAMAccountName=ALICE)", true},
		{"(sAMAccountName=bob)", false},
		{"(samaccountname=alice)", true},
		{"(SAMACCOUNTNAME=alice)", true},
		{"(objectclass=user)", true},
		{"(USERPRINCIPALNAME=alice@corp.acme.com)", true},
		{"(Mail=alice@acme.com)", true},
		{"(samaccountname=al*)", true},
		{"(MAIL=*)", true},
		{"(CREATED_AT>=2024-01-01T00:00:00Z)", true},
		{"(cn=Alice Smith)", true},
		{"(name=alice smith)", true},
		{"(mail=alice@acme.com)", true},
		{"(email=other@acme.com)", false},
		{"(userPrincipalName=alice@corp.acme.com)", true},
		{"(objectClass=user)", true},
		{"(objectClass=person)", true},
		{"(objectClass=computer)", false},
		{"(sAMAccountName=al*)", true},
		{"(cn=*Smith)", true},
		{"(mail=*acme*)", true},
		{"(mail=*nomatch*)", false},
		{"(mail=*)", true},
		{"(telephoneNumber=*)", false},
		{"(created_at>=2024-01-01T00:00:00Z)", true},
		{"(created_at>=2025-01-01T00:00:00Z)", false},
		{"(created_at<=2025-01-01T00:00:00Z)", true},
		{"(&(objectClass=user)(sAMAccountName=alice))", true},
		{"(&(objectClass=user)(sAMAccountName=bob))", false},
		{"(|(sAMAccountName=bob)(mail=alice@acme.com))", true},
		{"(!(sAMAccountName=bob))", true},
		{"(!(sAMAccountName=alice))", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			f, err := ParseFilter(tt.filter)
			if err != nil {
				t.Fatalf("ParseFilter failed: %v", err)
			}
			if got := f.MatchesUser(user); got != tt.want {
				t.Errorf("MatchesUser = %t, want %t", got, tt.want)
			}
		})
	}
}

// stubLookup serves membership answers without a directory.
type stubLookup struct {
	tokens   []*sid.SID
	groupDNs []string
}

func (s *stubLookup) TokenGroups(uuid.UUID) ([]*sid.SID, error) {
	return s.tokens, nil
}

func (s *stubLookup) FindGroupsByMember(uuid.UUID) ([]*models.Group, error) {
	groups := make([]*models.Group, len(s.groupDNs))
	for i := range s.groupDNs {
		groups[i] = &models.Group{ID: uuid.New()}
	}
	return groups, nil
}

func (s *stubLookup) GroupDN(g *models.Group) string {
	// Hand back DNs in registration order; tests create one group per DN.
	if len(s.groupDNs) == 0 {
		return ""
	}
	dn := s.groupDNs[0]
	s.groupDNs = append(s.groupDNs[1:], dn)
	return dn
}

func TestMatchesUserWithService(t *testing.T) {
	user := filterTestUser()
	adminDN := "CN=Domain Admins,DC=corp,DC=acme,DC=com"

	tests := []struct {
		name   string
		filter string
		lookup *stubLookup
		want   bool
	}{
		{
			name:   "tokenGroups present",
			filter: "(tokenGroups=*)",
			lookup: &stubLookup{tokens: []*sid.SID{sid.NewNTAuthority(512)}},
			want:   true,
		},
		{
			name:   "tokenGroups absent",
			filter: "(tokenGroups=*)",
			lookup: &stubLookup{},
			want:   false,
		},
		{
			name:   "memberOf match is case-insensitive",
			filter: "(memberOf=cn=domain admins,dc=corp,dc=acme,dc=com)",
			lookup: &stubLookup{groupDNs: []string{adminDN}},
			want:   true,
		},
		{
			name:   "memberof attribute name folded",
			filter: "(MEMBEROF=" + adminDN + ")",
			lookup: &stubLookup{groupDNs: []string{adminDN}},
			want:   true,
		},
		{
			name:   "tokengroups attribute name folded",
			filter: "(tokengroups=*)",
			lookup: &stubLookup{tokens: []*sid.SID{sid.NewNTAuthority(512)}},
			want:   true,
		},
		{
			name:   "memberOf no match",
			filter: "(memberOf=CN=Other,DC=corp,DC=acme,DC=com)",
			lookup: &stubLookup{groupDNs: []string{adminDN}},
			want:   false,
		},
		{
			name:   "negated memberOf",
			filter: "(!(memberOf=CN=Other,DC=corp,DC=acme,DC=com))",
			lookup: &stubLookup{groupDNs: []string{adminDN}},
			want:   true,
		},
		{
			name:   "and combines service and plain attributes",
			filter: "(&(sAMAccountName=alice)(memberOf=" + adminDN + "))",
			lookup: &stubLookup{groupDNs: []string{adminDN}},
			want:   true,
		},
		{
			name:   "plain filter falls through",
			filter: "(sAMAccountName=alice)",
			lookup: &stubLookup{},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter(tt.filter)
			if err != nil {
				t.Fatalf("ParseFilter failed: %v", err)
			}
			got, err := f.MatchesUserWithService(user, tt.lookup)
			if err != nil {
				t.Fatalf("MatchesUserWithService failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("match = %t, want %t", got, tt.want)
			}
		})
	}
}
