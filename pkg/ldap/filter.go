package ldap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/models"
	"github.com/mextdomen/mextdomen/pkg/sid"
)

// ErrFilterSyntax reports a search filter that does not parse.
var ErrFilterSyntax = errors.New("ldap: invalid filter syntax")

// FilterKind discriminates the filter AST.
type FilterKind uint8

const (
	FilterEquality FilterKind = iota
	FilterGreaterOrEqual
	FilterLessOrEqual
	FilterApprox
	FilterSubstring
	FilterExtensible
	FilterAnd
	FilterOr
	FilterNot
	FilterPresent
)

// Filter is one node of a parsed search filter. Attr and Value carry the
// operands of the simple kinds; Initial, Any and Final carry substring
// fragments; Subs carries the children of And, Or and Not.
type Filter struct {
	Kind  FilterKind
	Attr  string
	Value string

	Initial string
	Any     []string
	Final   string

	Rule    string
	DNAttrs bool

	Subs []*Filter
}

// DirectoryLookup resolves group membership during filter evaluation.
// directory.Service satisfies it.
type DirectoryLookup interface {
	TokenGroups(userID uuid.UUID) ([]*sid.SID, error)
	FindGroupsByMember(userID uuid.UUID) ([]*models.Group, error)
	GroupDN(g *models.Group) string
}

// ============================================================================
// Parsing
// ============================================================================

// ParseFilter parses an RFC 4515 style filter string such as
// (&(objectClass=user)(sAMAccountName=alice)).
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return nil, fmt.Errorf("%w: missing outer parentheses", ErrFilterSyntax)
	}
	return parseInner(s[1 : len(s)-1])
}

func parseInner(s string) (*Filter, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty component", ErrFilterSyntax)
	}
	switch s[0] {
	case '&':
		return parseList(s[1:], FilterAnd)
	case '|':
		return parseList(s[1:], FilterOr)
	case '!':
		rest := s[1:]
		var (
			child *Filter
			err   error
		)
		if strings.HasPrefix(rest, "(") {
			child, err = ParseFilter(rest)
		} else {
			child, err = parseInner(rest)
		}
		if err != nil {
			return nil, err
		}
		return &Filter{Kind: FilterNot, Subs: []*Filter{child}}, nil
	default:
		return parseSimple(s)
	}
}

func parseSimple(s string) (*Filter, error) {
	eq := strings.IndexByte(s, '=')
	if eq < 0 {
		return nil, fmt.Errorf("%w: no comparator in %q", ErrFilterSyntax, s)
	}
	attr := s[:eq]
	value := s[eq+1:]
	if attr == "" {
		return nil, fmt.Errorf("%w: empty attribute in %q", ErrFilterSyntax, s)
	}

	if base, ok := strings.CutSuffix(attr, ":dn"); ok {
		return &Filter{Kind: FilterExtensible, Attr: base, DNAttrs: true, Value: value}, nil
	}
	if colon := strings.LastIndexByte(attr, ':'); colon >= 0 {
		rule := attr[colon+1:]
		if strings.HasSuffix(rule, "Match") {
			return &Filter{Kind: FilterExtensible, Attr: attr[:colon], Rule: rule, Value: value}, nil
		}
	}

	if value == "*" {
		return &Filter{Kind: FilterPresent, Attr: attr}, nil
	}

	// The "=" is already consumed, so ">=", "<=", "~=" leave their first
	// character as the attribute suffix.
	if base, ok := strings.CutSuffix(attr, ">"); ok && base != "" {
		return &Filter{Kind: FilterGreaterOrEqual, Attr: base, Value: value}, nil
	}
	if base, ok := strings.CutSuffix(attr, "<"); ok && base != "" {
		return &Filter{Kind: FilterLessOrEqual, Attr: base, Value: value}, nil
	}
	if base, ok := strings.CutSuffix(attr, "~"); ok && base != "" {
		return &Filter{Kind: FilterApprox, Attr: base, Value: value}, nil
	}

	if strings.ContainsRune(value, '*') {
		return parseSubstring(attr, value), nil
	}

	return &Filter{Kind: FilterEquality, Attr: attr, Value: value}, nil
}

func parseSubstring(attr, pattern string) *Filter {
	parts := strings.Split(pattern, "*")
	f := &Filter{Kind: FilterSubstring, Attr: attr}
	f.Initial = parts[0]
	f.Final = parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		if part != "" {
			f.Any = append(f.Any, part)
		}
	}
	return f
}

func parseList(s string, kind FilterKind) (*Filter, error) {
	list := &Filter{Kind: kind}
	depth := 0
	start := 0
	for i, ch := range s {
		switch ch {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			depth--
			if depth == 0 {
				child, err := ParseFilter(s[start : i+1])
				if err != nil {
					return nil, err
				}
				list.Subs = append(list.Subs, child)
			} else if depth < 0 {
				return nil, fmt.Errorf("%w: unbalanced parentheses", ErrFilterSyntax)
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("%w: unbalanced parentheses", ErrFilterSyntax)
	}
	return list, nil
}

// ============================================================================
// Rendering
// ============================================================================

// String renders the filter back to its textual form.
func (f *Filter) String() string {
	var b strings.Builder
	f.render(&b)
	return b.String()
}

func (f *Filter) render(b *strings.Builder) {
	b.WriteByte('(')
	switch f.Kind {
	case FilterEquality:
		b.WriteString(f.Attr + "=" + f.Value)
	case FilterGreaterOrEqual:
		b.WriteString(f.Attr + ">=" + f.Value)
	case FilterLessOrEqual:
		b.WriteString(f.Attr + "<=" + f.Value)
	case FilterApprox:
		b.WriteString(f.Attr + "~=" + f.Value)
	case FilterPresent:
		b.WriteString(f.Attr + "=*")
	case FilterSubstring:
		b.WriteString(f.Attr + "=" + f.Initial + "*")
		for _, part := range f.Any {
			b.WriteString(part + "*")
		}
		b.WriteString(f.Final)
	case FilterExtensible:
		b.WriteString(f.Attr)
		if f.DNAttrs {
			b.WriteString(":dn")
		} else if f.Rule != "" {
			b.WriteString(":" + f.Rule)
		}
		b.WriteString("=" + f.Value)
	case FilterAnd, FilterOr:
		if f.Kind == FilterAnd {
			b.WriteByte('&')
		} else {
			b.WriteByte('|')
		}
		for _, sub := range f.Subs {
			sub.render(b)
		}
	case FilterNot:
		b.WriteByte('!')
		if len(f.Subs) > 0 {
			f.Subs[0].render(b)
		}
	}
	b.WriteByte(')')
}

// ============================================================================
// Matching
// ============================================================================

// MatchesUser evaluates the filter against a user without directory access.
// Attribute names compare case-insensitively. Attributes requiring
// membership lookups never match here; use MatchesUserWithService for those.
func (f *Filter) MatchesUser(u *models.User) bool {
	attr := strings.ToLower(f.Attr)

	switch f.Kind {
	case FilterEquality:
		switch attr {
		case "samaccountname":
			return strings.EqualFold(u.Username, f.Value)
		case "cn", "name":
			return u.DisplayName != "" && strings.EqualFold(u.DisplayName, f.Value)
		case "mail", "email":
			return u.Email != "" && strings.EqualFold(u.Email, f.Value)
		case "userprincipalname":
			return strings.EqualFold(u.UserPrincipalName, f.Value)
		case "objectclass":
			return strings.EqualFold(f.Value, "user") || strings.EqualFold(f.Value, "person")
		}
		return false

	case FilterSubstring:
		var text string
		switch attr {
		case "samaccountname":
			text = u.Username
		case "cn", "name":
			text = u.DisplayName
		case "mail", "email":
			text = u.Email
		default:
			return false
		}
		if !strings.HasPrefix(text, f.Initial) {
			return false
		}
		for _, part := range f.Any {
			if !strings.Contains(text, part) {
				return false
			}
		}
		return strings.HasSuffix(text, f.Final)

	case FilterGreaterOrEqual:
		if attr != "created_at" {
			return false
		}
		return !u.CreatedAt.Before(parseFilterTime(f.Value))

	case FilterLessOrEqual:
		if attr != "created_at" {
			return false
		}
		return !u.CreatedAt.After(parseFilterTime(f.Value))

	case FilterPresent:
		switch attr {
		case "samaccountname":
			return u.Username != ""
		case "cn", "name":
			return u.DisplayName != ""
		case "mail", "email":
			return u.Email != ""
		}
		return false

	case FilterAnd:
		for _, sub := range f.Subs {
			if !sub.MatchesUser(u) {
				return false
			}
		}
		return true

	case FilterOr:
		for _, sub := range f.Subs {
			if sub.MatchesUser(u) {
				return true
			}
		}
		return false

	case FilterNot:
		return len(f.Subs) > 0 && !f.Subs[0].MatchesUser(u)
	}

	return false
}

// MatchesUserWithService evaluates the filter with directory access, which
// enables tokenGroups presence and memberOf equality checks.
func (f *Filter) MatchesUserWithService(u *models.User, lookup DirectoryLookup) (bool, error) {
	attr := strings.ToLower(f.Attr)

	switch {
	case f.Kind == FilterPresent && attr == "tokengroups":
		tokens, err := lookup.TokenGroups(u.ID)
		if err != nil {
			return false, err
		}
		return len(tokens) > 0, nil

	case f.Kind == FilterEquality && attr == "memberof":
		groups, err := lookup.FindGroupsByMember(u.ID)
		if err != nil {
			return false, err
		}
		target := strings.ToUpper(f.Value)
		for _, g := range groups {
			if strings.ToUpper(lookup.GroupDN(g)) == target {
				return true, nil
			}
		}
		return false, nil

	case f.Kind == FilterAnd:
		for _, sub := range f.Subs {
			ok, err := sub.MatchesUserWithService(u, lookup)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case f.Kind == FilterOr:
		for _, sub := range f.Subs {
			ok, err := sub.MatchesUserWithService(u, lookup)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case f.Kind == FilterNot:
		if len(f.Subs) == 0 {
			return false, nil
		}
		ok, err := f.Subs[0].MatchesUserWithService(u, lookup)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}

	return f.MatchesUser(u), nil
}

// parseFilterTime parses an RFC 3339 timestamp, falling back to the zero
// time on malformed input.
func parseFilterTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
