// Package directory implements the core directory service: users, groups,
// organizational units, domains, and group policies persisted in an
// encrypted raddb store. All entity values are msgpack-encoded; secondary
// indexes keep lookups by username, email, SAM account name, and DN at a
// single key read.
package directory

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/mextdomen/mextdomen/pkg/events"
	"github.com/mextdomen/mextdomen/pkg/raddb"
)

// Well-known index keys holding entity ID lists.
const (
	allUsersIndex   = "all_users_index"
	allGroupsIndex  = "all_groups_index"
	allOUsIndex     = "all_ous_index"
	allDomainsIndex = "all_domains_index"
	allGPOsIndex    = "all_gpos_index"
)

// Service is the directory service over an encrypted store. Safe for
// concurrent use; the store serializes access internally.
type Service struct {
	db        *raddb.DB
	hub       *events.Hub
	auditPath string
}

// Option configures a Service.
type Option func(*Service)

// WithHub attaches an event hub; every audited mutation publishes to it.
func WithHub(hub *events.Hub) Option {
	return func(s *Service) { s.hub = hub }
}

// WithAuditLog sets the audit log file path. Empty disables file auditing.
func WithAuditLog(path string) Option {
	return func(s *Service) { s.auditPath = path }
}

// Open opens the store at path with the master key and wraps it in a Service.
func Open(path string, key raddb.MasterKey, opts ...Option) (*Service, error) {
	db, err := raddb.Open(path, key)
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

// New wraps an already opened store.
func New(db *raddb.DB, opts ...Option) *Service {
	s := &Service{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the underlying store, mainly for lifecycle management.
func (s *Service) DB() *raddb.DB {
	return s.db
}

// Close flushes and releases the underlying store.
func (s *Service) Close() error {
	return s.db.Close()
}

// ============================================================================
// Key scheme
// ============================================================================

func userKey(id uuid.UUID) string   { return "user:" + id.String() }
func groupKey(id uuid.UUID) string  { return "group:" + id.String() }
func ouKey(id uuid.UUID) string     { return "ou:" + id.String() }
func domainKey(id uuid.UUID) string { return "domain:" + id.String() }
func gpoKey(id uuid.UUID) string    { return "gpo:" + id.String() }
func orgKey(id uuid.UUID) string    { return "org:" + id.String() }

// Username and email indexes fold to lower case, SAM account names to upper,
// matching how clients search for them.
func usernameIndexKey(username string) string {
	return "username_index:" + strings.ToLower(username)
}

func emailIndexKey(email string) string {
	return "email_index:" + strings.ToLower(email)
}

func samIndexKey(sam string) string {
	return "sam_account_name_index:" + strings.ToUpper(sam)
}

func dnIndexKey(dn string) string { return "dn_index:" + dn }

func memberIndexKey(userID uuid.UUID) string {
	return "member_index:" + userID.String()
}

func gpoLinkKey(targetID uuid.UUID) string {
	return "gpo_link:" + targetID.String()
}

// ============================================================================
// Store plumbing
// ============================================================================

// marshal encodes an entity for storage.
func marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

// store encodes v and writes it under key, flushing the snapshot.
func (s *Service) store(key string, v any) error {
	data, err := marshal(v)
	if err != nil {
		return err
	}
	return s.db.Set(key, data)
}

// load decodes the value under key into v. Returns false when absent.
func (s *Service) load(key string, v any) (bool, error) {
	data, ok := s.db.Get(key)
	if !ok {
		return false, nil
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: key %s: %v", ErrSerialization, key, err)
	}
	return true, nil
}

// loadIDList returns the UUID list under key, empty when absent.
func (s *Service) loadIDList(key string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if _, err := s.load(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// appendToIDList adds id to the list under key and stages the result.
func (s *Service) appendToIDList(key string, id uuid.UUID, staged map[string][]byte) error {
	ids, err := s.loadIDList(key)
	if err != nil {
		return err
	}
	ids = append(ids, id)
	data, err := marshal(ids)
	if err != nil {
		return err
	}
	staged[key] = data
	return nil
}

// removeFromIDList removes id from the list under key and stages the result.
func (s *Service) removeFromIDList(key string, id uuid.UUID, staged map[string][]byte) error {
	ids, err := s.loadIDList(key)
	if err != nil {
		return err
	}
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	data, err := marshal(out)
	if err != nil {
		return err
	}
	staged[key] = data
	return nil
}

// unmarshalIDs decodes a staged ID list value.
func unmarshalIDs(data []byte, ids *[]uuid.UUID) error {
	if err := msgpack.Unmarshal(data, ids); err != nil {
		return fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return nil
}

// stage encodes v and adds it to the staged entry map.
func stage(staged map[string][]byte, key string, v any) error {
	data, err := marshal(v)
	if err != nil {
		return err
	}
	staged[key] = data
	return nil
}

// commit writes all staged entries and flushes once.
func (s *Service) commit(staged map[string][]byte) error {
	return s.db.SetAll(staged)
}
