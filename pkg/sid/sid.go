// Package sid provides Windows Security Identifier (SID) types, encoding,
// decoding, and formatting for directory principals.
//
// SIDs are binary identifiers used to represent security principals (users,
// groups, computers). Every principal in the directory carries a SID derived
// from its domain SID plus a relative identifier (RID).
//
// The binary format follows MS-DTYP Section 2.4.2:
//
//	Revision(1) + SubAuthorityCount(1) + IdentifierAuthority(6, big-endian)
//	+ SubAuthorities(4*N, little-endian)
//
// The string format is "S-{Revision}-{Authority}-{SubAuth1}-...-{SubAuthN}".
package sid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// NTAuthority is the SECURITY_NT_AUTHORITY identifier authority value.
var NTAuthority = [6]byte{0, 0, 0, 0, 0, 5}

// SID represents a Windows Security Identifier per MS-DTYP Section 2.4.2.
type SID struct {
	// Revision is always 1.
	Revision uint8 `json:"revision" msgpack:"revision"`

	// Authority is the top-level identifier authority (6 bytes, big-endian).
	Authority [6]byte `json:"authority" msgpack:"authority"`

	// SubAuthorities contains the sub-authority values. The last one is
	// conventionally the RID.
	SubAuthorities []uint32 `json:"sub_authorities" msgpack:"sub_authorities"`
}

// NewNTAuthority returns a SID under SECURITY_NT_AUTHORITY with a single
// sub-authority, e.g. NewNTAuthority(21) for a domain SID stem.
func NewNTAuthority(id uint32) *SID {
	return &SID{
		Revision:       1,
		Authority:      NTAuthority,
		SubAuthorities: []uint32{id},
	}
}

// NewFromParts builds a SID from an authority and sub-authority list.
func NewFromParts(authority [6]byte, subs []uint32) *SID {
	return &SID{
		Revision:       1,
		Authority:      authority,
		SubAuthorities: subs,
	}
}

// WithRID returns a copy of the SID with rid appended as the final
// sub-authority. The receiver is not modified.
func (s *SID) WithRID(rid uint32) *SID {
	subs := make([]uint32, len(s.SubAuthorities)+1)
	copy(subs, s.SubAuthorities)
	subs[len(subs)-1] = rid
	return &SID{
		Revision:       s.Revision,
		Authority:      s.Authority,
		SubAuthorities: subs,
	}
}

// RID returns the final sub-authority, or 0 if the SID has none.
func (s *SID) RID() uint32 {
	if len(s.SubAuthorities) == 0 {
		return 0
	}
	return s.SubAuthorities[len(s.SubAuthorities)-1]
}

// Size returns the binary size of the SID in bytes.
func (s *SID) Size() int {
	return 8 + 4*len(s.SubAuthorities)
}

// Encode writes the binary SID to buf per MS-DTYP Section 2.4.2.
func (s *SID) Encode(buf *bytes.Buffer) {
	buf.WriteByte(s.Revision)
	buf.WriteByte(uint8(len(s.SubAuthorities)))
	buf.Write(s.Authority[:])
	for _, sa := range s.SubAuthorities {
		_ = binary.Write(buf, binary.LittleEndian, sa)
	}
}

// Bytes returns the binary encoding of the SID.
func (s *SID) Bytes() []byte {
	var buf bytes.Buffer
	s.Encode(&buf)
	return buf.Bytes()
}

// Decode parses a binary SID from data per MS-DTYP Section 2.4.2.
// Returns the parsed SID and number of bytes consumed, or an error.
func Decode(data []byte) (*SID, int, error) {
	if len(data) < 8 {
		return nil, 0, fmt.Errorf("SID too short: %d bytes", len(data))
	}

	count := int(data[1])
	size := 8 + 4*count
	if len(data) < size {
		return nil, 0, fmt.Errorf("SID data too short for %d sub-authorities: have %d, need %d", count, len(data), size)
	}

	s := &SID{Revision: data[0]}
	copy(s.Authority[:], data[2:8])

	s.SubAuthorities = make([]uint32, count)
	for i := 0; i < count; i++ {
		offset := 8 + 4*i
		s.SubAuthorities[i] = binary.LittleEndian.Uint32(data[offset : offset+4])
	}

	return s, size, nil
}

// String formats the SID in "S-1-5-21-..." form.
func (s *SID) String() string {
	// Compute the 48-bit authority value from big-endian 6 bytes
	var authority uint64
	for i := range 6 {
		authority = (authority << 8) | uint64(s.Authority[i])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "S-%d-%d", s.Revision, authority)
	for _, sa := range s.SubAuthorities {
		fmt.Fprintf(&b, "-%d", sa)
	}
	return b.String()
}

// Parse parses a SID string in "S-1-5-21-..." format.
func Parse(str string) (*SID, error) {
	if !strings.HasPrefix(str, "S-") {
		return nil, fmt.Errorf("invalid SID format: must start with S-")
	}

	parts := strings.Split(str[2:], "-")
	if len(parts) < 2 {
		return nil, fmt.Errorf("invalid SID format: need at least revision and authority")
	}

	revision, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return nil, fmt.Errorf("invalid SID revision: %w", err)
	}

	authority, err := strconv.ParseUint(parts[1], 10, 48)
	if err != nil {
		return nil, fmt.Errorf("invalid SID authority: %w", err)
	}

	s := &SID{Revision: uint8(revision)}

	// Encode authority as big-endian 6 bytes
	for i := 5; i >= 0; i-- {
		s.Authority[i] = byte(authority & 0xFF)
		authority >>= 8
	}

	s.SubAuthorities = make([]uint32, len(parts)-2)
	for i := range s.SubAuthorities {
		val, err := strconv.ParseUint(parts[i+2], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid SID sub-authority %d: %w", i, err)
		}
		s.SubAuthorities[i] = uint32(val)
	}

	return s, nil
}

// MustParse parses a SID string and panics on error. Used for well-known SIDs.
func MustParse(str string) *SID {
	s, err := Parse(str)
	if err != nil {
		panic(fmt.Sprintf("invalid well-known SID %q: %v", str, err))
	}
	return s
}

// Equal reports whether two SIDs are identical.
func (s *SID) Equal(other *SID) bool {
	if s == other {
		return true
	}
	if s == nil || other == nil {
		return false
	}
	if s.Revision != other.Revision {
		return false
	}
	if s.Authority != other.Authority {
		return false
	}
	if len(s.SubAuthorities) != len(other.SubAuthorities) {
		return false
	}
	for i := range s.SubAuthorities {
		if s.SubAuthorities[i] != other.SubAuthorities[i] {
			return false
		}
	}
	return true
}
