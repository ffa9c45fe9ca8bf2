// Package ldap implements a minimal LDAP v3 server surface: a BER subset
// codec, an RFC 4515 filter subset, and a TCP server handling simple bind
// and user search against the directory service.
package ldap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// ============================================================================
// Errors
// ============================================================================

var (
	// ErrUnexpectedEOF indicates an element claimed more content than the
	// input carries.
	ErrUnexpectedEOF = errors.New("ldap: unexpected end of BER data")

	// ErrInvalidLength indicates a malformed BER length octet sequence.
	ErrInvalidLength = errors.New("ldap: invalid BER length")
)

// UnsupportedTypeError reports a universal tag outside the supported subset.
type UnsupportedTypeError struct {
	Tag byte
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("ldap: unsupported BER type 0x%02X", e.Tag)
}

// ============================================================================
// Value model
// ============================================================================

// Universal tags of the supported subset. Sequence and Set carry the
// constructed bit.
const (
	tagBoolean     byte = 0x01
	tagInteger     byte = 0x02
	tagOctetString byte = 0x04
	tagNull        byte = 0x05
	tagEnumerated  byte = 0x0A
	tagSequence    byte = 0x30
	tagSet         byte = 0x31
)

const (
	classMask        byte = 0xC0
	classUniversal   byte = 0x00
	classApplication byte = 0x40
	classContext     byte = 0x80
	constructedBit   byte = 0x20
	tagNumberMask    byte = 0x1F
)

// Kind discriminates the BER value union.
type Kind uint8

const (
	KindInteger Kind = iota
	KindEnumerated
	KindOctetString
	KindSequence
	KindSet
	KindBoolean
	KindNull
	KindTagged
)

// Value is one decoded BER element. Exactly one payload field is meaningful
// per Kind: Int, Enum, Bytes, Items, Bool, or (for KindTagged) Tag together
// with Items or Bytes depending on the constructed bit.
type Value struct {
	Kind  Kind
	Int   int64
	Enum  uint32
	Bytes []byte
	Items []Value
	Bool  bool

	// Tag holds the full identifier octet of application and context
	// class elements.
	Tag byte
}

// Int returns an INTEGER value.
func Int(n int64) Value { return Value{Kind: KindInteger, Int: n} }

// Enum returns an ENUMERATED value.
func Enum(n uint32) Value { return Value{Kind: KindEnumerated, Enum: n} }

// Octets returns an OCTET STRING value.
func Octets(b []byte) Value { return Value{Kind: KindOctetString, Bytes: b} }

// Str returns an OCTET STRING value holding s.
func Str(s string) Value { return Value{Kind: KindOctetString, Bytes: []byte(s)} }

// Seq returns a SEQUENCE of items.
func Seq(items ...Value) Value { return Value{Kind: KindSequence, Items: items} }

// SetOf returns a SET of items.
func SetOf(items ...Value) Value { return Value{Kind: KindSet, Items: items} }

// Bool returns a BOOLEAN value.
func Bool(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Null returns the NULL value.
func Null() Value { return Value{Kind: KindNull} }

// Application returns a constructed application-class element, the framing
// LDAP uses for protocol operations.
func Application(number byte, items ...Value) Value {
	return Value{
		Kind:  KindTagged,
		Tag:   classApplication | constructedBit | (number & tagNumberMask),
		Items: items,
	}
}

// ContextPrimitive returns a primitive context-class element carrying raw
// bytes, such as the simple authentication choice of a bind request.
func ContextPrimitive(number byte, data []byte) Value {
	return Value{
		Kind:  KindTagged,
		Tag:   classContext | (number & tagNumberMask),
		Bytes: data,
	}
}

// TagNumber returns the tag number of a tagged element.
func (v Value) TagNumber() byte { return v.Tag & tagNumberMask }

// IsApplication reports whether a tagged element is application class.
func (v Value) IsApplication() bool { return v.Tag&classMask == classApplication }

// Constructed reports whether a tagged element carries nested elements.
func (v Value) Constructed() bool { return v.Tag&constructedBit != 0 }

// String returns the octet string payload as text, and "" for other kinds.
func (v Value) String() string {
	if v.Kind != KindOctetString {
		return ""
	}
	return string(v.Bytes)
}

// ============================================================================
// Encoding
// ============================================================================

// Encode serializes the value to BER.
func (v Value) Encode() []byte {
	return v.Append(nil)
}

// Append serializes the value to BER, appending to dst.
func (v Value) Append(dst []byte) []byte {
	switch v.Kind {
	case KindInteger:
		content := minimalInt(v.Int)
		dst = appendHeader(dst, tagInteger, len(content))
		return append(dst, content...)
	case KindEnumerated:
		content := minimalUint(v.Enum)
		dst = appendHeader(dst, tagEnumerated, len(content))
		return append(dst, content...)
	case KindOctetString:
		dst = appendHeader(dst, tagOctetString, len(v.Bytes))
		return append(dst, v.Bytes...)
	case KindSequence:
		return appendConstructed(dst, tagSequence, v.Items)
	case KindSet:
		return appendConstructed(dst, tagSet, v.Items)
	case KindBoolean:
		dst = appendHeader(dst, tagBoolean, 1)
		if v.Bool {
			return append(dst, 0xFF)
		}
		return append(dst, 0x00)
	case KindNull:
		return appendHeader(dst, tagNull, 0)
	case KindTagged:
		if v.Constructed() {
			return appendConstructed(dst, v.Tag, v.Items)
		}
		dst = appendHeader(dst, v.Tag, len(v.Bytes))
		return append(dst, v.Bytes...)
	}
	return dst
}

func appendConstructed(dst []byte, tag byte, items []Value) []byte {
	var body []byte
	for _, item := range items {
		body = item.Append(body)
	}
	dst = appendHeader(dst, tag, len(body))
	return append(dst, body...)
}

// appendHeader writes the identifier octet and a definite length in short
// or long form.
func appendHeader(dst []byte, tag byte, length int) []byte {
	dst = append(dst, tag)
	if length < 0x80 {
		return append(dst, byte(length))
	}
	var lenBytes []byte
	for n := length; n > 0; n >>= 8 {
		lenBytes = append(lenBytes, byte(n))
	}
	dst = append(dst, 0x80|byte(len(lenBytes)))
	for i := len(lenBytes) - 1; i >= 0; i-- {
		dst = append(dst, lenBytes[i])
	}
	return dst
}

// minimalInt encodes a two's complement integer in the fewest octets.
func minimalInt(n int64) []byte {
	if n == 0 {
		return []byte{0}
	}
	var out []byte
	if n > 0 {
		for n > 0 {
			out = append(out, byte(n))
			n >>= 8
		}
		if out[len(out)-1]&0x80 != 0 {
			out = append(out, 0)
		}
	} else {
		for {
			out = append(out, byte(n))
			n >>= 8
			if n == -1 && out[len(out)-1]&0x80 != 0 {
				break
			}
		}
	}
	reverseBytes(out)
	return out
}

// minimalUint encodes an unsigned value with a leading zero octet when the
// high bit would otherwise read as a sign.
func minimalUint(n uint32) []byte {
	var out []byte
	for n > 0 {
		out = append(out, byte(n))
		n >>= 8
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	if out[len(out)-1]&0x80 != 0 {
		out = append(out, 0)
	}
	reverseBytes(out)
	return out
}

func reverseBytes(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

// ============================================================================
// Decoding
// ============================================================================

// Parse decodes one BER element from the front of data, returning the value
// and the number of bytes consumed.
func Parse(data []byte) (Value, int, error) {
	if len(data) == 0 {
		return Value{}, 0, ErrUnexpectedEOF
	}
	tag := data[0]
	length, headerLen, err := parseLength(data[1:])
	if err != nil {
		return Value{}, 0, err
	}
	start := 1 + headerLen
	end := start + length
	if end > len(data) {
		return Value{}, 0, ErrUnexpectedEOF
	}
	content := data[start:end]

	value, err := decodeContent(tag, content)
	if err != nil {
		return Value{}, 0, err
	}
	return value, end, nil
}

// ParseAll decodes a concatenation of BER elements.
func ParseAll(data []byte) ([]Value, error) {
	var values []Value
	for len(data) > 0 {
		value, consumed, err := Parse(data)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
		data = data[consumed:]
	}
	return values, nil
}

func decodeContent(tag byte, content []byte) (Value, error) {
	switch tag {
	case tagInteger:
		return Int(decodeInteger(content)), nil
	case tagEnumerated:
		return Enum(decodeEnumerated(content)), nil
	case tagOctetString:
		return Octets(content), nil
	case tagSequence, tagSet:
		items, err := ParseAll(content)
		if err != nil {
			return Value{}, err
		}
		kind := KindSequence
		if tag == tagSet {
			kind = KindSet
		}
		return Value{Kind: kind, Items: items}, nil
	case tagBoolean:
		if len(content) == 0 {
			return Value{}, ErrUnexpectedEOF
		}
		return Bool(content[0] != 0), nil
	case tagNull:
		return Null(), nil
	}

	if tag&classMask != classUniversal {
		tagged := Value{Kind: KindTagged, Tag: tag}
		if tag&constructedBit != 0 {
			items, err := ParseAll(content)
			if err != nil {
				return Value{}, err
			}
			tagged.Items = items
		} else {
			tagged.Bytes = content
		}
		return tagged, nil
	}

	return Value{}, &UnsupportedTypeError{Tag: tag}
}

// parseLength reads a definite length, returning the length and the number
// of octets it occupied.
func parseLength(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrUnexpectedEOF
	}
	first := data[0]
	if first&0x80 == 0 {
		return int(first), 1, nil
	}
	numBytes := int(first & 0x7F)
	if numBytes == 0 || numBytes > 8 {
		return 0, 0, ErrInvalidLength
	}
	if len(data) < 1+numBytes {
		return 0, 0, ErrUnexpectedEOF
	}
	length := 0
	for _, b := range data[1 : 1+numBytes] {
		length = (length << 8) | int(b)
	}
	if length < 0 {
		return 0, 0, ErrInvalidLength
	}
	return length, 1 + numBytes, nil
}

// decodeInteger interprets content as a two's complement integer.
func decodeInteger(content []byte) int64 {
	if len(content) == 0 {
		return 0
	}
	var n int64
	for _, b := range content {
		n = (n << 8) | int64(b)
	}
	if content[0]&0x80 != 0 && len(content) < 8 {
		n -= int64(1) << (uint(len(content)) * 8)
	}
	return n
}

func decodeEnumerated(content []byte) uint32 {
	var n uint32
	for _, b := range content {
		n = (n << 8) | uint32(b)
	}
	return n
}

// ============================================================================
// Stream reading
// ============================================================================

// ReadValue decodes one BER element from a buffered reader. It returns
// io.EOF unwrapped when the stream ends cleanly before a new element.
func ReadValue(r *bufio.Reader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Value{}, err
	}

	first, err := r.ReadByte()
	if err != nil {
		return Value{}, eofToUnexpected(err)
	}

	header := []byte{tag, first}
	length := int(first)
	if first&0x80 != 0 {
		numBytes := int(first & 0x7F)
		if numBytes == 0 || numBytes > 8 {
			return Value{}, ErrInvalidLength
		}
		lenBytes := make([]byte, numBytes)
		if _, err := io.ReadFull(r, lenBytes); err != nil {
			return Value{}, eofToUnexpected(err)
		}
		header = append(header, lenBytes...)
		length = 0
		for _, b := range lenBytes {
			length = (length << 8) | int(b)
		}
		if length < 0 {
			return Value{}, ErrInvalidLength
		}
	}

	raw := make([]byte, len(header)+length)
	copy(raw, header)
	if _, err := io.ReadFull(r, raw[len(header):]); err != nil {
		return Value{}, eofToUnexpected(err)
	}

	value, _, err := Parse(raw)
	return value, err
}

func eofToUnexpected(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnexpectedEOF
	}
	return err
}
