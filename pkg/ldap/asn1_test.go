package ldap

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{"integer zero", Int(0)},
		{"integer small", Int(42)},
		{"integer high bit", Int(128)},
		{"integer multibyte", Int(0x1234)},
		{"integer negative", Int(-1)},
		{"enumerated", Enum(3)},
		{"octet string", Str("hello")},
		{"boolean true", Bool(true)},
		{"boolean false", Bool(false)},
		{"null", Null()},
		{"sequence", Seq(Int(7), Str("a"), Bool(true))},
		{"set", SetOf(Str("x"), Str("y"))},
		{"nested", Seq(Seq(Int(1)), SetOf(Str("v")))},
		{"application", Application(3, Str("dc=corp"), Enum(2))},
		{"context primitive", ContextPrimitive(0, []byte("secret"))},
		{"bind request", Seq(Int(1), Application(0, Int(3), Str("CN=alice"), ContextPrimitive(0, []byte("pw"))))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.value.Encode()
			parsed, consumed, err := Parse(encoded)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			if consumed != len(encoded) {
				t.Errorf("consumed %d of %d bytes", consumed, len(encoded))
			}
			if reencoded := parsed.Encode(); !bytes.Equal(reencoded, encoded) {
				t.Errorf("re-encode mismatch:\n got %x\nwant %x", reencoded, encoded)
			}
		})
	}
}

func TestIntegerEncoding(t *testing.T) {
	tests := []struct {
		n    int64
		want []byte
	}{
		{0, []byte{0x02, 0x01, 0x00}},
		{127, []byte{0x02, 0x01, 0x7F}},
		{128, []byte{0x02, 0x02, 0x00, 0x80}},
		{256, []byte{0x02, 0x02, 0x01, 0x00}},
		{-1, []byte{0x02, 0x01, 0xFF}},
	}
	for _, tt := range tests {
		if got := Int(tt.n).Encode(); !bytes.Equal(got, tt.want) {
			t.Errorf("Int(%d) = %x, want %x", tt.n, got, tt.want)
		}
	}
}

func TestEnumeratedEncoding(t *testing.T) {
	if got := Enum(0).Encode(); !bytes.Equal(got, []byte{0x0A, 0x01, 0x00}) {
		t.Errorf("Enum(0) = %x", got)
	}
	// High bit set needs a leading zero pad.
	if got := Enum(0x80).Encode(); !bytes.Equal(got, []byte{0x0A, 0x02, 0x00, 0x80}) {
		t.Errorf("Enum(0x80) = %x", got)
	}
}

func TestLongFormLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 200)
	encoded := Octets(payload).Encode()

	wantHeader := []byte{0x04, 0x81, 0xC8}
	if !bytes.Equal(encoded[:3], wantHeader) {
		t.Fatalf("header = %x, want %x", encoded[:3], wantHeader)
	}

	parsed, _, err := Parse(encoded)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !bytes.Equal(parsed.Bytes, payload) {
		t.Error("payload mismatch after round trip")
	}
}

func TestParseErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		if _, _, err := Parse(nil); !errors.Is(err, ErrUnexpectedEOF) {
			t.Errorf("err = %v, want ErrUnexpectedEOF", err)
		}
	})

	t.Run("truncated content", func(t *testing.T) {
		if _, _, err := Parse([]byte{0x04, 0x05, 0x01}); !errors.Is(err, ErrUnexpectedEOF) {
			t.Errorf("err = %v, want ErrUnexpectedEOF", err)
		}
	})

	t.Run("indefinite length", func(t *testing.T) {
		if _, _, err := Parse([]byte{0x04, 0x80}); !errors.Is(err, ErrInvalidLength) {
			t.Errorf("err = %v, want ErrInvalidLength", err)
		}
	})

	t.Run("unsupported universal tag", func(t *testing.T) {
		_, _, err := Parse([]byte{0x06, 0x01, 0x55})
		var unsupported *UnsupportedTypeError
		if !errors.As(err, &unsupported) {
			t.Fatalf("err = %v, want UnsupportedTypeError", err)
		}
		if unsupported.Tag != 0x06 {
			t.Errorf("Tag = 0x%02X, want 0x06", unsupported.Tag)
		}
	})
}

func TestParseAll(t *testing.T) {
	data := append(Int(1).Encode(), Str("two").Encode()...)
	values, err := ParseAll(data)
	if err != nil {
		t.Fatalf("ParseAll failed: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("len = %d, want 2", len(values))
	}
	if values[0].Int != 1 || values[1].String() != "two" {
		t.Errorf("values = %+v", values)
	}
}

func TestReadValue(t *testing.T) {
	first := Seq(Int(1), Str("a")).Encode()
	second := Seq(Int(2), Str("b")).Encode()
	reader := bufio.NewReader(bytes.NewReader(append(first, second...)))

	for i, want := range []int64{1, 2} {
		value, err := ReadValue(reader)
		if err != nil {
			t.Fatalf("ReadValue %d failed: %v", i, err)
		}
		if value.Kind != KindSequence || value.Items[0].Int != want {
			t.Errorf("message %d = %+v", i, value)
		}
	}

	if _, err := ReadValue(reader); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want io.EOF at stream end", err)
	}
}

func TestReadValueTruncatedStream(t *testing.T) {
	encoded := Seq(Int(1), Str("abc")).Encode()
	reader := bufio.NewReader(bytes.NewReader(encoded[:len(encoded)-2]))

	if _, err := ReadValue(reader); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestTaggedAccessors(t *testing.T) {
	op := Application(3, Str("base"))
	if !op.IsApplication() || !op.Constructed() || op.TagNumber() != 3 {
		t.Errorf("application accessors wrong: %+v", op)
	}

	cred := ContextPrimitive(0, []byte("pw"))
	if cred.IsApplication() || cred.Constructed() || cred.TagNumber() != 0 {
		t.Errorf("context accessors wrong: %+v", cred)
	}
}
