package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/wirebind/rsyncwire/pkg/protocol"
)

func TestVarintGoldenVectors(t *testing.T) {
	// Define test cases. These byte sequences are fixed by the wire format and
	// compared byte-for-byte by interoperating peers.
	testCases := []struct {
		value   int32
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x80}},
		{255, []byte{0x80, 0xFF}},
		{256, []byte{0x81, 0x00}},
		{16383, []byte{0xBF, 0xFF}},
		{16384, []byte{0xC0, 0x00, 0x40}},
		{0x40000000, []byte{0xF0, 0x00, 0x00, 0x00, 0x40}},
		{-1, []byte{0xF0, 0xFF, 0xFF, 0xFF, 0xFF}},
		{-128, []byte{0xF0, 0x80, 0xFF, 0xFF, 0xFF}},
	}

	// Process test cases.
	for _, c := range testCases {
		buffer := &bytes.Buffer{}
		if err := WriteVarint(buffer, c.value); err != nil {
			t.Fatalf("unable to encode %d: %v", c.value, err)
		}
		if !bytes.Equal(buffer.Bytes(), c.encoded) {
			t.Errorf("encoding mismatch for %d: got % X, want % X", c.value, buffer.Bytes(), c.encoded)
		}
		if decoded, err := ReadVarint(buffer); err != nil {
			t.Errorf("unable to decode %d: %v", c.value, err)
		} else if decoded != c.value {
			t.Errorf("round trip mismatch: got %d, want %d", decoded, c.value)
		}
	}
}

func TestVarintByteLengthBoundaries(t *testing.T) {
	// Define test cases.
	testCases := []struct {
		values []int32
		length int
	}{
		{[]int32{0, 1, 63, 64, 126, 127}, 1},
		{[]int32{128, 129, 255, 256, 1000, 8192, 16382, 16383}, 2},
		{[]int32{16384, 16385, 100000, 1000000, 2097150, 2097151}, 3},
	}

	// Process test cases.
	for _, c := range testCases {
		for _, value := range c.values {
			encoded := AppendVarint(nil, value)
			if len(encoded) != c.length {
				t.Errorf("value %d encoded to %d bytes, want %d", value, len(encoded), c.length)
			}
			decoded, consumed, err := DecodeVarint(encoded)
			if err != nil {
				t.Fatalf("unable to decode %d: %v", value, err)
			}
			if decoded != value || consumed != len(encoded) {
				t.Errorf("round trip mismatch for %d", value)
			}
		}
	}
}

func TestVarintTruncated(t *testing.T) {
	// A 0xC0 prefix promises two extra bytes.
	if _, err := ReadVarint(bytes.NewReader([]byte{0xC0, 0x00})); !IsTruncated(err) {
		t.Error("truncated varint not detected:", err)
	}
	if _, _, err := DecodeVarint([]byte{0xC0, 0x00}); !IsTruncated(err) {
		t.Error("truncated varint slice not detected:", err)
	}
	if _, _, err := DecodeVarint(nil); !IsTruncated(err) {
		t.Error("empty varint slice not detected:", err)
	}
}

func TestVarintEOFAtBoundary(t *testing.T) {
	if _, err := ReadVarint(bytes.NewReader(nil)); err != io.EOF {
		t.Error("expected bare EOF at value boundary, got:", err)
	}
}

func TestVarintOverflowPrefix(t *testing.T) {
	// Prefixes of 0xF8 and above promise five or more extra bytes, which
	// cannot fit a 32-bit target.
	for _, prefix := range []byte{0xF8, 0xFB, 0xFC, 0xFF} {
		input := []byte{prefix, 0, 0, 0, 0, 0, 0}
		if _, err := ReadVarint(bytes.NewReader(input)); !IsOverflow(err) {
			t.Errorf("prefix 0x%02X not rejected as overflow: %v", prefix, err)
		}
	}
}

func TestLongintGoldenVectors(t *testing.T) {
	// Define test cases.
	testCases := []struct {
		value   int64
		encoded []byte
	}{
		{42, []byte{0x2A, 0x00, 0x00, 0x00}},
		{0x7FFFFFFF, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
		{0x80000000, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x80, 0x00, 0x00, 0x00, 0x00}},
		{1099511627776, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00}},
	}

	// Process test cases.
	for _, c := range testCases {
		buffer := &bytes.Buffer{}
		if err := WriteLongint(buffer, c.value); err != nil {
			t.Fatalf("unable to encode %d: %v", c.value, err)
		}
		if !bytes.Equal(buffer.Bytes(), c.encoded) {
			t.Errorf("encoding mismatch for %d: got % X, want % X", c.value, buffer.Bytes(), c.encoded)
		}
		if decoded, err := ReadLongint(buffer); err != nil {
			t.Errorf("unable to decode %d: %v", c.value, err)
		} else if decoded != c.value {
			t.Errorf("round trip mismatch: got %d, want %d", decoded, c.value)
		}
	}
}

func TestVarlongGoldenVectors(t *testing.T) {
	// Define test cases.
	testCases := []struct {
		value    int64
		minBytes int
		encoded  []byte
	}{
		{0, 3, []byte{0x00, 0x00, 0x00}},
		{1024, 3, []byte{0x00, 0x00, 0x04}},
		{16777215, 3, []byte{0x80, 0xFF, 0xFF, 0xFF}},
		{1700000000, 3, []byte{0xC0, 0x00, 0xF1, 0x53, 0x65}},
	}

	// Process test cases.
	for _, c := range testCases {
		buffer := &bytes.Buffer{}
		if err := WriteVarlong(buffer, c.value, c.minBytes); err != nil {
			t.Fatalf("unable to encode %d: %v", c.value, err)
		}
		if !bytes.Equal(buffer.Bytes(), c.encoded) {
			t.Errorf("encoding mismatch for %d: got % X, want % X", c.value, buffer.Bytes(), c.encoded)
		}
		if decoded, err := ReadVarlong(buffer, c.minBytes); err != nil {
			t.Errorf("unable to decode %d: %v", c.value, err)
		} else if decoded != c.value {
			t.Errorf("round trip mismatch: got %d, want %d", decoded, c.value)
		}
	}
}

func TestVarlongRoundTrip(t *testing.T) {
	// Define test cases covering each minimum width at ascending magnitudes.
	values := []int64{
		0, 1, 255, 256, 65535, 65536,
		16777215, 16777216, 1 << 30, 1 << 32, 1 << 40, 1 << 48,
		0x03FFFFFFFFFFFFFF,
	}

	// Process test cases.
	for _, minBytes := range []int{3, 4, 5} {
		for _, value := range values {
			buffer := &bytes.Buffer{}
			if err := WriteVarlong(buffer, value, minBytes); err != nil {
				t.Fatalf("unable to encode %d at minimum %d: %v", value, minBytes, err)
			}
			if decoded, err := ReadVarlong(buffer, minBytes); err != nil {
				t.Errorf("unable to decode %d at minimum %d: %v", value, minBytes, err)
			} else if decoded != value {
				t.Errorf("round trip mismatch at minimum %d: got %d, want %d", minBytes, decoded, value)
			}
		}
	}
}

func TestVarlongOverflow(t *testing.T) {
	// At a minimum width of 3, a prefix announcing six extra bytes would push
	// the masked top byte past the 64-bit boundary.
	input := []byte{0xFC, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if _, err := ReadVarlong(bytes.NewReader(input), 3); !IsOverflow(err) {
		t.Error("oversized varlong prefix not rejected:", err)
	}

	// A value whose top byte collides with the widest prefix markers has no
	// decodable encoding and must be rejected at write time.
	if err := WriteVarlong(io.Discard, -1, 3); !IsOverflow(err) {
		t.Error("unencodable varlong value not rejected:", err)
	}
}

func TestProtocolSwitchingEncodings(t *testing.T) {
	// Before protocol 30, 32-bit values use the fixed 4-byte form and 64-bit
	// values use the escaped legacy form.
	buffer := &bytes.Buffer{}
	if err := WriteVarint30(buffer, protocol.Version29, 5); err != nil {
		t.Fatal("unable to write legacy integer:", err)
	}
	if !bytes.Equal(buffer.Bytes(), []byte{0x05, 0x00, 0x00, 0x00}) {
		t.Error("legacy integer not fixed-width:", buffer.Bytes())
	}
	if value, err := ReadVarint30(buffer, protocol.Version29); err != nil || value != 5 {
		t.Errorf("legacy integer round trip failed: %d, %v", value, err)
	}

	// At protocol 30 and later, the same value takes a single byte.
	buffer.Reset()
	if err := WriteVarint30(buffer, protocol.Version30, 5); err != nil {
		t.Fatal("unable to write varint:", err)
	}
	if !bytes.Equal(buffer.Bytes(), []byte{0x05}) {
		t.Error("modern integer not variable-width:", buffer.Bytes())
	}

	// The 64-bit switch follows the same protocol boundary.
	buffer.Reset()
	if err := WriteVarlong30(buffer, protocol.Version28, 42, 3); err != nil {
		t.Fatal("unable to write legacy 64-bit integer:", err)
	}
	if buffer.Len() != 4 {
		t.Error("legacy 64-bit integer has unexpected width:", buffer.Len())
	}
	buffer.Reset()
	if err := WriteVarlong30(buffer, protocol.Version32, 42, 3); err != nil {
		t.Fatal("unable to write varlong:", err)
	}
	if buffer.Len() != 3 {
		t.Error("modern 64-bit integer has unexpected width:", buffer.Len())
	}
	if value, err := ReadVarlong30(buffer, protocol.Version32, 3); err != nil || value != 42 {
		t.Errorf("modern 64-bit round trip failed: %d, %v", value, err)
	}
}

func TestVstringTransport(t *testing.T) {
	// Define test cases.
	testCases := []string{
		"",
		"md5",
		"xxh128 xxh3 xxh64 md5 md4 sha1 none",
		string(make([]byte, 127)),
		string(make([]byte, 128)),
		string(make([]byte, 32767)),
	}

	// Create our transport.
	transport := &bytes.Buffer{}

	// Encode them.
	for i, c := range testCases {
		if err := WriteVstring(transport, c); err != nil {
			t.Fatalf("unable to encode string %d: %v", i, err)
		}
	}

	// Decode them.
	for i, c := range testCases {
		if decoded, err := ReadVstring(transport); err != nil {
			t.Fatalf("unable to decode string %d: %v", i, err)
		} else if decoded != c {
			t.Error("string mismatch at index", i)
		}
	}

	// Oversized strings must be rejected before any bytes hit the wire.
	transport.Reset()
	if err := WriteVstring(transport, string(make([]byte, 32768))); err == nil {
		t.Error("oversized string accepted")
	} else if transport.Len() != 0 {
		t.Error("oversized string leaked bytes onto the wire")
	}
}
