package compat

import (
	"bytes"
	"testing"
)

func TestFlagsGoldenVectors(t *testing.T) {
	// Define test cases. These encodings are compared byte-for-byte against
	// captured daemon traffic.
	testCases := []struct {
		flags   Flags
		encoded []byte
	}{
		{0, []byte{0x00}},
		{FlagIncRecurse, []byte{0x01}},
		{FlagSafeFileList, []byte{0x08}},
		{FlagIncRecurse | FlagSymlinkTimes | FlagSafeFileList | FlagChecksumSeedFix, []byte{0x2B}},
		{FlagIncRecurse | FlagSymlinkTimes | FlagSafeFileList | FlagChecksumSeedFix |
			FlagVarintFlistFlags | FlagID0Names, []byte{0x81, 0xAB}},
		{knownFlags, []byte{0x81, 0xFF}},
	}

	// Process test cases.
	for _, c := range testCases {
		buffer := &bytes.Buffer{}
		if err := c.flags.Write(buffer); err != nil {
			t.Fatalf("unable to encode flags %v: %v", c.flags, err)
		}
		if !bytes.Equal(buffer.Bytes(), c.encoded) {
			t.Errorf("encoding mismatch for %v: got % X, want % X", c.flags, buffer.Bytes(), c.encoded)
		}
		if decoded, err := ReadFlags(buffer); err != nil {
			t.Errorf("unable to decode flags %v: %v", c.flags, err)
		} else if decoded != c.flags {
			t.Errorf("round trip mismatch: got %v, want %v", decoded, c.flags)
		}
	}
}

func TestFlagsUnknownBitPreservation(t *testing.T) {
	// A peer newer than this implementation may set bits we don't interpret.
	// They must survive a round trip untouched.
	flags := FlagIncRecurse | Flags(1<<14) | Flags(1<<20)
	buffer := &bytes.Buffer{}
	if err := flags.Write(buffer); err != nil {
		t.Fatal("unable to encode flags:", err)
	}
	decoded, err := ReadFlags(buffer)
	if err != nil {
		t.Fatal("unable to decode flags:", err)
	}
	if decoded != flags {
		t.Error("unknown bits modified by round trip")
	}
	if decoded.Unknown() != Flags(1<<14)|Flags(1<<20) {
		t.Error("unknown bit extraction mismatch:", decoded.Unknown())
	}
}

func TestFlagsAccessors(t *testing.T) {
	flags := FlagIncRecurse | FlagChecksumSeedFix
	if !flags.IncRecurse() || !flags.ChecksumSeedFix() {
		t.Error("set bits not reported by accessors")
	}
	if flags.SafeFileList() || flags.SymlinkTimes() || flags.SymlinkIconv() || flags.VarintFlistFlags() {
		t.Error("clear bits reported by accessors")
	}
	if !flags.With(FlagSafeFileList).SafeFileList() {
		t.Error("With didn't set the requested bit")
	}
	if flags.Without(FlagIncRecurse).IncRecurse() {
		t.Error("Without didn't clear the requested bit")
	}
}

func TestDecodeFlagsRemainder(t *testing.T) {
	decoded, remainder, err := DecodeFlags([]byte{0x2B, 0xAA, 0xBB})
	if err != nil {
		t.Fatal("unable to decode flags:", err)
	}
	if decoded != FlagIncRecurse|FlagSymlinkTimes|FlagSafeFileList|FlagChecksumSeedFix {
		t.Error("unexpected flags:", decoded)
	}
	if !bytes.Equal(remainder, []byte{0xAA, 0xBB}) {
		t.Error("unexpected remainder:", remainder)
	}
}

func TestNegotiateString(t *testing.T) {
	// Define test cases.
	testCases := []struct {
		ours     []string
		theirs   string
		expected string
		fails    bool
	}{
		{ChecksumNames, "xxh128 xxh3 xxh64 md5 md4 sha1 none", "xxh128", false},
		{ChecksumNames, "md5 md4 none", "md5", false},
		{ChecksumNames, "xxh md4", "xxh64", false},
		{CompressionNames, "zlib none", "zlib", false},
		{ChecksumNames, "blake3", "", true},
		{ChecksumNames, "", "", true},
	}

	// Process test cases.
	for i, c := range testCases {
		result, err := NegotiateString(c.ours, c.theirs)
		if c.fails {
			if err == nil {
				t.Errorf("case %d: expected failure, got %q", i, result)
			}
			continue
		}
		if err != nil {
			t.Errorf("case %d: unexpected failure: %v", i, err)
		} else if result != c.expected {
			t.Errorf("case %d: expected %q, got %q", i, c.expected, result)
		}
	}
}

func TestCapabilityListTransport(t *testing.T) {
	transport := &bytes.Buffer{}
	if err := WriteCapabilityList(transport, ChecksumNames); err != nil {
		t.Fatal("unable to write capability list:", err)
	}
	names, err := ReadCapabilityList(transport)
	if err != nil {
		t.Fatal("unable to read capability list:", err)
	}
	if len(names) != len(ChecksumNames) {
		t.Fatal("capability list length mismatch:", names)
	}
	for i, name := range names {
		if name != ChecksumNames[i] {
			t.Error("capability list mismatch at index", i)
		}
	}
}
