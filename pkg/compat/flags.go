// Package compat implements the compatibility exchange that follows version
// negotiation: the varint-encoded capability bitfield introduced by protocol
// 30 and the string-based checksum and compression negotiation introduced by
// protocol 31.
package compat

import (
	"io"
	"strings"

	"github.com/wirebind/rsyncwire/pkg/wire"
)

// Flags is the compatibility bitfield exchanged after binary version
// negotiation. Bits unknown to this implementation are preserved verbatim so
// a round trip never discards capabilities advertised by newer peers.
type Flags uint32

const (
	// FlagIncRecurse indicates incremental recursion support.
	FlagIncRecurse Flags = 1 << 0
	// FlagSymlinkTimes indicates that symlink modification times can be set.
	FlagSymlinkTimes Flags = 1 << 1
	// FlagSymlinkIconv indicates that symlink targets pass through character
	// set conversion.
	FlagSymlinkIconv Flags = 1 << 2
	// FlagSafeFileList indicates sanitized file list entries.
	FlagSafeFileList Flags = 1 << 3
	// FlagAvoidXattrOptimization disables the extended attribute
	// optimization for compatibility.
	FlagAvoidXattrOptimization Flags = 1 << 4
	// FlagChecksumSeedFix indicates the corrected checksum seed ordering.
	FlagChecksumSeedFix Flags = 1 << 5
	// FlagInplacePartialDir indicates in-place partial directory support.
	FlagInplacePartialDir Flags = 1 << 6
	// FlagVarintFlistFlags indicates varint-encoded file list flags.
	FlagVarintFlistFlags Flags = 1 << 7
	// FlagID0Names indicates that names are sent for UID/GID 0.
	FlagID0Names Flags = 1 << 8

	// knownFlags is the set of bits this implementation interprets.
	knownFlags = FlagIncRecurse | FlagSymlinkTimes | FlagSymlinkIconv |
		FlagSafeFileList | FlagAvoidXattrOptimization | FlagChecksumSeedFix |
		FlagInplacePartialDir | FlagVarintFlistFlags | FlagID0Names
)

// flagNames maps individual flags to their display names, ordered by bit.
var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagIncRecurse, "inc-recurse"},
	{FlagSymlinkTimes, "symlink-times"},
	{FlagSymlinkIconv, "symlink-iconv"},
	{FlagSafeFileList, "safe-flist"},
	{FlagAvoidXattrOptimization, "avoid-xattr-optim"},
	{FlagChecksumSeedFix, "checksum-seed-fix"},
	{FlagInplacePartialDir, "inplace-partial-dir"},
	{FlagVarintFlistFlags, "varint-flist-flags"},
	{FlagID0Names, "id0-names"},
}

// Contains indicates whether or not all bits of a flag set are present.
func (f Flags) Contains(flags Flags) bool {
	return f&flags == flags
}

// With returns the flags with additional bits set.
func (f Flags) With(flags Flags) Flags {
	return f | flags
}

// Without returns the flags with bits cleared.
func (f Flags) Without(flags Flags) Flags {
	return f &^ flags
}

// Unknown returns the bits not interpreted by this implementation.
func (f Flags) Unknown() Flags {
	return f &^ knownFlags
}

// IncRecurse indicates whether or not incremental recursion is enabled.
func (f Flags) IncRecurse() bool { return f.Contains(FlagIncRecurse) }

// SymlinkTimes indicates whether or not symlink time setting is enabled.
func (f Flags) SymlinkTimes() bool { return f.Contains(FlagSymlinkTimes) }

// SymlinkIconv indicates whether or not symlink target conversion is enabled.
func (f Flags) SymlinkIconv() bool { return f.Contains(FlagSymlinkIconv) }

// SafeFileList indicates whether or not safe file lists are enabled.
func (f Flags) SafeFileList() bool { return f.Contains(FlagSafeFileList) }

// ChecksumSeedFix indicates whether or not the corrected seed ordering is in
// effect.
func (f Flags) ChecksumSeedFix() bool { return f.Contains(FlagChecksumSeedFix) }

// VarintFlistFlags indicates whether or not file list flags use varint
// encoding.
func (f Flags) VarintFlistFlags() bool { return f.Contains(FlagVarintFlistFlags) }

// String provides a human-readable representation of the flags.
func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for _, entry := range flagNames {
		if f.Contains(entry.flag) {
			names = append(names, entry.name)
		}
	}
	if unknown := f.Unknown(); unknown != 0 {
		names = append(names, "unknown")
	}
	return strings.Join(names, ",")
}

// Write encodes the flags as a varint.
func (f Flags) Write(writer io.Writer) error {
	return wire.WriteVarint(writer, int32(f))
}

// ReadFlags decodes flags from a stream.
func ReadFlags(reader io.Reader) (Flags, error) {
	value, err := wire.ReadVarint(reader)
	if err != nil {
		return 0, err
	}
	return Flags(uint32(value)), nil
}

// DecodeFlags decodes flags from the front of a byte slice, returning the
// flags and the unconsumed remainder.
func DecodeFlags(buffer []byte) (Flags, []byte, error) {
	value, consumed, err := wire.DecodeVarint(buffer)
	if err != nil {
		return 0, nil, err
	}
	return Flags(uint32(value)), buffer[consumed:], nil
}
