package protocol

import (
	"github.com/pkg/errors"
)

// Version represents an rsync protocol version. It is encoded on the wire as a
// 32-bit little-endian integer during binary negotiation, so it uses int32 as
// its underlying type even though the supported range is small.
type Version int32

const (
	// Version28 is the oldest protocol version this implementation speaks. It
	// predates binary negotiation, varint encoding, and incremental recursion.
	Version28 Version = 28
	// Version29 extends protocol 28 with extended file list attributes but
	// still uses the legacy fixed-width integer encodings.
	Version29 Version = 29
	// Version30 introduces binary negotiation, varint/varlong integer
	// encodings, incremental recursion, and MD5 strong checksums.
	Version30 Version = 30
	// Version31 adds safe file lists by default and string-based negotiation
	// of checksum and compression algorithms.
	Version31 Version = 31
	// Version32 is the newest protocol version this implementation speaks.
	Version32 Version = 32

	// Oldest is the minimum supported protocol version.
	Oldest = Version28
	// Newest is the maximum supported protocol version.
	Newest = Version32
)

// Supported enumerates every protocol version this implementation speaks, in
// strictly descending order. It is a read-only table and must never be
// mutated.
var Supported = []Version{Version32, Version31, Version30, Version29, Version28}

// New validates a raw protocol version value. It returns an error if the value
// lies outside the supported range.
func New(value int32) (Version, error) {
	version := Version(value)
	if version < Oldest || version > Newest {
		return 0, errors.Errorf("protocol version %d outside supported range [%d, %d]", value, Oldest, Newest)
	}
	return version, nil
}

// Clamp restricts a raw version value to the supported range. Values below the
// range clamp to Oldest and values above it clamp to Newest.
func Clamp(value int32) Version {
	if value < int32(Oldest) {
		return Oldest
	} else if value > int32(Newest) {
		return Newest
	}
	return Version(value)
}

// maxAdvertisement bounds acceptable peer version advertisements. Peers a
// few versions beyond Newest still speak every version this implementation
// does, so their advertisements clamp to Newest, but values beyond this
// bound are treated as stream corruption rather than a plausible future
// protocol.
const maxAdvertisement = 40

// FromAdvertisement resolves a peer's advertised protocol version. Values in
// the supported range resolve to themselves, values above it and up to the
// advertisement bound clamp to Newest, and anything else is rejected.
func FromAdvertisement(value int32) (Version, error) {
	if value < int32(Oldest) || value > maxAdvertisement {
		return 0, errors.Errorf("advertised protocol version %d outside acceptable range [%d, %d]", value, Oldest, maxAdvertisement)
	}
	return Clamp(value), nil
}

// UsesBinaryNegotiation indicates whether or not the version performs binary
// (as opposed to legacy ASCII greeting) negotiation.
func (v Version) UsesBinaryNegotiation() bool {
	return v >= Version30
}

// UsesVarintEncoding indicates whether or not the version uses variable-length
// integer encodings for file sizes, modification times, and list lengths.
func (v Version) UsesVarintEncoding() bool {
	return v >= Version30
}

// UsesSafeFileLists indicates whether or not the version supports the safe
// file list extension.
func (v Version) UsesSafeFileLists() bool {
	return v >= Version30
}

// UsesStringNegotiation indicates whether or not the version negotiates
// checksum and compression algorithms by name.
func (v Version) UsesStringNegotiation() bool {
	return v >= Version31
}

// SupportedBy indicates whether or not the version appears in a version set.
func (v Version) SupportedBy(set []Version) bool {
	for _, candidate := range set {
		if candidate == v {
			return true
		}
	}
	return false
}

// HighestMutual computes the greatest protocol version present in both
// advertised version sets. It returns an error if the sets are disjoint. Ties
// require no special handling since the result is by construction supported by
// both peers.
func HighestMutual(ours, theirs []Version) (Version, error) {
	var best Version
	var found bool
	for _, version := range ours {
		if !version.SupportedBy(theirs) {
			continue
		}
		if !found || version > best {
			best = version
			found = true
		}
	}
	if !found {
		return 0, errors.New("no mutually supported protocol version")
	}
	return best, nil
}

// RangeThrough constructs the version set [Oldest, newest], used to model a
// peer that advertises only its newest version. Values above Newest are
// treated as Newest since newer peers can always speak our dialects.
func RangeThrough(newest Version) []Version {
	if newest > Newest {
		newest = Newest
	}
	var result []Version
	for v := newest; v >= Oldest; v-- {
		result = append(result, v)
	}
	return result
}
