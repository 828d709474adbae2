package compat

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/wire"
)

// ChecksumNames is the checksum algorithm preference list advertised during
// string negotiation, strongest preference first.
var ChecksumNames = []string{"xxh128", "xxh3", "xxh64", "md5", "md4", "sha1", "none"}

// CompressionNames is the compression algorithm preference list advertised
// during string negotiation, strongest preference first.
var CompressionNames = []string{"zstd", "lz4", "zlibx", "zlib", "none"}

// NormalizeChecksumName canonicalizes a checksum algorithm name, resolving
// historical aliases. Unknown names are returned unchanged so that lists from
// newer peers still negotiate on exact matches.
func NormalizeChecksumName(name string) string {
	if name == "xxh" {
		return "xxh64"
	}
	return name
}

// NegotiateString selects the first entry of the local preference list that
// also appears in the peer's list. Both lists are space-separated on the
// wire. It fails if no algorithm is shared, which in practice cannot happen
// between conforming peers since both lists end in "none".
func NegotiateString(ours []string, theirs string) (string, error) {
	peer := make(map[string]bool)
	for _, name := range strings.Fields(theirs) {
		peer[NormalizeChecksumName(name)] = true
	}
	for _, name := range ours {
		if peer[NormalizeChecksumName(name)] {
			return NormalizeChecksumName(name), nil
		}
	}
	return "", errors.Errorf("no shared algorithm between %q and %q", strings.Join(ours, " "), theirs)
}

// WriteCapabilityList writes a space-joined capability list using vstring
// framing.
func WriteCapabilityList(writer io.Writer, names []string) error {
	return wire.WriteVstring(writer, strings.Join(names, " "))
}

// ReadCapabilityList reads a vstring-framed capability list and splits it
// into names.
func ReadCapabilityList(reader io.Reader) ([]string, error) {
	value, err := wire.ReadVstring(reader)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read capability list")
	}
	return strings.Fields(value), nil
}
