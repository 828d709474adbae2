package negotiate

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/wire"
)

// UnsupportedVersionRangeError indicates that the peer's advertised protocol
// versions share no overlap with ours.
type UnsupportedVersionRangeError struct {
	// Advertised is the peer's advertised newest protocol version.
	Advertised int32
}

// Error returns a formatted version of the unsupported version range error.
func (e *UnsupportedVersionRangeError) Error() string {
	return fmt.Sprintf("no mutually supported protocol version (peer advertised %d)", e.Advertised)
}

// IsUnsupportedVersionRange indicates whether or not an error is due to
// disjoint advertised protocol version ranges.
func IsUnsupportedVersionRange(err error) bool {
	_, ok := errors.Cause(err).(*UnsupportedVersionRangeError)
	return ok
}

// TruncatedHandshakeError indicates that the stream ended before the
// handshake completed.
type TruncatedHandshakeError struct {
	// Phase is the phase the negotiator was in when the stream ended.
	Phase Phase
}

// Error returns a formatted version of the truncated handshake error.
func (e *TruncatedHandshakeError) Error() string {
	return fmt.Sprintf("stream ended during %s", e.Phase)
}

// IsTruncatedHandshake indicates whether or not an error is due to the stream
// ending mid-handshake.
func IsTruncatedHandshake(err error) bool {
	_, ok := errors.Cause(err).(*TruncatedHandshakeError)
	return ok
}

// truncated converts end-of-stream errors encountered mid-handshake into a
// TruncatedHandshakeError, leaving other errors untouched.
func truncated(err error, phase Phase) error {
	cause := errors.Cause(err)
	if cause == io.EOF || cause == io.ErrUnexpectedEOF || wire.IsTruncated(err) {
		return &TruncatedHandshakeError{phase}
	}
	return err
}
