// Package sniff distinguishes the two rsync handshake styles by inspecting
// the first bytes of a connection without losing any of them. Legacy daemons
// open with the ASCII line "@RSYNCD: <version>", while binary negotiation
// opens with a little-endian version field, so a single byte decides which
// grammar the rest of the stream follows.
package sniff

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// LegacyPrefix is the literal that opens every legacy daemon greeting.
const LegacyPrefix = "@RSYNCD:"

// Prologue identifies the negotiation style detected on a stream.
type Prologue uint8

const (
	// PrologueUndecided indicates that no bytes have been inspected yet.
	PrologueUndecided Prologue = iota
	// PrologueLegacyASCII indicates a stream opening with a legacy daemon
	// greeting line.
	PrologueLegacyASCII
	// PrologueBinary indicates a stream opening with a binary version field.
	PrologueBinary
)

// String provides a human-readable representation of a prologue.
func (p Prologue) String() string {
	switch p {
	case PrologueLegacyASCII:
		return "legacy ASCII"
	case PrologueBinary:
		return "binary"
	default:
		return "undecided"
	}
}

// mismatchError indicates that a stream opened with '@' but diverged from the
// legacy greeting prefix before the prefix was complete.
type mismatchError struct {
	// offset is the position of the diverging byte.
	offset int
	// value is the diverging byte.
	value byte
}

// Error returns a formatted version of the mismatch error.
func (e *mismatchError) Error() string {
	return fmt.Sprintf("greeting prefix mismatch at byte %d: 0x%02X", e.offset, e.value)
}

// IsPrefixMismatch indicates whether or not an error is due to a stream
// diverging from the legacy greeting prefix.
func IsPrefixMismatch(err error) bool {
	_, ok := errors.Cause(err).(*mismatchError)
	return ok
}

// Sniffer decides the negotiation prologue of a stream while retaining every
// byte it reads, so that the caller can replay the full stream afterward. A
// sniffer is not safe for concurrent use.
type Sniffer struct {
	// reader is the underlying stream.
	reader io.Reader
	// buffer holds every byte read during sniffing, in order.
	buffer []byte
	// decided is the detected prologue, if any.
	decided Prologue
}

// NewSniffer creates a sniffer for a stream.
func NewSniffer(reader io.Reader) *Sniffer {
	return &Sniffer{reader: reader}
}

// Sniff inspects the stream and returns the detected prologue. The decision
// is made on the first byte alone: '@' selects the legacy grammar and any
// other value selects binary negotiation. For a legacy stream, the sniffer
// additionally consumes the remainder of the fixed greeting prefix one byte
// at a time, failing early if the stream diverges from it, so at most eight
// bytes are ever buffered. Sniff is idempotent once a decision is reached.
func (s *Sniffer) Sniff() (Prologue, error) {
	// Propagate any previous decision.
	if s.decided != PrologueUndecided {
		return s.decided, nil
	}

	// Read the deciding byte. An immediate end of stream means the peer
	// closed the connection before saying anything.
	var single [1]byte
	if _, err := io.ReadFull(s.reader, single[:]); err != nil {
		if err == io.EOF {
			return PrologueUndecided, errors.Wrap(io.ErrUnexpectedEOF, "stream closed before prologue")
		}
		return PrologueUndecided, errors.Wrap(err, "unable to read prologue byte")
	}
	s.buffer = append(s.buffer, single[0])

	// Anything other than '@' means binary negotiation, with the byte we just
	// read forming the low byte of the version field.
	if single[0] != LegacyPrefix[0] {
		s.decided = PrologueBinary
		return s.decided, nil
	}

	// Complete the legacy prefix byte by byte, validating as we go. Stopping
	// at the first divergent byte keeps the buffered remainder replayable for
	// error reporting.
	for len(s.buffer) < len(LegacyPrefix) {
		if _, err := io.ReadFull(s.reader, single[:]); err != nil {
			if err == io.EOF {
				return PrologueUndecided, errors.Wrap(io.ErrUnexpectedEOF, "stream closed inside greeting prefix")
			}
			return PrologueUndecided, errors.Wrap(err, "unable to read greeting prefix")
		}
		if single[0] != LegacyPrefix[len(s.buffer)] {
			s.buffer = append(s.buffer, single[0])
			return PrologueUndecided, &mismatchError{len(s.buffer) - 1, single[0]}
		}
		s.buffer = append(s.buffer, single[0])
	}
	s.decided = PrologueLegacyASCII
	return s.decided, nil
}

// Buffered returns the bytes consumed during sniffing, in stream order. The
// returned slice is owned by the sniffer and valid until the next Sniff call.
func (s *Sniffer) Buffered() []byte {
	return s.buffer
}

// Drain writes the buffered prefix to a sink and discards it from the
// sniffer. Concatenating the sink's contents with the remainder of the
// underlying stream reproduces the original byte sequence exactly.
func (s *Sniffer) Drain(sink io.Writer) error {
	if len(s.buffer) == 0 {
		return nil
	}
	if _, err := sink.Write(s.buffer); err != nil {
		return errors.Wrap(err, "unable to drain sniffed prefix")
	}
	s.buffer = nil
	return nil
}

// Reader returns a reader that yields the buffered prefix followed by the
// remainder of the underlying stream. It is the standard way to hand the
// stream to a parser that needs to see the greeting from its first byte.
func (s *Sniffer) Reader() io.Reader {
	if len(s.buffer) == 0 {
		return s.reader
	}
	return io.MultiReader(bytes.NewReader(s.buffer), s.reader)
}
