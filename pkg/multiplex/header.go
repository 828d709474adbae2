package multiplex

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// UnknownTagError indicates a frame header whose tag does not correspond to
// any known channel. Once an unknown tag arrives, stream synchronization can
// no longer be trusted and the session must be torn down.
type UnknownTagError struct {
	// Tag is the offending tag byte.
	Tag uint8
}

// Error returns a formatted version of the unknown tag error.
func (e *UnknownTagError) Error() string {
	if e.Tag < TagBase {
		return fmt.Sprintf("frame tag %d below multiplex base", e.Tag)
	}
	return fmt.Sprintf("unknown frame tag %d", e.Tag)
}

// IsUnknownTag indicates whether or not an error is due to an unrecognized
// frame tag.
func IsUnknownTag(err error) bool {
	_, ok := errors.Cause(err).(*UnknownTagError)
	return ok
}

// header is a code-length pair that precedes every frame on the wire. The
// wire form is a single little-endian 32-bit word with the tag in the top
// byte and the payload length in the low 24 bits.
type header struct {
	// code is the channel for the subsequent payload.
	code Code
	// length is the payload length.
	length uint32
}

// readHeader reads a frame header from a stream. It is recommended that the
// stream be buffered to avoid the overhead of short reads. If the stream ends
// cleanly before the first header byte, io.EOF is returned unwrapped, because
// this is a natural frame boundary.
func readHeader(reader io.Reader) (header, error) {
	var word [4]byte
	if _, err := io.ReadFull(reader, word[:]); err != nil {
		if err == io.EOF {
			return header{}, io.EOF
		}
		return header{}, errors.Wrap(err, "unable to read frame header")
	}
	raw := binary.LittleEndian.Uint32(word[:])
	tag := uint8(raw >> 24)
	if tag < TagBase {
		return header{}, &UnknownTagError{tag}
	}
	code := Code(tag - TagBase)
	if !code.valid() {
		return header{}, &UnknownTagError{tag}
	}
	return header{code, raw & MaxPayloadLength}, nil
}

// write encodes a frame header to a stream. The length must already have been
// validated against MaxPayloadLength.
func (h header) write(writer io.Writer) error {
	var word [4]byte
	binary.LittleEndian.PutUint32(word[:], uint32(uint8(h.code)+TagBase)<<24|h.length)
	if _, err := writer.Write(word[:]); err != nil {
		return errors.Wrap(err, "unable to write frame header")
	}
	return nil
}
