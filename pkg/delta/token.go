package delta

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/wire"
)

const (
	// ChunkSize is the maximum literal run carried by a single token on
	// write. Readers accept longer runs up to the token limit.
	ChunkSize = 32 * 1024
	// maxLiteralLength bounds literal runs accepted from the wire.
	maxLiteralLength = 1 << 24
)

// EndOfInstructions is a sentinel error returned by a TokenReader once the
// terminating token has been consumed.
var EndOfInstructions = errors.New("end of delta instructions")

// Instruction is a single decoded delta instruction. If Data is non-empty,
// the instruction is a literal and Offset/Length are zero. Otherwise it is a
// copy of Length basis bytes starting at Offset. Instruction values returned
// by a TokenReader re-use the reader's buffer and are only valid until the
// next read.
type Instruction struct {
	// Data is the literal data to write, if any.
	Data []byte
	// Offset is the basis offset for copy instructions.
	Offset int64
	// Length is the basis length for copy instructions.
	Length int64
}

// OutOfBoundsCopyError indicates a copy instruction referencing data outside
// the declared basis.
type OutOfBoundsCopyError struct {
	// Index is the referenced block index.
	Index int32
	// Count is the declared block count.
	Count int32
}

// Error returns a formatted version of the out-of-bounds copy error.
func (e *OutOfBoundsCopyError) Error() string {
	return fmt.Sprintf("copy instruction references block %d of %d", e.Index, e.Count)
}

// IsOutOfBoundsCopy indicates whether or not an error is due to a copy
// instruction referencing data outside the basis.
func IsOutOfBoundsCopy(err error) bool {
	_, ok := errors.Cause(err).(*OutOfBoundsCopyError)
	return ok
}

// TokenReader decodes a token stream into instructions, resolving block
// matches against a signature header so that copy instructions surface as
// bounds-checked basis spans. The stream is finite and non-restartable: after
// the terminating token, every read returns EndOfInstructions.
type TokenReader struct {
	// reader is the underlying stream, typically a multiplexed data channel.
	reader io.Reader
	// head is the block layout that match tokens index into.
	head SumHead
	// buffer is a re-usable literal buffer.
	buffer []byte
	// done indicates that the terminating token has been consumed.
	done bool
}

// NewTokenReader creates a token reader for a delta stream described by a
// signature header.
func NewTokenReader(reader io.Reader, head SumHead) *TokenReader {
	return &TokenReader{reader: reader, head: head}
}

// bufferWithSize sizes the reader's literal buffer, retaining capacity
// between instructions.
func (t *TokenReader) bufferWithSize(size int32) []byte {
	if int32(cap(t.buffer)) >= size {
		return t.buffer[:size]
	}
	t.buffer = make([]byte, size)
	return t.buffer
}

// Next decodes the next instruction. Each token is a 4-byte little-endian
// integer: zero terminates the stream, a positive value is a literal run of
// that many bytes, and a negative value is a match of block -(token)-1.
func (t *TokenReader) Next() (Instruction, error) {
	if t.done {
		return Instruction{}, EndOfInstructions
	}
	token, err := wire.ReadInt(t.reader)
	if err != nil {
		if err == io.EOF {
			return Instruction{}, errors.Wrap(io.ErrUnexpectedEOF, "stream ended before terminating token")
		}
		return Instruction{}, errors.Wrap(err, "unable to read token")
	}
	if token == 0 {
		t.done = true
		return Instruction{}, EndOfInstructions
	}
	if token > 0 {
		// Literal run: the length was read from the wire, so bound it before
		// it sizes a buffer.
		if token > maxLiteralLength {
			return Instruction{}, errors.Errorf("literal run of %d bytes exceeds maximum", token)
		}
		data := t.bufferWithSize(token)
		if _, err := io.ReadFull(t.reader, data); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return Instruction{}, errors.Wrap(io.ErrUnexpectedEOF, "stream ended inside literal run")
			}
			return Instruction{}, errors.Wrap(err, "unable to read literal run")
		}
		return Instruction{Data: data}, nil
	}

	// Block match. The index must land inside the declared layout before it
	// is converted to a basis span.
	index := -token - 1
	if index >= t.head.Count {
		return Instruction{}, &OutOfBoundsCopyError{index, t.head.Count}
	}
	offset, length := t.head.blockSpan(index)
	return Instruction{Offset: offset, Length: length}, nil
}

// ReadAll decodes the remaining instructions eagerly, copying literal data so
// the results outlive the reader's buffer. It is intended for tests and
// capture inspection rather than streaming receivers.
func (t *TokenReader) ReadAll() ([]Instruction, error) {
	var result []Instruction
	for {
		instruction, err := t.Next()
		if err == EndOfInstructions {
			return result, nil
		} else if err != nil {
			return nil, err
		}
		if len(instruction.Data) > 0 {
			data := make([]byte, len(instruction.Data))
			copy(data, instruction.Data)
			instruction.Data = data
		}
		result = append(result, instruction)
	}
}

// WriteLiteral writes literal data as one or more literal tokens, splitting
// runs longer than ChunkSize.
func WriteLiteral(writer io.Writer, data []byte) error {
	for len(data) > 0 {
		chunk := data
		if len(chunk) > ChunkSize {
			chunk = chunk[:ChunkSize]
		}
		if err := wire.WriteInt(writer, int32(len(chunk))); err != nil {
			return errors.Wrap(err, "unable to write literal token")
		}
		if _, err := writer.Write(chunk); err != nil {
			return errors.Wrap(err, "unable to write literal data")
		}
		data = data[len(chunk):]
	}
	return nil
}

// WriteMatch writes a block match token.
func WriteMatch(writer io.Writer, index int32) error {
	if index < 0 {
		return errors.Errorf("negative block index %d", index)
	}
	return errors.Wrap(wire.WriteInt(writer, -(index + 1)), "unable to write match token")
}

// WriteEnd writes the terminating token.
func WriteEnd(writer io.Writer) error {
	return errors.Wrap(wire.WriteInt(writer, 0), "unable to write terminating token")
}
