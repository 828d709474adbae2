package delta

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/wire"
)

// Batch files store delta instructions outside a live session, using a
// self-describing opcode form instead of the session token stream: each
// instruction opens with an opcode byte, followed by 4-byte little-endian
// fields.

const (
	// opLiteral opens a literal instruction: length, then that many bytes.
	opLiteral = 0x00
	// opCopy opens a copy instruction: block index, then span length.
	opCopy = 0x01
)

// InvalidInstructionError indicates a batch instruction with an unrecognized
// opcode.
type InvalidInstructionError struct {
	// Opcode is the offending opcode byte.
	Opcode byte
}

// Error returns a formatted version of the invalid instruction error.
func (e *InvalidInstructionError) Error() string {
	return fmt.Sprintf("invalid delta instruction opcode 0x%02X", e.Opcode)
}

// IsInvalidInstruction indicates whether or not an error is due to an
// unrecognized instruction opcode.
func IsInvalidInstruction(err error) bool {
	_, ok := errors.Cause(err).(*InvalidInstructionError)
	return ok
}

// BatchOp is a single batch-form delta instruction. Literal instructions
// carry data; copy instructions carry a block index and span length.
type BatchOp struct {
	// Data is the literal data, if any.
	Data []byte
	// Index is the block index for copy instructions.
	Index int32
	// SpanLength is the span length for copy instructions.
	SpanLength int32
}

// ReadBatchOp reads one batch instruction. A clean end of stream before the
// opcode returns io.EOF, since batch files are terminated by their length.
func ReadBatchOp(reader io.Reader) (BatchOp, error) {
	opcode, err := wire.ReadByte(reader)
	if err != nil {
		if err == io.EOF {
			return BatchOp{}, io.EOF
		}
		return BatchOp{}, errors.Wrap(err, "unable to read instruction opcode")
	}
	switch opcode {
	case opLiteral:
		length, err := wire.ReadInt(reader)
		if err != nil {
			return BatchOp{}, errors.Wrap(err, "unable to read literal length")
		}
		if length < 0 || length > maxLiteralLength {
			return BatchOp{}, errors.Errorf("literal length %d outside valid range", length)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(reader, data); err != nil {
			return BatchOp{}, errors.Wrap(err, "unable to read literal data")
		}
		return BatchOp{Data: data}, nil
	case opCopy:
		index, err := wire.ReadInt(reader)
		if err != nil {
			return BatchOp{}, errors.Wrap(err, "unable to read copy index")
		}
		length, err := wire.ReadInt(reader)
		if err != nil {
			return BatchOp{}, errors.Wrap(err, "unable to read copy length")
		}
		if index < 0 || length <= 0 {
			return BatchOp{}, errors.Errorf("copy of %d bytes at block %d outside valid range", length, index)
		}
		return BatchOp{Index: index, SpanLength: length}, nil
	default:
		return BatchOp{}, &InvalidInstructionError{opcode}
	}
}

// WriteBatchOp writes one batch instruction.
func WriteBatchOp(writer io.Writer, op BatchOp) error {
	if len(op.Data) > 0 {
		if err := wire.WriteByte(writer, opLiteral); err != nil {
			return err
		}
		if err := wire.WriteInt(writer, int32(len(op.Data))); err != nil {
			return errors.Wrap(err, "unable to write literal length")
		}
		if _, err := writer.Write(op.Data); err != nil {
			return errors.Wrap(err, "unable to write literal data")
		}
		return nil
	}
	if err := wire.WriteByte(writer, opCopy); err != nil {
		return err
	}
	if err := wire.WriteInt(writer, op.Index); err != nil {
		return errors.Wrap(err, "unable to write copy index")
	}
	return errors.Wrap(wire.WriteInt(writer, op.SpanLength), "unable to write copy length")
}
