package session

import (
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/protocol"
	"github.com/wirebind/rsyncwire/pkg/wire"
)

const (
	// IndexDone marks the end of an index stream.
	IndexDone int32 = -1
	// IndexFileListEOF signals that no further file lists will arrive.
	IndexFileListEOF int32 = -2
	// IndexDeleteStats introduces a deletion statistics block.
	IndexDeleteStats int32 = -3
	// IndexFileListOffset biases negative index values that reference
	// incremental file lists.
	IndexFileListOffset int32 = -101
)

// IndexCodec encodes and decodes file index values. Protocol 30 replaced the
// fixed 4-byte form with a delta encoding against the previously sent value,
// exploiting the fact that indexes are mostly sequential. Read and write
// state are tracked separately so one codec serves a bidirectional stream.
type IndexCodec struct {
	// version selects the encoding.
	version protocol.Version
	// readPositive and readNegative are the previous values seen by the
	// decoder, per sign.
	readPositive int32
	readNegative int32
	// writePositive and writeNegative are the previous values emitted by the
	// encoder, per sign.
	writePositive int32
	writeNegative int32
}

// NewIndexCodec creates an index codec for a negotiated protocol version.
func NewIndexCodec(version protocol.Version) *IndexCodec {
	// The initial previous values make the common openings cheap: the first
	// index 0 encodes as a single byte.
	return &IndexCodec{
		version:       version,
		readPositive:  -1,
		readNegative:  1,
		writePositive: -1,
		writeNegative: 1,
	}
}

// WriteIndex writes a file index value.
func (c *IndexCodec) WriteIndex(writer io.Writer, index int32) error {
	if !c.version.UsesVarintEncoding() {
		return wire.WriteInt(writer, index)
	}

	if index == IndexDone {
		return wire.WriteByte(writer, 0x00)
	}

	// Select the per-sign delta state, prefixing negative values.
	previous := &c.writePositive
	value := index
	if index < 0 {
		if err := wire.WriteByte(writer, 0xFF); err != nil {
			return err
		}
		previous = &c.writeNegative
		value = -index
	}
	diff := value - *previous
	*previous = value

	if diff > 0 && diff < 0xFE {
		return wire.WriteByte(writer, byte(diff))
	}
	if diff < 0 || diff > 0x7FFF {
		// Absolute 4-byte form, flagged by the high bit of the first byte.
		buffer := [5]byte{
			0xFE,
			byte(value>>24) | 0x80,
			byte(value),
			byte(value >> 8),
			byte(value >> 16),
		}
		_, err := writer.Write(buffer[:])
		return errors.Wrap(err, "unable to write index")
	}
	buffer := [3]byte{0xFE, byte(diff >> 8), byte(diff)}
	_, err := writer.Write(buffer[:])
	return errors.Wrap(err, "unable to write index")
}

// ReadIndex reads a file index value.
func (c *IndexCodec) ReadIndex(reader io.Reader) (int32, error) {
	if !c.version.UsesVarintEncoding() {
		return wire.ReadInt(reader)
	}

	lead, err := wire.ReadByte(reader)
	if err != nil {
		return 0, errors.Wrap(err, "unable to read index")
	}

	// A 0xFF prefix switches to the negative-value state; a bare zero is the
	// stream terminator.
	negative := false
	previous := &c.readPositive
	if lead == 0xFF {
		negative = true
		previous = &c.readNegative
		if lead, err = wire.ReadByte(reader); err != nil {
			return 0, errors.Wrap(err, "unable to read index")
		}
	} else if lead == 0x00 {
		return IndexDone, nil
	}

	var value int32
	if lead == 0xFE {
		var head [2]byte
		if _, err := io.ReadFull(reader, head[:]); err != nil {
			return 0, errors.Wrap(err, "unable to read extended index")
		}
		if head[0]&0x80 != 0 {
			var tail [2]byte
			if _, err := io.ReadFull(reader, tail[:]); err != nil {
				return 0, errors.Wrap(err, "unable to read extended index")
			}
			value = int32(head[1]) |
				int32(tail[0])<<8 |
				int32(tail[1])<<16 |
				int32(head[0]&0x7F)<<24
		} else {
			value = *previous + int32(head[0])<<8 + int32(head[1])
		}
	} else {
		value = *previous + int32(lead)
	}
	*previous = value

	if negative {
		return -value, nil
	}
	return value, nil
}
