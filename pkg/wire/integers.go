package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// longintMarker is the 4-byte value that escapes a legacy 64-bit integer into
// its extended 12-byte form.
const longintMarker = 0xFFFFFFFF

// ReadInt reads a 4-byte little-endian signed integer. If the stream ends
// before the first byte, the io.EOF is returned unwrapped, because this is a
// natural value boundary.
func ReadInt(reader io.Reader) (int32, error) {
	var buffer [4]byte
	if _, err := io.ReadFull(reader, buffer[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, truncated(err, "unable to read integer")
	}
	return int32(binary.LittleEndian.Uint32(buffer[:])), nil
}

// WriteInt writes a 4-byte little-endian signed integer.
func WriteInt(writer io.Writer, value int32) error {
	var buffer [4]byte
	binary.LittleEndian.PutUint32(buffer[:], uint32(value))
	if _, err := writer.Write(buffer[:]); err != nil {
		return errors.Wrap(err, "unable to write integer")
	}
	return nil
}

// ReadLongint reads a legacy (pre-30) 64-bit integer: a 4-byte little-endian
// value, where 0xFFFFFFFF escapes to a full 8-byte little-endian value.
func ReadLongint(reader io.Reader) (int64, error) {
	var head [4]byte
	if _, err := io.ReadFull(reader, head[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, truncated(err, "unable to read 64-bit integer header")
	}
	if binary.LittleEndian.Uint32(head[:]) != longintMarker {
		return int64(int32(binary.LittleEndian.Uint32(head[:]))), nil
	}
	var body [8]byte
	if _, err := io.ReadFull(reader, body[:]); err != nil {
		return 0, truncated(err, "unable to read 64-bit integer body")
	}
	return int64(binary.LittleEndian.Uint64(body[:])), nil
}

// WriteLongint writes a legacy (pre-30) 64-bit integer. Values representable
// as a non-negative 32-bit integer are written in 4 bytes, all others in the
// 12-byte escaped form.
func WriteLongint(writer io.Writer, value int64) error {
	if value >= 0 && value <= 0x7FFFFFFF {
		return WriteInt(writer, int32(value))
	}
	var buffer [12]byte
	binary.LittleEndian.PutUint32(buffer[:4], longintMarker)
	binary.LittleEndian.PutUint64(buffer[4:], uint64(value))
	if _, err := writer.Write(buffer[:]); err != nil {
		return errors.Wrap(err, "unable to write 64-bit integer")
	}
	return nil
}

// ReadByte reads a single byte from a stream.
func ReadByte(reader io.Reader) (byte, error) {
	var buffer [1]byte
	if _, err := io.ReadFull(reader, buffer[:]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.Wrap(err, "unable to read byte")
	}
	return buffer[0], nil
}

// WriteByte writes a single byte to a stream.
func WriteByte(writer io.Writer, value byte) error {
	buffer := [1]byte{value}
	if _, err := writer.Write(buffer[:]); err != nil {
		return errors.Wrap(err, "unable to write byte")
	}
	return nil
}
