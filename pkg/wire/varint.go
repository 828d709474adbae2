package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/protocol"
)

// intByteExtra maps the top six bits of a prefix byte to the number of extra
// bytes that follow it. The prefix byte borrows leading one bits in the style
// of UTF-8: 0x00-0x7F stand alone, 0x80-0xBF take one extra byte, and so on up
// to 0xFC-0xFF, which take six.
var intByteExtra = [64]byte{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1,
	2, 2, 2, 2, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 5, 6,
}

// appendPrefixed encodes a value in the prefix-byte format shared by varint
// and varlong encoding: a prefix byte that both carries the high bits of the
// value and announces how many little-endian low bytes follow. The minimum
// byte count pads short encodings so that fixed fields (like file sizes and
// modification times) have a guaranteed floor width.
func appendPrefixed(dst []byte, value uint64, minBytes int) ([]byte, error) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	cnt := 8
	for cnt > minBytes && b[cnt-1] == 0 {
		cnt--
	}
	bit := byte(1) << uint(7+minBytes-cnt)
	if b[cnt-1] >= bit {
		// The top byte collides with the prefix markers, so the prefix stands
		// alone and all cnt value bytes follow it. A decoder reads minBytes
		// plus the extra count implied by the prefix, which tops out one shy
		// of the full value width, so a value needing all eight bytes here is
		// not representable.
		if cnt == 8 {
			return nil, errors.Wrapf(ErrOverflow, "value %d too large for minimum width %d", value, minBytes)
		}
		dst = append(dst, ^(bit - 1))
		return append(dst, b[:cnt]...), nil
	} else if cnt > minBytes {
		dst = append(dst, b[cnt-1]|^((bit<<1)-1))
	} else {
		dst = append(dst, b[cnt-1])
	}
	return append(dst, b[:cnt-1]...), nil
}

// AppendVarint appends the encoding of a 32-bit value to a byte slice. The
// value is treated as its 32-bit two's complement pattern, so negative values
// always occupy the full five-byte form.
func AppendVarint(dst []byte, value int32) []byte {
	result, err := appendPrefixed(dst, uint64(uint32(value)), 1)
	if err != nil {
		// A 32-bit pattern occupies at most four value bytes and cannot
		// trigger the width check above.
		panic("varint encoding overflow for 32-bit value")
	}
	return result
}

// WriteVarint writes a 32-bit variable-length integer in the protocol 30
// prefix-byte format.
func WriteVarint(writer io.Writer, value int32) error {
	var storage [5]byte
	encoded := AppendVarint(storage[:0], value)
	if _, err := writer.Write(encoded); err != nil {
		return errors.Wrap(err, "unable to write varint")
	}
	return nil
}

// ReadVarint reads a 32-bit variable-length integer. Prefixes announcing more
// than four extra bytes overflow a 32-bit target and are rejected. Masked
// prefix bits beyond the 32-bit boundary are discarded, matching the
// truncating union load in the reference implementation.
func ReadVarint(reader io.Reader) (int32, error) {
	prefix, err := ReadByte(reader)
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, truncated(err, "unable to read varint prefix")
	}
	extra := int(intByteExtra[prefix>>2])
	if extra == 0 {
		return int32(prefix), nil
	}
	if extra > 4 {
		return 0, errors.Wrapf(ErrOverflow, "varint prefix 0x%02X exceeds 32-bit width", prefix)
	}
	var b [5]byte
	if _, err := io.ReadFull(reader, b[:extra]); err != nil {
		return 0, truncated(err, "unable to read varint body")
	}
	bit := byte(1) << uint(8-extra)
	b[extra] = prefix & (bit - 1)
	return int32(binary.LittleEndian.Uint32(b[:4])), nil
}

// DecodeVarint decodes a 32-bit variable-length integer from the front of a
// byte slice, returning the value and the number of bytes consumed.
func DecodeVarint(buffer []byte) (int32, int, error) {
	if len(buffer) == 0 {
		return 0, 0, errors.Wrap(ErrTruncated, "empty varint buffer")
	}
	prefix := buffer[0]
	extra := int(intByteExtra[prefix>>2])
	if extra == 0 {
		return int32(prefix), 1, nil
	}
	if extra > 4 {
		return 0, 0, errors.Wrapf(ErrOverflow, "varint prefix 0x%02X exceeds 32-bit width", prefix)
	}
	if len(buffer) < 1+extra {
		return 0, 0, errors.Wrap(ErrTruncated, "varint body missing")
	}
	var b [5]byte
	copy(b[:extra], buffer[1:1+extra])
	bit := byte(1) << uint(8-extra)
	b[extra] = prefix & (bit - 1)
	return int32(binary.LittleEndian.Uint32(b[:4])), 1 + extra, nil
}

// WriteVarlong writes a 64-bit variable-length integer with the specified
// minimum encoded width. Protocol 30 uses a minimum of 3 bytes for file sizes
// and 4 bytes for modification times.
func WriteVarlong(writer io.Writer, value int64, minBytes int) error {
	var storage [9]byte
	encoded, err := appendPrefixed(storage[:0], uint64(value), minBytes)
	if err != nil {
		return err
	}
	if _, err := writer.Write(encoded); err != nil {
		return errors.Wrap(err, "unable to write varlong")
	}
	return nil
}

// ReadVarlong reads a 64-bit variable-length integer with the specified
// minimum encoded width. The prefix byte arrives first, followed by the
// little-endian low bytes; the masked prefix supplies the topmost byte.
func ReadVarlong(reader io.Reader, minBytes int) (int64, error) {
	var head [8]byte
	if _, err := io.ReadFull(reader, head[:minBytes]); err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, truncated(err, "unable to read varlong header")
	}
	prefix := head[0]
	var b [8]byte
	copy(b[:], head[1:minBytes])
	extra := int(intByteExtra[prefix>>2])
	if extra == 0 {
		b[minBytes-1] = prefix
		return int64(binary.LittleEndian.Uint64(b[:])), nil
	}
	if extra >= 9-minBytes {
		return 0, errors.Wrapf(ErrOverflow, "varlong prefix 0x%02X exceeds 64-bit width at minimum %d", prefix, minBytes)
	}
	if _, err := io.ReadFull(reader, b[minBytes-1:minBytes-1+extra]); err != nil {
		return 0, truncated(err, "unable to read varlong body")
	}
	bit := byte(1) << uint(8-extra)
	b[minBytes-1+extra] = prefix & (bit - 1)
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// WriteVarint30 writes a 32-bit integer in the encoding appropriate for a
// protocol version: variable-length at 30 and later, fixed 4-byte before.
func WriteVarint30(writer io.Writer, version protocol.Version, value int32) error {
	if version.UsesVarintEncoding() {
		return WriteVarint(writer, value)
	}
	return WriteInt(writer, value)
}

// ReadVarint30 reads a 32-bit integer in the encoding appropriate for a
// protocol version.
func ReadVarint30(reader io.Reader, version protocol.Version) (int32, error) {
	if version.UsesVarintEncoding() {
		return ReadVarint(reader)
	}
	return ReadInt(reader)
}

// WriteVarlong30 writes a 64-bit integer in the encoding appropriate for a
// protocol version: variable-length with a minimum width at 30 and later, the
// legacy escaped form before.
func WriteVarlong30(writer io.Writer, version protocol.Version, value int64, minBytes int) error {
	if version.UsesVarintEncoding() {
		return WriteVarlong(writer, value, minBytes)
	}
	return WriteLongint(writer, value)
}

// ReadVarlong30 reads a 64-bit integer in the encoding appropriate for a
// protocol version.
func ReadVarlong30(reader io.Reader, version protocol.Version, minBytes int) (int64, error) {
	if version.UsesVarintEncoding() {
		return ReadVarlong(reader, minBytes)
	}
	return ReadLongint(reader)
}
