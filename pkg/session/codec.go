// Package session holds the per-connection state that survives negotiation:
// the protocol-era value codec, the stateful file-index codec, transfer
// statistics, and the session object tying them to a multiplexed stream.
package session

import (
	"io"

	"github.com/wirebind/rsyncwire/pkg/protocol"
	"github.com/wirebind/rsyncwire/pkg/wire"
)

// Codec encodes and decodes the protocol-era-dependent value forms: protocol
// 30 reworked how file sizes, modification times, and length fields travel,
// so session code picks a codec once after negotiation instead of branching
// on the version at every field.
type Codec interface {
	// WriteFileSize writes a file size.
	WriteFileSize(writer io.Writer, size int64) error
	// ReadFileSize reads a file size.
	ReadFileSize(reader io.Reader) (int64, error)
	// WriteModTime writes a modification time in whole seconds.
	WriteModTime(writer io.Writer, seconds int64) error
	// ReadModTime reads a modification time in whole seconds.
	ReadModTime(reader io.Reader) (int64, error)
	// WriteLength writes a length field.
	WriteLength(writer io.Writer, length int32) error
	// ReadLength reads a length field.
	ReadLength(reader io.Reader) (int32, error)
}

// CodecForVersion returns the value codec matching a negotiated protocol
// version.
func CodecForVersion(version protocol.Version) Codec {
	if version.UsesVarintEncoding() {
		return modernCodec{}
	}
	return legacyCodec{}
}

// legacyCodec is the protocol 28/29 value codec: fixed 4-byte lengths and
// times, with the marker-escaped longint form for file sizes.
type legacyCodec struct{}

func (legacyCodec) WriteFileSize(writer io.Writer, size int64) error {
	return wire.WriteLongint(writer, size)
}

func (legacyCodec) ReadFileSize(reader io.Reader) (int64, error) {
	return wire.ReadLongint(reader)
}

func (legacyCodec) WriteModTime(writer io.Writer, seconds int64) error {
	return wire.WriteInt(writer, int32(seconds))
}

func (legacyCodec) ReadModTime(reader io.Reader) (int64, error) {
	seconds, err := wire.ReadInt(reader)
	return int64(seconds), err
}

func (legacyCodec) WriteLength(writer io.Writer, length int32) error {
	return wire.WriteInt(writer, length)
}

func (legacyCodec) ReadLength(reader io.Reader) (int32, error) {
	return wire.ReadInt(reader)
}

// modernCodec is the protocol 30+ value codec: varint lengths and
// prefix-compressed variable-length sizes and times.
type modernCodec struct{}

func (modernCodec) WriteFileSize(writer io.Writer, size int64) error {
	return wire.WriteVarlong(writer, size, 3)
}

func (modernCodec) ReadFileSize(reader io.Reader) (int64, error) {
	return wire.ReadVarlong(reader, 3)
}

func (modernCodec) WriteModTime(writer io.Writer, seconds int64) error {
	return wire.WriteVarlong(writer, seconds, 4)
}

func (modernCodec) ReadModTime(reader io.Reader) (int64, error) {
	return wire.ReadVarlong(reader, 4)
}

func (modernCodec) WriteLength(writer io.Writer, length int32) error {
	return wire.WriteVarint(writer, length)
}

func (modernCodec) ReadLength(reader io.Reader) (int32, error) {
	return wire.ReadVarint(reader)
}
