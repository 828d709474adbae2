package wire

import (
	"io"

	"github.com/pkg/errors"
)

// maxVstringLength is the maximum byte length encodable in a vstring header.
const maxVstringLength = 0x7FFF

// WriteVstring writes a length-prefixed string: a single length byte for
// strings up to 127 bytes, or two bytes (high byte flagged with 0x80) for
// strings up to 32767 bytes. Longer strings are rejected. This framing is used
// for checksum and compression capability exchanges at protocol 31 and later.
func WriteVstring(writer io.Writer, value string) error {
	length := len(value)
	if length > maxVstringLength {
		return errors.Errorf("string length %d exceeds vstring maximum", length)
	}
	var header [2]byte
	var headerLength int
	if length > 0x7F {
		header[0] = byte(length>>8) | 0x80
		header[1] = byte(length)
		headerLength = 2
	} else {
		header[0] = byte(length)
		headerLength = 1
	}
	if _, err := writer.Write(header[:headerLength]); err != nil {
		return errors.Wrap(err, "unable to write vstring header")
	}
	if _, err := io.WriteString(writer, value); err != nil {
		return errors.Wrap(err, "unable to write vstring body")
	}
	return nil
}

// ReadVstring reads a length-prefixed string. The two-byte header form bounds
// the length at 32767 bytes, so allocation is inherently limited.
func ReadVstring(reader io.Reader) (string, error) {
	first, err := ReadByte(reader)
	if err != nil {
		if err == io.EOF {
			return "", io.EOF
		}
		return "", truncated(err, "unable to read vstring header")
	}
	length := int(first)
	if first&0x80 != 0 {
		second, err := ReadByte(reader)
		if err != nil {
			return "", truncated(err, "unable to read vstring extended header")
		}
		length = int(first&0x7F)<<8 | int(second)
	}
	if length == 0 {
		return "", nil
	}
	buffer := make([]byte, length)
	if _, err := io.ReadFull(reader, buffer); err != nil {
		return "", truncated(err, "unable to read vstring body")
	}
	return string(buffer), nil
}
