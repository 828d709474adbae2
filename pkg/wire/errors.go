package wire

import (
	"io"

	"github.com/pkg/errors"
)

// ErrOverflow is a sentinel error indicating that a decoded variable-length
// integer would exceed the width of its target type, or that a value is too
// large for its encoding to remain decodable.
var ErrOverflow = errors.New("variable-length integer overflow")

// ErrTruncated is a sentinel error indicating that a stream ended partway
// through an encoded integer.
var ErrTruncated = errors.New("truncated variable-length integer")

// truncated converts read failures that occur partway through a value into
// ErrTruncated with context. Other failures are wrapped as-is.
func truncated(err error, context string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrTruncated, context)
	}
	return errors.Wrap(err, context)
}

// IsOverflow indicates whether or not an error is due to integer overflow.
func IsOverflow(err error) bool {
	return errors.Cause(err) == ErrOverflow
}

// IsTruncated indicates whether or not an error is due to a stream ending
// partway through a value.
func IsTruncated(err error) bool {
	return errors.Cause(err) == ErrTruncated
}
