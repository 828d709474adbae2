// Package delta implements the wire format of the delta transfer channel:
// the block signature header and list the receiver sends, and the token
// stream of copy and literal instructions the sender answers with.
package delta

import (
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/wire"
)

const (
	// maxBlockLength is the largest accepted block length. Conforming peers
	// never exceed 128 KiB blocks.
	maxBlockLength = 1 << 17
	// maxStrongLength is the largest accepted per-block strong checksum
	// width, sized for the widest negotiable digest.
	maxStrongLength = 64
)

// SumHead describes the block layout of a signature: how many blocks cover
// the basis, their length, the trailing short block's length, and how many
// strong checksum bytes accompany each block. All four fields travel as
// 4-byte little-endian integers, 16 bytes total.
type SumHead struct {
	// Count is the number of blocks.
	Count int32
	// BlockLength is the length of every block except possibly the last.
	BlockLength int32
	// StrongLength is the number of strong checksum bytes per block.
	StrongLength int32
	// Remainder is the length of the trailing short block, or 0 if the basis
	// divides evenly.
	Remainder int32
}

// ensureValid verifies that header invariants are respected, since every
// field arrives from the network and later sizes buffers.
func (h SumHead) ensureValid() error {
	if h.Count < 0 {
		return errors.New("negative block count")
	}
	if h.Count == 0 {
		// A whole-file transfer sends an all-zero header.
		if h.BlockLength != 0 || h.StrongLength != 0 || h.Remainder != 0 {
			return errors.New("zero block count with non-zero layout")
		}
		return nil
	}
	if h.BlockLength <= 0 || h.BlockLength > maxBlockLength {
		return errors.Errorf("block length %d outside valid range", h.BlockLength)
	}
	if h.StrongLength < 0 || h.StrongLength > maxStrongLength {
		return errors.Errorf("strong checksum length %d outside valid range", h.StrongLength)
	}
	if h.Remainder < 0 || h.Remainder >= h.BlockLength {
		return errors.Errorf("remainder %d outside valid range for block length %d", h.Remainder, h.BlockLength)
	}
	return nil
}

// BasisSize returns the total basis length described by the header.
func (h SumHead) BasisSize() int64 {
	if h.Count == 0 {
		return 0
	}
	size := int64(h.Count) * int64(h.BlockLength)
	if h.Remainder != 0 {
		size += int64(h.Remainder) - int64(h.BlockLength)
	}
	return size
}

// blockSpan returns the offset and length of a block within the basis. The
// index must already have been validated against Count.
func (h SumHead) blockSpan(index int32) (int64, int64) {
	offset := int64(index) * int64(h.BlockLength)
	length := int64(h.BlockLength)
	if index == h.Count-1 && h.Remainder != 0 {
		length = int64(h.Remainder)
	}
	return offset, length
}

// ReadSumHead reads and validates a signature header.
func ReadSumHead(reader io.Reader) (SumHead, error) {
	var head SumHead
	fields := []*int32{&head.Count, &head.BlockLength, &head.StrongLength, &head.Remainder}
	for _, field := range fields {
		value, err := wire.ReadInt(reader)
		if err != nil {
			return SumHead{}, errors.Wrap(err, "unable to read signature header")
		}
		*field = value
	}
	if err := head.ensureValid(); err != nil {
		return SumHead{}, errors.Wrap(err, "invalid signature header")
	}
	return head, nil
}

// Write writes a signature header.
func (h SumHead) Write(writer io.Writer) error {
	for _, value := range []int32{h.Count, h.BlockLength, h.StrongLength, h.Remainder} {
		if err := wire.WriteInt(writer, value); err != nil {
			return errors.Wrap(err, "unable to write signature header")
		}
	}
	return nil
}
