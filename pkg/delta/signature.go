package delta

import (
	"io"

	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/wire"
)

// signatureAllocationChunk bounds the initial allocation when reading a
// signature, so a hostile block count can't force a huge allocation before
// any block data has actually arrived.
const signatureAllocationChunk = 1 << 14

// BlockChecksum is the checksum pair for a single basis block. The strong
// checksum width is fixed by the signature header.
type BlockChecksum struct {
	// Weak is the rolling weak checksum.
	Weak uint32
	// Strong is the strong checksum, truncated to the header's width.
	Strong []byte
}

// Signature is a complete block signature: the layout header plus one
// checksum pair per block.
type Signature struct {
	// Head is the block layout.
	Head SumHead
	// Blocks are the per-block checksum pairs, in basis order.
	Blocks []BlockChecksum
}

// ReadSignature reads the checksum pairs described by a previously read
// header. Strong checksum storage is allocated in one backing slab to avoid
// a per-block allocation.
func ReadSignature(reader io.Reader, head SumHead) (Signature, error) {
	result := Signature{Head: head}
	if head.Count == 0 {
		return result, nil
	}

	// Grow the block slice incrementally so allocation tracks bytes actually
	// received rather than the advertised count.
	initial := int(head.Count)
	if initial > signatureAllocationChunk {
		initial = signatureAllocationChunk
	}
	result.Blocks = make([]BlockChecksum, 0, initial)

	slab := make([]byte, int(head.StrongLength)*initial)
	var used int
	for index := int32(0); index < head.Count; index++ {
		weak, err := wire.ReadInt(reader)
		if err != nil {
			return Signature{}, errors.Wrapf(err, "unable to read weak checksum for block %d", index)
		}
		if used+int(head.StrongLength) > len(slab) {
			slab = make([]byte, int(head.StrongLength)*signatureAllocationChunk)
			used = 0
		}
		strong := slab[used : used+int(head.StrongLength)]
		used += int(head.StrongLength)
		if _, err := io.ReadFull(reader, strong); err != nil {
			return Signature{}, errors.Wrapf(err, "unable to read strong checksum for block %d", index)
		}
		result.Blocks = append(result.Blocks, BlockChecksum{uint32(weak), strong})
	}
	return result, nil
}

// Write writes the signature's header and checksum pairs.
func (s Signature) Write(writer io.Writer) error {
	if int32(len(s.Blocks)) != s.Head.Count {
		return errors.Errorf("signature has %d blocks but header declares %d", len(s.Blocks), s.Head.Count)
	}
	if err := s.Head.Write(writer); err != nil {
		return err
	}
	for index, block := range s.Blocks {
		if int32(len(block.Strong)) != s.Head.StrongLength {
			return errors.Errorf("block %d strong checksum width %d doesn't match header", index, len(block.Strong))
		}
		if err := wire.WriteInt(writer, int32(block.Weak)); err != nil {
			return errors.Wrapf(err, "unable to write weak checksum for block %d", index)
		}
		if _, err := writer.Write(block.Strong); err != nil {
			return errors.Wrapf(err, "unable to write strong checksum for block %d", index)
		}
	}
	return nil
}
