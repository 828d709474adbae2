package delta

import (
	"github.com/pkg/errors"

	"github.com/wirebind/rsyncwire/pkg/checksum"
)

// GenerateSignature computes the block signature of an in-memory basis: the
// layout header plus one weak and strong checksum pair per block, with the
// strong checksums truncated to the requested width. The result is what a
// receiver sends ahead of a delta transfer for this basis.
func GenerateSignature(basis []byte, blockLength int32, algorithm checksum.Algorithm, strongLength int32, seed int32) (Signature, error) {
	if blockLength <= 0 || blockLength > maxBlockLength {
		return Signature{}, errors.Errorf("block length %d outside valid range", blockLength)
	}
	if strongLength <= 0 || int(strongLength) > algorithm.Size() {
		return Signature{}, errors.Errorf("strong checksum length %d outside valid range for %s", strongLength, algorithm)
	}

	head := SumHead{
		BlockLength:  blockLength,
		StrongLength: strongLength,
		Remainder:    int32(int64(len(basis)) % int64(blockLength)),
	}
	result := Signature{Head: head}
	if len(basis) == 0 {
		return result, nil
	}

	count := int64(len(basis)) / int64(blockLength)
	if head.Remainder != 0 {
		count++
	}
	result.Head.Count = int32(count)
	result.Blocks = make([]BlockChecksum, 0, count)

	slab := make([]byte, 0, count*int64(strongLength))
	for offset := 0; offset < len(basis); offset += int(blockLength) {
		end := offset + int(blockLength)
		if end > len(basis) {
			end = len(basis)
		}
		block := basis[offset:end]
		slab = append(slab, algorithm.Digest(block, uint32(seed))[:strongLength]...)
		result.Blocks = append(result.Blocks, BlockChecksum{
			Weak:   checksum.Weak(block, uint32(seed)),
			Strong: slab[len(slab)-int(strongLength):],
		})
	}
	return result, nil
}
