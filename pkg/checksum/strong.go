package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/md4"
)

// Algorithm identifies a strong checksum algorithm negotiated for a session.
type Algorithm uint8

const (
	// AlgorithmNone disables strong checksumming.
	AlgorithmNone Algorithm = iota
	// AlgorithmMD4 is the legacy strong checksum used before protocol 30.
	AlgorithmMD4
	// AlgorithmMD5 is the default strong checksum at protocol 30.
	AlgorithmMD5
	// AlgorithmSHA1 is an optional strong checksum.
	AlgorithmSHA1
	// AlgorithmXXH64 is the 64-bit xxHash checksum.
	AlgorithmXXH64
	// AlgorithmXXH3 is the 64-bit XXH3 checksum.
	AlgorithmXXH3
	// AlgorithmXXH128 is the 128-bit XXH3 checksum.
	AlgorithmXXH128
)

// Parse resolves an algorithm name as used in capability lists. The
// historical alias "xxh" resolves to xxh64.
func Parse(name string) (Algorithm, error) {
	switch name {
	case "none":
		return AlgorithmNone, nil
	case "md4":
		return AlgorithmMD4, nil
	case "md5":
		return AlgorithmMD5, nil
	case "sha1":
		return AlgorithmSHA1, nil
	case "xxh64", "xxh":
		return AlgorithmXXH64, nil
	case "xxh3":
		return AlgorithmXXH3, nil
	case "xxh128":
		return AlgorithmXXH128, nil
	default:
		return 0, errors.Errorf("unknown checksum algorithm %q", name)
	}
}

// String provides the capability list name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmMD4:
		return "md4"
	case AlgorithmMD5:
		return "md5"
	case AlgorithmSHA1:
		return "sha1"
	case AlgorithmXXH64:
		return "xxh64"
	case AlgorithmXXH3:
		return "xxh3"
	case AlgorithmXXH128:
		return "xxh128"
	default:
		return "invalid"
	}
}

// Size returns the digest width in bytes. Signature entries carry exactly
// this many strong checksum bytes per block.
func (a Algorithm) Size() int {
	switch a {
	case AlgorithmNone:
		return 0
	case AlgorithmMD4, AlgorithmMD5, AlgorithmXXH128:
		return 16
	case AlgorithmSHA1:
		return 20
	case AlgorithmXXH64, AlgorithmXXH3:
		return 8
	default:
		return 0
	}
}

// Digest computes the strong checksum of a block. For the seeded digest
// algorithms (md4 and md5), the 4-byte little-endian session seed is folded
// in after the block data; the xxHash family and sha1 are negotiated only on
// protocol versions that key matching off the transfer seed elsewhere, so
// they hash the block data alone.
func (a Algorithm) Digest(data []byte, seed uint32) []byte {
	switch a {
	case AlgorithmNone:
		return nil
	case AlgorithmMD4:
		hasher := md4.New()
		hasher.Write(data)
		hasher.Write(seedBytes(seed))
		return hasher.Sum(nil)
	case AlgorithmMD5:
		hasher := md5.New()
		hasher.Write(data)
		hasher.Write(seedBytes(seed))
		return hasher.Sum(nil)
	case AlgorithmSHA1:
		digest := sha1.Sum(data)
		return digest[:]
	case AlgorithmXXH64:
		var result [8]byte
		binary.LittleEndian.PutUint64(result[:], xxhash.Sum64(data))
		return result[:]
	case AlgorithmXXH3:
		var result [8]byte
		binary.LittleEndian.PutUint64(result[:], xxh3.Hash(data))
		return result[:]
	case AlgorithmXXH128:
		var result [16]byte
		sum := xxh3.Hash128(data)
		binary.LittleEndian.PutUint64(result[:8], sum.Lo)
		binary.LittleEndian.PutUint64(result[8:], sum.Hi)
		return result[:]
	default:
		return nil
	}
}

// seedBytes renders the session seed in its wire byte order.
func seedBytes(seed uint32) []byte {
	var buffer [4]byte
	binary.LittleEndian.PutUint32(buffer[:], seed)
	return buffer[:]
}

// ForVersionDefault returns the strong checksum a protocol version uses when
// no string negotiation takes place: md4 before protocol 30 and md5 from 30
// on.
func ForVersionDefault(modern bool) Algorithm {
	if modern {
		return AlgorithmMD5
	}
	return AlgorithmMD4
}
