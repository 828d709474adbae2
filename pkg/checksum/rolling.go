// Package checksum provides the weak rolling checksum and the negotiable
// strong digest algorithms used to match blocks during delta transfer.
package checksum

// weakModulus is the modulus for both components of the weak checksum. It
// divides 2^32, so component sums can be accumulated with wrapping 32-bit
// arithmetic and reduced only when the checksum is materialized.
const weakModulus = 1 << 16

// Weak computes the weak checksum of a block, mixing in the session seed so
// that otherwise identical transfers produce different block matches. The
// checksum packs two 16-bit component sums into a 32-bit value and can be
// advanced one byte at a time via Rolling without recomputation.
func Weak(data []byte, seed uint32) uint32 {
	var r1, r2 uint32
	for i, b := range data {
		r1 += uint32(b)
		r2 += uint32(len(data)-i) * uint32(b)
	}
	return combine(r1, r2, seed)
}

// combine reduces raw component sums and packs them into a checksum.
func combine(r1, r2, seed uint32) uint32 {
	return (r1+seed)%weakModulus + weakModulus*((r2+seed)%weakModulus)
}

// Rolling tracks the weak checksum of a fixed-size window as it slides over
// basis data.
type Rolling struct {
	// r1 is the raw byte sum component.
	r1 uint32
	// r2 is the raw position-weighted component.
	r2 uint32
	// seed is the session checksum seed.
	seed uint32
	// window is the window length.
	window uint32
}

// NewRolling computes the component sums of an initial window and returns a
// rolling state positioned on it.
func NewRolling(data []byte, seed uint32) *Rolling {
	var r1, r2 uint32
	for i, b := range data {
		r1 += uint32(b)
		r2 += uint32(len(data)-i) * uint32(b)
	}
	return &Rolling{r1, r2, seed, uint32(len(data))}
}

// Roll advances the window by one byte, removing the leading byte and adding
// the trailing one.
func (r *Rolling) Roll(out, in byte) {
	r.r1 = r.r1 - uint32(out) + uint32(in)
	r.r2 = r.r2 - r.window*uint32(out) + r.r1
}

// Sum returns the checksum of the current window.
func (r *Rolling) Sum() uint32 {
	return combine(r.r1, r.r2, r.seed)
}
