package leb128

import (
	"io"
	"math/bits"

	"golang.org/x/exp/constraints"
)

// Maximum encoded length in bytes of an integer of the given bit width: a
// W-bit value spans at most W/7+1 groups of 7 payload bits.
const (
	MaxLen8   = 2
	MaxLen16  = 3
	MaxLen32  = 5
	MaxLen64  = 10
	MaxLen128 = 19
)

// AppendUnsigned appends the unsigned Little Endian Base 128 encoding of x
// to dst and returns the extended buffer. The encoding is always minimal.
func AppendUnsigned[N constraints.Unsigned](dst []byte, x N) []byte {
	for {
		b := byte(x & 0x7f)
		x >>= 7
		if x != 0 {
			b |= 0x80
		}
		dst = append(dst, b)
		if x == 0 {
			return dst
		}
	}
}

// AppendSigned appends the signed Little Endian Base 128 encoding of x to
// dst and returns the extended buffer. The encoding is always minimal: it
// ends on the first byte whose bit 6 agrees with the sign of everything the
// shift has left behind.
func AppendSigned[N constraints.Signed](dst []byte, x N) []byte {
	for {
		b := byte(x & 0x7f)
		x >>= 7 // arithmetic shift

		signb := b & 0x40

		last := false
		if (x == 0 && signb == 0) || (x == -1 && signb != 0) {
			last = true
		} else {
			b |= 0x80
		}
		dst = append(dst, b)

		if last {
			return dst
		}
	}
}

// EncodeUnsigned encodes x to the unsigned Little Endian Base 128 format
// into w and returns the number of bytes written. It fails only when the
// underlying writer fails, and that error is returned verbatim.
func EncodeUnsigned[N constraints.Unsigned](w io.Writer, x N) (int, error) {
	var buf [MaxLen64]byte
	return w.Write(AppendUnsigned(buf[:0], x))
}

// EncodeSigned encodes x to the signed Little Endian Base 128 format into w
// and returns the number of bytes written.
func EncodeSigned[N constraints.Signed](w io.Writer, x N) (int, error) {
	var buf [MaxLen64]byte
	return w.Write(AppendSigned(buf[:0], x))
}

// UnsignedLen returns the number of bytes AppendUnsigned emits for x.
func UnsignedLen[N constraints.Unsigned](x N) int {
	if x == 0 {
		return 1
	}
	return 1 + (bits.Len64(uint64(x))-1)/7
}

// SignedLen returns the number of bytes AppendSigned emits for x.
func SignedLen[N constraints.Signed](x N) int {
	n := 1
	for x>>6 != 0 && x>>6 != -1 {
		x >>= 7
		n++
	}
	return n
}
