package leb128

import (
	"io"
	"math/big"

	"lukechampine.com/uint128"
)

// maxShift128 is the bit offset of the last byte that can contribute payload
// to a 128-bit value; the byte there carries the top 128-maxShift128 bits.
const (
	maxShift128    = 128 / 7 * 7
	maxLastByte128 = 1<<(128-maxShift128) - 1
)

// Int128 is a two's-complement 128-bit signed integer. The zero value is 0.
// Values are comparable with ==.
type Int128 struct {
	bits uint128.Uint128
}

var (
	// MaxInt128 is the largest positive Int128, 2^127-1.
	MaxInt128 = Int128FromBits(uint128.New(^uint64(0), ^uint64(0)>>1))
	// MinInt128 is the most negative Int128, -2^127.
	MinInt128 = Int128FromBits(uint128.New(0, 1<<63))
)

// Int128From64 sign-extends v to 128 bits.
func Int128From64(v int64) Int128 {
	var hi uint64
	if v < 0 {
		hi = ^uint64(0)
	}
	return Int128{uint128.New(uint64(v), hi)}
}

// Int128FromBits reinterprets the bits of u as a two's-complement value.
func Int128FromBits(u uint128.Uint128) Int128 { return Int128{u} }

// Bits returns the raw two's-complement bit pattern of x.
func (x Int128) Bits() uint128.Uint128 { return x.bits }

// IsZero reports whether x is zero.
func (x Int128) IsZero() bool { return x.bits.IsZero() }

// Sign returns -1 for negative x, 0 for zero, and 1 for positive x.
func (x Int128) Sign() int {
	switch {
	case x.bits.IsZero():
		return 0
	case x.bits.Hi&(1<<63) != 0:
		return -1
	}
	return 1
}

// Neg returns -x. Negating MinInt128 wraps back to MinInt128.
func (x Int128) Neg() Int128 {
	return Int128{x.bits.Xor(uint128.Max).AddWrap64(1)}
}

// Add returns the wrapping sum x+y.
func (x Int128) Add(y Int128) Int128 { return Int128{x.bits.AddWrap(y.bits)} }

// Lsh returns x<<n.
func (x Int128) Lsh(n uint) Int128 { return Int128{x.bits.Lsh(n)} }

// Rsh returns x>>n, an arithmetic shift.
func (x Int128) Rsh(n uint) Int128 {
	neg := x.bits.Hi&(1<<63) != 0
	if n >= 128 {
		if neg {
			return Int128{uint128.Max}
		}
		return Int128{}
	}
	s := x.bits.Rsh(n)
	if neg && n > 0 {
		s = s.Or(uint128.Max.Lsh(128 - n))
	}
	return Int128{s}
}

func (x Int128) isMinusOne() bool { return x.bits.Equals(uint128.Max) }

// Big returns x as a big.Int.
func (x Int128) Big() *big.Int {
	if x.Sign() >= 0 {
		return x.bits.Big()
	}
	return new(big.Int).Neg(x.Neg().bits.Big())
}

// String returns the decimal representation of x.
func (x Int128) String() string { return x.Big().String() }

// DecodeUint128 decodes an unsigned Little Endian Base 128 represented
// number from r into a 128-bit integer. Error behavior matches
// DecodeUnsigned.
func DecodeUint128(r io.Reader) (uint128.Uint128, error) {
	var (
		result uint128.Uint128
		shift  uint
		buf    [1]byte
	)

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if shift > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return uint128.Zero, err
		}
		b := buf[0]
		payload := b & 0x7f

		if shift == maxShift128 && (payload > maxLastByte128 || b&0x80 != 0) {
			return uint128.Zero, ErrOverflow
		}

		result = result.Or(uint128.From64(uint64(payload)).Lsh(shift))

		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// DecodeInt128 decodes a signed Little Endian Base 128 represented number
// from r into an Int128. Error behavior matches DecodeSigned.
func DecodeInt128(r io.Reader) (Int128, error) {
	var (
		result uint128.Uint128
		shift  uint
		b      byte
		buf    [1]byte
	)

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if shift > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return Int128{}, err
		}
		b = buf[0]
		payload := b & 0x7f

		if shift == maxShift128 {
			se := int8(payload<<1) >> 1
			if extra := se >> (128 - maxShift128 - 1); extra != 0 && extra != -1 {
				return Int128{}, ErrOverflow
			}
			if b&0x80 != 0 {
				return Int128{}, ErrOverflow
			}
		}

		result = result.Or(uint128.From64(uint64(payload)).Lsh(shift))
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}

	if shift < 128 && b&0x40 != 0 {
		result = result.Or(uint128.Max.Lsh(shift))
	}

	return Int128{result}, nil
}

// AppendUint128 appends the unsigned Little Endian Base 128 encoding of x to
// dst and returns the extended buffer.
func AppendUint128(dst []byte, x uint128.Uint128) []byte {
	for {
		b := byte(x.Lo & 0x7f)
		x = x.Rsh(7)
		if !x.IsZero() {
			b |= 0x80
		}
		dst = append(dst, b)
		if x.IsZero() {
			return dst
		}
	}
}

// AppendInt128 appends the signed Little Endian Base 128 encoding of x to
// dst and returns the extended buffer.
func AppendInt128(dst []byte, x Int128) []byte {
	for {
		b := byte(x.bits.Lo & 0x7f)
		x = x.Rsh(7)

		signb := b & 0x40

		last := false
		if (x.IsZero() && signb == 0) || (x.isMinusOne() && signb != 0) {
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

// EncodeUint128 encodes x to the unsigned Little Endian Base 128 format into
// w and returns the number of bytes written.
func EncodeUint128(w io.Writer, x uint128.Uint128) (int, error) {
	var buf [MaxLen128]byte
	return w.Write(AppendUint128(buf[:0], x))
}

// EncodeInt128 encodes x to the signed Little Endian Base 128 format into w
// and returns the number of bytes written.
func EncodeInt128(w io.Writer, x Int128) (int, error) {
	var buf [MaxLen128]byte
	return w.Write(AppendInt128(buf[:0], x))
}

// Uint128Len returns the number of bytes AppendUint128 emits for x.
func Uint128Len(x uint128.Uint128) int {
	if x.IsZero() {
		return 1
	}
	return 1 + (x.Len()-1)/7
}

// Int128Len returns the number of bytes AppendInt128 emits for x.
func Int128Len(x Int128) int {
	n := 1
	for {
		if r := x.Rsh(6); r.IsZero() || r.isMinusOne() {
			return n
		}
		x = x.Rsh(7)
		n++
	}
}
