package leb128

import (
	"errors"
	"io"
	"unsafe"

	"golang.org/x/exp/constraints"
)

// ErrOverflow is returned by the Decode functions when an encoding carries
// payload bits that cannot be represented by the destination type. It
// classifies bad input data, as opposed to a failure of the underlying
// reader, and can be matched with errors.Is.
var ErrOverflow = errors.New("leb128: value overflows target integer type")

// width returns the size in bits of the integer type N.
func width[N constraints.Integer]() uint {
	var zero N
	return uint(unsafe.Sizeof(zero)) * 8
}

// DecodeUnsigned decodes an unsigned Little Endian Base 128 represented
// number from r.
//
// Bytes are consumed until one with a clear continuation bit terminates the
// value; no bytes past it are read. If the encoding holds payload bits beyond
// the width of N the error is ErrOverflow. A reader that runs dry before the
// first byte reports io.EOF, one that runs dry inside a value reports
// io.ErrUnexpectedEOF; both are distinct from ErrOverflow.
func DecodeUnsigned[N constraints.Unsigned](r io.Reader) (N, error) {
	var (
		result N
		shift  uint
		buf    [1]byte
	)

	w := width[N]()
	maxShift := w / 7 * 7
	maxLastByte := byte(1)<<(w-maxShift) - 1

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if shift > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		b := buf[0]
		payload := b & 0x7f

		// The byte at maxShift is the last one that can contribute payload
		// to an N-sized result. Bits above maxLastByte would be shifted out
		// of the type, and a still-set continuation bit promises a byte that
		// could never contribute anything.
		if shift == maxShift && (payload > maxLastByte || b&0x80 != 0) {
			return 0, ErrOverflow
		}

		result |= N(payload) << shift

		// If high order bit is 1 more bytes follow.
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

// DecodeSigned decodes a signed Little Endian Base 128 represented number
// from r.
//
// The payload of the final byte is sign-extended: when its bit 6 is set,
// every result bit above the accumulated payload is filled with ones.
// Error behavior matches DecodeUnsigned.
func DecodeSigned[N constraints.Signed](r io.Reader) (N, error) {
	var (
		result N
		shift  uint
		b      byte
		buf    [1]byte
	)

	w := width[N]()
	maxShift := w / 7 * 7

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			if shift > 0 && err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		b = buf[0]
		payload := b & 0x7f

		if shift == maxShift {
			// Payload bits landing at or above the sign position must all be
			// copies of the sign bit, otherwise the value needs more than w
			// bits. se is the payload sign-extended from its bit 6.
			se := N(int8(payload<<1) >> 1)
			if extra := se >> (w - maxShift - 1); extra != 0 && extra != -1 {
				return 0, ErrOverflow
			}
			if b&0x80 != 0 {
				return 0, ErrOverflow
			}
		}

		result |= N(payload) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}

	if shift < w && b&0x40 != 0 {
		result |= ^N(0) << shift
	}

	return result, nil
}
