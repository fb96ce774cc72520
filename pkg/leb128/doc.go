// Package leb128 provides encoders and decoders for the Little Endian Base 128
// format, generic over every fixed-width integer type up to 128 bits.
// The Little Endian Base 128 format is defined in the DWARF v4 standard,
// section 7.6, page 161 and following; WebAssembly uses the same convention.
//
// Unlike most LEB128 implementations the decoders bound-check the final byte
// of a sequence against the destination type: a value that does not fit is
// reported as ErrOverflow, never silently truncated.
package leb128
