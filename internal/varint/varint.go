// Package varint implements the 7-bit little-endian continuation-byte
// integer codec shared by every on-disk format in this module: unsigned
// values are encoded directly, signed values via zig-zag mapping first.
package varint

import "github.com/svnidx/revindex/internal/idxerr"

// MaxEncodedLen is the longest an encoded uint64 can be: ceil(64/7) = 10
// bytes. A 10th byte that still has its continuation bit set is corrupt.
const MaxEncodedLen = 10

// ByteReader is the minimal interface DecodeUint needs. *bufio.Reader and
// *bytes.Reader both satisfy it.
type ByteReader interface {
	ReadByte() (byte, error)
}

// ByteWriter is the minimal interface WriteUint needs to stream to.
type ByteWriter interface {
	WriteByte(byte) error
}

// EncodeUint appends the 7-bit continuation encoding of v to dst and
// returns the extended slice.
func EncodeUint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v&0x7f)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// WriteUint streams the encoding of v to w one byte at a time.
func WriteUint(w ByteWriter, v uint64) error {
	for v >= 0x80 {
		if err := w.WriteByte(byte(v&0x7f) | 0x80); err != nil {
			return err
		}
		v >>= 7
	}
	return w.WriteByte(byte(v))
}

// SizeUint returns the number of bytes EncodeUint(nil, v) would produce.
func SizeUint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// EncodeInt appends the zig-zag + 7-bit continuation encoding of n.
func EncodeInt(dst []byte, n int64) []byte {
	return EncodeUint(dst, zigzagEncode(n))
}

// WriteInt streams the zig-zag encoding of n to w.
func WriteInt(w ByteWriter, n int64) error {
	return WriteUint(w, zigzagEncode(n))
}

// SizeInt returns the number of bytes EncodeInt(nil, n) would produce.
func SizeInt(n int64) int {
	return SizeUint(zigzagEncode(n))
}

// ZigzagEncode maps a signed int64 onto the unsigned range so it can be
// stored with EncodeUint/WriteUint.
func ZigzagEncode(n int64) uint64 { return zigzagEncode(n) }

// ZigzagDecode inverts ZigzagEncode.
func ZigzagDecode(u uint64) int64 { return zigzagDecode(u) }

func zigzagEncode(n int64) uint64 {
	if n >= 0 {
		return uint64(n) * 2
	}
	return uint64(-1-n)*2 + 1
}

func zigzagDecode(u uint64) int64 {
	if u&1 == 0 {
		return int64(u >> 1)
	}
	return -1 - int64(u>>1)
}

// DecodeUint reads a 7-bit continuation encoded uint64 from r. It fails
// with idxerr.Corrupt("number too large") if decoding the value would
// require shifting 64 bits or more, and with idxerr.UnexpectedEOF if r
// runs out of bytes before a terminating (high-bit-clear) byte.
func DecodeUint(r ByteReader, file string) (uint64, error) {
	var result uint64
	var shift uint
	for i := 0; i < MaxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, idxerr.NewUnexpectedEOF(file, -1).Wrap(err)
		}
		if shift == 63 && b&0x7f > 1 {
			return 0, idxerr.NewCorrupt(file, "number too large")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, idxerr.NewCorrupt(file, "number too large")
}

// DecodeInt reads a zig-zag + 7-bit continuation encoded int64 from r.
func DecodeInt(r ByteReader, file string) (int64, error) {
	u, err := DecodeUint(r, file)
	if err != nil {
		return 0, err
	}
	return zigzagDecode(u), nil
}

// DecodeUintBytes decodes a single uint64 starting at buf[0], returning the
// value and the number of bytes consumed. Used by in-memory page decoding
// where a bytes.Reader would otherwise be overkill.
func DecodeUintBytes(buf []byte, file string) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; i < MaxEncodedLen; i++ {
		if i >= len(buf) {
			return 0, 0, idxerr.NewUnexpectedEOF(file, -1)
		}
		b := buf[i]
		if shift == 63 && b&0x7f > 1 {
			return 0, 0, idxerr.NewCorrupt(file, "number too large")
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, idxerr.NewCorrupt(file, "number too large")
}
