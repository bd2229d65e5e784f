package varint

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/svnidx/revindex/internal/idxerr"
)

func TestUintRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 2, 127, 128, 129, 16383, 16384,
		1 << 21, 1<<21 - 1, 1 << 28, 1 << 35, 1 << 42, 1 << 49, 1 << 56, 1 << 63,
		math.MaxUint64, math.MaxUint64 - 1, math.MaxInt64,
	}
	for _, v := range cases {
		enc := EncodeUint(nil, v)
		if len(enc) != SizeUint(v) {
			t.Fatalf("SizeUint(%d)=%d, EncodeUint produced %d bytes", v, SizeUint(v), len(enc))
		}
		got, n, err := DecodeUintBytes(enc, "test")
		if err != nil {
			t.Fatalf("DecodeUintBytes(%d): %v", v, err)
		}
		if n != len(enc) {
			t.Fatalf("DecodeUintBytes(%d) consumed %d, want %d", v, n, len(enc))
		}
		if got != v {
			t.Fatalf("round trip %d -> %x -> %d", v, enc, got)
		}

		r := bytes.NewReader(enc)
		got2, err := DecodeUint(r, "test")
		if err != nil || got2 != v {
			t.Fatalf("DecodeUint(%d) = %d, %v", v, got2, err)
		}
	}
}

func TestIntRoundTrip(t *testing.T) {
	cases := []int64{
		0, 1, -1, 2, -2, math.MaxInt64, math.MinInt64, 1000, -1000,
	}
	for _, n := range cases {
		enc := EncodeInt(nil, n)
		if len(enc) != SizeInt(n) {
			t.Fatalf("SizeInt(%d) mismatch", n)
		}
		r := bytes.NewReader(enc)
		got, err := DecodeInt(r, "test")
		if err != nil {
			t.Fatalf("DecodeInt(%d): %v", n, err)
		}
		if got != n {
			t.Fatalf("round trip %d -> %x -> %d", n, enc, got)
		}
	}
}

func TestEncodedLengthBits(t *testing.T) {
	// Encoded length is ceil(bits/7), where "bits" is the position of the
	// highest set bit + 1 (0 itself takes 1 byte).
	tests := []struct {
		v    uint64
		want int
	}{
		{0, 1},
		{0x7f, 1},
		{0x80, 2},
		{1<<14 - 1, 2},
		{1 << 14, 3},
		{1<<63 - 1, 9},
		{1 << 63, 10},
		{math.MaxUint64, 10},
	}
	for _, tc := range tests {
		if got := SizeUint(tc.v); got != tc.want {
			t.Fatalf("SizeUint(%#x) = %d, want %d", tc.v, got, tc.want)
		}
	}
}

func TestCorruptTenthByteContinuation(t *testing.T) {
	// 10 bytes, all with the continuation bit set: the decoder must reject
	// this even though it never sees a terminating byte, rather than
	// reading an 11th byte.
	buf := bytes.Repeat([]byte{0xff}, 10)
	_, err := DecodeUint(bytes.NewReader(buf), "test")
	if err == nil {
		t.Fatal("expected corruption error")
	}
	var ie *idxerr.Error
	if !errors.As(err, &ie) || ie.Kind != idxerr.Corrupt {
		t.Fatalf("expected idxerr.Corrupt, got %v", err)
	}
}

func TestCorruptOverflowingValue(t *testing.T) {
	// 9 bytes of 0xff bring the shift to 63, then a terminator whose
	// payload 0x02 is > 1 and would overflow 64 bits.
	buf := append(bytes.Repeat([]byte{0xff}, 9), 0x02)
	_, err := DecodeUint(bytes.NewReader(buf), "test")
	if err == nil {
		t.Fatal("expected corruption error for overflowing value")
	}
}

func TestUnexpectedEOF(t *testing.T) {
	buf := []byte{0x80, 0x80} // continuation set, then truncated
	_, err := DecodeUint(bytes.NewReader(buf), "test")
	if err == nil {
		t.Fatal("expected unexpected EOF error")
	}
}
