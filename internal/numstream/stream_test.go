package numstream

import (
	"bufio"
	"os"
	"path/filepath"
	"testing"

	"github.com/svnidx/revindex/internal/varint"
)

func writeSequence(t *testing.T, values []uint64) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "numbers.bin")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := bufio.NewWriter(f)
	for _, v := range values {
		if err := varint.WriteUint(w, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func sequence(n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		// Mix small and large values so encodings vary in length and can
		// straddle block boundaries.
		out[i] = uint64(i) * 104729 // a largish prime keeps values varied
	}
	return out
}

func TestStreamReadsSequenceInOrder(t *testing.T) {
	values := sequence(500)
	path := writeSequence(t, values)
	s, err := Open(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i, want := range values {
		got, err := s.Get()
		if err != nil {
			t.Fatalf("Get() at index %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("Get() at index %d = %d, want %d", i, got, want)
		}
	}
}

func TestStreamSeekIdempotence(t *testing.T) {
	values := sequence(300)
	path := writeSequence(t, values)

	for _, blockSize := range []int{16, 64, 256, 4096} {
		k := 37
		s, err := Open(path, blockSize)
		if err != nil {
			t.Fatal(err)
		}

		// open; read k values; remember pos
		for i := 0; i < k; i++ {
			if _, err := s.Get(); err != nil {
				t.Fatalf("blockSize=%d: Get() %d: %v", blockSize, i, err)
			}
		}
		pos := s.Offset()

		// seek(0); read k values
		s.Seek(0)
		for i := 0; i < k; i++ {
			if _, err := s.Get(); err != nil {
				t.Fatalf("blockSize=%d: Get() after seek(0) %d: %v", blockSize, i, err)
			}
		}

		// seek(pos); read one value
		s.Seek(pos)
		got, err := s.Get()
		if err != nil {
			t.Fatalf("blockSize=%d: Get() after seek(pos): %v", blockSize, err)
		}

		// Compare against a fresh stream reading k+1 values straight through.
		fresh, err := Open(path, blockSize)
		if err != nil {
			t.Fatal(err)
		}
		var want uint64
		for i := 0; i <= k; i++ {
			want, err = fresh.Get()
			if err != nil {
				t.Fatalf("blockSize=%d: fresh Get() %d: %v", blockSize, i, err)
			}
		}
		fresh.Close()

		if got != want {
			t.Fatalf("blockSize=%d: seek idempotence mismatch: got %d, want %d", blockSize, got, want)
		}
		s.Close()
	}
}

func TestStreamSeekMidValue(t *testing.T) {
	values := sequence(100)
	path := writeSequence(t, values)
	s, err := Open(path, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for i := 0; i < 10; i++ {
		if _, err := s.Get(); err != nil {
			t.Fatal(err)
		}
	}
	offsetAt10 := s.Offset()

	for i := 0; i < 20; i++ {
		if _, err := s.Get(); err != nil {
			t.Fatal(err)
		}
	}

	s.Seek(offsetAt10)
	got, err := s.Get()
	if err != nil {
		t.Fatal(err)
	}
	if got != values[10] {
		t.Fatalf("Seek(offsetAt10) then Get() = %d, want %d", got, values[10])
	}
}

func TestStreamCorruptTrailingContinuation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.bin")
	// A single byte with the continuation bit set and nothing after it.
	if err := os.WriteFile(path, []byte{0xff}, 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Open(path, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get(); err == nil {
		t.Fatal("expected error reading truncated stream")
	}
}
