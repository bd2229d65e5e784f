// Package numstream implements a buffered, seekable forward-reading view of
// a file containing varint-encoded unsigned integers, batching reads to
// amortize per-integer I/O and respecting underlying block boundaries.
package numstream

import (
	"errors"
	"io"
	"os"

	"github.com/svnidx/revindex/internal/idxerr"
	"github.com/svnidx/revindex/internal/varint"
)

// MaxNumberPrefetch bounds how many decoded values a single refill holds.
const MaxNumberPrefetch = 64

// DefaultBlockSize is used when a caller doesn't have a more specific I/O
// block size in mind (e.g. the underlying filesystem's block size).
const DefaultBlockSize = 4096

type bufferedValue struct {
	value    uint64
	cumBytes int // bytes consumed from bufStart through the end of this value
}

// Stream is a forward-reading, seekable view over varint-encoded values in
// a file, opened read-only.
type Stream struct {
	f         *os.File
	file      string
	blockSize int64

	bufStart       uint64 // file offset where the current buffer's bytes begin
	nextReadOffset uint64 // file offset of the next byte not yet consumed into entries
	entries        []bufferedValue
	cursor         int
}

// Open opens path for buffered varint reading. blockSize governs prefetch
// alignment; callers should pass the underlying filesystem's natural I/O
// block size (DefaultBlockSize is a reasonable default).
func Open(path string, blockSize int) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &Stream{f: f, file: path, blockSize: int64(blockSize)}, nil
}

// Close releases the underlying file handle.
func (s *Stream) Close() error {
	return s.f.Close()
}

// Offset returns the current logical read position: the offset of the next
// value Get() would return.
func (s *Stream) Offset() uint64 {
	if s.cursor == 0 {
		return s.bufStart
	}
	return s.bufStart + uint64(s.entries[s.cursor-1].cumBytes)
}

// Get decodes and returns the next value in the stream, refilling the
// internal buffer from disk as needed.
func (s *Stream) Get() (uint64, error) {
	if s.cursor == len(s.entries) {
		if err := s.refill(); err != nil {
			return 0, err
		}
	}
	v := s.entries[s.cursor].value
	s.cursor++
	return v, nil
}

// Seek repositions the stream to read starting at the given absolute file
// offset. If offset falls within the currently buffered range, this is a
// cheap linear scan over the (small) buffer; otherwise the buffer is
// discarded and the next Get() triggers a fresh refill at offset.
func (s *Stream) Seek(offset uint64) {
	if len(s.entries) > 0 && offset >= s.bufStart {
		total := uint64(s.entries[len(s.entries)-1].cumBytes)
		inBuf := offset - s.bufStart
		if inBuf < total {
			for i, e := range s.entries {
				if uint64(e.cumBytes) > inBuf {
					s.cursor = i
					return
				}
			}
		}
	}
	s.entries = nil
	s.cursor = 0
	s.bufStart = offset
	s.nextReadOffset = offset
}

func (s *Stream) refill() error {
	readStart := s.nextReadOffset
	blockEnd := ((int64(readStart) / s.blockSize) + 1) * s.blockSize
	remainingInBlock := blockEnd - int64(readStart)

	capacity := int64(MaxNumberPrefetch * varint.MaxEncodedLen)
	readLen := capacity
	if remainingInBlock >= 10 && remainingInBlock < readLen {
		readLen = remainingInBlock
	}

	raw := make([]byte, readLen)
	n, err := s.f.ReadAt(raw, int64(readStart))
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return idxerr.NewUnexpectedEOF(s.file, int64(readStart)).Wrap(err)
		}
		return idxerr.NewCorrupt(s.file, "unexpected end of index")
	}
	raw = raw[:n]

	// Trim trailing bytes that still have their continuation bit set: they
	// belong to an integer whose terminating byte wasn't in this read.
	end := len(raw)
	for end > 0 && raw[end-1]&0x80 != 0 {
		end--
	}
	if end == 0 {
		// Every byte in this read kept its continuation bit set. If the read
		// was already long enough to hold a maximal encoding, this isn't a
		// value cut short by read chunking, it's one that never terminates.
		if len(raw) >= varint.MaxEncodedLen {
			return idxerr.NewCorrupt(s.file, "number too large")
		}
		return idxerr.NewUnexpectedEOF(s.file, int64(readStart))
	}
	raw = raw[:end]

	entries := s.entries[:0]
	pos := 0
	for pos < len(raw) && len(entries) < MaxNumberPrefetch {
		v, consumed, derr := varint.DecodeUintBytes(raw[pos:], s.file)
		if derr != nil {
			return derr
		}
		pos += consumed
		entries = append(entries, bufferedValue{value: v, cumBytes: pos})
	}

	s.bufStart = readStart
	s.nextReadOffset = readStart + uint64(pos)
	s.entries = entries
	s.cursor = 0
	return nil
}
