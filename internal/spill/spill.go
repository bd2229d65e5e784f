// Package spill implements the generic bounded-memory spill buffer used by
// the L2P and P2L builders (spec.md §9): content accumulates in memory up
// to a threshold (16 MiB by default), then transparently spills to a
// temporary file on disk so a build of many revisions never holds the
// whole page area resident.
package spill

import (
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/valyala/bytebufferpool"
)

// DefaultThreshold is the in-memory cap before a Buffer spills to disk.
const DefaultThreshold = 16 * 1024 * 1024

// DefaultBlockSize is the 64 KiB block size paired with DefaultThreshold.
// Buffer itself does not consult it.
const DefaultBlockSize = 64 * 1024

var pool bytebufferpool.Pool

// Buffer is a write-only, append-only byte accumulator that spills to a
// temp file once it holds threshold bytes or more. Call WriteTo exactly once to
// drain it into a destination, then Close to release any temp file.
type Buffer struct {
	threshold int
	dir       string
	mem       *bytebufferpool.ByteBuffer
	file      *os.File
	spilling  bool
	total     int64
}

// New creates a Buffer that spills into dir (the target index file's
// directory, so the final rename/copy stays on one filesystem) once its
// in-memory content reaches threshold bytes. threshold <= 0 uses
// DefaultThreshold.
func New(dir string, threshold int) *Buffer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Buffer{threshold: threshold, dir: dir, mem: pool.Get()}
}

// Len returns the total number of bytes written so far.
func (b *Buffer) Len() int64 { return b.total }

// Write appends p, spilling to disk if this write crosses the threshold.
func (b *Buffer) Write(p []byte) (int, error) {
	b.total += int64(len(p))
	if !b.spilling {
		b.mem.Write(p)
		if b.mem.Len() >= b.threshold {
			if err := b.startSpill(); err != nil {
				return 0, err
			}
		}
		return len(p), nil
	}
	return b.file.Write(p)
}

func (b *Buffer) startSpill() error {
	f, err := os.CreateTemp(b.dir, "spill-"+uuid.NewString()+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := f.Write(b.mem.B); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	pool.Put(b.mem)
	b.mem = nil
	b.file = f
	b.spilling = true
	return nil
}

// WriteTo copies the buffer's full contents, in write order, to w.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	if !b.spilling {
		n, err := w.Write(b.mem.B)
		return int64(n), err
	}
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return io.Copy(w, b.file)
}

// Close releases the pooled memory buffer and removes any spill file.
func (b *Buffer) Close() error {
	if b.mem != nil {
		pool.Put(b.mem)
		b.mem = nil
	}
	if b.file != nil {
		name := b.file.Name()
		b.file.Close()
		return os.Remove(name)
	}
	return nil
}
