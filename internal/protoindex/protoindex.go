// Package protoindex implements the append-only scratch files written
// during a transaction and consumed by the L2P/P2L builders at revision
// finalization: fixed-size records, one file per index kind, named and
// owned by the surrounding storage layer (the file names themselves are
// layout.L2PProtoIndexName / layout.P2LProtoIndexName).
package protoindex

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/svnidx/revindex/internal/idxerr"
)

// InvalidRevision marks a P2L proto-entry written before its containing
// revision number is known; the builder patches it to the target revision.
const InvalidRevision int32 = -1

// L2PEntry is a fixed-size L2P proto-index record: 16 bytes, two u64s.
// The sentinel Offset==0 && ItemIndex==0 marks a revision boundary. Real
// entries store Offset as physical_offset+1 so zero stays reserved.
type L2PEntry struct {
	Offset    uint64
	ItemIndex uint64
}

// IsRevisionMarker reports whether e is the "start a new revision" sentinel.
func (e L2PEntry) IsRevisionMarker() bool {
	return e.Offset == 0 && e.ItemIndex == 0
}

const l2pRecordSize = 16

// P2LEntry is a fixed-size P2L proto-index record.
type P2LEntry struct {
	Offset     int64
	Size       int64
	Type       uint32
	Revision   int32
	ItemNumber uint64
	Fnv1       uint32
}

// p2lRecordSize is 36 bytes of fields plus 4 bytes of pad to keep records
// 8-byte aligned.
const p2lRecordSize = 40

// L2PWriter appends L2P proto-entries to a scratch file.
type L2PWriter struct {
	f   *os.File
	buf [l2pRecordSize]byte
}

// CreateL2PWriter truncates (or creates) path and returns a writer
// positioned at its start.
func CreateL2PWriter(path string) (*L2PWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &L2PWriter{f: f}, nil
}

// AddEntry appends a real entry. physicalOffset is the item's byte offset
// in the revision/pack file; the +1 reserved-zero convention is applied
// here so callers always pass a true byte offset.
func (w *L2PWriter) AddEntry(physicalOffset uint64, itemIndex uint64) error {
	return w.write(L2PEntry{Offset: physicalOffset + 1, ItemIndex: itemIndex})
}

// AddRevisionMarker appends the sentinel separating one revision's entries
// from the next.
func (w *L2PWriter) AddRevisionMarker() error {
	return w.write(L2PEntry{})
}

func (w *L2PWriter) write(e L2PEntry) error {
	binary.LittleEndian.PutUint64(w.buf[0:8], e.Offset)
	binary.LittleEndian.PutUint64(w.buf[8:16], e.ItemIndex)
	_, err := w.f.Write(w.buf[:])
	return err
}

// Close flushes and closes the underlying file.
func (w *L2PWriter) Close() error { return w.f.Close() }

// L2PReader scans an L2P proto-index sequentially from the start.
type L2PReader struct {
	f    *os.File
	file string
	buf  [l2pRecordSize]byte
}

// OpenL2PReader opens path for sequential scanning.
func OpenL2PReader(path string) (*L2PReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &L2PReader{f: f, file: path}, nil
}

// Next reads the next entry, returning io.EOF once the file is exhausted.
func (r *L2PReader) Next() (L2PEntry, error) {
	if _, err := io.ReadFull(r.f, r.buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return L2PEntry{}, idxerr.NewCorrupt(r.file, "truncated proto-index record")
		}
		return L2PEntry{}, err
	}
	return L2PEntry{
		Offset:    binary.LittleEndian.Uint64(r.buf[0:8]),
		ItemIndex: binary.LittleEndian.Uint64(r.buf[8:16]),
	}, nil
}

// Close releases the underlying file handle.
func (r *L2PReader) Close() error { return r.f.Close() }

// P2LWriter appends P2L proto-entries to a scratch file.
type P2LWriter struct {
	f   *os.File
	buf [p2lRecordSize]byte
}

// CreateP2LWriter truncates (or creates) path and returns a writer
// positioned at its start.
func CreateP2LWriter(path string) (*P2LWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &P2LWriter{f: f}, nil
}

// AddEntry appends one item descriptor. Pass InvalidRevision for Revision
// when the containing revision number isn't known yet at write time.
func (w *P2LWriter) AddEntry(e P2LEntry) error {
	binary.LittleEndian.PutUint64(w.buf[0:8], uint64(e.Offset))
	binary.LittleEndian.PutUint64(w.buf[8:16], uint64(e.Size))
	binary.LittleEndian.PutUint32(w.buf[16:20], e.Type)
	binary.LittleEndian.PutUint32(w.buf[20:24], uint32(e.Revision))
	binary.LittleEndian.PutUint64(w.buf[24:32], e.ItemNumber)
	binary.LittleEndian.PutUint32(w.buf[32:36], e.Fnv1)
	w.buf[36], w.buf[37], w.buf[38], w.buf[39] = 0, 0, 0, 0
	_, err := w.f.Write(w.buf[:])
	return err
}

// Close flushes and closes the underlying file.
func (w *P2LWriter) Close() error { return w.f.Close() }

// P2LReader scans a P2L proto-index sequentially from the start.
type P2LReader struct {
	f    *os.File
	file string
	buf  [p2lRecordSize]byte
}

// OpenP2LReader opens path for sequential scanning.
func OpenP2LReader(path string) (*P2LReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &P2LReader{f: f, file: path}, nil
}

// Next reads the next entry, returning io.EOF once the file is exhausted.
func (r *P2LReader) Next() (P2LEntry, error) {
	if _, err := io.ReadFull(r.f, r.buf[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return P2LEntry{}, idxerr.NewCorrupt(r.file, "truncated proto-index record")
		}
		return P2LEntry{}, err
	}
	return P2LEntry{
		Offset:     int64(binary.LittleEndian.Uint64(r.buf[0:8])),
		Size:       int64(binary.LittleEndian.Uint64(r.buf[8:16])),
		Type:       binary.LittleEndian.Uint32(r.buf[16:20]),
		Revision:   int32(binary.LittleEndian.Uint32(r.buf[20:24])),
		ItemNumber: binary.LittleEndian.Uint64(r.buf[24:32]),
		Fnv1:       binary.LittleEndian.Uint32(r.buf[32:36]),
	}, nil
}

// Close releases the underlying file handle.
func (r *P2LReader) Close() error { return r.f.Close() }
