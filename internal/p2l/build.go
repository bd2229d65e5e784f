package p2l

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/svnidx/revindex/internal/protoindex"
	"github.com/svnidx/revindex/internal/spill"
	"github.com/svnidx/revindex/internal/varint"
)

// Build consumes protoPath (a P2L proto-index written during commit) and
// writes the final, paged, delta-encoded P2L index to outPath, then marks
// it read-only. targetRevision patches any proto-entry written with
// protoindex.InvalidRevision.
func Build(protoPath, outPath string, targetRevision int64, firstRevision int64, pageSize int64, spillThreshold int) error {
	r, err := protoindex.OpenP2LReader(protoPath)
	if err != nil {
		return err
	}
	defer r.Close()

	spillBuf := spill.New(filepath.Dir(outPath), spillThreshold)
	defer spillBuf.Close()
	bw := bufio.NewWriter(spillBuf)

	var tableSizes []int64
	var lastPageEnd int64
	var lastEntryEnd int64
	var lastRevision int32
	var lastCompound int64
	startingNewPage := true
	pageStartLen := spillBuf.Len()

	terminatePage := func() error {
		if err := bw.Flush(); err != nil {
			return err
		}
		tableSizes = append(tableSizes, spillBuf.Len()-pageStartLen)
		pageStartLen = spillBuf.Len()
		lastPageEnd += pageSize
		lastRevision = 0
		lastCompound = 0
		startingNewPage = true
		return nil
	}

	emit := func(e protoindex.P2LEntry) error {
		for e.Offset >= lastPageEnd+pageSize {
			if err := terminatePage(); err != nil {
				return err
			}
		}
		if startingNewPage {
			if err := varint.WriteUint(bw, uint64(e.Offset)); err != nil {
				return err
			}
			startingNewPage = false
		}
		if err := varint.WriteUint(bw, uint64(e.Size)); err != nil {
			return err
		}
		compound := int64(e.ItemNumber)*8 + int64(e.Type)
		if err := varint.WriteInt(bw, compound-lastCompound); err != nil {
			return err
		}
		if err := varint.WriteInt(bw, int64(e.Revision)-int64(lastRevision)); err != nil {
			return err
		}
		if err := varint.WriteUint(bw, uint64(e.Fnv1)); err != nil {
			return err
		}
		lastCompound = compound
		lastRevision = e.Revision
		lastEntryEnd = e.Offset + e.Size
		return nil
	}

	for {
		entry, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if entry.Revision == protoindex.InvalidRevision {
			entry.Revision = int32(targetRevision)
		}
		if err := emit(entry); err != nil {
			return err
		}
	}

	// fileSize is the true end of content, captured before the filler pads
	// the index's bookkeeping out to the next page boundary.
	fileSize := lastEntryEnd
	if lastEntryEnd < lastPageEnd+pageSize {
		filler := protoindex.P2LEntry{
			Offset:     lastEntryEnd,
			Size:       lastPageEnd + pageSize - lastEntryEnd,
			Type:       uint32(ItemUnused),
			Revision:   lastRevision,
			ItemNumber: 0,
			Fnv1:       0,
		}
		if err := emit(filler); err != nil {
			return err
		}
	}
	if !startingNewPage {
		if err := terminatePage(); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	pageCount := int64(len(tableSizes))
	for _, v := range []uint64{uint64(firstRevision), uint64(fileSize), uint64(pageSize), uint64(pageCount)} {
		if err := varint.WriteUint(w, v); err != nil {
			f.Close()
			return err
		}
	}
	for _, sz := range tableSizes {
		if err := varint.WriteUint(w, uint64(sz)); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if _, err := spillBuf.WriteTo(w); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Chmod(outPath, 0o444)
}
