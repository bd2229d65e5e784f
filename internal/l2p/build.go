package l2p

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/samber/lo"

	"github.com/svnidx/revindex/internal/idxerr"
	"github.com/svnidx/revindex/internal/protoindex"
	"github.com/svnidx/revindex/internal/spill"
	"github.com/svnidx/revindex/internal/varint"
)

// maxItemIndex mirrors index.c's SVN_ERR_ASSERT(item_index < UINT_MAX / 2):
// an item_index at or past this ceiling is rejected rather than clamped.
const maxItemIndex = 1 << 31

// Build consumes protoPath (an L2P proto-index written during commit) and
// writes the final, paged, delta-encoded L2P index to outPath, then marks
// it read-only. firstRevision is the first revision this index covers;
// pageSize is the maximum number of item slots per page.
func Build(protoPath, outPath string, firstRevision int64, pageSize int64, spillThreshold int) error {
	r, err := protoindex.OpenL2PReader(protoPath)
	if err != nil {
		return err
	}
	defer r.Close()

	spillBuf := spill.New(filepath.Dir(outPath), spillThreshold)
	defer spillBuf.Close()
	bw := bufio.NewWriter(spillBuf)

	var revisionPageCounts []int64
	var pageSizeBytes []int64
	var pageEntryCounts []int64
	var slots []uint64
	currentRevision := firstRevision

	flushRevision := func() error {
		pages := lo.Chunk(slots, int(pageSize))
		if len(pages) == 0 {
			pages = [][]uint64{{}}
		}
		for _, page := range pages {
			before := spillBuf.Len()
			var prev uint64
			for _, v := range page {
				delta := int64(v) - int64(prev)
				if err := varint.WriteInt(bw, delta); err != nil {
					return err
				}
				prev = v
			}
			if err := bw.Flush(); err != nil {
				return err
			}
			pageSizeBytes = append(pageSizeBytes, spillBuf.Len()-before)
			pageEntryCounts = append(pageEntryCounts, int64(len(page)))
		}
		revisionPageCounts = append(revisionPageCounts, int64(len(pages)))
		slots = nil
		currentRevision++
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
		if entry.IsRevisionMarker() {
			if err := flushRevision(); err != nil {
				return err
			}
			continue
		}
		if entry.ItemIndex >= maxItemIndex {
			return idxerr.NewItemIndexOverflow(outPath, currentRevision, entry.ItemIndex)
		}
		for uint64(len(slots)) <= entry.ItemIndex {
			slots = append(slots, 0)
		}
		slots[entry.ItemIndex] = entry.Offset
	}
	if err := flushRevision(); err != nil {
		return err
	}

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)

	revisionCount := int64(len(revisionPageCounts))
	pageCount := int64(len(pageSizeBytes))
	if err := varint.WriteUint(w, uint64(firstRevision)); err != nil {
		return err
	}
	if err := varint.WriteUint(w, uint64(pageSize)); err != nil {
		return err
	}
	if err := varint.WriteUint(w, uint64(revisionCount)); err != nil {
		return err
	}
	if err := varint.WriteUint(w, uint64(pageCount)); err != nil {
		return err
	}
	for _, c := range revisionPageCounts {
		if err := varint.WriteUint(w, uint64(c)); err != nil {
			return err
		}
	}
	for i := range pageSizeBytes {
		if err := varint.WriteUint(w, uint64(pageSizeBytes[i])); err != nil {
			return err
		}
		if err := varint.WriteUint(w, uint64(pageEntryCounts[i])); err != nil {
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
