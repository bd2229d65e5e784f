// Package l2p implements the log-to-phys index: given (revision,
// item_index), the absolute byte offset of that item in its revision or
// pack file.
package l2p

// PageTableEntry is one entry of the page table: a page's absolute byte
// offset in the index file, its encoded size in bytes, and how many slots it
// holds (the last page of a revision may hold fewer than PageSize).
type PageTableEntry struct {
	Offset     int64
	SizeBytes  int64
	EntryCount int64
}

// Header is the in-memory form of an L2P file's header, revision table and
// page table, per the file layout in section 6 of the on-disk format.
type Header struct {
	FirstRevision  int64
	PageSize       int64
	RevisionCount  int64
	PageTableIndex []int64 // len RevisionCount+1, prefix sum of pages-per-revision
	PageTable      []PageTableEntry
}

// Covers reports whether revision is within the range this header indexes.
func (h *Header) Covers(revision int64) bool {
	rel := revision - h.FirstRevision
	return rel >= 0 && rel < h.RevisionCount
}
