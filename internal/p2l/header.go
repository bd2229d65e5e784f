// Package p2l implements the phys-to-log index: given (revision, byte
// offset), the item descriptor occupying that offset, and more generally
// the ordered list of descriptors covering a window of the revision or
// pack file.
package p2l

// ItemType generalizes FSFS's SVN_FS_FS__ITEM_TYPE_* domain to an opaque
// tag the index core stores and returns without interpreting.
type ItemType uint32

const (
	ItemNode ItemType = iota
	ItemProps
	ItemText
	ItemChangeList
	ItemUnused
)

// Entry is one item descriptor: its physical placement, logical identity,
// and checksum.
type Entry struct {
	Offset     int64
	Size       int64
	Type       ItemType
	Revision   int32
	ItemNumber uint64
	Fnv1       uint32
}

// Header is the in-memory form of a P2L file's header and page-offset
// table.
type Header struct {
	FirstRevision int64
	FileSize      int64
	PageSize      int64
	PageCount     int64
	Offsets       []int64 // len PageCount+1, byte offsets of each page's payload, Offsets[PageCount] is the page area's end
}

// Covers reports whether offset falls within the indexed file range.
func (h *Header) Covers(offset int64) bool {
	return offset >= 0 && offset < h.FileSize
}

// pageNoFor clamps offset to a valid page index in [0, PageCount-1].
func (h *Header) pageNoFor(offset int64) int64 {
	if h.PageCount <= 0 {
		return 0
	}
	if h.PageSize <= 0 {
		return h.PageCount - 1
	}
	pageNo := offset / h.PageSize
	if pageNo >= h.PageCount {
		return h.PageCount - 1
	}
	return pageNo
}
