package l2p

import (
	"github.com/svnidx/revindex/internal/idxcache"
	"github.com/svnidx/revindex/internal/idxerr"
	"github.com/svnidx/revindex/internal/numstream"
	"github.com/svnidx/revindex/internal/varint"
)

// PrefetchWindowBytes is the default directional prefetch window around a
// looked-up page.
const PrefetchWindowBytes = 65536

// Reader serves lookups against a single L2P index file (one unpacked
// revision, or one packed shard). BaseRevision/IsPacked are the header
// cache key the surrounding storage layer decided on.
type Reader struct {
	path         string
	baseRevision int64
	isPacked     bool
	blockSize    int
	cache        idxcache.Store

	header *Header
}

// Open returns a Reader bound to path. Nothing is read until the first
// Lookup.
func Open(path string, baseRevision int64, isPacked bool, cache idxcache.Store, blockSize int) *Reader {
	if blockSize <= 0 {
		blockSize = numstream.DefaultBlockSize
	}
	return &Reader{path: path, baseRevision: baseRevision, isPacked: isPacked, blockSize: blockSize, cache: cache}
}

func (r *Reader) headerKey() idxcache.HeaderKey {
	return idxcache.HeaderKey{BaseRevision: r.baseRevision, IsPacked: r.isPacked, Kind: "l2p"}
}

func (r *Reader) pageKey(pageIndex int64) idxcache.PageKey {
	return idxcache.PageKey{FirstRevision: r.baseRevision, IsPacked: r.isPacked, PageIndex: int(pageIndex), Kind: "l2p"}
}

// Header returns the parsed header, loading and caching it on first use.
func (r *Reader) Header() (*Header, error) {
	if r.header != nil {
		return r.header, nil
	}
	if data, ok := r.cache.Get(r.headerKey()); ok {
		h, err := HeaderCodec{}.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		r.header = h
		return h, nil
	}
	h, err := r.parseHeader()
	if err != nil {
		return nil, err
	}
	r.cache.Set(r.headerKey(), HeaderCodec{}.Marshal(h))
	r.header = h
	return h, nil
}

func (r *Reader) parseHeader() (*Header, error) {
	s, err := numstream.Open(r.path, r.blockSize)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	h := &Header{}
	firstRevRaw, err := s.Get()
	if err != nil {
		return nil, err
	}
	h.FirstRevision = int64(firstRevRaw)
	pageSize, err := s.Get()
	if err != nil {
		return nil, err
	}
	h.PageSize = int64(pageSize)
	revCount, err := s.Get()
	if err != nil {
		return nil, err
	}
	h.RevisionCount = int64(revCount)
	pageCount, err := s.Get()
	if err != nil {
		return nil, err
	}

	h.PageTableIndex = make([]int64, h.RevisionCount+1)
	for i := int64(0); i < h.RevisionCount; i++ {
		pages, err := s.Get()
		if err != nil {
			return nil, err
		}
		h.PageTableIndex[i+1] = h.PageTableIndex[i] + int64(pages)
	}

	h.PageTable = make([]PageTableEntry, pageCount)
	for i := range h.PageTable {
		sizeBytes, err := s.Get()
		if err != nil {
			return nil, err
		}
		entryCount, err := s.Get()
		if err != nil {
			return nil, err
		}
		h.PageTable[i] = PageTableEntry{Offset: 0, SizeBytes: int64(sizeBytes), EntryCount: int64(entryCount)}
	}
	endOfTables := s.Offset()
	var cum int64
	for i := range h.PageTable {
		h.PageTable[i].Offset = int64(endOfTables) + cum
		cum += h.PageTable[i].SizeBytes
	}
	return h, nil
}

// pageInfo resolves (revision, itemIndex) to a page-table index and the
// slot position within that page, per spec.md §4.E's page-info derivation.
func (h *Header) pageInfo(revision int64, itemIndex uint64, file string) (tableIdx int64, slot int64, err error) {
	rel := revision - h.FirstRevision
	if rel < 0 || rel >= h.RevisionCount {
		return 0, 0, idxerr.NewRevisionNotCovered(file, revision)
	}
	pagesStart := h.PageTableIndex[rel]
	pagesEnd := h.PageTableIndex[rel+1]

	var pageNo, pageOffset int64
	if itemIndex < uint64(h.PageSize) {
		pageNo = 0
		pageOffset = int64(itemIndex)
	} else {
		pageNo = int64(itemIndex) / h.PageSize
		pageOffset = int64(itemIndex) % h.PageSize
		if pagesStart+pageNo >= pagesEnd {
			pageOffset = h.PageSize + 1
		}
	}
	idx := pagesStart + pageNo
	if idx >= pagesEnd || pageOffset >= h.PageSize {
		return 0, 0, idxerr.NewItemIndexOverflow(file, revision, itemIndex)
	}
	if pageOffset >= h.PageTable[idx].EntryCount {
		return 0, 0, idxerr.NewItemIndexOverflow(file, revision, itemIndex)
	}
	return idx, pageOffset, nil
}

// readPage decodes the delta-encoded offsets of page tableIdx from disk.
func (r *Reader) readPage(tableIdx int64, entry PageTableEntry) ([]int64, error) {
	s, err := numstream.Open(r.path, r.blockSize)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	s.Seek(uint64(entry.Offset))

	offsets := make([]int64, entry.EntryCount)
	var running uint64
	for i := int64(0); i < entry.EntryCount; i++ {
		raw, err := s.Get()
		if err != nil {
			return nil, err
		}
		delta := varint.ZigzagDecode(raw)
		running = uint64(int64(running) + delta)
		offsets[i] = int64(running) - 1
	}
	return offsets, nil
}

// Lookup returns the physical byte offset of (revision, itemIndex), or
// -1 if the slot was never set ("unused").
func (r *Reader) Lookup(revision int64, itemIndex uint64) (int64, error) {
	h, err := r.Header()
	if err != nil {
		return 0, err
	}
	tableIdx, slot, err := h.pageInfo(revision, itemIndex, r.path)
	if err != nil {
		return 0, err
	}

	pk := r.pageKey(tableIdx)
	var offset int64
	found, err := r.cache.GetPartial(pk, func(data []byte) error {
		offset = PageCodec{}.EntryAt(data, slot)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if found {
		r.prefetch(h, tableIdx)
		return offset, nil
	}

	entry := h.PageTable[tableIdx]
	offsets, err := r.readPage(tableIdx, entry)
	if err != nil {
		return 0, err
	}
	r.cache.Set(pk, PageCodec{}.Marshal(offsets))
	r.prefetch(h, tableIdx)
	return offsets[slot], nil
}

// prefetch fills the cache with nearby pages within a 64 KiB byte window,
// walking forward then backward from tableIdx. It never re-reads the
// index's own page table — only pages already described by the in-memory
// header, which is already fully resident once Header() has returned.
func (r *Reader) prefetch(h *Header, tableIdx int64) {
	if tableIdx < 0 || tableIdx >= int64(len(h.PageTable)) {
		return
	}
	center := h.PageTable[tableIdx]
	min := center.Offset - PrefetchWindowBytes
	max := center.Offset + center.SizeBytes + PrefetchWindowBytes

	for i := tableIdx + 1; i < int64(len(h.PageTable)); i++ {
		e := h.PageTable[i]
		if e.Offset < min || e.Offset+e.SizeBytes > max {
			break
		}
		r.prefetchOne(i, e)
	}
	for i := tableIdx - 1; i >= 0; i-- {
		e := h.PageTable[i]
		if e.Offset < min || e.Offset+e.SizeBytes > max {
			break
		}
		r.prefetchOne(i, e)
	}
}

func (r *Reader) prefetchOne(tableIdx int64, entry PageTableEntry) {
	pk := r.pageKey(tableIdx)
	if r.cache.Has(pk) {
		return
	}
	offsets, err := r.readPage(tableIdx, entry)
	if err != nil {
		return
	}
	r.cache.Set(pk, PageCodec{}.Marshal(offsets))
}
