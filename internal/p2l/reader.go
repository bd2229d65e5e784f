package p2l

import (
	"sort"

	"github.com/svnidx/revindex/internal/idxcache"
	"github.com/svnidx/revindex/internal/idxerr"
	"github.com/svnidx/revindex/internal/numstream"
	"github.com/svnidx/revindex/internal/varint"
)

// DefaultPrefetchLeakingBucket is the starting value of the leaking-bucket
// prefetch counter, mirroring config.Tunables.PrefetchLeakingBucket.
const DefaultPrefetchLeakingBucket = 4

// Reader serves offset lookups against a single P2L index file (one
// unpacked revision, or one packed shard).
type Reader struct {
	path         string
	baseRevision int64
	isPacked     bool
	blockSize    int
	cache        idxcache.Store
	bucket       int

	header *Header
}

// Open returns a Reader bound to path. Nothing is read until the first
// lookup. bucket <= 0 uses DefaultPrefetchLeakingBucket.
func Open(path string, baseRevision int64, isPacked bool, cache idxcache.Store, blockSize int, bucket int) *Reader {
	if blockSize <= 0 {
		blockSize = numstream.DefaultBlockSize
	}
	if bucket <= 0 {
		bucket = DefaultPrefetchLeakingBucket
	}
	return &Reader{path: path, baseRevision: baseRevision, isPacked: isPacked, blockSize: blockSize, cache: cache, bucket: bucket}
}

func (r *Reader) headerKey() idxcache.HeaderKey {
	return idxcache.HeaderKey{BaseRevision: r.baseRevision, IsPacked: r.isPacked, Kind: "p2l"}
}

func (r *Reader) pageKey(pageIndex int64) idxcache.PageKey {
	return idxcache.PageKey{FirstRevision: r.baseRevision, IsPacked: r.isPacked, PageIndex: int(pageIndex), Kind: "p2l"}
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
	firstRev, err := s.Get()
	if err != nil {
		return nil, err
	}
	h.FirstRevision = int64(firstRev)
	fileSize, err := s.Get()
	if err != nil {
		return nil, err
	}
	h.FileSize = int64(fileSize)
	pageSize, err := s.Get()
	if err != nil {
		return nil, err
	}
	h.PageSize = int64(pageSize)
	pageCount, err := s.Get()
	if err != nil {
		return nil, err
	}
	h.PageCount = int64(pageCount)

	pageByteSizes := make([]int64, h.PageCount)
	for i := range pageByteSizes {
		v, err := s.Get()
		if err != nil {
			return nil, err
		}
		pageByteSizes[i] = int64(v)
	}

	endOfTable := int64(s.Offset())
	h.Offsets = make([]int64, h.PageCount+1)
	h.Offsets[0] = endOfTable
	for i, sz := range pageByteSizes {
		h.Offsets[i+1] = h.Offsets[i] + sz
	}
	return h, nil
}

// MaxOffset returns the end of the indexed file range: a partial-getter in
// spirit, since the header is already fully resident once cached.
func (r *Reader) MaxOffset() (int64, error) {
	h, err := r.Header()
	if err != nil {
		return 0, err
	}
	return h.FileSize, nil
}

// decodePage decodes the entries physically stored in the index-file byte
// range [h.Offsets[pageIdx], h.Offsets[pageIdx+1]).
func (r *Reader) decodePage(pageIdx int64) ([]Entry, error) {
	h, err := r.Header()
	if err != nil {
		return nil, err
	}
	start := h.Offsets[pageIdx]
	end := h.Offsets[pageIdx+1]
	if start == end {
		return nil, nil
	}

	s, err := numstream.Open(r.path, r.blockSize)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	s.Seek(uint64(start))

	entries, lastEnd, err := r.decodeEntriesUntil(s, end)
	if err != nil {
		return nil, err
	}

	pageStart := pageIdx * h.PageSize
	pageEnd := pageStart + h.PageSize
	if len(entries) > 0 && lastEnd < pageEnd && pageIdx+1 < h.PageCount {
		nextStart := h.Offsets[pageIdx+1]
		s2, err := numstream.Open(r.path, r.blockSize)
		if err != nil {
			return nil, err
		}
		s2.Seek(uint64(nextStart))
		one, _, err := r.decodeEntriesUntil(s2, nextStart+1)
		s2.Close()
		if err != nil {
			return nil, err
		}
		if len(one) > 0 {
			entries = append(entries, one[0])
		}
	}
	return entries, nil
}

// decodeEntriesUntil decodes consecutive P2L page-payload entries starting
// at the stream's current position until its logical offset reaches end
// (an index-file byte position for a full page, or start+1 to force
// exactly one entry when completing cluster coverage).
func (r *Reader) decodeEntriesUntil(s *numstream.Stream, end uint64) ([]Entry, int64, error) {
	var entries []Entry
	var lastEnd int64
	var lastCompound int64
	var lastRevision int32
	first := true
	for s.Offset() < end {
		var offset int64
		if first {
			raw, err := s.Get()
			if err != nil {
				return nil, 0, err
			}
			offset = int64(raw)
			first = false
		} else {
			offset = lastEnd
		}
		sizeRaw, err := s.Get()
		if err != nil {
			return nil, 0, err
		}
		compoundDeltaRaw, err := s.Get()
		if err != nil {
			return nil, 0, err
		}
		revDeltaRaw, err := s.Get()
		if err != nil {
			return nil, 0, err
		}
		fnvRaw, err := s.Get()
		if err != nil {
			return nil, 0, err
		}

		compound := lastCompound + varint.ZigzagDecode(compoundDeltaRaw)
		revision := lastRevision + int32(varint.ZigzagDecode(revDeltaRaw))
		size := int64(sizeRaw)

		entries = append(entries, Entry{
			Offset:     offset,
			Size:       size,
			Type:       ItemType(compound % 8),
			Revision:   revision,
			ItemNumber: uint64(compound / 8),
			Fnv1:       uint32(fnvRaw),
		})

		lastEnd = offset + size
		lastCompound = compound
		lastRevision = revision
	}
	return entries, lastEnd, nil
}

func (r *Reader) loadPage(pageIdx int64) ([]Entry, error) {
	pk := r.pageKey(pageIdx)
	if data, ok := r.cache.Get(pk); ok {
		return PageCodec{}.Unmarshal(data)
	}
	entries, err := r.decodePage(pageIdx)
	if err != nil {
		return nil, err
	}
	r.cache.Set(pk, PageCodec{}.Marshal(entries))
	return entries, nil
}

// PageLookup returns every item descriptor starting within the logical
// window covering offset, cache-first with bounded prefetch.
func (r *Reader) PageLookup(offset int64) ([]Entry, error) {
	h, err := r.Header()
	if err != nil {
		return nil, err
	}
	if !h.Covers(offset) {
		return nil, idxerr.NewOffsetTooLarge(r.path, r.baseRevision, offset)
	}
	pageIdx := h.pageNoFor(offset)
	entries, err := r.loadPage(pageIdx)
	if err != nil {
		return nil, err
	}
	r.prefetch(pageIdx)
	return entries, nil
}

// EntryLookup returns the item descriptor whose start offset matches
// exactly, or found=false if no item starts precisely at offset.
func (r *Reader) EntryLookup(offset int64) (entry Entry, found bool, err error) {
	h, err := r.Header()
	if err != nil {
		return Entry{}, false, err
	}
	if !h.Covers(offset) {
		return Entry{}, false, idxerr.NewOffsetTooLarge(r.path, r.baseRevision, offset)
	}
	pageIdx := h.pageNoFor(offset)
	entries, err := r.loadPage(pageIdx)
	if err != nil {
		return Entry{}, false, err
	}
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Offset >= offset })
	if i < len(entries) && entries[i].Offset == offset {
		r.prefetch(pageIdx)
		return entries[i], true, nil
	}
	return Entry{}, false, nil
}

// prefetch walks outward from pageIdx with a leaking-bucket counter: each
// already-cached page drains the bucket by one (prefetch stops once hits
// have drained it to zero), and each freshly decoded page refills it by
// one, so prefetch keeps doing useful work as long as it's still finding
// pages that aren't already cached.
func (r *Reader) prefetch(pageIdx int64) {
	h, err := r.Header()
	if err != nil {
		return
	}
	bucket := r.bucket
	for i := pageIdx + 1; i < h.PageCount && bucket > 0; i++ {
		if r.cache.Has(r.pageKey(i)) {
			bucket--
			continue
		}
		entries, err := r.decodePage(i)
		if err != nil {
			return
		}
		r.cache.Set(r.pageKey(i), PageCodec{}.Marshal(entries))
		bucket++
	}
	bucket = r.bucket
	for i := pageIdx - 1; i >= 0 && bucket > 0; i-- {
		if r.cache.Has(r.pageKey(i)) {
			bucket--
			continue
		}
		entries, err := r.decodePage(i)
		if err != nil {
			return
		}
		r.cache.Set(r.pageKey(i), PageCodec{}.Marshal(entries))
		bucket++
	}
}
