package l2p

import "encoding/binary"

// HeaderCodec serializes a *Header for the cache. The wire format here is
// private to the cache (it never touches disk) so it's a flat, fixed-width
// encoding rather than the A-encoded on-disk layout — cheap to build and
// cheap to re-parse in full, since a header is small.
type HeaderCodec struct{}

func (HeaderCodec) Marshal(h *Header) []byte {
	n := 3*8 + 8*len(h.PageTableIndex) + 24*len(h.PageTable)
	buf := make([]byte, n)
	off := 0
	putInt64 := func(v int64) {
		binary.LittleEndian.PutUint64(buf[off:], uint64(v))
		off += 8
	}
	putInt64(h.FirstRevision)
	putInt64(h.PageSize)
	putInt64(h.RevisionCount)
	for _, v := range h.PageTableIndex {
		putInt64(v)
	}
	for _, e := range h.PageTable {
		putInt64(e.Offset)
		putInt64(e.SizeBytes)
		putInt64(e.EntryCount)
	}
	return buf
}

func (HeaderCodec) Unmarshal(data []byte) (*Header, error) {
	h := &Header{}
	off := 0
	getInt64 := func() int64 {
		v := int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8
		return v
	}
	h.FirstRevision = getInt64()
	h.PageSize = getInt64()
	h.RevisionCount = getInt64()
	h.PageTableIndex = make([]int64, h.RevisionCount+1)
	for i := range h.PageTableIndex {
		h.PageTableIndex[i] = getInt64()
	}
	pageCount := h.PageTableIndex[h.RevisionCount]
	h.PageTable = make([]PageTableEntry, pageCount)
	for i := range h.PageTable {
		h.PageTable[i] = PageTableEntry{Offset: getInt64(), SizeBytes: getInt64(), EntryCount: getInt64()}
	}
	return h, nil
}

// PageCodec serializes a decoded page (its slot offsets, -1 for unused) as
// a flat array of fixed-width int64s so a cache hit can read a single slot
// by index without decoding the whole page.
type PageCodec struct{}

func (PageCodec) Marshal(offsets []int64) []byte {
	buf := make([]byte, 8*len(offsets))
	for i, v := range offsets {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(v))
	}
	return buf
}

func (PageCodec) Unmarshal(data []byte) ([]int64, error) {
	offsets := make([]int64, len(data)/8)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return offsets, nil
}

// EntryAt reads the offset at slot i directly out of a marshaled page,
// without decoding the rest — the partial-getter fast path.
func (PageCodec) EntryAt(data []byte, i int64) int64 {
	return int64(binary.LittleEndian.Uint64(data[i*8:]))
}
