package p2l

import "encoding/binary"

// HeaderCodec serializes a *Header for the cache, flat and fixed-width for
// the same reason as l2p.HeaderCodec.
type HeaderCodec struct{}

func (HeaderCodec) Marshal(h *Header) []byte {
	buf := make([]byte, 4*8+8*len(h.Offsets))
	off := 0
	put := func(v int64) {
		binary.LittleEndian.PutUint64(buf[off:], uint64(v))
		off += 8
	}
	put(h.FirstRevision)
	put(h.FileSize)
	put(h.PageSize)
	put(h.PageCount)
	for _, v := range h.Offsets {
		put(v)
	}
	return buf
}

func (HeaderCodec) Unmarshal(data []byte) (*Header, error) {
	h := &Header{}
	off := 0
	get := func() int64 {
		v := int64(binary.LittleEndian.Uint64(data[off:]))
		off += 8
		return v
	}
	h.FirstRevision = get()
	h.FileSize = get()
	h.PageSize = get()
	h.PageCount = get()
	h.Offsets = make([]int64, h.PageCount+1)
	for i := range h.Offsets {
		h.Offsets[i] = get()
	}
	return h, nil
}

// entryWireSize is the fixed width of one Entry in the cache's page
// encoding: offset, size, then type and revision packed into one 8-byte
// word, item_number, and fnv1 (4 bytes) followed by 4 bytes of padding.
const entryWireSize = 40

// PageCodec serializes a decoded page's entries as a flat fixed-width
// array so EntryAt can binary-search without decoding the whole page.
type PageCodec struct{}

func (PageCodec) Marshal(entries []Entry) []byte {
	buf := make([]byte, entryWireSize*len(entries))
	for i, e := range entries {
		b := buf[i*entryWireSize:]
		binary.LittleEndian.PutUint64(b[0:8], uint64(e.Offset))
		binary.LittleEndian.PutUint64(b[8:16], uint64(e.Size))
		binary.LittleEndian.PutUint32(b[16:20], uint32(e.Type))
		binary.LittleEndian.PutUint32(b[20:24], uint32(e.Revision))
		binary.LittleEndian.PutUint64(b[24:32], e.ItemNumber)
		binary.LittleEndian.PutUint32(b[32:36], e.Fnv1)
	}
	return buf
}

func (PageCodec) Unmarshal(data []byte) ([]Entry, error) {
	n := len(data) / entryWireSize
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = entryAt(data, i)
	}
	return entries, nil
}

// EntryAt decodes the i-th entry directly from marshaled bytes.
func (PageCodec) EntryAt(data []byte, i int) Entry {
	return entryAt(data, i)
}

// Count returns how many entries are packed into data.
func (PageCodec) Count(data []byte) int {
	return len(data) / entryWireSize
}

func entryAt(data []byte, i int) Entry {
	b := data[i*entryWireSize:]
	return Entry{
		Offset:     int64(binary.LittleEndian.Uint64(b[0:8])),
		Size:       int64(binary.LittleEndian.Uint64(b[8:16])),
		Type:       ItemType(binary.LittleEndian.Uint32(b[16:20])),
		Revision:   int32(binary.LittleEndian.Uint32(b[20:24])),
		ItemNumber: binary.LittleEndian.Uint64(b[24:32]),
		Fnv1:       binary.LittleEndian.Uint32(b[32:36]),
	}
}
