package p2l

import (
	"path/filepath"
	"testing"

	"github.com/svnidx/revindex/internal/idxcache"
	"github.com/svnidx/revindex/internal/protoindex"
)

func buildP2LProto(t *testing.T, path string, entries []protoindex.P2LEntry) {
	t.Helper()
	w, err := protoindex.CreateP2LWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if err := w.AddEntry(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestBuildLookupSmallFile(t *testing.T) {
	dir := t.TempDir()
	protoPath := filepath.Join(dir, "txn.p2l-proto")
	outPath := filepath.Join(dir, "7.p2l")

	buildP2LProto(t, protoPath, []protoindex.P2LEntry{
		{Offset: 0, Size: 100, Type: uint32(ItemNode), Revision: 7, ItemNumber: 1},
		{Offset: 100, Size: 300, Type: uint32(ItemProps), Revision: 7, ItemNumber: 2},
		{Offset: 400, Size: 500, Type: uint32(ItemText), Revision: 7, ItemNumber: 3},
		{Offset: 900, Size: 100, Type: uint32(ItemChangeList), Revision: 7, ItemNumber: 4},
	})

	if err := Build(protoPath, outPath, 7, 7, 400, 0); err != nil {
		t.Fatal(err)
	}

	cache := idxcache.NewLocal(4, 16)
	r := Open(outPath, 7, false, cache, 0, 0)

	h, err := r.Header()
	if err != nil {
		t.Fatal(err)
	}
	if h.PageCount != 3 {
		t.Fatalf("PageCount = %d, want 3", h.PageCount)
	}
	if h.FileSize != 1000 {
		t.Fatalf("FileSize = %d, want 1000", h.FileSize)
	}

	entry, found, err := r.EntryLookup(400)
	if err != nil {
		t.Fatal(err)
	}
	if !found || entry.Size != 500 {
		t.Fatalf("EntryLookup(400) = %+v, found=%v, want size=500", entry, found)
	}

	_, found, err = r.EntryLookup(500)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatalf("EntryLookup(500) found an entry, want none (500 isn't a start offset)")
	}

	page, err := r.PageLookup(500)
	if err != nil {
		t.Fatal(err)
	}
	foundSpanning := false
	for _, e := range page {
		if e.Offset == 400 && e.Size == 500 {
			foundSpanning = true
		}
	}
	if !foundSpanning {
		t.Fatalf("PageLookup(500) = %+v, want it to include the 400-900 item", page)
	}

	for _, start := range []int64{0, 100, 900} {
		e, found, err := r.EntryLookup(start)
		if err != nil {
			t.Fatalf("EntryLookup(%d): %v", start, err)
		}
		if !found || e.Offset != start {
			t.Fatalf("EntryLookup(%d) = %+v, found=%v, want an entry starting there", start, e, found)
		}
	}
}

func TestBuildPatchesInvalidRevision(t *testing.T) {
	dir := t.TempDir()
	protoPath := filepath.Join(dir, "txn.p2l-proto")
	outPath := filepath.Join(dir, "9.p2l")

	buildP2LProto(t, protoPath, []protoindex.P2LEntry{
		{Offset: 0, Size: 50, Type: uint32(ItemNode), Revision: protoindex.InvalidRevision, ItemNumber: 1},
	})

	if err := Build(protoPath, outPath, 9, 9, 50, 0); err != nil {
		t.Fatal(err)
	}

	r := Open(outPath, 9, false, idxcache.NewLocal(4, 16), 0, 0)
	entry, found, err := r.EntryLookup(0)
	if err != nil {
		t.Fatal(err)
	}
	if !found || entry.Revision != 9 {
		t.Fatalf("EntryLookup(0) = %+v, found=%v, want Revision patched to 9", entry, found)
	}
}
