package protoindex

import (
	"io"
	"path/filepath"
	"testing"
)

func TestL2PWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txn.l2p-proto")
	w, err := CreateL2PWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddEntry(1000, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.AddEntry(1100, 1); err != nil {
		t.Fatal(err)
	}
	if err := w.AddRevisionMarker(); err != nil {
		t.Fatal(err)
	}
	if err := w.AddEntry(2000, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenL2PReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	want := []L2PEntry{
		{Offset: 1001, ItemIndex: 0},
		{Offset: 1101, ItemIndex: 1},
		{Offset: 0, ItemIndex: 0},
		{Offset: 2001, ItemIndex: 0},
	}
	for i, w := range want {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("entry %d = %+v, want %+v", i, got, w)
		}
	}
	if i := want[2]; !i.IsRevisionMarker() {
		t.Fatal("expected sentinel to report as revision marker")
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestP2LWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "txn.p2l-proto")
	w, err := CreateP2LWriter(path)
	if err != nil {
		t.Fatal(err)
	}
	entries := []P2LEntry{
		{Offset: 0, Size: 100, Type: 1, Revision: InvalidRevision, ItemNumber: 1, Fnv1: 0xdeadbeef},
		{Offset: 100, Size: 300, Type: 2, Revision: 7, ItemNumber: 2, Fnv1: 0x1234},
	}
	for _, e := range entries {
		if err := w.AddEntry(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := OpenP2LReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	for i, want := range entries {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if got != want {
			t.Fatalf("entry %d = %+v, want %+v", i, got, want)
		}
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}
