package resolve

import (
	"path/filepath"
	"testing"

	"github.com/svnidx/revindex/internal/idxcache"
	"github.com/svnidx/revindex/internal/l2p"
	"github.com/svnidx/revindex/internal/layout"
	"github.com/svnidx/revindex/internal/protoindex"
)

type fakeLocator struct {
	packed      map[int64]bool
	packOffsets map[int64]int64
	modes       map[int64]AddressingMode
	shardSize   int64
}

func (f fakeLocator) IsPacked(r int64) bool                 { return f.packed[r] }
func (f fakeLocator) PackOffset(r int64) int64              { return f.packOffsets[r] }
func (f fakeLocator) AddressingMode(r int64) AddressingMode { return f.modes[r] }
func (f fakeLocator) ShardSize() int64                      { return f.shardSize }

func TestResolvePhysicalAddressingInPack(t *testing.T) {
	dir := t.TempDir()
	loc := fakeLocator{
		packed:      map[int64]bool{100: true},
		packOffsets: map[int64]int64{100: 50000},
		modes:       map[int64]AddressingMode{100: PhysicalAddressing},
		shardSize:   1000,
	}
	r := New(dir, idxcache.NewLocal(4, 16), loc)

	off, err := r.Resolve(100, "", TxnPhysicalAddressing, 42)
	if err != nil {
		t.Fatal(err)
	}
	if off != 50042 {
		t.Fatalf("Resolve physical-in-pack = %d, want 50042 (pack_offset + item_index)", off)
	}
}

func TestResolvePhysicalAddressingUnpacked(t *testing.T) {
	dir := t.TempDir()
	loc := fakeLocator{modes: map[int64]AddressingMode{7: PhysicalAddressing}}
	r := New(dir, idxcache.NewLocal(4, 16), loc)

	off, err := r.Resolve(7, "", TxnPhysicalAddressing, 99)
	if err != nil {
		t.Fatal(err)
	}
	if off != 99 {
		t.Fatalf("Resolve physical-unpacked = %d, want 99", off)
	}
}

func TestResolveTxnPhysicalAddressing(t *testing.T) {
	dir := t.TempDir()
	r := New(dir, idxcache.NewLocal(4, 16), fakeLocator{})

	off, err := r.Resolve(0, "txn1", TxnPhysicalAddressing, 777)
	if err != nil {
		t.Fatal(err)
	}
	if off != 777 {
		t.Fatalf("Resolve txn-physical = %d, want 777", off)
	}
}

func TestResolveTxnLogicalAddressingScansProto(t *testing.T) {
	dir := t.TempDir()
	protoPath := filepath.Join(dir, layout.L2PProtoIndexName("txn1"))
	w, err := protoindex.CreateL2PWriter(protoPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddEntry(2000, 5); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := New(dir, idxcache.NewLocal(4, 16), fakeLocator{})
	off, err := r.Resolve(0, "txn1", TxnLogicalAddressing, 5)
	if err != nil {
		t.Fatal(err)
	}
	if off != 2000 {
		t.Fatalf("Resolve txn-logical = %d, want 2000", off)
	}
}

func TestResolveLogicalAddressingUsesL2P(t *testing.T) {
	dir := t.TempDir()
	protoPath := filepath.Join(dir, "scratch.l2p-proto")
	w, err := protoindex.CreateL2PWriter(protoPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddEntry(555, 0); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l2p.Build(protoPath, filepath.Join(dir, layout.L2PIndexName(10)), 10, 4, 0); err != nil {
		t.Fatal(err)
	}

	loc := fakeLocator{modes: map[int64]AddressingMode{10: LogicalAddressing}}
	r := New(dir, idxcache.NewLocal(4, 16), loc)

	off, err := r.Resolve(10, "", TxnPhysicalAddressing, 0)
	if err != nil {
		t.Fatal(err)
	}
	if off != 555 {
		t.Fatalf("Resolve logical = %d, want 555", off)
	}
}
