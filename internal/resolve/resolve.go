// Package resolve implements the address resolver: given a revision, an
// optional open transaction, and an item index, it decides which of the
// five addressing paths in spec.md §4.H answers the query, without the
// caller needing to know whether the target revision is logically or
// physically addressed, packed, or still mid-transaction.
package resolve

import (
	"io"

	"github.com/svnidx/revindex/internal/idxcache"
	"github.com/svnidx/revindex/internal/idxerr"
	"github.com/svnidx/revindex/internal/l2p"
	"github.com/svnidx/revindex/internal/layout"
	"github.com/svnidx/revindex/internal/protoindex"
)

// AddressingMode classifies how a finalized revision's items are addressed.
type AddressingMode int

const (
	// PhysicalAddressing means item_index already is the byte offset.
	PhysicalAddressing AddressingMode = iota
	// LogicalAddressing means item_index must be resolved through L2P.
	LogicalAddressing
)

// Locator answers the storage-layer questions the resolver needs about a
// finalized revision: whether it lives in a shard, the shard's base byte
// offset, and which addressing mode it uses. The surrounding storage layer
// implements this against its own catalog/manifest.
type Locator interface {
	IsPacked(revision int64) bool
	PackOffset(revision int64) int64
	AddressingMode(revision int64) AddressingMode
	ShardSize() int64
}

// Resolver dispatches (revision, txn, item_index) to the address that
// answers it, per spec.md §4.H.
type Resolver struct {
	dir         string
	cache       idxcache.Store
	locator     Locator
	readerCache map[int64]*l2p.Reader
}

// New returns a Resolver rooted at dir, the directory containing index and
// proto-index files named per the layout package's conventions.
func New(dir string, cache idxcache.Store, locator Locator) *Resolver {
	return &Resolver{
		dir:         dir,
		cache:       cache,
		locator:     locator,
		readerCache: make(map[int64]*l2p.Reader),
	}
}

// TxnAddressingMode reports whether a transaction's uncommitted revision is
// destined for logical addressing (scan the L2P proto-index) or physical
// addressing (item_index is already the offset). The storage layer decides
// this per transaction; the resolver only dispatches on it.
type TxnAddressingMode int

const (
	// TxnPhysicalAddressing: during the transaction, item_index is the
	// absolute byte offset directly.
	TxnPhysicalAddressing TxnAddressingMode = iota
	// TxnLogicalAddressing: the transaction's L2P proto-index must be
	// scanned for the item.
	TxnLogicalAddressing
)

// Resolve returns the absolute byte offset of (revision, itemIndex).
// txnMode is only consulted when txnID != "", meaning the query targets an
// open, not-yet-finalized transaction rather than a committed revision.
func (r *Resolver) Resolve(revision int64, txnID string, txnMode TxnAddressingMode, itemIndex uint64) (int64, error) {
	if txnID != "" {
		if txnMode == TxnLogicalAddressing {
			return r.scanProto(txnID, itemIndex)
		}
		return int64(itemIndex), nil
	}

	if r.locator.AddressingMode(revision) == LogicalAddressing {
		return r.l2pLookup(revision, itemIndex)
	}

	if r.locator.IsPacked(revision) {
		return r.locator.PackOffset(revision) + int64(itemIndex), nil
	}

	return int64(itemIndex), nil
}

// scanProto sequentially scans a transaction's L2P proto-index for
// itemIndex, since proto files are unsorted and typically small at txn end.
func (r *Resolver) scanProto(txnID string, itemIndex uint64) (int64, error) {
	path := r.dir + "/" + layout.L2PProtoIndexName(txnID)
	pr, err := protoindex.OpenL2PReader(path)
	if err != nil {
		return 0, err
	}
	defer pr.Close()

	for {
		entry, err := pr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if entry.IsRevisionMarker() {
			continue
		}
		if entry.ItemIndex == itemIndex {
			return int64(entry.Offset) - 1, nil
		}
	}
	return 0, idxerr.NewCorrupt(path, "item not present in transaction's proto-index")
}

func (r *Resolver) l2pLookup(revision int64, itemIndex uint64) (int64, error) {
	base := idxerr.BaseRevision(revision, r.locator.ShardSize(), r.locator.IsPacked(revision))
	reader, ok := r.readerCache[base]
	if !ok {
		isPacked := r.locator.IsPacked(revision)
		path := r.dir + "/" + layout.L2PIndexName(base)
		reader = l2p.Open(path, base, isPacked, r.cache, 0)
		r.readerCache[base] = reader
	}
	return reader.Lookup(revision, itemIndex)
}
