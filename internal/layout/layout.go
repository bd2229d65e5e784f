// Package layout names the on-disk files this module exchanges with the
// surrounding storage layer (spec.md §6's "contract with the storage
// layer"): final L2P/P2L index files and their proto-index scratch files.
package layout

import "fmt"

// L2PIndexName is the final, read-only L2P index file name for a revision
// (or, for a packed shard, for its first revision).
func L2PIndexName(revision int64) string {
	return fmt.Sprintf("%d.l2p", revision)
}

// P2LIndexName is the final, read-only P2L index file name for a revision
// (or, for a packed shard, for its first revision).
func P2LIndexName(revision int64) string {
	return fmt.Sprintf("%d.p2l", revision)
}

// L2PProtoIndexName is the append-only scratch file a transaction writes
// L2P entries into before the revision is finalized.
func L2PProtoIndexName(txn string) string {
	return fmt.Sprintf("%s.l2p-proto", txn)
}

// P2LProtoIndexName is the append-only scratch file a transaction writes
// P2L entries into before the revision is finalized.
func P2LProtoIndexName(txn string) string {
	return fmt.Sprintf("%s.p2l-proto", txn)
}
