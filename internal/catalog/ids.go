// Package catalog implements the Distribution Catalog and Allocation Model:
// the logical and allocation entities, the invariants that bind them, and
// the immutable, copy-on-write Snapshot readers observe.
//
// Every entity is identified by a numeric id minted from the engine-owned
// sequence of its id space; cross-references between entities are ids,
// never Go pointers. This keeps the model free of reference cycles and
// makes a Snapshot cheap to build and share: it is a struct of plain maps
// keyed by these ids, swapped atomically on publish.
package catalog

import "sync/atomic"

// ID is the numeric identifier type shared by every catalog entity kind.
// Namespaces, entities, columns, placements, partitions and allocations
// each draw from their own id space but use the same underlying type.
type ID int64

// NamespaceKind distinguishes the three logical entity families a
// namespace can hold.
type NamespaceKind int

const (
	Relational NamespaceKind = iota
	Document
	Graph
)

func (k NamespaceKind) String() string {
	switch k {
	case Relational:
		return "RELATIONAL"
	case Document:
		return "DOCUMENT"
	default:
		return "GRAPH"
	}
}

// sequence is an atomic, engine-owned id generator. The Catalog owns one
// sequence per id space (namespaces, entities, columns, ...); it
// replaces the source material's thread-local NEXTVAL counters with an
// explicitly-owned generator so id allocation is deterministic and
// serializable alongside the catalog itself.
type sequence struct {
	next atomic.Int64
}

func newSequence() *sequence {
	s := &sequence{}
	s.next.Store(1)
	return s
}

// Next returns the next id in the space. It is safe for concurrent use.
func (s *sequence) Next() ID {
	return ID(s.next.Add(1) - 1)
}

// advance bumps the sequence past id if id hasn't already been passed,
// so restoring a catalog from its persisted form never re-mints an id
// it already contains.
func (s *sequence) advance(id ID) {
	for {
		cur := s.next.Load()
		if int64(id) < cur || s.next.CompareAndSwap(cur, int64(id)+1) {
			return
		}
	}
}
