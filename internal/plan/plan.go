// Package plan defines the logical and routed plan node types the
// Router consumes and produces. The full algebraic IR, its parsers and
// cost-based rewrites live elsewhere; this package only specifies the
// closed set of node shapes the Router needs to pattern-match on,
// modeled as a tagged-union sum type with a small visitor instead of an
// open class hierarchy.
package plan

import "github.com/coredb-io/polystore/internal/catalog"

// NodeKind tags the closed set of logical plan node shapes.
type NodeKind int

const (
	NodeScan NodeKind = iota
	NodeProject
	NodeFilter
	NodeJoin
	NodeAggregate
	NodeUnion
	NodeDocumentScan
	NodeDocumentModify
	NodeDocumentValues
	NodeLpgScan
	NodeLpgModify
	NodeLpgValues
)

// Node is one logical plan node. Only the fields relevant to Kind are
// populated. Children holds, for non-leaf kinds, the nested sub-plans
// (e.g. Filter/Project wrap a single child; Join/Union have two or
// more).
type Node struct {
	Kind     NodeKind
	Children []*Node

	// NodeScan / NodeDocumentScan / NodeLpgScan.
	Entity catalog.ID

	// Partition-column predicates, read by the Router from the Scan
	// node itself: an EqualityFilter on the partition column narrows the
	// candidate partitions; a RangeFilter is carried but does not narrow
	// them. Other predicate shapes are opaque to the Router and simply
	// pass through to the adapter.
	EqualityFilter *EqualityFilter
	RangeFilter    *RangeFilter

	// NodeProject: which logical columns survive.
	ProjectColumns []catalog.ID

	// NodeJoin: join key columns, one per side, aligned by index.
	JoinLeftColumns  []catalog.ID
	JoinRightColumns []catalog.ID
}

// EqualityFilter pins a column to a single value.
type EqualityFilter struct {
	Column catalog.ID
	Value  interface{}
}

// RangeFilter pins a column to a bounded interval.
type RangeFilter struct {
	Column   catalog.ID
	Low      interface{}
	High     interface{}
	HasLow   bool
	HasHigh  bool
}

// QueryInformation carries hints the caller (query compiler, out of
// scope) has already extracted: which columns are referenced. Filters on
// the partition column travel on the Scan node instead.
type QueryInformation struct {
	ReferencedColumns map[catalog.ID]bool
}

// Visit walks n and its children in pre-order, calling fn on each node.
func Visit(n *Node, fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		Visit(c, fn)
	}
}

// RoutedNode is a plan node after Router rewriting: every Scan has been
// replaced by a RoutedScan (or a Union/Join of them), addressing one
// allocation entity directly.
type RoutedNode struct {
	Kind     NodeKind
	Children []*RoutedNode

	// Populated when this node replaces a Scan.
	Alloc *RoutedScan

	// Carried through unchanged from the logical plan for non-scan
	// nodes (Project/Filter/Join/...).
	Source *Node
}

// RoutedScan addresses one allocation entity directly, with the logical
// column -> adapter field index mapping the execution layer needs.
type RoutedScan struct {
	Adapter    catalog.ID
	Placement  catalog.ID
	Partition  catalog.ID
	ColumnMap  map[catalog.ID]int // logical column id -> adapter field index
}
