// Package router implements the Partition-Aware Router: given a logical
// plan and a catalog snapshot, it selects allocations per scan and
// rewrites the plan to a routed plan targeting them.
package router

import (
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/partition"
	"github.com/coredb-io/polystore/internal/perr"
	"github.com/coredb-io/polystore/internal/plan"
)

// Policy selects how the Router behaves when an entity's needed columns
// are spread across more than one placement.
type Policy int

const (
	// FullReplication requires one placement to carry all needed
	// columns; otherwise it fans out and column-wise joins on the PK.
	FullReplication Policy = iota
	// Icarus never splits columns across adapters for one partition;
	// if no single placement covers the needed columns, it cancels
	// routing (ErrCancelled) rather than falling back.
	Icarus
)

// ErrCancelled is returned (wrapped in *perr.Error with code Cancelled)
// when the Icarus policy can't cover a scan's needed columns from a
// single placement. The caller must choose another policy or abort; the
// Router itself never retries.
var ErrCancelled = perr.New(perr.Cancelled, "router: no placement policy could route this scan")

// Router rewrites logical plans to routed plans against a partition
// function registry.
type Router struct {
	partitions *partition.Registry
	cache      *Cache
}

// New returns a Router using reg for partition-function lookups and an
// optional routed-plan Cache (nil disables caching).
func New(reg *partition.Registry, cache *Cache) *Router {
	return &Router{partitions: reg, cache: cache}
}

// Route rewrites logical into a routed plan against snap, under policy.
// A cancelled scan anywhere in the tree aborts the whole Route call with
// ErrCancelled.
func (r *Router) Route(snap *catalog.Snapshot, logical *plan.Node, qi plan.QueryInformation, policy Policy) (*plan.RoutedNode, error) {
	return r.route(snap, logical, qi, policy)
}

func (r *Router) route(snap *catalog.Snapshot, n *plan.Node, qi plan.QueryInformation, policy Policy) (*plan.RoutedNode, error) {
	if n == nil {
		return nil, nil
	}

	switch n.Kind {
	case plan.NodeScan, plan.NodeDocumentScan, plan.NodeLpgScan:
		return r.routeScan(snap, n, qi, policy)
	default:
		children := make([]*plan.RoutedNode, 0, len(n.Children))
		for _, c := range n.Children {
			rc, err := r.route(snap, c, qi, policy)
			if err != nil {
				return nil, err
			}
			children = append(children, rc)
		}
		return &plan.RoutedNode{Kind: n.Kind, Children: children, Source: n}, nil
	}
}

// routeScan implements the per-Scan algorithm. If
// the scan spans multiple candidate partitions or the needed columns
// span multiple placements under FullReplication, the result is a
// NodeUnion / NodeJoin wrapper over per-allocation RoutedScan leaves.
func (r *Router) routeScan(snap *catalog.Snapshot, n *plan.Node, qi plan.QueryInformation, policy Policy) (*plan.RoutedNode, error) {
	if key, ok := r.cacheKey(n, policy); ok {
		if cached, hit := r.cache.Get(key); hit {
			return cached, nil
		}
		routed, err := r.routeScanUncached(snap, n, qi, policy)
		if err == nil {
			r.cache.Put(key, routed)
		}
		return routed, err
	}
	return r.routeScanUncached(snap, n, qi, policy)
}

func (r *Router) routeScanUncached(snap *catalog.Snapshot, n *plan.Node, qi plan.QueryInformation, policy Policy) (*plan.RoutedNode, error) {
	entity, ok := snap.Entity(n.Entity)
	if !ok {
		return nil, catalog.NotFoundf("router: unknown entity %d", n.Entity)
	}

	needed := neededColumns(entity, n, qi)

	candidatePartitions, err := r.candidatePartitions(snap, entity, n)
	if err != nil {
		return nil, err
	}

	perPartition := partition.GetRelevantPlacements(snap, entity.ID, needed, nil)

	var leaves []*plan.RoutedNode
	for _, partID := range candidatePartitions {
		placements, ok := perPartition[partID]
		if !ok || len(placements) == 0 {
			continue
		}
		leaf, err := buildLeaf(snap, entity, partID, placements, policy)
		if err != nil {
			// Under Icarus this is ErrCancelled for a single partition
			// whose columns split across placements: the whole scan
			// cancels rather than returning a partial union.
			return nil, err
		}
		leaves = append(leaves, leaf...)
	}

	if len(leaves) == 0 {
		return nil, ErrCancelled
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return &plan.RoutedNode{Kind: plan.NodeUnion, Children: leaves, Source: n}, nil
}

// buildLeaf turns one partition's chosen placement(s) into routed
// leaves: a single RoutedScan when one placement covers every needed
// column, or (under FullReplication) a join of per-placement scans on
// the PK when columns are split across adapters. Icarus never splits;
// if placements has more than one entry for this partition, the whole
// scan is cancelled, not just this partition's leaf.
func buildLeaf(snap *catalog.Snapshot, entity *catalog.Entity, partID catalog.ID, placements []partition.PlacementColumns, policy Policy) ([]*plan.RoutedNode, error) {
	if len(placements) == 1 {
		return []*plan.RoutedNode{scanLeaf(snap, placements[0].Placement, partID)}, nil
	}

	if policy == Icarus {
		// A genuine vertical split across adapters for one partition;
		// Icarus cancels the entire scan rather than falling back or
		// silently dropping this partition from the result.
		return nil, ErrCancelled
	}

	// FullReplication: join the per-placement scans on the PK.
	joined := make([]*plan.RoutedNode, 0, len(placements))
	for _, pc := range placements {
		joined = append(joined, scanLeaf(snap, pc.Placement, partID))
	}
	var pkCols []catalog.ID
	if entity.PrimaryKey != nil {
		pkCols = entity.PrimaryKey.OrderedColumnIDs
	}
	result := joined[0]
	for _, next := range joined[1:] {
		result = &plan.RoutedNode{
			Kind:     plan.NodeJoin,
			Children: []*plan.RoutedNode{result, next},
			Source:   &plan.Node{Kind: plan.NodeJoin, JoinLeftColumns: pkCols, JoinRightColumns: pkCols},
		}
	}
	return []*plan.RoutedNode{result}, nil
}

func scanLeaf(snap *catalog.Snapshot, placementID, partID catalog.ID) *plan.RoutedNode {
	p, _ := snap.Placement(placementID)
	cols := snap.ColumnsOfPlacement(placementID)
	colMap := make(map[catalog.ID]int, len(cols))
	for i, c := range cols {
		colMap[c] = i
	}
	var adapterID catalog.ID
	if p != nil {
		adapterID = p.Adapter
	}
	return &plan.RoutedNode{
		Kind: plan.NodeScan,
		Alloc: &plan.RoutedScan{
			Adapter:   adapterID,
			Placement: placementID,
			Partition: partID,
			ColumnMap: colMap,
		},
	}
}

// neededColumns computes referencedLogicalColumnIds ∪ primaryKeyColumnIds.
func neededColumns(entity *catalog.Entity, n *plan.Node, qi plan.QueryInformation) []catalog.ID {
	set := map[catalog.ID]bool{}
	for col := range qi.ReferencedColumns {
		set[col] = true
	}
	for _, col := range n.ProjectColumns {
		set[col] = true
	}
	if entity.PrimaryKey != nil {
		for _, col := range entity.PrimaryKey.OrderedColumnIDs {
			set[col] = true
		}
	}
	out := make([]catalog.ID, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// candidatePartitions narrows to the single partition that an equality
// predicate on the partition column pins, else every partition. A
// RangeFilter does not narrow the candidates.
func (r *Router) candidatePartitions(snap *catalog.Snapshot, entity *catalog.Entity, n *plan.Node) ([]catalog.ID, error) {
	prop := entity.Partition
	if !prop.IsPartitioned || len(prop.PartitionIDs) <= 1 {
		// Unpartitioned entities still have exactly one (default)
		// partition in the catalog; no predicate can narrow further.
		return append([]catalog.ID(nil), prop.PartitionIDs...), nil
	}

	var allocParts []*catalog.AllocationPartition
	for _, id := range prop.PartitionIDs {
		if p, ok := snap.Partition(id); ok {
			allocParts = append(allocParts, p)
		}
	}

	fn := r.partitions.Get(prop.Type)
	if fn == nil {
		return nil, perr.New(perr.PartitionError, "router: no partition function registered for type %v", prop.Type)
	}

	if n.EqualityFilter != nil && n.EqualityFilter.Column == prop.PartitionColumn {
		id, err := fn.Target(prop, allocParts, n.EqualityFilter.Value)
		if err != nil {
			return nil, err
		}
		return []catalog.ID{id}, nil
	}

	// No equality predicate on the partition column (a RangeFilter is
	// not used here): every partition is a candidate.
	return append([]catalog.ID(nil), prop.PartitionIDs...), nil
}

func (r *Router) cacheKey(n *plan.Node, policy Policy) (CacheKey, bool) {
	if r.cache == nil {
		return CacheKey{}, false
	}
	return NewCacheKey(n, policy), true
}
