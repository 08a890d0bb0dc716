// Package partition implements the Partition Manager: pure,
// stateless partition functions plus the registry that looks one up by
// catalog.PartitionType. Functions are value types registered once; they
// hold no per-entity state, a name/type keyed map of stateless
// implementations.
package partition

import (
	"fmt"

	"github.com/coredb-io/polystore/internal/catalog"
)

// Function is the pure strategy every partition type implements.
type Function interface {
	SupportsColumnOfType(t catalog.PolyType) bool
	RequiresUnboundPartitionGroup() bool
	NumberOfPartitionsPerGroup(total int) int

	// Validate checks a candidate partition layout before it is
	// committed to the catalog: structural checks specific to this
	// partition type, beyond what catalog.CheckInvariants verifies.
	Validate(qualifiers [][]string, groupCount int, groupNames []string, column catalog.Column) error

	// Target is the key routing primitive: total, deterministic
	// map from a column value to the partition id that owns it.
	Target(prop catalog.PartitionProperty, partitions []*catalog.AllocationPartition, value interface{}) (catalog.ID, error)
}

// PlacementColumns is the result of GetRelevantPlacements for one
// partition: the minimal set of allocation columns, grouped by
// placement, that together cover the requested logical columns.
type PlacementColumns struct {
	Placement catalog.ID
	Columns   []catalog.ID
}

// Registry maps a PartitionType to its Function.
type Registry struct {
	fns map[catalog.PartitionType]Function
}

// NewRegistry returns a Registry with HASH, LIST, RANGE and TEMPERATURE
// pre-registered.
func NewRegistry() *Registry {
	r := &Registry{fns: map[catalog.PartitionType]Function{}}
	r.Register(catalog.PartitionHash, Hash{})
	r.Register(catalog.PartitionList, List{})
	r.Register(catalog.PartitionRange, Range{})
	r.Register(catalog.PartitionTemperature, nil) // bound lazily via RegisterTemperature
	return r
}

// Register adds or replaces the Function for t.
func (r *Registry) Register(t catalog.PartitionType, fn Function) {
	r.fns[t] = fn
}

// RegisterTemperature wires a Temperature wrapper around the registered
// HASH function and monitor. The inner function is always HASH; an
// entity's InnerType is not consulted.
func (r *Registry) RegisterTemperature(monitor *TemperatureMonitor) {
	inner := r.fns[catalog.PartitionHash]
	r.fns[catalog.PartitionTemperature] = Temperature{inner: inner, monitor: monitor}
}

// Get returns the Function for t, or nil if unregistered.
func (r *Registry) Get(t catalog.PartitionType) Function {
	return r.fns[t]
}

// GetRelevantPlacements chooses, per partition, a minimal sufficient set
// of column placements that together cover neededColumns, preferring the
// placement whose adapter carries the most of the needed columns
// (fewest cross-store joins).
func GetRelevantPlacements(
	snap *catalog.Snapshot,
	entityID catalog.ID,
	neededColumns []catalog.ID,
	excludeAdapterIDs map[catalog.ID]bool,
) map[catalog.ID][]PlacementColumns {

	placements := snap.PlacementsOf(entityID)
	type candidate struct {
		placement *catalog.Placement
		covered   []catalog.ID
	}

	var candidates []candidate
	for _, p := range placements {
		if excludeAdapterIDs[p.Adapter] {
			continue
		}
		have := snap.ColumnsOfPlacement(p.ID)
		haveSet := map[catalog.ID]bool{}
		for _, c := range have {
			haveSet[c] = true
		}
		var covered []catalog.ID
		for _, need := range neededColumns {
			if haveSet[need] {
				covered = append(covered, need)
			}
		}
		if len(covered) > 0 {
			candidates = append(candidates, candidate{p, covered})
		}
	}

	// Sort candidates by coverage desc, then persistence, then adapter
	// id asc, the same placement preference order the Router uses.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && less(snap, candidates[j], candidates[j-1]); j-- {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
		}
	}

	result := map[catalog.ID][]PlacementColumns{}
	remaining := map[catalog.ID]bool{}
	for _, c := range neededColumns {
		remaining[c] = true
	}

	for _, c := range candidates {
		if len(remaining) == 0 {
			break
		}
		var take []catalog.ID
		for _, col := range c.covered {
			if remaining[col] {
				take = append(take, col)
				delete(remaining, col)
			}
		}
		if len(take) == 0 {
			continue
		}
		for _, part := range snap.AllocsOfPlacement(c.placement.ID) {
			result[part.Partition] = append(result[part.Partition], PlacementColumns{
				Placement: c.placement.ID,
				Columns:   take,
			})
		}
	}
	return result
}

// less orders a before b: more covered columns first, then persistent
// adapters first, then lower adapter id.
func less(snap *catalog.Snapshot, a, b struct {
	placement *catalog.Placement
	covered   []catalog.ID
}) bool {
	if len(a.covered) != len(b.covered) {
		return len(a.covered) > len(b.covered)
	}
	ai, _ := snap.Adapter(a.placement.Adapter)
	bi, _ := snap.Adapter(b.placement.Adapter)
	ap := ai != nil && ai.IsPersistent
	bp := bi != nil && bi.IsPersistent
	if ap != bp {
		return ap
	}
	return a.placement.Adapter < b.placement.Adapter
}

// canonicalString turns any column value into the sentinel-aware string
// representation the Data Migrator and partition functions route on:
// NULL maps to a fixed sentinel distinct from any real string value.
func canonicalString(v interface{}) string {
	if v == nil {
		return nullSentinel
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

const nullSentinel = "\x00__POLYSTORE_NULL__\x00"
