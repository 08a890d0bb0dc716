package router

import (
	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

// RoutedRows groups rows destined for one allocation entity.
type RoutedRows struct {
	Placement catalog.ID
	Partition catalog.ID
	Rows      []adapter.Row
}

// RouteInsert computes target(value) per row via the partition
// function, then splits the rows per partition and per placement, so
// each adapter receives only rows belonging to its allocation (spec
// §4.5 "DML").
func (r *Router) RouteInsert(snap *catalog.Snapshot, entityID catalog.ID, rows []adapter.Row) ([]RoutedRows, error) {
	entity, ok := snap.Entity(entityID)
	if !ok {
		return nil, catalog.NotFoundf("router: unknown entity %d", entityID)
	}

	byPartition := map[catalog.ID][]adapter.Row{}
	prop := entity.Partition
	if !prop.IsPartitioned || len(prop.PartitionIDs) <= 1 {
		var only catalog.ID
		if len(prop.PartitionIDs) == 1 {
			only = prop.PartitionIDs[0]
		}
		byPartition[only] = rows
	} else {
		fn := r.partitions.Get(prop.Type)
		if fn == nil {
			return nil, perr.New(perr.PartitionError, "router: no partition function registered for type %v", prop.Type)
		}
		var allocParts []*catalog.AllocationPartition
		for _, id := range prop.PartitionIDs {
			if p, ok := snap.Partition(id); ok {
				allocParts = append(allocParts, p)
			}
		}
		for _, row := range rows {
			target, err := fn.Target(prop, allocParts, row[prop.PartitionColumn])
			if err != nil {
				return nil, err
			}
			byPartition[target] = append(byPartition[target], row)
		}
	}

	var out []RoutedRows
	for partID, partRows := range byPartition {
		for _, p := range snap.PlacementsOf(entityID) {
			if _, ok := snap.AllocByPartition(p.ID, partID); !ok {
				continue
			}
			out = append(out, RoutedRows{Placement: p.ID, Partition: partID, Rows: partRows})
		}
	}
	return out, nil
}
