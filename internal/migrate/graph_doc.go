package migrate

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
)

// CopyGraphData copies a graph's four backing tables (nodes, edges,
// node properties, edge properties) to a new placement, one CopyData
// call per backing table, preserving the node/edge id mapping the
// tables share.
func (m *Migrator) CopyGraphData(ctx context.Context, txn adapter.TransactionID, snap *catalog.Snapshot, targetAdapter catalog.ID, graph *catalog.Entity, targetPlacements map[catalog.ID]catalog.ID) error {
	backing := []catalog.ID{graph.NodesTable, graph.EdgesTable, graph.NodePropsTable, graph.EdgePropsTable}
	for _, tableID := range backing {
		if tableID == 0 {
			continue
		}
		table, ok := snap.Entity(tableID)
		if !ok {
			return catalog.NotFoundf("migrator: graph %d backing table %d not found", graph.ID, tableID)
		}
		targetPlacement := targetPlacements[tableID]
		if err := m.CopyData(ctx, txn, snap, targetAdapter, tableID, table.Columns, targetPlacement); err != nil {
			return err
		}
	}
	return nil
}

// CopyDocData copies a document collection to a new placement. Document
// payloads carry no fixed column set, so the projection is the
// collection's declared columns (typically just an id and a raw
// document blob column) rather than a fixed relational schema (spec
// §4.6 copyDocData).
func (m *Migrator) CopyDocData(ctx context.Context, txn adapter.TransactionID, snap *catalog.Snapshot, targetAdapter catalog.ID, collection *catalog.Entity, targetPlacement catalog.ID) error {
	return m.CopyData(ctx, txn, snap, targetAdapter, collection.ID, collection.Columns, targetPlacement)
}
