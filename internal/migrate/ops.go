package migrate

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

// AugmentPlacement copies columns into an existing placement via
// UPDATE-by-PK rather than INSERT, used when "modify placement columns"
// adds allocation columns to a placement that already carries rows for
// this entity.
func (m *Migrator) AugmentPlacement(ctx context.Context, txn adapter.TransactionID, snap *catalog.Snapshot, sourceEntity catalog.ID, columns []catalog.ID, targetPlacement catalog.ID) error {
	entity, ok := snap.Entity(sourceEntity)
	if !ok {
		return catalog.NotFoundf("migrator: unknown entity %d", sourceEntity)
	}
	if entity.PrimaryKey == nil {
		return perr.New(perr.InvariantViolation, "migrator: entity %d has no primary key to augment by", sourceEntity)
	}
	columns = withPK(entity, columns)

	sources, err := m.sourcesFor(snap, sourceEntity)
	if err != nil {
		return err
	}
	target, err := m.registry.Get(m.adapterOf(snap, targetPlacement))
	if err != nil {
		return err
	}

	cur := &sourceRows{ctx: ctx, txn: txn, sources: sources}
	pkCols := entity.PrimaryKey.OrderedColumnIDs
	for {
		batch, ok, err := cur.next(m.batchSize)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := m.updateBatch(ctx, txn, snap, target, targetPlacement, entity, pkCols, columns, batch); err != nil {
			return err
		}
		m.recordBatch(len(batch))
	}
}

func (m *Migrator) updateBatch(ctx context.Context, txn adapter.TransactionID, snap *catalog.Snapshot, target adapter.Store, targetPlacement catalog.ID, entity *catalog.Entity, pkCols []catalog.ID, columns []catalog.ID, batch []adapter.Row) error {
	prop := entity.Partition
	grouped := map[catalog.ID][]adapter.Row{}
	if !prop.IsPartitioned || len(prop.PartitionIDs) <= 1 {
		var only catalog.ID
		if len(prop.PartitionIDs) == 1 {
			only = prop.PartitionIDs[0]
		}
		grouped[only] = batch
	} else {
		fn := m.partitions.Get(prop.Type)
		if fn == nil {
			return perr.New(perr.PartitionError, "migrator: no partition function registered for type %v", prop.Type)
		}
		var allocParts []*catalog.AllocationPartition
		for _, id := range prop.PartitionIDs {
			if p, ok := snap.Partition(id); ok {
				allocParts = append(allocParts, p)
			}
		}
		for _, row := range batch {
			target, err := fn.Target(prop, allocParts, row[prop.PartitionColumn])
			if err != nil {
				return err
			}
			grouped[target] = append(grouped[target], row)
		}
	}
	for partID, rows := range grouped {
		ent := catalog.AllocationEntity{Placement: targetPlacement, Partition: partID}
		projected := make([]adapter.Row, len(rows))
		for i, row := range rows {
			projected[i] = project(row, columns)
		}
		if err := target.UpdateByPK(ctx, txn, ent, pkCols, projected); err != nil {
			return perr.Wrap(perr.AdapterError, err, "migrator: update-by-pk target placement %d partition %d", targetPlacement, partID)
		}
	}
	return nil
}

// CopySelectiveData consolidates rows from several source partitions
// back into a single target partition, used by MERGE PARTITIONS.
func (m *Migrator) CopySelectiveData(ctx context.Context, txn adapter.TransactionID, snap *catalog.Snapshot, targetAdapter catalog.ID, sourceEntity catalog.ID, columns []catalog.ID, sourcePlacements []catalog.ID, targetPlacement catalog.ID, targetPartitionID catalog.ID) error {
	entity, ok := snap.Entity(sourceEntity)
	if !ok {
		return catalog.NotFoundf("migrator: unknown entity %d", sourceEntity)
	}
	columns = withPK(entity, columns)

	var sources []sourceAlloc
	for _, placementID := range sourcePlacements {
		store, err := m.registry.Get(m.adapterOf(snap, placementID))
		if err != nil {
			return err
		}
		for _, alloc := range snap.AllocsOfPlacement(placementID) {
			sources = append(sources, sourceAlloc{store: store, ent: catalog.AllocationEntity{Placement: alloc.Placement, Partition: alloc.Partition}})
		}
	}

	target, err := m.registry.Get(targetAdapter)
	if err != nil {
		return err
	}

	cur := &sourceRows{ctx: ctx, txn: txn, sources: sources}
	ent := catalog.AllocationEntity{Placement: targetPlacement, Partition: targetPartitionID}
	for {
		batch, ok, err := cur.next(m.batchSize)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		projected := make([]adapter.Row, len(batch))
		for i, row := range batch {
			projected[i] = project(row, columns)
		}
		if err := target.Insert(ctx, txn, ent, projected); err != nil {
			return perr.Wrap(perr.AdapterError, err, "migrator: copySelectiveData insert into partition %d", targetPartitionID)
		}
		m.recordBatch(len(batch))
	}
}

// CopyAllocationData redistributes rows partition-by-partition when an
// entity's partitioning scheme changes: each source row is routed to
// exactly one target partition id via the (possibly new) partition
// function. targetPlacement is the
// placement the redistributed rows land on, which may be the same
// placement being repartitioned in place or a new one.
func (m *Migrator) CopyAllocationData(ctx context.Context, txn adapter.TransactionID, sourceAllocs []catalog.AllocationEntity, sourceAdapters []catalog.ID, targetPlacement catalog.ID, targetAdapter catalog.ID, targetProperty catalog.PartitionProperty, targetAllocParts []*catalog.AllocationPartition) error {
	if len(sourceAllocs) != len(sourceAdapters) {
		return perr.New(perr.Internal, "migrator: sourceAllocs and sourceAdapters length mismatch")
	}
	fn := m.partitions.Get(targetProperty.Type)
	if fn == nil {
		return perr.New(perr.PartitionError, "migrator: no partition function registered for type %v", targetProperty.Type)
	}

	var sources []sourceAlloc
	for i, alloc := range sourceAllocs {
		store, err := m.registry.Get(sourceAdapters[i])
		if err != nil {
			return err
		}
		sources = append(sources, sourceAlloc{store: store, ent: alloc})
	}

	target, err := m.registry.Get(targetAdapter)
	if err != nil {
		return err
	}

	cur := &sourceRows{ctx: ctx, txn: txn, sources: sources}
	for {
		batch, ok, err := cur.next(m.batchSize)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		grouped := map[catalog.ID][]adapter.Row{}
		for _, row := range batch {
			targetPartID, err := fn.Target(targetProperty, targetAllocParts, row[targetProperty.PartitionColumn])
			if err != nil {
				return err
			}
			grouped[targetPartID] = append(grouped[targetPartID], row)
		}
		for partID, rows := range grouped {
			ent := catalog.AllocationEntity{Placement: targetPlacement, Partition: partID}
			if err := target.Insert(ctx, txn, ent, rows); err != nil {
				return perr.Wrap(perr.AdapterError, err, "migrator: copyAllocationData insert into partition %d", partID)
			}
		}
		m.recordBatch(len(batch))
	}
}

// MergePartitionsOnPlacement consolidates several source partitions of
// one placement into a single target partition already materialized on
// that placement, used by MERGE PARTITIONS when a placement carries all
// of an entity's partitions directly.
func (m *Migrator) MergePartitionsOnPlacement(ctx context.Context, txn adapter.TransactionID, placementAdapter catalog.ID, placementID catalog.ID, sourcePartitionIDs []catalog.ID, targetPartitionID catalog.ID) error {
	store, err := m.registry.Get(placementAdapter)
	if err != nil {
		return err
	}
	var sources []sourceAlloc
	for _, partID := range sourcePartitionIDs {
		sources = append(sources, sourceAlloc{store: store, ent: catalog.AllocationEntity{Placement: placementID, Partition: partID}})
	}
	cur := &sourceRows{ctx: ctx, txn: txn, sources: sources}
	ent := catalog.AllocationEntity{Placement: placementID, Partition: targetPartitionID}
	for {
		batch, ok, err := cur.next(m.batchSize)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := store.Insert(ctx, txn, ent, batch); err != nil {
			return perr.Wrap(perr.AdapterError, err, "migrator: mergePartitions insert into partition %d", targetPartitionID)
		}
		m.recordBatch(len(batch))
	}
}

func (m *Migrator) adapterOf(snap *catalog.Snapshot, placementID catalog.ID) catalog.ID {
	if p, ok := snap.Placement(placementID); ok {
		return p.Adapter
	}
	return 0
}
