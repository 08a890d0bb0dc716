package ddl

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/migrate"
	"github.com/coredb-io/polystore/internal/partition"
	"github.com/coredb-io/polystore/internal/perr"
	"github.com/coredb-io/polystore/internal/txn"
)

// PartitionEntity applies a horizontal partitioning scheme to an entity
// that currently holds its rows unpartitioned on a single placement.
// Re-partitioning an already-partitioned entity, or one with more than
// one placement, goes through ModifyPartitions/MergePartitions first.
type PartitionEntity struct {
	Entity     catalog.ID
	Type       catalog.PartitionType
	Column     catalog.ID
	Qualifiers [][]string // one entry per new partition; nil/empty for HASH
	Count      int        // HASH partition count, ignored otherwise

	partitions *partition.Registry

	placementID  catalog.ID
	oldPartition catalog.ID
	oldAlloc     catalog.AllocationEntity
	newPartIDs   []catalog.ID
	newProp      catalog.PartitionProperty
}

// SetPartitionRegistry binds the Partition Manager's registry used to
// validate the requested scheme. Orchestrator.Execute calls this
// automatically for any Operation that implements it.
func (op *PartitionEntity) SetPartitionRegistry(r *partition.Registry) {
	op.partitions = r
}

func (op *PartitionEntity) Name() string { return "PartitionEntity" }

func (op *PartitionEntity) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	if e.IsSource {
		return perr.New(perr.UnsupportedOnSource, "entity %d is a SOURCE entity, structural DDL is rejected", op.Entity)
	}
	if e.Partition.IsPartitioned {
		return perr.New(perr.InvariantViolation, "entity %d is already partitioned", op.Entity)
	}
	placements := snap.PlacementsOf(op.Entity)
	if len(placements) != 1 {
		return perr.New(perr.InvariantViolation, "entity %d has %d placements, partition the entity before adding further placements", op.Entity, len(placements))
	}
	col, ok := snap.Column(op.Column)
	if !ok {
		return catalog.NotFoundf("column %d not found", op.Column)
	}
	if op.partitions == nil {
		return perr.New(perr.Internal, "PartitionEntity: no partition.Registry bound")
	}
	fn := op.partitions.Get(op.Type)
	if fn == nil {
		return perr.New(perr.PartitionError, "no partition function registered for type %v", op.Type)
	}
	if !fn.SupportsColumnOfType(col.PolyType) {
		return perr.New(perr.PartitionError, "column %d's type is not supported by partition type %v", op.Column, op.Type)
	}
	groupCount := op.Count
	if groupCount == 0 {
		groupCount = len(op.Qualifiers)
	}
	return fn.Validate(op.Qualifiers, groupCount, nil, *col)
}

func (op *PartitionEntity) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *PartitionEntity) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	placements := snap.PlacementsOf(op.Entity)
	op.placementID = placements[0].ID
	op.oldPartition = e.Partition.PartitionIDs[0]
	if a, ok := snap.AllocByPartition(op.placementID, op.oldPartition); ok {
		op.oldAlloc = *a
	} else {
		op.oldAlloc = catalog.AllocationEntity{Placement: op.placementID, Partition: op.oldPartition}
	}

	groupID := m.NextPartitionID()
	count := op.Count
	quals := op.Qualifiers
	if len(quals) == 0 {
		quals = make([][]string, count)
	}
	for _, q := range quals {
		partID := m.NextPartitionID()
		m.PutPartition(&catalog.AllocationPartition{ID: partID, Group: groupID, Qualifiers: q})
		op.newPartIDs = append(op.newPartIDs, partID)
		m.PutAllocEntity(&catalog.AllocationEntity{Placement: op.placementID, Partition: partID})
	}

	op.newProp = catalog.PartitionProperty{
		Type:              op.Type,
		PartitionColumn:   op.Column,
		PartitionGroupIDs: []catalog.ID{groupID},
		PartitionIDs:      op.newPartIDs,
		IsPartitioned:     true,
	}
	m.SetPartitionProperty(op.Entity, op.newProp)
	m.DropAllocEntity(op.placementID, op.oldPartition)
	m.DropPartition(op.oldPartition)
	return nil
}

func (op *PartitionEntity) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	placement, ok := snap.Placement(op.placementID)
	if !ok {
		return perr.New(perr.Internal, "placement %d vanished between publish and invoke", op.placementID)
	}
	store, err := reg.Get(placement.Adapter)
	if err != nil {
		return err
	}
	if err := t.Participant(ctx, store); err != nil {
		return err
	}
	for _, partID := range op.newPartIDs {
		ent := catalog.AllocationEntity{Placement: op.placementID, Partition: partID}
		if err := store.CreateTable(ctx, t.ID, ent, op.newPartIDs); err != nil {
			return err
		}
	}

	var targetParts []*catalog.AllocationPartition
	for _, id := range op.newPartIDs {
		if p, ok := snap.Partition(id); ok {
			targetParts = append(targetParts, p)
		}
	}
	if err := mig.CopyAllocationData(ctx, t.ID,
		[]catalog.AllocationEntity{op.oldAlloc}, []catalog.ID{placement.Adapter},
		op.placementID, placement.Adapter, op.newProp, targetParts); err != nil {
		return err
	}

	return store.DropTable(ctx, t.ID, op.oldAlloc, []catalog.ID{op.oldPartition})
}

// MergePartitions consolidates several of an entity's partitions back
// into one, on every placement that carries them. The merged partition
// keeps the first source partition's id.
type MergePartitions struct {
	Entity            catalog.ID
	SourcePartitions  []catalog.ID
	MergedQualifiers  []string

	placements []*catalog.Placement
	target     catalog.ID
	newProp    catalog.PartitionProperty
}

func (op *MergePartitions) Name() string { return "MergePartitions" }

func (op *MergePartitions) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	if !e.Partition.IsPartitioned {
		return perr.New(perr.InvariantViolation, "entity %d is not partitioned", op.Entity)
	}
	if len(op.SourcePartitions) < 2 {
		return perr.New(perr.PartitionError, "merge requires at least two source partitions")
	}
	have := map[catalog.ID]bool{}
	for _, id := range e.Partition.PartitionIDs {
		have[id] = true
	}
	for _, id := range op.SourcePartitions {
		if !have[id] {
			return catalog.NotFoundf("partition %d is not a partition of entity %d", id, op.Entity)
		}
	}
	return nil
}

func (op *MergePartitions) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *MergePartitions) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	op.placements = snap.PlacementsOf(op.Entity)
	op.target = op.SourcePartitions[0]

	merged := map[catalog.ID]bool{}
	for _, id := range op.SourcePartitions {
		merged[id] = true
	}
	var remaining []catalog.ID
	for _, id := range e.Partition.PartitionIDs {
		if !merged[id] || id == op.target {
			remaining = append(remaining, id)
		}
	}
	op.newProp = e.Partition
	op.newProp.PartitionIDs = remaining

	if targetPart, ok := snap.Partition(op.target); ok {
		np := *targetPart
		np.Qualifiers = op.MergedQualifiers
		m.PutPartition(&np)
	}
	for _, id := range op.SourcePartitions {
		if id == op.target {
			continue
		}
		m.DropPartition(id)
		for _, p := range op.placements {
			m.DropAllocEntity(p.ID, id)
		}
	}
	m.SetPartitionProperty(op.Entity, op.newProp)
	return nil
}

func (op *MergePartitions) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	for _, p := range op.placements {
		store, err := reg.Get(p.Adapter)
		if err != nil {
			return err
		}
		if err := t.Participant(ctx, store); err != nil {
			return err
		}
		sources := make([]catalog.ID, 0, len(op.SourcePartitions)-1)
		for _, id := range op.SourcePartitions {
			if id != op.target {
				sources = append(sources, id)
			}
		}
		if err := mig.MergePartitionsOnPlacement(ctx, t.ID, p.Adapter, p.ID, sources, op.target); err != nil {
			return err
		}
		for _, id := range sources {
			if err := store.DropTable(ctx, t.ID, catalog.AllocationEntity{Placement: p.ID, Partition: id}, []catalog.ID{id}); err != nil {
				return err
			}
		}
	}
	return nil
}

// ModifyPartitions adds a new, empty partition bucket to an
// already-partitioned entity (e.g. a future RANGE bucket, or a new LIST
// value group), materializing it on every placement the entity currently
// has.
type ModifyPartitions struct {
	Entity     catalog.ID
	Qualifiers []string

	placements []*catalog.Placement
	newPartID  catalog.ID
	newProp    catalog.PartitionProperty
}

func (op *ModifyPartitions) Name() string { return "ModifyPartitions" }

func (op *ModifyPartitions) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	if !e.Partition.IsPartitioned {
		return perr.New(perr.InvariantViolation, "entity %d is not partitioned", op.Entity)
	}
	if e.Partition.Type == catalog.PartitionHash {
		return perr.New(perr.PartitionError, "HASH-partitioned entities cannot add a single new bucket")
	}
	return nil
}

func (op *ModifyPartitions) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *ModifyPartitions) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	op.placements = snap.PlacementsOf(op.Entity)
	groupID := e.Partition.PartitionGroupIDs[0]
	op.newPartID = m.NextPartitionID()
	m.PutPartition(&catalog.AllocationPartition{ID: op.newPartID, Group: groupID, Qualifiers: op.Qualifiers})
	for _, p := range op.placements {
		m.PutAllocEntity(&catalog.AllocationEntity{Placement: p.ID, Partition: op.newPartID})
	}
	op.newProp = e.Partition
	op.newProp.PartitionIDs = append(append([]catalog.ID(nil), e.Partition.PartitionIDs...), op.newPartID)
	m.SetPartitionProperty(op.Entity, op.newProp)
	return nil
}

func (op *ModifyPartitions) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	for _, p := range op.placements {
		store, err := reg.Get(p.Adapter)
		if err != nil {
			return err
		}
		if err := t.Participant(ctx, store); err != nil {
			return err
		}
		ent := catalog.AllocationEntity{Placement: p.ID, Partition: op.newPartID}
		if err := store.CreateTable(ctx, t.ID, ent, op.newProp.PartitionIDs); err != nil {
			return err
		}
	}
	return nil
}
