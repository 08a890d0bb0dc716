package ddl

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/migrate"
	"github.com/coredb-io/polystore/internal/perr"
	"github.com/coredb-io/polystore/internal/txn"
)

// AddPlacement adds a new home for an entity on another adapter (spec
// §4.7 "Add placement"). Columns defaults to every logical column of the
// entity; the primary key's columns are always included so the new
// placement stays fully keyed. If CopyExistingData is set, the Data
// Migrator backs it with a copy of the entity's current rows once the
// adapter's tables exist.
type AddPlacement struct {
	Entity           catalog.ID
	Adapter          catalog.ID
	Type             catalog.PlacementType
	Columns          []catalog.ID // empty means every column
	CopyExistingData bool

	placementID catalog.ID
	columns     []catalog.ID
	partitionIDs []catalog.ID
}

func (op *AddPlacement) Name() string { return "AddPlacement" }

func (op *AddPlacement) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	if e.IsSource {
		return perr.New(perr.UnsupportedOnSource, "entity %d is a SOURCE entity, only one placement is permitted", op.Entity)
	}
	if _, ok := snap.Adapter(op.Adapter); !ok {
		return catalog.NotFoundf("adapter %d not found", op.Adapter)
	}
	for _, p := range snap.PlacementsOf(op.Entity) {
		if p.Adapter == op.Adapter {
			return perr.New(perr.AlreadyExists, "entity %d already has a placement on adapter %d", op.Entity, op.Adapter)
		}
	}
	if e.PrimaryKey != nil && op.Type != catalog.PlacementAutomatic && op.Type != catalog.PlacementManual {
		return perr.New(perr.InvariantViolation, "a placement carrying the primary key must be AUTOMATIC or MANUAL")
	}
	return nil
}

func (op *AddPlacement) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *AddPlacement) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	columns := op.Columns
	if len(columns) == 0 {
		columns = e.Columns
	}
	if e.PrimaryKey != nil {
		have := map[catalog.ID]bool{}
		for _, c := range columns {
			have[c] = true
		}
		for _, pk := range e.PrimaryKey.OrderedColumnIDs {
			if !have[pk] {
				columns = append(columns, pk)
				have[pk] = true
			}
		}
	}
	op.columns = columns
	op.partitionIDs = e.Partition.PartitionIDs

	op.placementID = m.NextPlacementID()
	m.PutPlacement(&catalog.Placement{ID: op.placementID, Entity: op.Entity, Adapter: op.Adapter, Type: op.Type})
	for i, colID := range columns {
		col, _ := snap.Column(colID)
		name := ""
		if col != nil {
			name = col.Name
		}
		m.PutAllocColumn(&catalog.AllocationColumn{Placement: op.placementID, Column: colID, PhysicalName: name, PhysicalPosition: i})
	}
	for _, partID := range op.partitionIDs {
		m.PutAllocEntity(&catalog.AllocationEntity{Placement: op.placementID, Partition: partID})
	}
	return nil
}

func (op *AddPlacement) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	store, err := reg.Get(op.Adapter)
	if err != nil {
		return err
	}
	if err := t.Participant(ctx, store); err != nil {
		return err
	}
	for _, partID := range op.partitionIDs {
		ent := catalog.AllocationEntity{Placement: op.placementID, Partition: partID}
		if err := store.CreateTable(ctx, t.ID, ent, op.partitionIDs); err != nil {
			return err
		}
	}
	if op.CopyExistingData {
		if err := mig.CopyData(ctx, t.ID, snap, op.Adapter, op.Entity, op.columns, op.placementID); err != nil {
			return err
		}
	}
	return nil
}

// PlacementID is the placement id minted by Apply, valid after Execute
// returns.
func (op *AddPlacement) PlacementID() catalog.ID { return op.placementID }

// DropPlacement removes a placement. Rejected if any column or partition
// would end up with zero allocations: the last placement carrying an
// entity's data can never be dropped.
type DropPlacement struct {
	Entity    catalog.ID
	Placement catalog.ID

	adapter catalog.ID
	allocs  []*catalog.AllocationEntity
	partitionIDs []catalog.ID
}

func (op *DropPlacement) Name() string { return "DropPlacement" }

func (op *DropPlacement) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	p, ok := snap.Placement(op.Placement)
	if !ok || p.Entity != op.Entity {
		return catalog.NotFoundf("placement %d of entity %d not found", op.Placement, op.Entity)
	}
	placements := snap.PlacementsOf(op.Entity)
	if len(placements) <= 1 {
		return perr.New(perr.InvariantViolation, "entity %d has only one placement, dropping it would leave its data unreachable", op.Entity)
	}
	dropped := map[catalog.ID]bool{}
	for _, c := range snap.ColumnsOfPlacement(op.Placement) {
		dropped[c] = true
	}
	for colID := range dropped {
		coveredElsewhere := false
		for _, other := range placements {
			if other.ID == op.Placement {
				continue
			}
			if _, ok := snap.AllocColumn(other.ID, colID); ok {
				coveredElsewhere = true
				break
			}
		}
		if !coveredElsewhere {
			return perr.New(perr.InvariantViolation, "column %d has no allocation on any other placement of entity %d", colID, op.Entity)
		}
	}
	for _, partID := range e.Partition.PartitionIDs {
		if _, ok := snap.AllocByPartition(op.Placement, partID); !ok {
			continue
		}
		coveredElsewhere := false
		for _, other := range placements {
			if other.ID == op.Placement {
				continue
			}
			if _, ok := snap.AllocByPartition(other.ID, partID); ok {
				coveredElsewhere = true
				break
			}
		}
		if !coveredElsewhere {
			return perr.New(perr.InvariantViolation, "partition %d has no allocation on any other placement of entity %d", partID, op.Entity)
		}
	}
	return nil
}

func (op *DropPlacement) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *DropPlacement) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	p, ok := snap.Placement(op.Placement)
	if !ok {
		return catalog.NotFoundf("placement %d not found", op.Placement)
	}
	op.adapter = p.Adapter
	op.partitionIDs = e.Partition.PartitionIDs
	op.allocs = snap.AllocsOfPlacement(op.Placement)
	m.DropPlacement(op.Placement)
	return nil
}

func (op *DropPlacement) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	store, err := reg.Get(op.adapter)
	if err != nil {
		return nil // adapter already undeployed; nothing left to tell it
	}
	if err := t.Participant(ctx, store); err != nil {
		return err
	}
	for _, a := range op.allocs {
		if err := store.DropTable(ctx, t.ID, *a, op.partitionIDs); err != nil {
			return err
		}
	}
	return nil
}

// ModifyPlacementColumns adds or removes the columns a MANUAL/STATIC
// placement materializes, backfilling additions via the Data Migrator's
// UPDATE-by-PK path.
type ModifyPlacementColumns struct {
	Entity        catalog.ID
	Placement     catalog.ID
	AddColumns    []catalog.ID
	RemoveColumns []catalog.ID

	removed []*catalog.AllocationColumn
}

func (op *ModifyPlacementColumns) Name() string { return "ModifyPlacementColumns" }

func (op *ModifyPlacementColumns) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	p, ok := snap.Placement(op.Placement)
	if !ok || p.Entity != op.Entity {
		return catalog.NotFoundf("placement %d of entity %d not found", op.Placement, op.Entity)
	}
	if p.Type == catalog.PlacementAutomatic {
		return perr.New(perr.InvariantViolation, "placement %d is AUTOMATIC, its column set is orchestrator-managed", op.Placement)
	}
	removing := map[catalog.ID]bool{}
	for _, c := range op.RemoveColumns {
		removing[c] = true
	}
	if e.PrimaryKey != nil {
		for _, pk := range e.PrimaryKey.OrderedColumnIDs {
			if removing[pk] {
				return perr.New(perr.InvariantViolation, "column %d is part of the primary key and cannot be removed from a placement", pk)
			}
		}
	}
	placements := snap.PlacementsOf(op.Entity)
	for colID := range removing {
		coveredElsewhere := false
		for _, other := range placements {
			if other.ID == op.Placement {
				continue
			}
			if _, ok := snap.AllocColumn(other.ID, colID); ok {
				coveredElsewhere = true
				break
			}
		}
		if !coveredElsewhere {
			return perr.New(perr.InvariantViolation, "column %d has no allocation on any other placement of entity %d", colID, op.Entity)
		}
	}
	return nil
}

func (op *ModifyPlacementColumns) Locks() []lockRequest {
	return []lockRequest{exclusive(int64(op.Entity))}
}

func (op *ModifyPlacementColumns) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	for _, colID := range op.RemoveColumns {
		if c, ok := snap.AllocColumn(op.Placement, colID); ok {
			op.removed = append(op.removed, c)
		}
		m.DropAllocColumn(op.Placement, colID)
	}
	pos := len(snap.ColumnsOfPlacement(op.Placement))
	for _, colID := range op.AddColumns {
		col, _ := snap.Column(colID)
		name := ""
		if col != nil {
			name = col.Name
		}
		m.PutAllocColumn(&catalog.AllocationColumn{Placement: op.Placement, Column: colID, PhysicalName: name, PhysicalPosition: pos})
		pos++
	}
	return nil
}

func (op *ModifyPlacementColumns) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	p, ok := snap.Placement(op.Placement)
	if !ok {
		return perr.New(perr.Internal, "placement %d vanished between publish and invoke", op.Placement)
	}
	store, err := reg.Get(p.Adapter)
	if err != nil {
		return err
	}
	if err := t.Participant(ctx, store); err != nil {
		return err
	}
	for _, c := range op.removed {
		if err := store.DropColumn(ctx, t.ID, *c); err != nil {
			return err
		}
	}
	if len(op.AddColumns) > 0 {
		for _, colID := range op.AddColumns {
			col, _ := snap.AllocColumn(op.Placement, colID)
			if col == nil {
				continue
			}
			for _, alloc := range snap.AllocsOfPlacement(op.Placement) {
				ent := catalog.AllocationEntity{Placement: op.Placement, Partition: alloc.Partition}
				if err := store.AddColumn(ctx, t.ID, ent, *col); err != nil {
					return err
				}
			}
		}
		if err := mig.AugmentPlacement(ctx, t.ID, snap, op.Entity, op.AddColumns, op.Placement); err != nil {
			return err
		}
	}
	return nil
}
