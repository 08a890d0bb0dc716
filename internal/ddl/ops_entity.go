package ddl

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/migrate"
	"github.com/coredb-io/polystore/internal/perr"
	"github.com/coredb-io/polystore/internal/txn"
)

// ColumnSpec describes a column to mint as part of CreateEntity or
// AddColumn; ids are assigned by the operation's Apply phase.
type ColumnSpec struct {
	Name           string
	PolyType       catalog.PolyType
	CollectionType *catalog.PolyType
	Precision      int
	Scale          int
	Dimension      int
	Cardinality    int
	Nullable       bool
	Collation      string
	DefaultValue   *string
}

// CreateEntity creates a new Table, Document collection, or materialized
// view with a single initial placement on one adapter, and one implicit,
// unbound partition. Graph entities are
// created over already-existing backing Table entities instead (set
// NodesTable etc. directly; Columns/PrimaryKey/InitialAdapter are
// ignored for Kind == GraphEntity).
type CreateEntity struct {
	Namespace         catalog.ID
	Name              string
	Kind              catalog.EntityKind
	Columns           []ColumnSpec
	PrimaryKeyColumns []string // names, matched against Columns

	IsSource        bool
	ExportedColumns []string

	// Graph realization.
	NodesTable, EdgesTable, NodePropsTable, EdgePropsTable catalog.ID

	// Materialized view.
	DefinedOverScans []catalog.ID
	Refresh          catalog.RefreshPolicy

	InitialAdapter      catalog.ID
	InitialPlacementType catalog.PlacementType

	id catalog.ID
}

func (op *CreateEntity) Name() string { return "CreateEntity" }

func (op *CreateEntity) Validate(snap *catalog.Snapshot) error {
	if _, ok := snap.Namespace(op.Namespace); !ok {
		return catalog.NotFoundf("namespace %d not found", op.Namespace)
	}
	if _, ok := snap.EntityByName(op.Namespace, op.Name); ok {
		return perr.New(perr.AlreadyExists, "entity %q already exists in namespace %d", op.Name, op.Namespace)
	}
	if op.Kind != catalog.GraphEntity {
		if _, ok := snap.Adapter(op.InitialAdapter); !ok {
			return catalog.NotFoundf("adapter %d not found", op.InitialAdapter)
		}
	}
	return nil
}

func (op *CreateEntity) Locks() []lockRequest { return nil }

func (op *CreateEntity) Apply(m *catalog.Mutator) error {
	entityID := m.NextEntityID()
	op.id = entityID

	e := &catalog.Entity{
		ID:              entityID,
		Namespace:       op.Namespace,
		Name:            op.Name,
		Kind:            op.Kind,
		IsSource:        op.IsSource,
		ExportedColumns: op.ExportedColumns,
		NodesTable:      op.NodesTable,
		EdgesTable:      op.EdgesTable,
		NodePropsTable:  op.NodePropsTable,
		EdgePropsTable:  op.EdgePropsTable,
		DefinedOverScans: op.DefinedOverScans,
		Refresh:         op.Refresh,
	}

	if op.Kind == catalog.GraphEntity {
		m.PutEntity(e)
		return nil
	}

	colIDs := make([]catalog.ID, len(op.Columns))
	colByName := map[string]catalog.ID{}
	for i, cs := range op.Columns {
		colID := m.NextColumnID()
		colIDs[i] = colID
		colByName[cs.Name] = colID
		m.PutColumn(&catalog.Column{
			ID: colID, Entity: entityID, Name: cs.Name, Position: i,
			PolyType: cs.PolyType, CollectionType: cs.CollectionType,
			Precision: cs.Precision, Scale: cs.Scale, Dimension: cs.Dimension,
			Cardinality: cs.Cardinality, Nullable: cs.Nullable,
			Collation: cs.Collation, DefaultValue: cs.DefaultValue,
		})
	}
	e.Columns = colIDs

	if len(op.PrimaryKeyColumns) > 0 {
		pk := &catalog.PrimaryKey{Entity: entityID}
		for _, name := range op.PrimaryKeyColumns {
			pk.OrderedColumnIDs = append(pk.OrderedColumnIDs, colByName[name])
		}
		e.PrimaryKey = pk
	}

	partID := m.NextPartitionID()
	m.PutPartition(&catalog.AllocationPartition{ID: partID, IsUnbound: true})
	e.Partition = catalog.PartitionProperty{
		Type:          catalog.PartitionNone,
		IsPartitioned: false,
		PartitionIDs:  []catalog.ID{partID},
	}

	placementID := m.NextPlacementID()
	m.PutPlacement(&catalog.Placement{ID: placementID, Entity: entityID, Adapter: op.InitialAdapter, Type: op.InitialPlacementType})
	for i, colID := range colIDs {
		m.PutAllocColumn(&catalog.AllocationColumn{Placement: placementID, Column: colID, PhysicalName: op.Columns[i].Name, PhysicalPosition: i})
	}
	m.PutAllocEntity(&catalog.AllocationEntity{Placement: placementID, Partition: partID})

	m.PutEntity(e)
	return nil
}

func (op *CreateEntity) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	if op.Kind == catalog.GraphEntity {
		return nil
	}
	e, ok := snap.Entity(op.id)
	if !ok {
		return perr.New(perr.Internal, "entity %d vanished between publish and invoke", op.id)
	}
	placements := snap.PlacementsOf(op.id)
	if len(placements) != 1 {
		return perr.New(perr.Internal, "entity %d: expected exactly one initial placement, found %d", op.id, len(placements))
	}
	placement := placements[0]
	store, err := reg.Get(placement.Adapter)
	if err != nil {
		return err
	}
	if err := t.Participant(ctx, store); err != nil {
		return err
	}
	allocs := snap.AllocsOfPlacement(placement.ID)
	if len(allocs) != 1 {
		return perr.New(perr.Internal, "entity %d: expected exactly one initial allocation, found %d", op.id, len(allocs))
	}
	ent := *allocs[0]

	switch op.Kind {
	case catalog.CollectionEntity:
		return store.CreateCollection(ctx, t.ID, ent)
	default:
		return store.CreateTable(ctx, t.ID, ent, e.Partition.PartitionIDs)
	}
}

// ID is the entity id minted by Apply, valid after Execute returns.
func (op *CreateEntity) ID() catalog.ID { return op.id }

// DropEntity removes an entity and everything it owns: columns, indexes,
// placements and their allocations. Rejected if another entity's foreign
// key still targets it.
type DropEntity struct {
	Entity catalog.ID

	dropped []droppedPlacement
}

type droppedPlacement struct {
	id           catalog.ID
	adapter      catalog.ID
	partitionIDs []catalog.ID
}

func (op *DropEntity) Name() string { return "DropEntity" }

func (op *DropEntity) Validate(snap *catalog.Snapshot) error {
	if _, ok := snap.Entity(op.Entity); !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	if refs := snap.ForeignKeysReferencing(op.Entity); len(refs) > 0 {
		return perr.New(perr.InvariantViolation, "entity %d is referenced by %d foreign key(s)", op.Entity, len(refs))
	}
	return nil
}

func (op *DropEntity) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

// Apply records every placement's adapter and partition set from the
// pre-drop snapshot, since Invoke runs after the catalog has already
// forgotten them, then removes the entity.
func (op *DropEntity) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	for _, p := range snap.PlacementsOf(op.Entity) {
		op.dropped = append(op.dropped, droppedPlacement{id: p.ID, adapter: p.Adapter, partitionIDs: e.Partition.PartitionIDs})
	}
	m.DropEntity(op.Entity)
	return nil
}

func (op *DropEntity) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	for _, p := range op.dropped {
		store, err := reg.Get(p.adapter)
		if err != nil {
			continue // adapter already undeployed; nothing left to tell it
		}
		if err := t.Participant(ctx, store); err != nil {
			return err
		}
		if err := store.DropTable(ctx, t.ID, catalog.AllocationEntity{Placement: p.id}, p.partitionIDs); err != nil {
			return err
		}
	}
	return nil
}

// AddColumn adds a logical column to an existing entity and materializes
// it on the given placements. A placement not
// listed is fine as long as at least one other placement carries the
// column.
type AddColumn struct {
	Entity           catalog.ID
	Spec             ColumnSpec
	TargetPlacements []catalog.ID // empty means every current placement

	colID   catalog.ID
	targets []catalog.ID
}

func (op *AddColumn) Name() string { return "AddColumn" }

func (op *AddColumn) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	if e.IsSource {
		return perr.New(perr.UnsupportedOnSource, "entity %d is a SOURCE entity, structural DDL is rejected", op.Entity)
	}
	for _, colID := range e.Columns {
		if c, ok := snap.Column(colID); ok && c.Name == op.Spec.Name {
			return perr.New(perr.AlreadyExists, "entity %d already has column %q", op.Entity, op.Spec.Name)
		}
	}
	return nil
}

func (op *AddColumn) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *AddColumn) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	op.colID = m.NextColumnID()
	m.PutColumn(&catalog.Column{
		ID: op.colID, Entity: op.Entity, Name: op.Spec.Name, Position: len(e.Columns),
		PolyType: op.Spec.PolyType, CollectionType: op.Spec.CollectionType,
		Precision: op.Spec.Precision, Scale: op.Spec.Scale, Dimension: op.Spec.Dimension,
		Cardinality: op.Spec.Cardinality, Nullable: op.Spec.Nullable,
		Collation: op.Spec.Collation, DefaultValue: op.Spec.DefaultValue,
	})
	ne := *e
	ne.Columns = append(append([]catalog.ID(nil), e.Columns...), op.colID)
	m.PutEntity(&ne)

	targets := op.TargetPlacements
	if len(targets) == 0 {
		for _, p := range snap.PlacementsOf(op.Entity) {
			targets = append(targets, p.ID)
		}
	}
	op.targets = targets
	for _, placementID := range targets {
		pos := len(snap.ColumnsOfPlacement(placementID))
		m.PutAllocColumn(&catalog.AllocationColumn{Placement: placementID, Column: op.colID, PhysicalName: op.Spec.Name, PhysicalPosition: pos})
	}
	return nil
}

func (op *AddColumn) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	for _, placementID := range op.targets {
		p, ok := snap.Placement(placementID)
		if !ok {
			continue
		}
		store, err := reg.Get(p.Adapter)
		if err != nil {
			return err
		}
		if err := t.Participant(ctx, store); err != nil {
			return err
		}
		col, _ := snap.AllocColumn(placementID, op.colID)
		for _, alloc := range snap.AllocsOfPlacement(placementID) {
			ent := catalog.AllocationEntity{Placement: placementID, Partition: alloc.Partition}
			if err := store.AddColumn(ctx, t.ID, ent, *col); err != nil {
				return err
			}
		}
	}
	return nil
}

// DropColumn removes a logical column and every placement's allocation
// of it. Rejected if the column belongs to the primary key or any index.
type DropColumn struct {
	Entity catalog.ID
	Column catalog.ID

	prior []*catalog.AllocationColumn
}

func (op *DropColumn) Name() string { return "DropColumn" }

func (op *DropColumn) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	if e.IsSource {
		return perr.New(perr.UnsupportedOnSource, "entity %d is a SOURCE entity, structural DDL is rejected", op.Entity)
	}
	if e.PrimaryKey != nil {
		for _, pk := range e.PrimaryKey.OrderedColumnIDs {
			if pk == op.Column {
				return perr.New(perr.InvariantViolation, "column %d is part of entity %d's primary key", op.Column, op.Entity)
			}
		}
	}
	for _, idx := range e.Indexes {
		for _, c := range idx.Columns {
			if c == op.Column {
				return perr.New(perr.InvariantViolation, "column %d is part of index %d", op.Column, idx.ID)
			}
		}
	}
	return nil
}

func (op *DropColumn) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *DropColumn) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	for _, p := range snap.PlacementsOf(op.Entity) {
		if c, ok := snap.AllocColumn(p.ID, op.Column); ok {
			op.prior = append(op.prior, c)
		}
	}
	m.DropColumn(op.Entity, op.Column)
	return nil
}

func (op *DropColumn) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	for _, c := range op.prior {
		p, ok := snap.Placement(c.Placement)
		if !ok {
			continue
		}
		store, err := reg.Get(p.Adapter)
		if err != nil {
			return err
		}
		if err := t.Participant(ctx, store); err != nil {
			return err
		}
		if err := store.DropColumn(ctx, t.ID, *c); err != nil {
			return err
		}
	}
	return nil
}

// Truncate empties every placement of an entity without changing its
// schema.
type Truncate struct {
	Entity catalog.ID
}

func (op *Truncate) Name() string { return "Truncate" }

func (op *Truncate) Validate(snap *catalog.Snapshot) error {
	if _, ok := snap.Entity(op.Entity); !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	return nil
}

func (op *Truncate) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *Truncate) Apply(*catalog.Mutator) error { return nil }

func (op *Truncate) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	for _, p := range snap.PlacementsOf(op.Entity) {
		store, err := reg.Get(p.Adapter)
		if err != nil {
			return err
		}
		if err := t.Participant(ctx, store); err != nil {
			return err
		}
		for _, alloc := range snap.AllocsOfPlacement(p.ID) {
			if err := store.Truncate(ctx, t.ID, catalog.AllocationEntity{Placement: p.ID, Partition: alloc.Partition}); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddIndex creates a new index over an entity's columns, rejected unless
// every adapter hosting the entity declares the requested method in its
// capabilities.
type AddIndex struct {
	Entity  catalog.ID
	IndexName string
	Columns []catalog.ID
	Method  catalog.IndexMethod
	Unique  bool

	idxID catalog.ID
}

func (op *AddIndex) Name() string { return "AddIndex" }

func (op *AddIndex) Validate(snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	for _, idx := range e.Indexes {
		if idx.Name == op.IndexName {
			return perr.New(perr.AlreadyExists, "entity %d already has index %q", op.Entity, op.IndexName)
		}
	}
	for _, p := range snap.PlacementsOf(op.Entity) {
		info, ok := snap.Adapter(p.Adapter)
		if !ok {
			continue
		}
		supported := false
		for _, method := range info.IndexMethods {
			if method == op.Method {
				supported = true
				break
			}
		}
		if !supported {
			return perr.New(perr.PartitionError, "adapter %d does not support index method %q", p.Adapter, op.Method)
		}
	}
	return nil
}

func (op *AddIndex) Locks() []lockRequest { return []lockRequest{exclusive(int64(op.Entity))} }

func (op *AddIndex) Apply(m *catalog.Mutator) error {
	snap := m.Snapshot()
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return catalog.NotFoundf("entity %d not found", op.Entity)
	}
	op.idxID = m.NextIndexID()
	idx := &catalog.Index{ID: op.idxID, Name: op.IndexName, Entity: op.Entity, Columns: op.Columns, Method: op.Method, Unique: op.Unique}
	m.PutIndex(idx)
	ne := *e
	ne.Indexes = append(append([]*catalog.Index(nil), e.Indexes...), idx)
	m.PutEntity(&ne)
	return nil
}

func (op *AddIndex) Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error {
	e, ok := snap.Entity(op.Entity)
	if !ok {
		return perr.New(perr.Internal, "entity %d vanished between publish and invoke", op.Entity)
	}
	idx, ok := snap.Index(op.idxID)
	if !ok {
		return perr.New(perr.Internal, "index %d vanished between publish and invoke", op.idxID)
	}
	for _, p := range snap.PlacementsOf(op.Entity) {
		store, err := reg.Get(p.Adapter)
		if err != nil {
			return err
		}
		if err := t.Participant(ctx, store); err != nil {
			return err
		}
		if err := store.AddIndex(ctx, t.ID, *idx, e.Partition.PartitionIDs); err != nil {
			return err
		}
	}
	return nil
}
