package catalog

import (
	"sync/atomic"

	"github.com/coredb-io/polystore/internal/logging"
	"github.com/coredb-io/polystore/internal/perr"
)

// Catalog is the engine's single source of truth for the logical and
// allocation model. It is copy-on-write:
// writers build a new Snapshot from a Mutator and atomically swap the
// published pointer; readers only ever see a fully-built Snapshot.
type Catalog struct {
	current atomic.Pointer[Snapshot]

	nsSeq    *sequence
	entSeq   *sequence
	colSeq   *sequence
	idxSeq   *sequence
	plSeq    *sequence
	partSeq  *sequence
	adapterSeq *sequence

	log logging.Logger
}

// New returns an empty Catalog.
func New(log logging.Logger) *Catalog {
	if log == nil {
		log = logging.NoOp{}
	}
	c := &Catalog{
		nsSeq:      newSequence(),
		entSeq:     newSequence(),
		colSeq:     newSequence(),
		idxSeq:     newSequence(),
		plSeq:      newSequence(),
		partSeq:    newSequence(),
		adapterSeq: newSequence(),
		log:        log.WithComponent("catalog"),
	}
	c.current.Store(emptySnapshot())
	return c
}

// CurrentSnapshot returns the most recently published Snapshot.
func (c *Catalog) CurrentSnapshot() *Snapshot {
	return c.current.Load()
}

// Mutator accumulates changes against a cloned Snapshot. The DDL
// Orchestrator validates preconditions against CurrentSnapshot, acquires
// locks, then opens a Mutator, applies its mutation, checks invariants,
// and calls Publish, which is the only way a new Snapshot becomes
// visible to readers.
type Mutator struct {
	cat  *Catalog
	next *Snapshot
}

// Mutate opens a Mutator cloned from the current snapshot.
func (c *Catalog) Mutate() *Mutator {
	return &Mutator{cat: c, next: c.current.Load().clone()}
}

// Snapshot exposes the in-progress snapshot for reads within the same
// mutation (e.g. a DDL op that both adds a column and re-reads the
// entity to add its allocation columns).
func (m *Mutator) Snapshot() *Snapshot { return m.next }

// Publish validates the accumulated mutation's structural invariants and,
// if they hold, atomically swaps it in as the new CurrentSnapshot. On
// failure no partial state becomes visible; the caller's transaction
// must abort.
func (m *Mutator) Publish() error {
	if err := CheckInvariants(m.next); err != nil {
		return err
	}
	m.cat.current.Store(m.next)
	m.cat.log.Debug(nil, "published new catalog snapshot")
	return nil
}

// --- id allocation ---

func (m *Mutator) NextNamespaceID() ID { return m.cat.nsSeq.Next() }
func (m *Mutator) NextEntityID() ID    { return m.cat.entSeq.Next() }
func (m *Mutator) NextColumnID() ID    { return m.cat.colSeq.Next() }
func (m *Mutator) NextIndexID() ID     { return m.cat.idxSeq.Next() }
func (m *Mutator) NextPlacementID() ID { return m.cat.plSeq.Next() }
func (m *Mutator) NextPartitionID() ID { return m.cat.partSeq.Next() }
func (m *Mutator) NextAdapterID() ID   { return m.cat.adapterSeq.Next() }

// --- id reservation, for restoring a catalog from its persisted form ---

// ReserveIDs bumps every id sequence past the highest id already used by
// the records a loader is about to Put, so ids minted afterward never
// collide with restored ones. Safe to call with zero values for spaces
// the loader didn't touch.
func (m *Mutator) ReserveIDs(namespace, entity, column, index, placement, partition, adapterID ID) {
	m.cat.nsSeq.advance(namespace)
	m.cat.entSeq.advance(entity)
	m.cat.colSeq.advance(column)
	m.cat.idxSeq.advance(index)
	m.cat.plSeq.advance(placement)
	m.cat.partSeq.advance(partition)
	m.cat.adapterSeq.advance(adapterID)
}

// --- namespace mutation ---

func (m *Mutator) PutNamespace(ns *Namespace) {
	m.next.namespaces[ns.ID] = ns
	m.next.nsByName[ns.Name] = ns.ID
}

func (m *Mutator) DropNamespace(id ID) {
	if ns, ok := m.next.namespaces[id]; ok {
		delete(m.next.nsByName, ns.Name)
		delete(m.next.namespaces, id)
	}
}

// --- entity mutation ---

func (m *Mutator) PutEntity(e *Entity) {
	m.next.entities[e.ID] = e
	m.next.entityByName[nameKey{e.Namespace, e.Name}] = e.ID
}

func (m *Mutator) DropEntity(id ID) {
	e, ok := m.next.entities[id]
	if !ok {
		return
	}
	for _, colID := range e.Columns {
		delete(m.next.columns, colID)
	}
	for _, idx := range e.Indexes {
		delete(m.next.indexes, idx.ID)
	}
	for _, p := range m.next.PlacementsOf(id) {
		m.DropPlacement(p.ID)
	}
	delete(m.next.entityByName, nameKey{e.Namespace, e.Name})
	delete(m.next.entities, id)
}

// --- column mutation ---

func (m *Mutator) PutColumn(col *Column) { m.next.columns[col.ID] = col }

func (m *Mutator) DropColumn(entityID, columnID ID) {
	e, ok := m.next.entities[entityID]
	if !ok {
		return
	}
	cols := make([]ID, 0, len(e.Columns))
	for _, c := range e.Columns {
		if c != columnID {
			cols = append(cols, c)
		}
	}
	ne := *e
	ne.Columns = cols
	m.next.entities[entityID] = &ne
	delete(m.next.columns, columnID)
	for k := range m.next.allocCols {
		if k.Column == columnID {
			delete(m.next.allocCols, k)
		}
	}
}

// --- index mutation ---

func (m *Mutator) PutIndex(idx *Index) { m.next.indexes[idx.ID] = idx }
func (m *Mutator) DropIndex(id ID)     { delete(m.next.indexes, id) }

// --- placement / allocation mutation ---

func (m *Mutator) PutPlacement(p *Placement) { m.next.placements[p.ID] = p }

// DropPlacement removes a placement and everything allocated on it. The
// caller must have already verified every column and partition still has
// coverage elsewhere before calling this (i.e. this is not the last
// placement covering a column/partition).
func (m *Mutator) DropPlacement(id ID) {
	for k := range m.next.allocCols {
		if k.Placement == id {
			delete(m.next.allocCols, k)
		}
	}
	for k := range m.next.allocEnts {
		if k.Placement == id {
			delete(m.next.allocEnts, k)
		}
	}
	delete(m.next.placements, id)
}

func (m *Mutator) PutAllocColumn(c *AllocationColumn) {
	m.next.allocCols[allocColKey{c.Placement, c.Column}] = c
}

func (m *Mutator) DropAllocColumn(placementID, columnID ID) {
	delete(m.next.allocCols, allocColKey{placementID, columnID})
}

func (m *Mutator) PutPartition(p *AllocationPartition) { m.next.partitions[p.ID] = p }
func (m *Mutator) DropPartition(id ID)                 { delete(m.next.partitions, id) }

func (m *Mutator) PutAllocEntity(a *AllocationEntity) {
	m.next.allocEnts[allocEntKey{a.Placement, a.Partition}] = a
}

func (m *Mutator) DropAllocEntity(placementID, partitionID ID) {
	delete(m.next.allocEnts, allocEntKey{placementID, partitionID})
}

func (m *Mutator) SetPartitionProperty(entityID ID, prop PartitionProperty) {
	e, ok := m.next.entities[entityID]
	if !ok {
		return
	}
	ne := *e
	ne.Partition = prop
	m.next.entities[entityID] = &ne
}

func (m *Mutator) PutAdapter(a *AdapterInfo) { m.next.adapters[a.ID] = a }
func (m *Mutator) DropAdapter(id ID)         { delete(m.next.adapters, id) }

// NotFoundf is a convenience for producing a consistent NotFound error
// across catalog-aware callers.
func NotFoundf(format string, a ...interface{}) error {
	return perr.New(perr.NotFound, format, a...)
}
