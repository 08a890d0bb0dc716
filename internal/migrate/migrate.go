// Package migrate implements the Data Migrator: moves or copies rows
// between allocations during DDL, batched, inside the enclosing
// transaction.
package migrate

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/logging"
	"github.com/coredb-io/polystore/internal/metrics"
	"github.com/coredb-io/polystore/internal/partition"
	"github.com/coredb-io/polystore/internal/perr"
)

// DefaultBatchSize is the default DATA_MIGRATOR_BATCH_SIZE.
const DefaultBatchSize = 1000

// Migrator moves rows between allocations, reading from source adapters
// in batches and writing prepared inserts/updates to the target.
type Migrator struct {
	registry   *adapter.Registry
	partitions *partition.Registry
	batchSize  int
	log        logging.Logger
	metrics    *metrics.Registry
}

// New returns a Migrator. batchSize <= 0 uses DefaultBatchSize.
func New(registry *adapter.Registry, partitions *partition.Registry, batchSize int, log logging.Logger, m *metrics.Registry) *Migrator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logging.NoOp{}
	}
	return &Migrator{registry: registry, partitions: partitions, batchSize: batchSize, log: log.WithComponent("migrator"), metrics: m}
}

// sourceRows adapts a slice of AllocationEntity scans into one logical
// row cursor, reading each source allocation's rows via adapter.Store.Scan.
type sourceRows struct {
	ctx     context.Context
	txn     adapter.TransactionID
	sources []sourceAlloc
	idx     int
	cur     adapter.RowStream
}

type sourceAlloc struct {
	store adapter.Store
	ent   catalog.AllocationEntity
}

func (s *sourceRows) next(n int) ([]adapter.Row, bool, error) {
	for {
		if s.cur == nil {
			if s.idx >= len(s.sources) {
				return nil, false, nil
			}
			src := s.sources[s.idx]
			stream, err := src.store.Scan(s.ctx, s.txn, singleAllocPlan{src.ent})
			if err != nil {
				return nil, false, perr.Wrap(perr.AdapterError, err, "migrator: scan source allocation (placement=%d partition=%d)", src.ent.Placement, src.ent.Partition)
			}
			s.cur = stream
		}
		rows, ok, err := s.cur.Next(s.ctx, n)
		if err != nil {
			return nil, false, perr.Wrap(perr.AdapterError, err, "migrator: read batch from source")
		}
		if !ok {
			_ = s.cur.Close(s.ctx)
			s.cur = nil
			s.idx++
			continue
		}
		return rows, true, nil
	}
}

type singleAllocPlan struct {
	ent catalog.AllocationEntity
}

func (p singleAllocPlan) AllocationEntity() catalog.AllocationEntity { return p.ent }

// CopyData copies a full projection of sourceEntity's current placements
// to targetPlacement on targetAdapter. PK columns are automatically
// added to columns to enable idempotent upserts.
func (m *Migrator) CopyData(ctx context.Context, txn adapter.TransactionID, snap *catalog.Snapshot, targetAdapter catalog.ID, sourceEntity catalog.ID, columns []catalog.ID, targetPlacement catalog.ID) error {
	entity, ok := snap.Entity(sourceEntity)
	if !ok {
		return catalog.NotFoundf("migrator: unknown entity %d", sourceEntity)
	}
	columns = withPK(entity, columns)

	sources, err := m.sourcesFor(snap, sourceEntity)
	if err != nil {
		return err
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
		if err := m.writeBatch(ctx, txn, snap, target, targetPlacement, entity, columns, batch); err != nil {
			return err
		}
		m.recordBatch(len(batch))
	}
}

// project returns row narrowed to columns, so a target placement that
// carries fewer columns than the source never receives a value it has
// no column for.
func project(row adapter.Row, columns []catalog.ID) adapter.Row {
	narrowed := make(adapter.Row, len(columns))
	for _, col := range columns {
		if v, ok := row[col]; ok {
			narrowed[col] = v
		}
	}
	return narrowed
}

// writeBatch groups a row-oriented batch by target partition (via the
// partition function), keeping the rows row-oriented, and issues one
// insert per (partition, placement) pair, narrowing each row to columns
// only once routing is decided (routing may key off a column the target
// placement itself does not carry).
func (m *Migrator) writeBatch(ctx context.Context, txn adapter.TransactionID, snap *catalog.Snapshot, target adapter.Store, targetPlacement catalog.ID, entity *catalog.Entity, columns []catalog.ID, batch []adapter.Row) error {
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
		if err := target.Insert(ctx, txn, ent, projected); err != nil {
			return perr.Wrap(perr.AdapterError, err, "migrator: insert into target placement %d partition %d", targetPlacement, partID)
		}
	}
	return nil
}

func (m *Migrator) recordBatch(rows int) {
	if m.metrics == nil {
		return
	}
	m.metrics.MigrationBatches.Inc()
	m.metrics.MigrationRowsTotal.Add(float64(rows))
}

// sourcesFor resolves the live adapter.Store + AllocationEntity for
// every placement currently carrying sourceEntity, so CopyData/
// CopyAllocationData can scan them regardless of how many placements
// the entity currently has.
func (m *Migrator) sourcesFor(snap *catalog.Snapshot, entityID catalog.ID) ([]sourceAlloc, error) {
	var out []sourceAlloc
	for _, p := range snap.PlacementsOf(entityID) {
		store, err := m.registry.Get(p.Adapter)
		if err != nil {
			return nil, err
		}
		for _, alloc := range snap.AllocsOfPlacement(p.ID) {
			out = append(out, sourceAlloc{store: store, ent: catalog.AllocationEntity{Placement: alloc.Placement, Partition: alloc.Partition}})
		}
	}
	return out, nil
}

func withPK(entity *catalog.Entity, columns []catalog.ID) []catalog.ID {
	if entity.PrimaryKey == nil {
		return columns
	}
	have := map[catalog.ID]bool{}
	for _, c := range columns {
		have[c] = true
	}
	out := append([]catalog.ID(nil), columns...)
	for _, pk := range entity.PrimaryKey.OrderedColumnIDs {
		if !have[pk] {
			out = append(out, pk)
			have[pk] = true
		}
	}
	return out
}
