// Package mem implements an in-memory adapter.Store: a reference
// implementation used by tests and by the CLI's demo commands, not a
// production adapter.
package mem

import (
	"context"
	"fmt"
	"sync"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/perr"
)

type tableKey struct {
	Placement catalog.ID
	Partition catalog.ID
}

// Store is a process-memory adapter.Store. Rows are kept per allocation
// entity under a key derived from their contents (rowID); UpdateByPK
// matches stored rows by their primary-key values so it can upsert.
type Store struct {
	id   catalog.ID
	caps adapter.Capabilities

	mu     sync.Mutex
	tables map[tableKey]*table
}

type table struct {
	pkCols []catalog.ID
	rows   map[string]adapter.Row
}

// New returns a Store registered under id with the given capabilities.
func New(id catalog.ID, caps adapter.Capabilities) *Store {
	return &Store{id: id, caps: caps, tables: map[tableKey]*table{}}
}

func (s *Store) ID() catalog.ID                    { return s.id }
func (s *Store) Capabilities() adapter.Capabilities { return s.caps }

func (s *Store) Begin(context.Context, adapter.TransactionID) error    { return nil }
func (s *Store) Commit(context.Context, adapter.TransactionID) error   { return nil }
func (s *Store) Rollback(context.Context, adapter.TransactionID) error { return nil }

func (s *Store) key(ent catalog.AllocationEntity) tableKey {
	return tableKey{ent.Placement, ent.Partition}
}

func (s *Store) CreateTable(_ context.Context, _ adapter.TransactionID, ent catalog.AllocationEntity, partitionIDs []catalog.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range partitionIDs {
		k := tableKey{ent.Placement, pid}
		if _, ok := s.tables[k]; !ok {
			s.tables[k] = &table{rows: map[string]adapter.Row{}}
		}
	}
	return nil
}

func (s *Store) DropTable(_ context.Context, _ adapter.TransactionID, ent catalog.AllocationEntity, partitionIDs []catalog.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pid := range partitionIDs {
		delete(s.tables, tableKey{ent.Placement, pid})
	}
	return nil
}

func (s *Store) Truncate(_ context.Context, _ adapter.TransactionID, ent catalog.AllocationEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tables[s.key(ent)]; ok {
		t.rows = map[string]adapter.Row{}
	}
	return nil
}

func (s *Store) AddColumn(_ context.Context, _ adapter.TransactionID, _ catalog.AllocationEntity, _ catalog.AllocationColumn) error {
	return nil // in-memory rows are schemaless maps; nothing to alter
}

func (s *Store) DropColumn(_ context.Context, _ adapter.TransactionID, col catalog.AllocationColumn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.tables {
		if k.Placement != col.Placement {
			continue
		}
		for pk, row := range t.rows {
			delete(row, col.Column)
			t.rows[pk] = row
		}
	}
	return nil
}

func (s *Store) UpdateColumnType(context.Context, adapter.TransactionID, catalog.AllocationColumn, catalog.PolyType, catalog.PolyType) error {
	return nil
}

func (s *Store) AddIndex(context.Context, adapter.TransactionID, catalog.Index, []catalog.ID) error {
	return nil // no physical indexes in the reference implementation
}

func (s *Store) DropIndex(context.Context, adapter.TransactionID, catalog.Index, []catalog.ID) error {
	return nil
}

func (s *Store) CreateCollection(ctx context.Context, txn adapter.TransactionID, ent catalog.AllocationEntity) error {
	return s.CreateTable(ctx, txn, ent, []catalog.ID{ent.Partition})
}

func (s *Store) CreateGraph(ctx context.Context, txn adapter.TransactionID, ent catalog.AllocationEntity) error {
	return s.CreateTable(ctx, txn, ent, []catalog.ID{ent.Partition})
}

func (s *Store) DropGraph(ctx context.Context, txn adapter.TransactionID, ent catalog.AllocationEntity) error {
	return s.DropTable(ctx, txn, ent, []catalog.ID{ent.Partition})
}

func (s *Store) Insert(_ context.Context, _ adapter.TransactionID, ent catalog.AllocationEntity, rows []adapter.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[s.key(ent)]
	if !ok {
		return perr.New(perr.AdapterError, "no such allocation (placement=%d partition=%d)", ent.Placement, ent.Partition)
	}
	for _, row := range rows {
		t.rows[rowID(row)] = cloneRow(row)
	}
	return nil
}

func (s *Store) UpdateByPK(_ context.Context, _ adapter.TransactionID, ent catalog.AllocationEntity, pkCols []catalog.ID, rows []adapter.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[s.key(ent)]
	if !ok {
		return perr.New(perr.AdapterError, "no such allocation (placement=%d partition=%d)", ent.Placement, ent.Partition)
	}
	t.pkCols = pkCols
	pkKey := func(r adapter.Row) string {
		k := ""
		for _, c := range pkCols {
			k += formatVal(r[c]) + ";"
		}
		return k
	}
	for _, row := range rows {
		id := rowID(row)
		if len(pkCols) > 0 {
			for k, stored := range t.rows {
				if pkKey(stored) == pkKey(row) {
					id = k
					break
				}
			}
		}
		existing, ok := t.rows[id]
		if !ok {
			t.rows[id] = cloneRow(row)
			continue
		}
		for col, v := range row {
			existing[col] = v
		}
		t.rows[id] = existing
	}
	return nil
}

func (s *Store) Scan(_ context.Context, _ adapter.TransactionID, plan adapter.PhysicalPlan) (adapter.RowStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent := plan.AllocationEntity()
	t, ok := s.tables[s.key(ent)]
	if !ok {
		return &sliceStream{}, nil
	}
	rows := make([]adapter.Row, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, cloneRow(r))
	}
	return &sliceStream{rows: rows}, nil
}

// rowID derives a stable map key from a row's contents so repeated
// Insert/UpdateByPK calls without PK info still behave deterministically
// in tests; real PK-based upsert keys off pkCols via UpdateByPK callers
// supplying consistent column sets.
func rowID(row adapter.Row) string {
	keys := make([]catalog.ID, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	id := ""
	for _, k := range keys {
		id += formatID(k) + "=" + formatVal(row[k]) + ";"
	}
	return id
}

func formatID(id catalog.ID) string {
	return formatInt(int64(id))
}

func formatInt(i int64) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func formatVal(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return t
	case int:
		return formatInt(int64(t))
	case int32:
		return formatInt(int64(t))
	case int64:
		return formatInt(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return stringify(t)
	}
}

func stringify(v interface{}) string {
	type stringer interface{ String() string }
	if s, ok := v.(stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", v)
}

func cloneRow(r adapter.Row) adapter.Row {
	out := make(adapter.Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

type sliceStream struct {
	rows []adapter.Row
	pos  int
}

func (s *sliceStream) Next(_ context.Context, n int) ([]adapter.Row, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	end := s.pos + n
	if end > len(s.rows) {
		end = len(s.rows)
	}
	batch := s.rows[s.pos:end]
	s.pos = end
	return batch, true, nil
}

func (s *sliceStream) Close(context.Context) error { return nil }
