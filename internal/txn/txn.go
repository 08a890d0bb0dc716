// Package txn implements the Transaction Coordinator: per-transaction
// statement creation, participant bookkeeping, and commit/rollback
// across adapters under strict two-phase locking.
package txn

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/lock"
	"github.com/coredb-io/polystore/internal/logging"
	"github.com/coredb-io/polystore/internal/perr"
)

// Transaction tracks one in-flight transaction's adapter participants,
// held locks, and the catalog Snapshot it began against, taken at Begin.
// DDL operations run through ddl.Orchestrator validate and apply against
// the catalog's current snapshot instead, so they see the transaction's
// own earlier DDL.
type Transaction struct {
	ID       adapter.TransactionID
	Snapshot *catalog.Snapshot

	coord        *Coordinator
	mu           sync.Mutex
	participants []adapter.Store
	seen         map[catalog.ID]bool
	lockedEntities []int64
}

// Participant registers store as a participant in txn if it is not
// already registered, and calls its Begin.
func (t *Transaction) Participant(ctx context.Context, store adapter.Store) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.seen == nil {
		t.seen = map[catalog.ID]bool{}
	}
	if t.seen[store.ID()] {
		return nil
	}
	if err := store.Begin(ctx, t.ID); err != nil {
		return perr.Wrap(perr.AdapterError, err, "txn %d: begin on adapter %d", t.ID, store.ID())
	}
	t.seen[store.ID()] = true
	t.participants = append(t.participants, store)
	return nil
}

// Lock acquires the given (entity, mode) requests via the Coordinator's
// lock.Manager, remembering them for release at commit/abort.
func (t *Transaction) Lock(reqs []lock.Request) error {
	if err := t.coord.locks.Lock(int64(t.ID), reqs); err != nil {
		return err
	}
	t.mu.Lock()
	for _, r := range reqs {
		t.lockedEntities = append(t.lockedEntities, r.Entity)
	}
	t.mu.Unlock()
	return nil
}

// Commit asks every participant to commit, in registration order, then
// releases all locks. Partial commit is forbidden: if a participant's
// commit fails, every remaining participant is rolled back instead of
// committed.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	participants := append([]adapter.Store(nil), t.participants...)
	t.mu.Unlock()

	for i, p := range participants {
		if err := p.Commit(ctx, t.ID); err != nil {
			for _, rest := range participants[i+1:] {
				_ = rest.Rollback(ctx, t.ID)
			}
			t.release()
			return perr.Wrap(perr.AdapterError, err, "txn %d: commit on adapter %d failed, transaction aborted", t.ID, p.ID())
		}
	}
	t.release()
	return nil
}

// Rollback asks every participant to roll back and releases all locks.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	participants := append([]adapter.Store(nil), t.participants...)
	t.mu.Unlock()

	var firstErr error
	for _, p := range participants {
		if err := p.Rollback(ctx, t.ID); err != nil && firstErr == nil {
			firstErr = perr.Wrap(perr.AdapterError, err, "txn %d: rollback on adapter %d failed", t.ID, p.ID())
		}
	}
	t.release()
	return firstErr
}

func (t *Transaction) release() {
	t.coord.locks.RemoveTransaction(int64(t.ID))
	t.coord.forget(t.ID)
}

// Coordinator mints transaction ids, tracks in-flight Transactions, and
// shares a single lock.Manager across all of them.
type Coordinator struct {
	catalog *catalog.Catalog
	locks   *lock.Manager
	log     logging.Logger

	nextID atomic.Int64
	mu     sync.Mutex
	active map[adapter.TransactionID]*Transaction
}

// NewCoordinator returns a Coordinator bound to cat and locks.
func NewCoordinator(cat *catalog.Catalog, locks *lock.Manager, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NoOp{}
	}
	return &Coordinator{
		catalog: cat,
		locks:   locks,
		log:     log.WithComponent("txn"),
		active:  map[adapter.TransactionID]*Transaction{},
	}
}

// Begin starts a new Transaction, recording the catalog's current
// Snapshot in Transaction.Snapshot.
func (c *Coordinator) Begin(context.Context) *Transaction {
	id := adapter.TransactionID(c.nextID.Add(1))
	t := &Transaction{ID: id, Snapshot: c.catalog.CurrentSnapshot(), coord: c}
	c.mu.Lock()
	c.active[id] = t
	c.mu.Unlock()
	return t
}

func (c *Coordinator) forget(id adapter.TransactionID) {
	c.mu.Lock()
	delete(c.active, id)
	c.mu.Unlock()
}
