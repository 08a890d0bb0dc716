// Package ddl implements the DDL Orchestrator: the state-machine-like
// set of schema-change operations that keep the catalog invariants true
// while driving the Data Migrator and coordinating with the Lock
// Manager.
//
// Every Operation runs the same phase sequence: (a) validate against the
// catalog's current snapshot, so an operation sees the effects of earlier
// operations in the same transaction, (b) acquire locks, (c) mutate the
// catalog, (d) publish the new snapshot, (e) invoke adapter lifecycle
// calls, (f) invoke the Data Migrator, (g) invalidate the routed-plan
// cache. A failure in any phase is returned to the caller, and Execute
// rolls the transaction back if the operation acquired locks in (b); a
// snapshot already published in (d) is not reverted. Phase (a) failures
// never touch the catalog.
package ddl

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/logging"
	"github.com/coredb-io/polystore/internal/metrics"
	"github.com/coredb-io/polystore/internal/migrate"
	"github.com/coredb-io/polystore/internal/partition"
	"github.com/coredb-io/polystore/internal/router"
	"github.com/coredb-io/polystore/internal/txn"
)

// Operation is one schema-change operation. Implementations live in
// ops_*.go, one file per operation family: namespace, entity, placement,
// partition.
type Operation interface {
	// Name identifies the operation for logging/metrics.
	Name() string
	// Validate checks preconditions against snap and returns a
	// descriptive *perr.Error if they fail. Must not mutate anything.
	Validate(snap *catalog.Snapshot) error
	// Locks returns the (entity, mode) requests this operation needs
	// before mutating the catalog.
	Locks() []lockRequest
	// Apply mutates m (the in-progress catalog.Mutator) to realize the
	// schema change. Called after locks are held and Validate passed.
	Apply(m *catalog.Mutator) error
	// Invoke performs adapter lifecycle calls and any data migration
	// required, against the already-published snapshot. reg/mig give
	// access to live adapters and the Data Migrator.
	Invoke(ctx context.Context, t *txn.Transaction, reg *adapter.Registry, mig *migrate.Migrator, snap *catalog.Snapshot) error
}

// lockRequest mirrors lock.Request without importing internal/lock into
// every ops_*.go file's public surface; Orchestrator.Execute converts it.
type lockRequest struct {
	Entity int64
	Exclusive bool
}

// Orchestrator ties the catalog, partition registry, adapter registry,
// migrator, router cache and metrics together to execute Operations.
type Orchestrator struct {
	Catalog    *catalog.Catalog
	Partitions *partition.Registry
	Registry   *adapter.Registry
	Migrator   *migrate.Migrator
	Cache      *router.Cache
	Metrics    *metrics.Registry
	log        logging.Logger
}

// New returns an Orchestrator wired to its collaborators.
func New(cat *catalog.Catalog, parts *partition.Registry, reg *adapter.Registry, mig *migrate.Migrator, cache *router.Cache, m *metrics.Registry, log logging.Logger) *Orchestrator {
	if log == nil {
		log = logging.NoOp{}
	}
	return &Orchestrator{
		Catalog: cat, Partitions: parts, Registry: reg, Migrator: mig, Cache: cache, Metrics: m,
		log: log.WithComponent("ddl"),
	}
}

// partitionRegistryAware is implemented by operations that need the
// Partition Manager's function registry (currently only PartitionEntity)
// to validate a requested scheme.
type partitionRegistryAware interface {
	SetPartitionRegistry(*partition.Registry)
}

// Execute runs op's full phase sequence within t. If any phase after
// locks are acquired fails, Execute rolls t back itself: strict 2PL
// requires locks to be released on abort, and a caller that only sees
// a non-nil error has no chance to do it for us.
func (o *Orchestrator) Execute(ctx context.Context, t *txn.Transaction, op Operation) (err error) {
	if aware, ok := op.(partitionRegistryAware); ok {
		aware.SetPartitionRegistry(o.Partitions)
	}

	locked := false
	outcome := "ok"
	defer func() {
		if err != nil {
			outcome = "error"
			if locked {
				_ = t.Rollback(ctx)
			}
		}
		if o.Metrics != nil {
			o.Metrics.DDLOperationsTotal.WithLabelValues(op.Name(), outcome).Inc()
		}
	}()

	// (a) validate against the catalog's current snapshot.
	if err = op.Validate(o.Catalog.CurrentSnapshot()); err != nil {
		return err
	}

	// (b) acquire locks.
	if reqs := op.Locks(); len(reqs) > 0 {
		if err = t.Lock(toLockRequests(reqs)); err != nil {
			return err
		}
		locked = true
	}

	// (c)+(d) mutate the catalog and publish a new snapshot.
	mut := o.Catalog.Mutate()
	if err = op.Apply(mut); err != nil {
		return err
	}
	if err = mut.Publish(); err != nil {
		return err
	}
	published := o.Catalog.CurrentSnapshot()

	// (e)+(f) adapter lifecycle + data migration.
	if err = op.Invoke(ctx, t, o.Registry, o.Migrator, published); err != nil {
		return err
	}

	// (g) invalidate the routed-plan cache.
	o.Cache.Invalidate()

	o.log.Info(map[string]interface{}{"operation": op.Name()}, "ddl operation committed")
	return nil
}
