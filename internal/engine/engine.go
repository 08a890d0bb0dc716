// Package engine wires the Distribution Catalog, Lock Manager, Partition
// Manager, Adapter Registry, Data Migrator, Router and DDL Orchestrator
// into one process-lifetime object. It is the composition root the CLI
// and any embedding program builds against; none of the internal/*
// packages import it.
package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/config"
	"github.com/coredb-io/polystore/internal/ddl"
	"github.com/coredb-io/polystore/internal/lock"
	"github.com/coredb-io/polystore/internal/logging"
	"github.com/coredb-io/polystore/internal/metrics"
	"github.com/coredb-io/polystore/internal/migrate"
	"github.com/coredb-io/polystore/internal/partition"
	"github.com/coredb-io/polystore/internal/router"
	"github.com/coredb-io/polystore/internal/txn"
)

// Engine bundles one instance of every engine component. Exported fields
// so the CLI and tests can reach past it (e.g. to call Catalog.Mutate
// directly) without Engine growing a method per underlying operation.
type Engine struct {
	Config     config.Config
	Log        logging.Logger
	Metrics    *metrics.Registry
	Catalog    *catalog.Catalog
	Locks      *lock.Manager
	Partitions *partition.Registry
	Adapters   *adapter.Registry
	Migrator   *migrate.Migrator
	Cache      *router.Cache
	Router     *router.Router
	Coordinator *txn.Coordinator
	DDL        *ddl.Orchestrator
}

// New builds an Engine from cfg, registering its Prometheus metrics
// against promReg (pass nil to skip registration, as tests do).
func New(cfg config.Config, log logging.Logger, promReg prometheus.Registerer) *Engine {
	if log == nil {
		log = logging.NoOp{}
	}
	m := metrics.New(promReg)
	cat := catalog.New(log)
	locks := lock.NewManager()
	parts := partition.NewRegistry()
	parts.RegisterTemperature(partition.NewTemperatureMonitor(partition.TemperatureConfig{
		WindowSize: cfg.PartitionFrequencyInterval.Duration() * 10,
	}))
	reg := adapter.NewRegistry()
	mig := migrate.New(reg, parts, cfg.DataMigratorBatchSize, log, m)
	cache := router.NewCache(cfg.RouterCacheSize)
	rt := router.New(parts, cache)
	coord := txn.NewCoordinator(cat, locks, log)
	orch := ddl.New(cat, parts, reg, mig, cache, m, log)

	return &Engine{
		Config: cfg, Log: log, Metrics: m,
		Catalog: cat, Locks: locks, Partitions: parts, Adapters: reg,
		Migrator: mig, Cache: cache, Router: rt, Coordinator: coord, DDL: orch,
	}
}

// DeployAdapter records adapter metadata in the catalog and attaches its
// live Store handle to the Adapter Registry in one step, minting a fresh
// DeployID. Returns the catalog id the adapter was
// assigned.
func (e *Engine) DeployAdapter(name string, caps adapter.Capabilities, newStore func(id catalog.ID) adapter.Store) catalog.ID {
	mut := e.Catalog.Mutate()
	id := mut.NextAdapterID()
	info := &catalog.AdapterInfo{
		ID:             id,
		Name:           name,
		IsPersistent:   caps.IsPersistent,
		DeployMode:     caps.DeployMode,
		IndexMethods:   caps.IndexMethods,
		IsDataReadOnly: caps.IsDataReadOnly,
		DeployID:       uuid.NewString(),
	}
	mut.PutAdapter(info)
	// Adapter deployment alone never violates a structural invariant (it
	// adds no placements), so Publish failing here would indicate a bug
	// elsewhere; propagate rather than hide it.
	if err := mut.Publish(); err != nil {
		panic(err)
	}
	store := newStore(id)
	e.Adapters.Deploy(store)
	e.Log.Info(map[string]interface{}{"adapter": name, "id": int64(id), "deployId": info.DeployID}, "adapter deployed")
	return id
}

// Begin starts a new Transaction against the current catalog snapshot.
func (e *Engine) Begin(ctx context.Context) *txn.Transaction {
	return e.Coordinator.Begin(ctx)
}
