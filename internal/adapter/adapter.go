// Package adapter defines the contract a physical storage backend must
// implement to participate in the polystore, and a registry
// mapping adapter id to live handle + capabilities. The adapters
// themselves (HSQLDB, file store, etc.) are out of scope; only the
// interface they satisfy is specified here.
package adapter

import (
	"context"

	"github.com/coredb-io/polystore/internal/catalog"
)

// Row is a single tuple, keyed by logical column id so the caller never
// needs to know an adapter's physical column ordering.
type Row map[catalog.ID]interface{}

// RowStream is a pull-based cursor over a scan's results: synchronous,
// batched calls instead of a generator, so every adapter implementation
// looks the same regardless of host language idiom.
type RowStream interface {
	// Next returns up to n rows. ok is false once the stream is
	// exhausted; a short (possibly empty) final batch with ok=true is
	// permitted before the terminal ok=false call.
	Next(ctx context.Context, n int) (rows []Row, ok bool, err error)
	Close(ctx context.Context) error
}

// PhysicalPlan is the adapter-specific execution plan produced by the
// Router for one allocation. Its shape is adapter-defined; the adapter
// contract only requires that Scan can execute whatever the Router
// attached.
type PhysicalPlan interface {
	AllocationEntity() catalog.AllocationEntity
}

// Store is the contract every storage adapter (STORE or SOURCE) must
// implement. Calls that accept a Transaction participate in the
// Transaction Coordinator's two-phase commit/rollback.
type Store interface {
	// Lifecycle.
	ID() catalog.ID
	Capabilities() Capabilities

	Begin(ctx context.Context, txn TransactionID) error
	Commit(ctx context.Context, txn TransactionID) error
	Rollback(ctx context.Context, txn TransactionID) error

	// Entity lifecycle, per allocation entity.
	CreateTable(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity, partitionIDs []catalog.ID) error
	DropTable(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity, partitionIDs []catalog.ID) error
	Truncate(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity) error
	AddColumn(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity, col catalog.AllocationColumn) error
	DropColumn(ctx context.Context, txn TransactionID, col catalog.AllocationColumn) error
	UpdateColumnType(ctx context.Context, txn TransactionID, col catalog.AllocationColumn, newType catalog.PolyType, oldType catalog.PolyType) error
	AddIndex(ctx context.Context, txn TransactionID, idx catalog.Index, partitionIDs []catalog.ID) error
	DropIndex(ctx context.Context, txn TransactionID, idx catalog.Index, partitionIDs []catalog.ID) error
	CreateCollection(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity) error
	CreateGraph(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity) error
	DropGraph(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity) error

	// Execution.
	Scan(ctx context.Context, txn TransactionID, plan PhysicalPlan) (RowStream, error)
	Insert(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity, rows []Row) error
	UpdateByPK(ctx context.Context, txn TransactionID, ent catalog.AllocationEntity, pkCols []catalog.ID, rows []Row) error
}

// TransactionID identifies a transaction to an adapter; opaque outside
// the Transaction Coordinator.
type TransactionID int64

// Capabilities describes what a deployed adapter supports, read by the
// Router and DDL Orchestrator when choosing placements.
type Capabilities struct {
	IsPersistent   bool
	DeployMode     catalog.DeployMode
	IndexMethods   []catalog.IndexMethod
	IsDataReadOnly bool // true for SOURCE adapters
}
