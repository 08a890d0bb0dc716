package ddl

import (
	"context"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/lock"
	"github.com/coredb-io/polystore/internal/migrate"
	"github.com/coredb-io/polystore/internal/perr"
	"github.com/coredb-io/polystore/internal/txn"
)

// CreateNamespace adds a new namespace of a given logical kind (spec
// §4.7 "Create namespace").
type CreateNamespace struct {
	Name  string
	Kind  catalog.NamespaceKind
	Owner string

	id catalog.ID
}

func (op *CreateNamespace) Name() string { return "CreateNamespace" }

func (op *CreateNamespace) Validate(snap *catalog.Snapshot) error {
	if _, ok := snap.NamespaceByName(op.Name); ok {
		return perr.New(perr.AlreadyExists, "namespace %q already exists", op.Name)
	}
	return nil
}

// Locks takes the Global lock exclusively: namespace creation is
// schema-wide, so no per-entity lock applies.
func (op *CreateNamespace) Locks() []lockRequest { return []lockRequest{exclusive(lock.Global)} }

func (op *CreateNamespace) Apply(m *catalog.Mutator) error {
	op.id = m.NextNamespaceID()
	m.PutNamespace(&catalog.Namespace{ID: op.id, Name: op.Name, Kind: op.Kind, Owner: op.Owner})
	return nil
}

func (op *CreateNamespace) Invoke(context.Context, *txn.Transaction, *adapter.Registry, *migrate.Migrator, *catalog.Snapshot) error {
	return nil
}

// ID is the namespace id minted by Apply, valid after Execute returns.
func (op *CreateNamespace) ID() catalog.ID { return op.id }

// DropNamespace removes an empty namespace. Namespaces with any entity
// still defined in them are rejected; DROP CASCADE is out of scope (spec
// §4.7 Non-goals analogue: callers drop entities first).
type DropNamespace struct {
	Namespace catalog.ID
}

func (op *DropNamespace) Name() string { return "DropNamespace" }

func (op *DropNamespace) Validate(snap *catalog.Snapshot) error {
	if _, ok := snap.Namespace(op.Namespace); !ok {
		return catalog.NotFoundf("namespace %d not found", op.Namespace)
	}
	if entities := snap.EntitiesOf(op.Namespace); len(entities) > 0 {
		return perr.New(perr.InvariantViolation, "namespace %d still has %d entities defined", op.Namespace, len(entities))
	}
	return nil
}

func (op *DropNamespace) Locks() []lockRequest { return []lockRequest{exclusive(lock.Global)} }

func (op *DropNamespace) Apply(m *catalog.Mutator) error {
	m.DropNamespace(op.Namespace)
	return nil
}

func (op *DropNamespace) Invoke(context.Context, *txn.Transaction, *adapter.Registry, *migrate.Migrator, *catalog.Snapshot) error {
	return nil
}
