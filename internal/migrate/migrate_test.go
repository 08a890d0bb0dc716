package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/adapter/mem"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/partition"
)

const (
	nsID        catalog.ID = 1
	entityID    catalog.ID = 1
	idColID     catalog.ID = 1
	emailColID  catalog.ID = 2
	ssnColID    catalog.ID = 3
	sourceAdp   catalog.ID = 1
	targetAdp   catalog.ID = 2
	sourcePlace catalog.ID = 1
	targetPlace catalog.ID = 2
	partID      catalog.ID = 1
)

func buildMigrateFixture(t *testing.T) (*catalog.Snapshot, *adapter.Registry) {
	t.Helper()
	cat := catalog.New(nil)
	mut := cat.Mutate()

	mut.PutAdapter(&catalog.AdapterInfo{ID: sourceAdp, Name: "src", IsPersistent: true})
	mut.PutAdapter(&catalog.AdapterInfo{ID: targetAdp, Name: "dst", IsPersistent: true})

	mut.PutNamespace(&catalog.Namespace{ID: nsID, Name: "public"})
	mut.PutColumn(&catalog.Column{ID: idColID, Entity: entityID, Name: "id", PolyType: catalog.TypeBigInt})
	mut.PutColumn(&catalog.Column{ID: emailColID, Entity: entityID, Name: "email", PolyType: catalog.TypeVarchar})
	mut.PutColumn(&catalog.Column{ID: ssnColID, Entity: entityID, Name: "ssn", PolyType: catalog.TypeVarchar})

	mut.PutEntity(&catalog.Entity{
		ID:         entityID,
		Namespace:  nsID,
		Name:       "accounts",
		Kind:       catalog.Table,
		Columns:    []catalog.ID{idColID, emailColID, ssnColID},
		PrimaryKey: &catalog.PrimaryKey{Entity: entityID, OrderedColumnIDs: []catalog.ID{idColID}},
		Partition:  catalog.PartitionProperty{PartitionIDs: []catalog.ID{partID}},
	})

	mut.PutPlacement(&catalog.Placement{ID: sourcePlace, Entity: entityID, Adapter: sourceAdp, Type: catalog.PlacementAutomatic})
	mut.PutPlacement(&catalog.Placement{ID: targetPlace, Entity: entityID, Adapter: targetAdp, Type: catalog.PlacementAutomatic})
	for _, col := range []catalog.ID{idColID, emailColID, ssnColID} {
		mut.PutAllocColumn(&catalog.AllocationColumn{Placement: sourcePlace, Column: col})
	}
	// The target placement only carries id and email; it must never see ssn.
	mut.PutAllocColumn(&catalog.AllocationColumn{Placement: targetPlace, Column: idColID})
	mut.PutAllocColumn(&catalog.AllocationColumn{Placement: targetPlace, Column: emailColID})

	mut.PutAllocEntity(&catalog.AllocationEntity{Placement: sourcePlace, Partition: partID})
	mut.PutAllocEntity(&catalog.AllocationEntity{Placement: targetPlace, Partition: partID})

	reg := adapter.NewRegistry()
	src := mem.New(sourceAdp, adapter.Capabilities{IsPersistent: true})
	dst := mem.New(targetAdp, adapter.Capabilities{IsPersistent: true})
	reg.Deploy(src)
	reg.Deploy(dst)

	ctx := context.Background()
	const txnID adapter.TransactionID = 1
	require.NoError(t, src.CreateTable(ctx, txnID, catalog.AllocationEntity{Placement: sourcePlace, Partition: partID}, []catalog.ID{partID}))
	require.NoError(t, dst.CreateTable(ctx, txnID, catalog.AllocationEntity{Placement: targetPlace, Partition: partID}, []catalog.ID{partID}))
	require.NoError(t, src.Insert(ctx, txnID, catalog.AllocationEntity{Placement: sourcePlace, Partition: partID}, []adapter.Row{
		{idColID: int64(1), emailColID: "a@example.com", ssnColID: "111-11-1111"},
		{idColID: int64(2), emailColID: "b@example.com", ssnColID: "222-22-2222"},
	}))

	return mut.Snapshot(), reg
}

func TestCopyDataProjectsToRequestedColumns(t *testing.T) {
	snap, reg := buildMigrateFixture(t)
	mig := New(reg, partition.NewRegistry(), 0, nil, nil)

	ctx := context.Background()
	const txnID adapter.TransactionID = 1
	err := mig.CopyData(ctx, txnID, snap, targetAdp, entityID, []catalog.ID{emailColID}, targetPlace)
	require.NoError(t, err)

	dst, err := reg.Get(targetAdp)
	require.NoError(t, err)
	stream, err := dst.Scan(ctx, txnID, singleAllocPlan{catalog.AllocationEntity{Placement: targetPlace, Partition: partID}})
	require.NoError(t, err)
	rows, _, err := stream.Next(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		require.Contains(t, row, idColID, "PK must always be copied for idempotent upserts")
		require.Contains(t, row, emailColID, "requested column must be copied")
		require.NotContains(t, row, ssnColID, "column outside the requested subset must not leak to the target placement")
	}
}
