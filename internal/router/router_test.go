package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/partition"
	"github.com/coredb-io/polystore/internal/plan"
)

// buildSplitColumnSnapshot returns a snapshot for one entity whose two
// needed columns (id, email) each live on a different placement, with
// no single placement covering both: a genuine vertical split.
func buildSplitColumnSnapshot(t *testing.T) (*catalog.Snapshot, catalog.ID, catalog.ID, catalog.ID) {
	t.Helper()
	cat := catalog.New(nil)
	mut := cat.Mutate()

	const (
		nsID     catalog.ID = 1
		entityID catalog.ID = 1
		idColID  catalog.ID = 1
		emailCol catalog.ID = 2
		adapterA catalog.ID = 1
		adapterB catalog.ID = 2
		plA      catalog.ID = 1
		plB      catalog.ID = 2
		partID   catalog.ID = 1
	)

	mut.PutAdapter(&catalog.AdapterInfo{ID: adapterA, Name: "a", IsPersistent: true})
	mut.PutAdapter(&catalog.AdapterInfo{ID: adapterB, Name: "b", IsPersistent: true})

	mut.PutNamespace(&catalog.Namespace{ID: nsID, Name: "public"})
	mut.PutColumn(&catalog.Column{ID: idColID, Entity: entityID, Name: "id", PolyType: catalog.TypeBigInt})
	mut.PutColumn(&catalog.Column{ID: emailCol, Entity: entityID, Name: "email", PolyType: catalog.TypeVarchar})

	mut.PutEntity(&catalog.Entity{
		ID:         entityID,
		Namespace:  nsID,
		Name:       "accounts",
		Kind:       catalog.Table,
		Columns:    []catalog.ID{idColID, emailCol},
		PrimaryKey: &catalog.PrimaryKey{Entity: entityID, OrderedColumnIDs: []catalog.ID{idColID}},
		Partition:  catalog.PartitionProperty{PartitionIDs: []catalog.ID{partID}},
	})

	mut.PutPlacement(&catalog.Placement{ID: plA, Entity: entityID, Adapter: adapterA, Type: catalog.PlacementAutomatic})
	mut.PutPlacement(&catalog.Placement{ID: plB, Entity: entityID, Adapter: adapterB, Type: catalog.PlacementAutomatic})

	mut.PutAllocColumn(&catalog.AllocationColumn{Placement: plA, Column: idColID})
	mut.PutAllocColumn(&catalog.AllocationColumn{Placement: plB, Column: emailCol})

	mut.PutAllocEntity(&catalog.AllocationEntity{Placement: plA, Partition: partID})
	mut.PutAllocEntity(&catalog.AllocationEntity{Placement: plB, Partition: partID})

	return mut.Snapshot(), entityID, idColID, emailCol
}

func TestRouteIcarusCancelsWholeScanOnColumnSplit(t *testing.T) {
	snap, entityID, _, emailCol := buildSplitColumnSnapshot(t)
	r := New(partition.NewRegistry(), nil)

	n := &plan.Node{Kind: plan.NodeScan, Entity: entityID}
	qi := plan.QueryInformation{ReferencedColumns: map[catalog.ID]bool{emailCol: true}}

	_, err := r.Route(snap, n, qi, Icarus)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCancelled)
}

func TestRouteFullReplicationJoinsAcrossSplitColumns(t *testing.T) {
	snap, entityID, _, emailCol := buildSplitColumnSnapshot(t)
	r := New(partition.NewRegistry(), nil)

	n := &plan.Node{Kind: plan.NodeScan, Entity: entityID}
	qi := plan.QueryInformation{ReferencedColumns: map[catalog.ID]bool{emailCol: true}}

	routed, err := r.Route(snap, n, qi, FullReplication)
	require.NoError(t, err)
	require.Equal(t, plan.NodeJoin, routed.Kind)
}

func TestRouteIcarusSingleScanUsesSoleCoveringPlacement(t *testing.T) {
	snap, entityID, idColID, _ := buildSplitColumnSnapshot(t)
	r := New(partition.NewRegistry(), nil)

	n := &plan.Node{Kind: plan.NodeScan, Entity: entityID}
	qi := plan.QueryInformation{ReferencedColumns: map[catalog.ID]bool{idColID: true}}

	routed, err := r.Route(snap, n, qi, Icarus)
	require.NoError(t, err)
	require.Equal(t, plan.NodeScan, routed.Kind)
}
