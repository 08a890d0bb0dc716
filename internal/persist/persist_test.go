package persist

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coredb-io/polystore/internal/catalog"
)

func buildFixture(t *testing.T) *catalog.Snapshot {
	t.Helper()
	cat := catalog.New(nil)
	mut := cat.Mutate()

	const (
		nsID     catalog.ID = 1
		entityID catalog.ID = 1
		idCol    catalog.ID = 1
		emailCol catalog.ID = 2
		adapterA catalog.ID = 1
		plA      catalog.ID = 1
		partID   catalog.ID = 1
		idxID    catalog.ID = 1
	)

	mut.PutAdapter(&catalog.AdapterInfo{ID: adapterA, Name: "pg", IsPersistent: true, IndexMethods: []catalog.IndexMethod{"btree"}})
	mut.PutNamespace(&catalog.Namespace{ID: nsID, Name: "public", Kind: catalog.Relational})

	deflt := "unknown"
	mut.PutColumn(&catalog.Column{ID: idCol, Entity: entityID, Name: "id", PolyType: catalog.TypeBigInt})
	mut.PutColumn(&catalog.Column{ID: emailCol, Entity: entityID, Name: "email", PolyType: catalog.TypeVarchar, Nullable: true, DefaultValue: &deflt})

	mut.PutEntity(&catalog.Entity{
		ID:         entityID,
		Namespace:  nsID,
		Name:       "accounts",
		Kind:       catalog.Table,
		Columns:    []catalog.ID{idCol, emailCol},
		PrimaryKey: &catalog.PrimaryKey{Entity: entityID, OrderedColumnIDs: []catalog.ID{idCol}},
		Indexes:    []*catalog.Index{{ID: idxID, Name: "accounts_email_idx", Entity: entityID, Columns: []catalog.ID{emailCol}, Method: "btree"}},
		Partition: catalog.PartitionProperty{
			Type:         catalog.PartitionHash,
			PartitionIDs: []catalog.ID{partID},
		},
	})

	mut.PutPlacement(&catalog.Placement{ID: plA, Entity: entityID, Adapter: adapterA, Type: catalog.PlacementAutomatic})
	mut.PutAllocColumn(&catalog.AllocationColumn{Placement: plA, Column: idCol, PhysicalName: "id", PhysicalPosition: 0})
	mut.PutAllocColumn(&catalog.AllocationColumn{Placement: plA, Column: emailCol, PhysicalName: "email", PhysicalPosition: 1})
	mut.PutPartition(&catalog.AllocationPartition{ID: partID, Qualifiers: []string{"0"}})
	mut.PutAllocEntity(&catalog.AllocationEntity{Placement: plA, Partition: partID, AdapterPhysicalRef: "accounts_p0"})

	return mut.Snapshot()
}

func TestRoundtrip(t *testing.T) {
	snap := buildFixture(t)

	data, err := Marshal(snap)
	require.NoError(t, err)

	restored := catalog.New(nil)
	mut := restored.Mutate()
	require.NoError(t, Load(mut, data))

	ns, ok := mut.Snapshot().NamespaceByName("public")
	require.True(t, ok)

	entity, ok := mut.Snapshot().EntityByName(ns.ID, "accounts")
	require.True(t, ok)
	require.Equal(t, catalog.Table, entity.Kind)
	require.Len(t, entity.Columns, 2)
	require.NotNil(t, entity.PrimaryKey)
	require.Equal(t, []catalog.ID{entity.Columns[0]}, entity.PrimaryKey.OrderedColumnIDs)
	require.Len(t, entity.Indexes, 1)
	require.Equal(t, catalog.IndexMethod("btree"), entity.Indexes[0].Method)
	require.Equal(t, catalog.PartitionHash, entity.Partition.Type)

	emailCol, ok := mut.Snapshot().Column(entity.Columns[1])
	require.True(t, ok)
	require.True(t, emailCol.Nullable)
	require.NotNil(t, emailCol.DefaultValue)
	require.Equal(t, "unknown", *emailCol.DefaultValue)

	placements := mut.Snapshot().PlacementsOf(entity.ID)
	require.Len(t, placements, 1)
	require.Equal(t, 2, len(mut.Snapshot().ColumnsOfPlacement(placements[0].ID)))

	adapter, ok := mut.Snapshot().Adapter(1)
	require.True(t, ok)
	require.Equal(t, "pg", adapter.Name)
	require.Equal(t, []catalog.IndexMethod{"btree"}, adapter.IndexMethods)
}

func TestLoadRejectsNewerMajorVersion(t *testing.T) {
	snap := buildFixture(t)
	data, err := Marshal(snap)
	require.NoError(t, err)

	// Byte 4 is the major version, right after the 4-byte magic.
	corrupted := append([]byte(nil), data...)
	corrupted[4] = FormatMajor + 1

	mut := catalog.New(nil).Mutate()
	err = Load(mut, corrupted)
	require.Error(t, err)
}

func TestLoadAdvancesSequencesPastRestoredIDs(t *testing.T) {
	snap := buildFixture(t)
	data, err := Marshal(snap)
	require.NoError(t, err)

	restored := catalog.New(nil)
	mut := restored.Mutate()
	require.NoError(t, Load(mut, data))

	require.Greater(t, mut.NextNamespaceID(), catalog.ID(1))
	require.Greater(t, mut.NextEntityID(), catalog.ID(1))
	require.Greater(t, mut.NextColumnID(), catalog.ID(2))
}
