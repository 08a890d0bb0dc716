package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/ddl"
)

func initMigrate(root *cobra.Command) {
	migrateCommand := &cobra.Command{
		Use:   "migrate",
		Short: "Bootstrap a demo entity, insert rows, then add a placement backed by a Data Migrator copy",
		RunE:  runMigrate,
	}
	root.AddCommand(migrateCommand)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	e, primary, secondary := newDemoEngine()
	ctx := context.Background()

	t1 := e.Begin(ctx)
	createNS := &ddl.CreateNamespace{Name: "public", Kind: catalog.Relational, Owner: "polystore"}
	if err := e.DDL.Execute(ctx, t1, createNS); err != nil {
		return err
	}
	createEntity := &ddl.CreateEntity{
		Namespace: createNS.ID(),
		Name:      "accounts",
		Kind:      catalog.Table,
		Columns: []ddl.ColumnSpec{
			{Name: "id", PolyType: catalog.TypeBigInt},
			{Name: "email", PolyType: catalog.TypeVarchar},
		},
		PrimaryKeyColumns:    []string{"id"},
		InitialAdapter:       primary,
		InitialPlacementType: catalog.PlacementAutomatic,
	}
	if err := e.DDL.Execute(ctx, t1, createEntity); err != nil {
		return err
	}
	if err := t1.Commit(ctx); err != nil {
		return err
	}

	snap := e.Catalog.CurrentSnapshot()
	ent, _ := snap.Entity(createEntity.ID())
	idCol, emailCol := ent.Columns[0], ent.Columns[1]

	rows := []adapter.Row{
		{idCol: int64(1), emailCol: "a@example.com"},
		{idCol: int64(2), emailCol: "b@example.com"},
	}

	t2 := e.Begin(ctx)
	routed, err := e.Router.RouteInsert(snap, ent.ID, rows)
	if err != nil {
		return err
	}
	for _, rr := range routed {
		p, _ := snap.Placement(rr.Placement)
		store, err := e.Adapters.Get(p.Adapter)
		if err != nil {
			return err
		}
		if err := t2.Participant(ctx, store); err != nil {
			return err
		}
		aent := catalog.AllocationEntity{Placement: rr.Placement, Partition: rr.Partition}
		if err := store.Insert(ctx, t2.ID, aent, rr.Rows); err != nil {
			return err
		}
	}
	if err := t2.Commit(ctx); err != nil {
		return err
	}

	t3 := e.Begin(ctx)
	addPlacement := &ddl.AddPlacement{
		Entity:           ent.ID,
		Adapter:          secondary,
		Type:             catalog.PlacementManual,
		CopyExistingData: true,
	}
	if err := e.DDL.Execute(ctx, t3, addPlacement); err != nil {
		return err
	}
	if err := t3.Commit(ctx); err != nil {
		return err
	}

	secondaryStore, err := e.Adapters.Get(secondary)
	if err != nil {
		return err
	}
	snap2 := e.Catalog.CurrentSnapshot()
	allocs := snap2.AllocsOfPlacement(addPlacement.PlacementID())
	total := 0
	for _, a := range allocs {
		stream, err := secondaryStore.Scan(ctx, adapter.TransactionID(0), demoScanPlan{*a})
		if err != nil {
			return err
		}
		for {
			batch, ok, err := stream.Next(ctx, 100)
			if err != nil {
				return err
			}
			total += len(batch)
			if !ok {
				break
			}
		}
		_ = stream.Close(ctx)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "copied %d row(s) to the new placement (id=%d) on adapter %q\n", total, addPlacement.PlacementID(), "secondary")
	return nil
}

type demoScanPlan struct {
	ent catalog.AllocationEntity
}

func (p demoScanPlan) AllocationEntity() catalog.AllocationEntity { return p.ent }
