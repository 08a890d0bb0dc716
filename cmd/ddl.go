package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/ddl"
)

func initDDL(root *cobra.Command) {
	ddlCommand := &cobra.Command{
		Use:   "ddl",
		Short: "Run a schema-change operation against a demo catalog",
	}

	var copyData bool
	addPlacement := &cobra.Command{
		Use:   "add-placement",
		Short: "Bootstrap a demo entity on one adapter, then add a second placement on another",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDLAddPlacement(cmd, copyData)
		},
	}
	addPlacement.Flags().BoolVar(&copyData, "copy-data", true, "back the new placement with a Data Migrator copy of existing rows")
	ddlCommand.AddCommand(addPlacement)

	root.AddCommand(ddlCommand)
}

func runDDLAddPlacement(cmd *cobra.Command, copyData bool) error {
	e, primary, secondary := newDemoEngine()
	ctx := context.Background()
	t := e.Begin(ctx)

	createNS := &ddl.CreateNamespace{Name: "public", Kind: catalog.Relational, Owner: "polystore"}
	if err := e.DDL.Execute(ctx, t, createNS); err != nil {
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
	if err := e.DDL.Execute(ctx, t, createEntity); err != nil {
		return err
	}

	addPlacement := &ddl.AddPlacement{
		Entity:           createEntity.ID(),
		Adapter:          secondary,
		Type:             catalog.PlacementManual,
		CopyExistingData: copyData,
	}
	if err := e.DDL.Execute(ctx, t, addPlacement); err != nil {
		return err
	}

	if err := t.Commit(ctx); err != nil {
		return err
	}

	return printJSON(dumpSnapshot(e.Catalog.CurrentSnapshot()))
}
