package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/ddl"
	"github.com/coredb-io/polystore/internal/persist"
)

func initCatalog(root *cobra.Command) {
	catalogCommand := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the distribution catalog",
	}
	catalogCommand.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Bootstrap a demo namespace/entity and print the resulting catalog as JSON",
		RunE:  runCatalogShow,
	})
	catalogCommand.AddCommand(&cobra.Command{
		Use:   "save <path>",
		Short: "Bootstrap a demo namespace/entity and persist the catalog's binary snapshot to path",
		Args:  cobra.ExactArgs(1),
		RunE:  runCatalogSave,
	})
	catalogCommand.AddCommand(&cobra.Command{
		Use:   "load <path>",
		Short: "Restore a catalog binary snapshot from path and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runCatalogLoad,
	})
	root.AddCommand(catalogCommand)
}

func runCatalogSave(cmd *cobra.Command, args []string) error {
	e, primary, _ := newDemoEngine()
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
	if err := t.Commit(ctx); err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	return persist.WriteTo(f, e.Catalog.CurrentSnapshot())
}

func runCatalogLoad(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	cat := catalog.New(nil)
	mut := cat.Mutate()
	if err := persist.ReadFrom(mut, f); err != nil {
		return err
	}
	if err := mut.Publish(); err != nil {
		return err
	}

	return printJSON(dumpSnapshot(cat.CurrentSnapshot()))
}

func runCatalogShow(cmd *cobra.Command, args []string) error {
	e, primary, _ := newDemoEngine()
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
	if err := t.Commit(ctx); err != nil {
		return err
	}

	return printJSON(dumpSnapshot(e.Catalog.CurrentSnapshot()))
}

// catalogDump is the JSON-serializable projection of a Snapshot the CLI
// prints; it is a read-only view for operators, not the durable
// persisted binary format.
type catalogDump struct {
	Namespaces []namespaceDump `json:"namespaces"`
}

type namespaceDump struct {
	ID       int64        `json:"id"`
	Name     string       `json:"name"`
	Entities []entityDump `json:"entities"`
}

type entityDump struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Columns    []string        `json:"columns"`
	Placements []placementDump `json:"placements"`
}

type placementDump struct {
	ID      int64  `json:"id"`
	Adapter int64  `json:"adapter"`
	Type    string `json:"type"`
}

func dumpSnapshot(snap *catalog.Snapshot) catalogDump {
	var out catalogDump
	for _, ns := range snap.AllNamespaces() {
		nd := namespaceDump{ID: int64(ns.ID), Name: ns.Name}
		for _, ent := range snap.EntitiesOf(ns.ID) {
			ed := entityDump{ID: int64(ent.ID), Name: ent.Name}
			for _, colID := range ent.Columns {
				if c, ok := snap.Column(colID); ok {
					ed.Columns = append(ed.Columns, c.Name)
				}
			}
			for _, p := range snap.PlacementsOf(ent.ID) {
				ed.Placements = append(ed.Placements, placementDump{
					ID: int64(p.ID), Adapter: int64(p.Adapter), Type: placementTypeName(p.Type),
				})
			}
			nd.Entities = append(nd.Entities, ed)
		}
		out.Namespaces = append(out.Namespaces, nd)
	}
	return out
}

func placementTypeName(t catalog.PlacementType) string {
	switch t {
	case catalog.PlacementManual:
		return "MANUAL"
	case catalog.PlacementStatic:
		return "STATIC"
	default:
		return "AUTOMATIC"
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
