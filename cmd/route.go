package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/ddl"
	"github.com/coredb-io/polystore/internal/plan"
	"github.com/coredb-io/polystore/internal/router"
)

func initRoute(root *cobra.Command) {
	routeCommand := &cobra.Command{
		Use:   "route",
		Short: "Bootstrap a demo entity and print the Router's routed plan for a scan",
		RunE:  runRoute,
	}
	root.AddCommand(routeCommand)
}

func runRoute(cmd *cobra.Command, args []string) error {
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

	snap := e.Catalog.CurrentSnapshot()
	scan := &plan.Node{Kind: plan.NodeScan, Entity: createEntity.ID()}
	routed, err := e.Router.Route(snap, scan, plan.QueryInformation{}, router.FullReplication)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(routedDump(routed))
}

type routedLeaf struct {
	Kind      string `json:"kind"`
	Adapter   int64  `json:"adapter,omitempty"`
	Placement int64  `json:"placement,omitempty"`
	Partition int64  `json:"partition,omitempty"`
}

func routedDump(n *plan.RoutedNode) routedLeaf {
	if n.Alloc == nil {
		return routedLeaf{Kind: "union/join"}
	}
	return routedLeaf{
		Kind:      "scan",
		Adapter:   int64(n.Alloc.Adapter),
		Placement: int64(n.Alloc.Placement),
		Partition: int64(n.Alloc.Partition),
	}
}
