package cmd

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/ddl"
	"github.com/coredb-io/polystore/internal/engine"
	"github.com/coredb-io/polystore/internal/wire"
)

const defaultServeAddr = ":8181"

func initServe(root *cobra.Command) {
	var addr string
	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Start a demo HTTP server exposing the cursor-based query wire protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr)
		},
	}
	serveCommand.Flags().StringVar(&addr, "addr", defaultServeAddr, "listen address")
	root.AddCommand(serveCommand)
}

// runServe bootstraps a demo entity and serves its rows over the
// cursor-based wire protocol. It is a reference harness for the
// protocol, not a production query engine: the query surface (parsing,
// cost-based planning) is out of this component's scope.
func runServe(addr string) error {
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

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/scan/accounts", func(w http.ResponseWriter, r *http.Request) {
		serveAccountsScan(w, r, e, createEntity.ID())
	})

	e.Log.Info(map[string]interface{}{"addr": addr}, "serving")
	return http.ListenAndServe(addr, mux)
}

func serveAccountsScan(w http.ResponseWriter, r *http.Request, e *engine.Engine, entityID catalog.ID) {
	snap := e.Catalog.CurrentSnapshot()
	ent, ok := snap.Entity(entityID)
	if !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	placements := snap.PlacementsOf(ent.ID)
	if len(placements) == 0 {
		http.Error(w, "entity has no placement", http.StatusInternalServerError)
		return
	}
	store, err := e.Adapters.Get(placements[0].Adapter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	allocs := snap.AllocsOfPlacement(placements[0].ID)
	if len(allocs) == 0 {
		http.Error(w, "placement has no allocation", http.StatusInternalServerError)
		return
	}
	stream, err := store.Scan(r.Context(), 0, demoScanPlan{*allocs[0]})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer stream.Close(r.Context())

	colNames := map[catalog.ID]string{}
	for _, colID := range ent.Columns {
		if c, ok := snap.Column(colID); ok {
			colNames[colID] = c.Name
		}
	}
	cursor := wire.NewCursor(stream, wire.RowTypeRelational, colNames)
	batch, err := cursor.FetchNext(r.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(batch)
}
