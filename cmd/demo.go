package cmd

import (
	"github.com/coredb-io/polystore/internal/adapter"
	"github.com/coredb-io/polystore/internal/adapter/mem"
	"github.com/coredb-io/polystore/internal/catalog"
	"github.com/coredb-io/polystore/internal/config"
	"github.com/coredb-io/polystore/internal/engine"
	"github.com/coredb-io/polystore/internal/logging"
)

// newDemoEngine builds an Engine with two in-memory adapters deployed
// ("primary", "secondary"), the fixture every CLI subcommand operates
// against. `catalog save`/`catalog load` (cmd/catalog.go) persist and
// restore the logical/allocation model itself; they don't carry adapter
// deployments, so commands still bootstrap their own namespace/entity
// before demonstrating a component.
func newDemoEngine() (*engine.Engine, catalog.ID, catalog.ID) {
	log := logging.Get()
	e := engine.New(config.Default(), log, nil)

	primary := e.DeployAdapter("primary", adapter.Capabilities{IsPersistent: true}, func(id catalog.ID) adapter.Store {
		return mem.New(id, adapter.Capabilities{IsPersistent: true})
	})
	secondary := e.DeployAdapter("secondary", adapter.Capabilities{IsPersistent: true}, func(id catalog.ID) adapter.Store {
		return mem.New(id, adapter.Capabilities{IsPersistent: true})
	})
	return e, primary, secondary
}
