// Package cmd assembles the polystore CLI: one subcommand family per
// major component (catalog, ddl, route, migrate) plus serve, on a root
// command built once, with one init<Name> function per subcommand
// registering itself.
package cmd

import "github.com/spf13/cobra"

// Command returns the polystore root command, building one if
// rootCommand is nil so main.go and tests can share the same assembly.
func Command(rootCommand *cobra.Command) *cobra.Command {
	if rootCommand == nil {
		rootCommand = &cobra.Command{
			Use:   "polystore",
			Short: "polystore distribution engine",
			Long:  "polystore is a logical database engine distributing tables, documents and graphs across heterogeneous storage adapters.",
		}
	}

	initVersion(rootCommand)
	initCatalog(rootCommand)
	initDDL(rootCommand)
	initRoute(rootCommand)
	initMigrate(rootCommand)
	initServe(rootCommand)

	return rootCommand
}
