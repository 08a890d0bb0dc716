// Package version holds the engine's build-time version string: a plain
// var, overridable via -ldflags at build time.
package version

// Version is the engine's release version. Overridden at build time via
// -ldflags "-X github.com/coredb-io/polystore/internal/version.Version=...".
var Version = "0.1.0-dev"
