package main

import (
	"fmt"
	"os"

	"github.com/coredb-io/polystore/cmd"
)

func main() {
	root := cmd.Command(nil)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
