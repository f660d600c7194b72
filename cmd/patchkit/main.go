package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/autom8ter/patchkit/store/badger"
	_ "github.com/autom8ter/patchkit/store/firestore"
	_ "github.com/autom8ter/patchkit/store/postgres"
	_ "github.com/autom8ter/patchkit/store/sqlite"
)

func main() {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "patchkit",
		Short:         "patchkit patches records in collection stores and build settings in Xcode projects",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(cmd)
	cmd.AddCommand(recordsCmd(g), settingsCmd(g), applyCmd(g), initCmd(g))
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "patchkit:", err)
		os.Exit(1)
	}
}
