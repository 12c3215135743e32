package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.3.0"

// cmdRoot is the base command when no other command has been specified.
var cmdRoot = &cobra.Command{
	Use:   "worldimport",
	Short: "Import Minecraft worlds into spatial block indexes",
	Long: `
worldimport reads Minecraft Java Edition world saves (directories or zip
archives), decodes the Anvil region format and turns the surviving blocks
into a flat spatial hash index suitable for fast coordinate lookups.
`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	DisableAutoGenTag: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
		os.Exit(0)
	},
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
