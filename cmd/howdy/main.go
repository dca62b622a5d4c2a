package main

import (
	"os"

	cmd "github.com/howdynet/howdy/cmd/howdy/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewRunCmd(),
		cmd.NewKeygenCmd(),
		cmd.VersionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
