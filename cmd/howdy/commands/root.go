package commands

import (
	"github.com/spf13/cobra"

	"github.com/howdynet/howdy/src/config"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for howdy
var RootCmd = &cobra.Command{
	Use:              "howdy",
	Short:            "p2p greeting node",
	TraverseChildren: true,
}
