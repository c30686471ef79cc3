package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	centralConfigPath = "/etc/aramid/central.yaml"
	nodeConfigPath    = "/etc/aramid/node.yaml"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "aramid",
	Short: "Aramid Link-State Routing CLI",
	Long: `Aramid is a distributed link-state routing daemon.
Its link monitor converges OS interface events and neighbor discovery into
an adjacency database and a peering topology published to the cluster store.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&nodeConfigPath, "node-config", "n", nodeConfigPath, "node-specific config")
	rootCmd.PersistentFlags().StringVarP(&centralConfigPath, "central-config", "c", centralConfigPath, "network-global config")
}
