package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aramidnet/aramid/core"
	"github.com/aramidnet/aramid/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func readConfigs() (*state.CentralCfg, *state.LocalCfg, error) {
	var centralCfg state.CentralCfg
	file, err := os.ReadFile(centralConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if err = yaml.Unmarshal(file, &centralCfg); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", centralConfigPath, err)
	}

	var nodeCfg state.LocalCfg
	file, err = os.ReadFile(nodeConfigPath)
	if err != nil {
		return nil, nil, err
	}
	if err = yaml.Unmarshal(file, &nodeCfg); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", nodeConfigPath, err)
	}

	if err = state.CentralConfigValidator(&centralCfg); err != nil {
		return nil, nil, err
	}
	if err = state.NodeConfigValidator(&nodeCfg); err != nil {
		return nil, nil, err
	}
	return &centralCfg, &nodeCfg, nil
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run aramid",
	Long:  `This will run the aramid daemon on the current host. It needs permission to open netlink sockets.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		centralCfg, nodeCfg, err := readConfigs()
		if err != nil {
			return err
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}

		return core.Start(*centralCfg, *nodeCfg, level)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
}
