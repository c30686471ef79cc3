package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/aramidnet/aramid/state"
	"github.com/aramidnet/aramid/store"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

func renderState(st *state.LinkMonitorState) string {
	sb := strings.Builder{}
	sb.WriteString(fmt.Sprintf("Node drained: %v\n", st.NodeOverloaded))

	sb.WriteString("Drained interfaces:\n")
	if len(st.OverloadedLinks) == 0 {
		sb.WriteString("  (none)\n")
	}
	links := slices.Clone(st.OverloadedLinks)
	slices.Sort(links)
	for _, l := range links {
		sb.WriteString(fmt.Sprintf("  - %s\n", l))
	}

	sb.WriteString("Link metric overrides:\n")
	if len(st.LinkMetricOverrides) == 0 {
		sb.WriteString("  (none)\n")
	}
	rt := make([]string, 0)
	for ifName, m := range st.LinkMetricOverrides {
		rt = append(rt, fmt.Sprintf("  - %s: %d", ifName, m))
	}
	slices.Sort(rt)
	sb.WriteString(strings.Join(rt, "\n"))
	if len(rt) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString("Adjacency metric overrides:\n")
	if len(st.AdjMetricOverrides) == 0 {
		sb.WriteString("  (none)\n")
	}
	rt = rt[:0]
	for ifName, adjs := range st.AdjMetricOverrides {
		for node, m := range adjs {
			rt = append(rt, fmt.Sprintf("  - %s via %s: %d", node, ifName, m))
		}
	}
	slices.Sort(rt)
	sb.WriteString(strings.Join(rt, "\n"))
	if len(rt) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString("Node labels:\n")
	if len(st.NodeLabels) == 0 {
		sb.WriteString("  (none)\n")
	}
	rt = rt[:0]
	for area, label := range st.NodeLabels {
		rt = append(rt, fmt.Sprintf("  - area %s: %d", area, label))
	}
	slices.Sort(rt)
	sb.WriteString(strings.Join(rt, "\n"))
	if len(rt) > 0 {
		sb.WriteString("\n")
	}
	return sb.String()
}

// inspectCmd prints the persisted link monitor state (drain flags, metric
// overrides, node labels) from the node's state directory.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect persisted link monitor state",
	RunE: func(cmd *cobra.Command, args []string) error {
		var nodeCfg state.LocalCfg
		file, err := os.ReadFile(nodeConfigPath)
		if err != nil {
			return err
		}
		if err = yaml.Unmarshal(file, &nodeCfg); err != nil {
			return err
		}
		if nodeCfg.StateDir == "" {
			nodeCfg.StateDir = "/var/lib/aramid"
		}

		fs, err := store.NewFileStore(nodeCfg.StateDir)
		if err != nil {
			return err
		}
		blob, ok, err := fs.Load(state.LinkMonitorStateKey)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no persisted link monitor state")
			return nil
		}
		var st state.LinkMonitorState
		if err := yaml.Unmarshal(blob, &st); err != nil {
			return err
		}
		fmt.Print(renderState(&st))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
