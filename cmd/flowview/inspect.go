package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/flowview/core"
	"github.com/signalsfoundry/flowview/internal/ui"
	"github.com/signalsfoundry/flowview/internal/view"
	"github.com/signalsfoundry/flowview/kb"
	"github.com/signalsfoundry/flowview/model"
)

func newInspectCmd(opts *rootOptions) *cobra.Command {
	var (
		period int
		nodeID string
	)
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the label of one node for one period",
		Long: `inspect loads a results file and prints the label a viewer would show for
--node in --period. Without --node it lists the nodes of the period.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, _, err := opts.load(cmd, nil); err != nil {
				return err
			}
			return runInspect(cmd.OutOrStdout(), args[0], period, nodeID)
		},
	}
	cmd.Flags().IntVar(&period, "period", 0, "period index")
	cmd.Flags().StringVar(&nodeID, "node", "", "node id; empty lists every node")
	return cmd
}

func runInspect(w io.Writer, path string, period int, nodeID string) error {
	store := kb.NewStore()
	if err := store.LoadFile(path); err != nil {
		return err
	}
	snap, err := store.Get(period)
	if err != nil {
		return err
	}

	if nodeID == "" {
		return listNodes(w, store.Range(), period, snap)
	}
	d, err := core.Classify(snap, nodeID)
	if err != nil {
		return err
	}
	return ui.RenderLabel(w, view.NewLabel(d))
}

func listNodes(w io.Writer, r model.Range, period int, snap *model.Snapshot) error {
	if _, err := fmt.Fprintf(w, "%s %s\n", ui.Brand.Sprintf("period %d", period), ui.Subtle.Sprintf("of %s", r)); err != nil {
		return err
	}
	plants := make(map[string]int)
	for _, p := range snap.Plants {
		plants[p.Parent]++
	}
	rows := make([][]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		rows = append(rows, []string{n.ID, string(n.Type), core.FormatMW(n.Demand), fmt.Sprint(plants[n.ID])})
	}
	return ui.Table(w, []string{"Node", "Type", "Demand", "Plants"}, rows)
}
