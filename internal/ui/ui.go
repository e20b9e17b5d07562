// Package ui renders labels and period summaries for the terminal.
package ui

import (
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"github.com/signalsfoundry/flowview/internal/view"
)

// Palette
var (
	Brand   = color.New(color.FgHiGreen, color.Bold)
	Subtle  = color.New(color.FgHiBlack)
	Inflow  = color.New(color.FgGreen)
	Outflow = color.New(color.FgRed)
	Warn    = color.New(color.FgYellow)
)

// Flow colours a formatted flow value by its sign: outflow values carry a
// leading minus.
func Flow(value string) string {
	if strings.HasPrefix(value, "-") {
		return Outflow.Sprint(value)
	}
	return Inflow.Sprint(value)
}

// StatusIcon returns a check or cross.
func StatusIcon(ok bool) string {
	if ok {
		return Inflow.Sprint("✓")
	}
	return Outflow.Sprint("✗")
}

// Table writes rows under headers as a pterm table. Nothing is written for
// empty rows.
func Table(w io.Writer, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	data := make(pterm.TableData, 0, len(rows)+1)
	data = append(data, headers)
	data = append(data, rows...)
	return pterm.DefaultTable.
		WithHasHeader().
		WithWriter(w).
		WithData(data).
		Render()
}

// RenderLabel writes the three label sections for one node.
func RenderLabel(w io.Writer, l view.Label) error {
	if _, err := io.WriteString(w, Brand.Sprint(l.NodeID)+"\n"); err != nil {
		return err
	}

	node := make([][]string, 0, len(l.Node))
	for _, r := range l.Node {
		node = append(node, []string{r.Description, r.Value})
	}
	if err := Table(w, []string{"Node", "Value"}, node); err != nil {
		return err
	}

	flows := make([][]string, 0, len(l.Flows))
	for _, r := range l.Flows {
		flows = append(flows, []string{r.Description, Flow(r.Value)})
	}
	if len(flows) == 0 {
		if _, err := io.WriteString(w, Subtle.Sprint("no flows")+"\n"); err != nil {
			return err
		}
	}
	if err := Table(w, []string{"Flow", "Value"}, flows); err != nil {
		return err
	}

	if !l.PlantBearing {
		return nil
	}
	gen := make([][]string, 0, len(l.Generation))
	for _, r := range l.Generation {
		gen = append(gen, []string{r.Description, r.Value})
	}
	return Table(w, []string{"Generation", "Value"}, gen)
}
