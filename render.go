package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/duynguyendang/cyclopath/pkg/export"
	"github.com/duynguyendang/cyclopath/pkg/learnpath"
)

// renderTable prints the path in order with its prerequisites.
func renderTable(w io.Writer, nodes []learnpath.Node) error {
	tableData := pterm.TableData{
		{"#", "Node", "Title", "Difficulty", "Prerequisites"},
	}
	for i, n := range nodes {
		prereqs := "-"
		if len(n.Prerequisites) > 0 {
			prereqs = strings.Join(n.Prerequisites, ", ")
		}
		tableData = append(tableData, []string{
			fmt.Sprintf("%d", i+1),
			n.NodeID,
			n.Title,
			fmt.Sprintf("%d (%s)", n.DifficultyLevel, export.DifficultyBand(n.DifficultyLevel)),
			prereqs,
		})
	}

	table, err := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithData(tableData).
		Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, table)
	if err != nil {
		return err
	}

	if report := learnpath.CheckPrerequisites(nodes); !report.Empty() {
		for _, p := range report.Problems() {
			fmt.Fprintln(w, pterm.Yellow("warning: "+p))
		}
	}
	return nil
}

func writeD3(w io.Writer, nodes []learnpath.Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export.FromLearningPath(nodes))
}

// saveD3 writes the D3 graph to path and reports where it went.
func saveD3(w io.Writer, path string, nodes []learnpath.Node) error {
	if err := export.SaveD3Graph(export.FromLearningPath(nodes), path); err != nil {
		return fmt.Errorf("save d3 graph: %w", err)
	}
	_, err := fmt.Fprintln(w, pterm.Green(fmt.Sprintf("Saved D3 graph with %d nodes to %s", len(nodes), path)))
	return err
}
