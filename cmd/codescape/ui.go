package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"codescape/internal/domain"
)

// Terminal colors
var (
	Brand  = color.New(color.FgHiCyan, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

func init() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// printSummary writes a short graph summary to w
func printSummary(w io.Writer, title string, g *domain.Graph, report domain.BuildReport) {
	stats := g.Stats()
	fmt.Fprintf(w, "%s %s\n", Brand.Sprint("codescape"), title)
	fmt.Fprintf(w, "  nodes %s  edges %s\n",
		Good.Sprint(stats.TotalNodes), Good.Sprint(stats.TotalEdges))

	types := make([]string, 0, len(stats.NodesByType))
	for t := range stats.NodesByType {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s %d\n", Subtle.Sprintf("%-14s", t), stats.NodesByType[domain.NodeType(t)])
	}

	if !report.Clean() {
		fmt.Fprintf(w, "  %s sections=%v entries=%d duplicates=%d dangling=%d\n",
			Warn.Sprint("skipped"),
			report.SkippedSections, report.SkippedEntries, report.DuplicateIDs, report.DroppedEdges)
	}
}
