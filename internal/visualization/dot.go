// Package visualization renders the adjacency graph, optionally coloured by
// the invasion stage of one forecast year.
package visualization

import (
	"fmt"
	"strings"

	"github.com/nvandessel/hornetcast/internal/adjacency"
	"github.com/nvandessel/hornetcast/internal/models"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat returns the format named by s.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatDOT, "":
		return FormatDOT, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown graph format %q (valid: dot, json)", s)
}

// stageColors maps invasion stages to DOT fill colors.
var stageColors = map[models.Stage]string{
	models.StageNewlyInvaded: "gold",
	models.StageExpanding:    "darkorange",
	models.StageSaturated:    "firebrick",
}

const uninvadedColor = "lightgray"

// Snapshot is the forecast state drawn on top of the graph.
type Snapshot struct {
	Year   int
	Rows   []models.SpreadRow
	Events []models.InvasionEvent
}

// NewSnapshot selects the rows and events of year.
func NewSnapshot(year int, rows []models.SpreadRow, events []models.InvasionEvent) *Snapshot {
	snap := &Snapshot{Year: year}
	for _, r := range rows {
		if r.Year == year {
			snap.Rows = append(snap.Rows, r)
		}
	}
	for _, e := range events {
		if e.Year == year {
			snap.Events = append(snap.Events, e)
		}
	}
	return snap
}

func (s *Snapshot) rowsByCountry() map[string]models.SpreadRow {
	out := make(map[string]models.SpreadRow)
	if s == nil {
		return out
	}
	for _, r := range s.Rows {
		out[r.Country] = r
	}
	return out
}

func (s *Snapshot) invasionEdges() map[string]bool {
	out := make(map[string]bool)
	if s == nil {
		return out
	}
	for _, e := range s.Events {
		out[e.Source+"|"+e.Country] = true
	}
	return out
}

// RenderDOT produces a Graphviz representation of g. Undirected graphs are
// written once per edge; invasion edges of the snapshot year are drawn bold
// in the source-to-target direction.
func RenderDOT(g *adjacency.Graph, snap *Snapshot) string {
	rows := snap.rowsByCountry()
	invasions := snap.invasionEdges()

	var b strings.Builder
	kind, arrow := "graph", "--"
	if g.Directed() || len(invasions) > 0 {
		kind, arrow = "digraph", "->"
	}
	fmt.Fprintf(&b, "%s hornetcast {\n", kind)
	b.WriteString("  layout=neato;\n  overlap=false;\n")
	b.WriteString("  node [shape=ellipse, style=filled, fontname=\"Helvetica\"];\n")
	if snap != nil {
		fmt.Fprintf(&b, "  label=%q;\n", fmt.Sprintf("Vespa velutina %d", snap.Year))
	}
	b.WriteString("\n")

	for _, c := range g.Countries() {
		color := uninvadedColor
		tooltip := "not invaded"
		if r, ok := rows[c]; ok {
			if sc, ok := stageColors[r.Stage]; ok {
				color = sc
			}
			tooltip = fmt.Sprintf("stage %d year %d, %.7f hives/km2", r.Stage, r.StageYear, r.HiveDensity)
		}
		fmt.Fprintf(&b, "  %q [fillcolor=%q, tooltip=%q];\n", c, color, tooltip)
	}
	b.WriteString("\n")

	for _, c := range g.Countries() {
		for _, n := range g.Neighbors(c) {
			switch {
			case invasions[c+"|"+n]:
				fmt.Fprintf(&b, "  %q -> %q [style=bold, color=%q];\n", c, n, "firebrick")
			case invasions[n+"|"+c]:
				// drawn from the other side
			case g.Directed():
				fmt.Fprintf(&b, "  %q -> %q;\n", c, n)
			case c < n:
				if kind == "digraph" {
					fmt.Fprintf(&b, "  %q -> %q [dir=none];\n", c, n)
				} else {
					fmt.Fprintf(&b, "  %q %s %q;\n", c, arrow, n)
				}
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// RenderJSON produces a JSON-ready graph with nodes and edges arrays.
func RenderJSON(g *adjacency.Graph, snap *Snapshot) map[string]interface{} {
	rows := snap.rowsByCountry()
	invasions := snap.invasionEdges()

	nodes := make([]map[string]interface{}, 0, len(g.Countries()))
	for _, c := range g.Countries() {
		node := map[string]interface{}{
			"id":    c,
			"stage": 0,
		}
		if r, ok := rows[c]; ok {
			node["stage"] = int(r.Stage)
			node["stage_label"] = r.Stage.String()
			node["stage_year"] = r.StageYear
			node["hive_density"] = r.HiveDensity
			node["hive_count"] = r.HiveCount
		}
		nodes = append(nodes, node)
	}

	edges := make([]map[string]interface{}, 0, g.EdgeCount())
	for _, c := range g.Countries() {
		for _, n := range g.Neighbors(c) {
			if !g.Directed() && c > n {
				continue
			}
			edges = append(edges, map[string]interface{}{
				"source":   c,
				"target":   n,
				"invasion": invasions[c+"|"+n] || invasions[n+"|"+c],
			})
		}
	}

	out := map[string]interface{}{
		"nodes":      nodes,
		"edges":      edges,
		"node_count": len(nodes),
		"edge_count": len(edges),
		"directed":   g.Directed(),
	}
	if snap != nil {
		out["year"] = snap.Year
	}
	return out
}
