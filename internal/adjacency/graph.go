// Package adjacency provides the country neighbor graph used to propagate
// invasions.
package adjacency

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/hornetcast/internal/countries"
)

// Options controls how a Graph is built from a neighbor table.
type Options struct {
	// Directed keeps the table as given. When false (the default) every
	// edge A->B also gets B->A.
	Directed bool
}

// Asymmetry is an edge listed in one direction only.
type Asymmetry struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is an immutable country adjacency graph.
type Graph struct {
	neighbors map[string][]string
	directed  bool
	asym      []Asymmetry
}

// New builds a Graph from a country -> neighbors table. Names are
// canonicalised, duplicates and self-loops dropped.
func New(table map[string][]string, opts Options) *Graph {
	sets := make(map[string]map[string]bool)
	add := func(from, to string) {
		if sets[from] == nil {
			sets[from] = make(map[string]bool)
		}
		if to != "" {
			sets[from][to] = true
		}
	}

	for country, ns := range table {
		from := countries.Canonical(country)
		if from == "" {
			continue
		}
		add(from, "")
		for _, n := range ns {
			to := countries.Canonical(n)
			if to == "" || to == from {
				continue
			}
			add(from, to)
		}
	}

	var asym []Asymmetry
	for from, ns := range sets {
		for to := range ns {
			if !sets[to][from] {
				asym = append(asym, Asymmetry{From: from, To: to})
			}
		}
	}
	sort.Slice(asym, func(i, j int) bool {
		if asym[i].From != asym[j].From {
			return asym[i].From < asym[j].From
		}
		return asym[i].To < asym[j].To
	})

	if !opts.Directed {
		for _, a := range asym {
			add(a.To, a.From)
		}
	}

	g := &Graph{
		neighbors: make(map[string][]string, len(sets)),
		directed:  opts.Directed,
		asym:      asym,
	}
	for country, ns := range sets {
		list := make([]string, 0, len(ns))
		for n := range ns {
			list = append(list, n)
		}
		sort.Strings(list)
		g.neighbors[country] = list
	}
	return g
}

// Neighbors returns the sorted neighbors of a country. The returned slice
// must not be modified.
func (g *Graph) Neighbors(country string) []string {
	if g == nil {
		return nil
	}
	return g.neighbors[countries.Canonical(country)]
}

// Has reports whether the country appears in the graph.
func (g *Graph) Has(country string) bool {
	if g == nil {
		return false
	}
	_, ok := g.neighbors[countries.Canonical(country)]
	return ok
}

// Countries returns every country in the graph, sorted.
func (g *Graph) Countries() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.neighbors))
	for c := range g.neighbors {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Directed reports whether the graph kept one-way edges.
func (g *Graph) Directed() bool {
	return g != nil && g.directed
}

// Asymmetries lists every edge of the source table without its reverse.
// The list reflects the input table even when the graph was symmetrised.
func (g *Graph) Asymmetries() []Asymmetry {
	if g == nil {
		return nil
	}
	out := make([]Asymmetry, len(g.asym))
	copy(out, g.asym)
	return out
}

// EdgeCount returns the number of directed edges in the graph.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, ns := range g.neighbors {
		n += len(ns)
	}
	return n
}

// Table returns a copy of the graph as a country -> neighbors table.
func (g *Graph) Table() map[string][]string {
	out := make(map[string][]string, len(g.neighbors))
	for c, ns := range g.neighbors {
		out[c] = append([]string(nil), ns...)
	}
	return out
}

// Load parses a YAML mapping of country to neighbor list.
func Load(data []byte, opts Options) (*Graph, error) {
	var table map[string][]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing adjacency: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("adjacency table is empty")
	}
	return New(table, opts), nil
}

// LoadFile reads a YAML adjacency file.
func LoadFile(path string, opts Options) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading adjacency file: %w", err)
	}
	g, err := Load(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// Marshal encodes the graph as a YAML mapping.
func (g *Graph) Marshal() ([]byte, error) {
	return yaml.Marshal(g.Table())
}
