package adjacency

// europe is the neighbor table used for the European forecasts. It stops at
// the eastern border and lists Serbia -> Hungary without the reverse edge.
var europe = map[string][]string{
	"France":                 {"Belgium", "Spain", "Germany", "Italy", "Switzerland", "Luxembourg"},
	"Spain":                  {"Portugal", "France"},
	"Portugal":               {"Spain"},
	"Belgium":                {"France", "Netherlands", "Germany", "Luxembourg"},
	"Netherlands":            {"Belgium", "Germany"},
	"Germany":                {"Denmark", "Netherlands", "Belgium", "France", "Switzerland", "Austria", "Poland", "Czechia", "Luxembourg"},
	"Italy":                  {"France", "Switzerland", "Austria", "Slovenia"},
	"Switzerland":            {"France", "Germany", "Italy", "Austria"},
	"Austria":                {"Germany", "Czechia", "Slovakia", "Hungary", "Slovenia", "Switzerland", "Italy"},
	"Luxembourg":             {"France", "Belgium", "Germany"},
	"Czechia":                {"Germany", "Poland", "Slovakia", "Austria"},
	"Slovakia":               {"Czechia", "Austria", "Hungary", "Poland", "Ukraine"},
	"Hungary":                {"Slovakia", "Austria", "Slovenia", "Croatia", "Romania", "Ukraine"},
	"Poland":                 {"Germany", "Czechia", "Slovakia", "Ukraine", "Lithuania"},
	"Slovenia":               {"Italy", "Austria", "Hungary", "Croatia"},
	"Croatia":                {"Slovenia", "Hungary", "Bosnia and Herzegovina", "Serbia"},
	"Bosnia and Herzegovina": {"Croatia", "Serbia"},
	"Serbia":                 {"Bosnia and Herzegovina", "Croatia", "Hungary", "Romania", "Bulgaria"},
	"Romania":                {"Hungary", "Serbia", "Ukraine", "Bulgaria"},
	"Bulgaria":               {"Serbia", "Romania", "Greece"},
	"Greece":                 {"Bulgaria"},
	"Denmark":                {"Germany"},
	"Norway":                 {"Sweden"},
	"Sweden":                 {"Norway", "Finland"},
	"Finland":                {"Sweden", "Estonia"},
	"Estonia":                {"Latvia", "Finland"},
	"Latvia":                 {"Estonia", "Lithuania"},
	"Lithuania":              {"Latvia", "Poland"},
	"Ukraine":                {"Poland", "Slovakia", "Hungary", "Romania"},
}

// Default returns the built-in European neighbor graph.
func Default(opts Options) *Graph {
	return New(europe, opts)
}

// DefaultTable returns a copy of the built-in European neighbor table.
func DefaultTable() map[string][]string {
	out := make(map[string][]string, len(europe))
	for c, ns := range europe {
		out[c] = append([]string(nil), ns...)
	}
	return out
}
