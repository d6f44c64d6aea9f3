// Package countries holds the canonical country-name registry and the
// AreaProvider abstraction used to turn hive counts into densities.
package countries

import "strings"

// aliases maps alternative spellings found in source tables to the
// canonical name used throughout hornetcast.
var aliases = map[string]string{
	"czech republic":                  "Czechia",
	"czechia":                         "Czechia",
	"bosnia-herzegovina":              "Bosnia and Herzegovina",
	"bosnia & herzegovina":            "Bosnia and Herzegovina",
	"republic of serbia":              "Serbia",
	"the netherlands":                 "Netherlands",
	"holland":                         "Netherlands",
	"slovak republic":                 "Slovakia",
	"united kingdom of great britain": "United Kingdom",
	"great britain":                   "United Kingdom",
	"uk":                              "United Kingdom",
	"north macedonia":                 "North Macedonia",
	"macedonia":                       "North Macedonia",
	"republic of moldova":             "Moldova",
	"moldova, republic of":            "Moldova",
	"türkiye":                         "Turkey",
	"turkiye":                         "Turkey",
}

// Canonical returns the registry spelling of a country name. Surrounding
// whitespace is trimmed; unknown names are returned trimmed but otherwise
// unchanged.
func Canonical(name string) string {
	trimmed := strings.TrimSpace(name)
	if c, ok := aliases[strings.ToLower(trimmed)]; ok {
		return c
	}
	return trimmed
}

// Same reports whether two names refer to the same country.
func Same(a, b string) bool {
	return Canonical(a) == Canonical(b)
}
