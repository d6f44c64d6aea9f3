// Package simulation provides a scenario test harness for validating the
// emergent dynamics of the hornet spread and bee decline forecasts.
//
// The harness exercises the real Simulator, Forecaster and SQLiteStore, with
// no mocks. Scenarios are Go builders that describe an adjacency table,
// country areas and a historical state; the runner seeds, simulates, stores
// the forecast and reads it back so assertions see what a user would export.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestIberianSpread(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:      "iberia",
//	        Adjacency: map[string][]string{"Spain": {"Portugal", "France"}},
//	        Areas:     map[string]float64{"Spain": 505990, "Portugal": 92212, "France": 551695},
//	        History:   []simulation.CountrySpec{{Country: "France", Year: 2025, Stage: 3, Density: 0.006}},
//	    })
//	    simulation.AssertMonotonicStages(t, result)
//	    simulation.AssertInvasionSeed(t, result)
//	}
package simulation
