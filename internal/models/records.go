package models

// CountryYearRecord is one historical observation of a country in a year.
// It is immutable once computed.
type CountryYearRecord struct {
	Country   string  `json:"country"`
	Year      int     `json:"year"`
	HiveCount float64 `json:"hive_count"`
	AreaKm2   float64 `json:"area_km2"`

	// HiveDensity is nil when no area was available for the country.
	HiveDensity *float64 `json:"hive_density"`

	// InvasionStage is the raw stage classified from HiveDensity.
	InvasionStage Stage `json:"invasion_stage"`

	// FinalStage is InvasionStage with monotonic progression enforced.
	FinalStage Stage `json:"final_stage"`
}

// Density returns the hive density and whether it is known.
func (r CountryYearRecord) Density() (float64, bool) {
	if r.HiveDensity == nil {
		return 0, false
	}
	return *r.HiveDensity, true
}

// CountryState is the simulation state of one invaded country in one year.
type CountryState struct {
	Stage       Stage   `json:"stage"`
	StageYear   int     `json:"stage_year"`
	HiveDensity float64 `json:"hive_density"`
	AreaKm2     float64 `json:"area_km2"`
}

// InvasionEvent records a neighbor-triggered invasion.
type InvasionEvent struct {
	Year          int     `json:"year" db:"year"`
	Country       string  `json:"country" db:"country"`
	Source        string  `json:"source" db:"source"`
	SourceStage   Stage   `json:"source_stage" db:"source_stage"`
	SourceDensity float64 `json:"source_density" db:"source_density"`
}

// SpreadRow is one line of the spread forecast table.
type SpreadRow struct {
	Year        int     `json:"year" db:"year"`
	Country     string  `json:"country" db:"country"`
	Stage       Stage   `json:"stage" db:"stage"`
	StageYear   int     `json:"stage_year" db:"stage_year"`
	HiveDensity float64 `json:"hive_density" db:"hive_density"`
	HiveCount   int64   `json:"hive_count" db:"hive_count"`
}

// BeeRecord is one historical bee observation for a country.
type BeeRecord struct {
	Country    string  `json:"country"`
	Year       int     `json:"year"`
	BeeDensity float64 `json:"bee_density"`
	BeeCount   float64 `json:"bee_count"`
	AreaKm2    float64 `json:"area_km2"`
}

// BeeColonyRecord is a raw honeybee colony count for a country and year.
type BeeColonyRecord struct {
	Country  string  `json:"country"`
	Year     int     `json:"year"`
	Colonies float64 `json:"colonies"`
}

// BeeTrend is a historical bee density with its year-over-year growth.
// Growth is nil for the first year of a country.
type BeeTrend struct {
	BeeRecord
	Growth *float64 `json:"bee_density_growth"`
}

// BeeCountryState is the forecast state of bees in one country.
type BeeCountryState struct {
	Country    string  `json:"country"`
	BeeDensity float64 `json:"bee_density"`
	BeeCount   float64 `json:"bee_count"`
	AreaKm2    float64 `json:"area_km2"`
}

// BeeRow is one line of the bee forecast table.
type BeeRow struct {
	Year             int     `json:"year" db:"year"`
	Country          string  `json:"country" db:"country"`
	HornetDensity    float64 `json:"hornet_density" db:"hornet_density"`
	BeeDensity       float64 `json:"bee_density" db:"bee_density"`
	BeeCount         int64   `json:"bee_count" db:"bee_count"`
	BeeDensityGrowth float64 `json:"bee_density_growth" db:"bee_density_growth"`
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// HiveObservation is an aggregated hive count for a country and year, as
// produced by the clustering collaborator. AreaKm2 is 0 when the source
// table carried no area.
type HiveObservation struct {
	Country   string  `json:"country"`
	Year      int     `json:"year"`
	HiveCount float64 `json:"hive_count"`
	AreaKm2   float64 `json:"area_km2,omitempty"`
}
