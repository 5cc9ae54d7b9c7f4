// Package griddata holds the demo grid's column catalog, the per-column value
// generation strategies, and the bulk mock-row generator used to seed an
// empty store. It is a leaf package: the relay and the store both consume it.
package griddata

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// MetricFamilySize is the number of numbered columns in each metric family
// (performance_metric_1..20 and so on).
const MetricFamilySize = 20

// Statuses and Tiers are the enumerated value sets for the status and
// subscription_tier columns.
var (
	Statuses = []string{"active", "inactive", "pending", "suspended"}
	Tiers    = []string{"free", "basic", "pro", "enterprise"}
	Regions  = []string{"na", "emea", "apac", "latam"}
)

// Strategy produces a value for one column according to that column's
// generation rules.
type Strategy func(r *rand.Rand) interface{}

func intRange(min, max int64) Strategy {
	return func(r *rand.Rand) interface{} {
		return min + r.Int64N(max-min+1)
	}
}

func decimal(min, max float64, precision int) Strategy {
	scale := math.Pow10(precision)
	return func(r *rand.Rand) interface{} {
		v := min + r.Float64()*(max-min)
		return math.Round(v*scale) / scale
	}
}

func boolean() Strategy {
	return func(r *rand.Rand) interface{} {
		return r.IntN(2) == 0
	}
}

func enumerated(values []string) Strategy {
	return func(r *rand.Rand) interface{} {
		return values[r.IntN(len(values))]
	}
}

// baseStrategies maps each base column to its generation strategy.
var baseStrategies = map[string]Strategy{
	"revenue":            intRange(50_000, 5_000_000),
	"expenses":           intRange(10_000, 2_000_000),
	"profit":             intRange(-500_000, 3_000_000),
	"employees":          intRange(1, 10_000),
	"status":             enumerated(Statuses),
	"verified":           boolean(),
	"premium":            boolean(),
	"subscription_tier":  enumerated(Tiers),
	"total_score":        decimal(0, 100, 1),
	"risk_factor":        decimal(0, 10, 2),
	"satisfaction_score": decimal(0, 5, 2),
	"engagement_rate":    decimal(0, 1, 4),
	"conversion_rate":    decimal(0, 1, 4),
}

// baseColumns fixes the catalog order of the base columns; baseStrategies is
// a map and cannot.
var baseColumns = []string{
	"revenue", "expenses", "profit", "employees",
	"status", "verified", "premium", "subscription_tier",
	"total_score", "risk_factor", "satisfaction_score",
	"engagement_rate", "conversion_rate",
}

// familyStrategies maps each numbered-column family prefix to the strategy
// shared by all of its members.
var familyStrategies = map[string]Strategy{
	"performance_metric_": decimal(0, 100, 2),
	"sales_metric_":       intRange(0, 100_000),
	"behavior_metric_":    decimal(0, 1, 4),
	"kpi_":                decimal(0, 1_000, 2),
}

var familyPrefixes = []string{"performance_metric_", "sales_metric_", "behavior_metric_", "kpi_"}

var updateableColumns = buildColumns()

func buildColumns() []string {
	cols := make([]string, 0, len(baseColumns)+len(familyPrefixes)*MetricFamilySize)
	cols = append(cols, baseColumns...)
	for _, prefix := range familyPrefixes {
		for n := 1; n <= MetricFamilySize; n++ {
			cols = append(cols, fmt.Sprintf("%v%d", prefix, n))
		}
	}
	return cols
}

// UpdateableColumns returns the full recognized column set in catalog order.
// The returned slice is shared; callers must not mutate it.
func UpdateableColumns() []string {
	return updateableColumns
}

// IsUpdateable reports whether column is one of the recognized updateable
// columns.
func IsUpdateable(column string) bool {
	_, ok := strategyFor(column)
	return ok
}

func strategyFor(column string) (Strategy, bool) {
	if s, ok := baseStrategies[column]; ok {
		return s, true
	}
	for _, prefix := range familyPrefixes {
		if suffix, found := strings.CutPrefix(column, prefix); found {
			if n, ok := parseFamilyIndex(suffix); ok && n >= 1 && n <= MetricFamilySize {
				return familyStrategies[prefix], true
			}
		}
	}
	return nil, false
}

func parseFamilyIndex(s string) (int, bool) {
	if s == "" || len(s) > 2 {
		return 0, false
	}
	n := 0
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, false
	}
	return n, true
}

// RandomValue draws a value for column from its generation strategy. The
// second return is false when the column is not recognized.
func RandomValue(column string, r *rand.Rand) (interface{}, bool) {
	s, ok := strategyFor(column)
	if !ok {
		return nil, false
	}
	return s(r), true
}

// RandomColumn picks one of the recognized updateable columns uniformly.
func RandomColumn(r *rand.Rand) string {
	return updateableColumns[r.IntN(len(updateableColumns))]
}
