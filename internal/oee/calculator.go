package oee

import "math"

const (
	// DefaultProductionRate is the observed line rate in units per minute
	DefaultProductionRate = 65.0
	// DefaultExpectedEfficiency is the share of the nominal rate a healthy line reaches
	DefaultExpectedEfficiency = 0.85
)

// Metrics holds the four OEE figures, each a percentage in [0,100]
type Metrics struct {
	OEE          float64 `json:"oee"`
	Availability float64 `json:"availability"`
	Performance  float64 `json:"performance"`
	Quality      float64 `json:"quality"`
}

// Calculate computes OEE metrics for a run measured against a target production.
// The target applies to the whole planned time; quality is assumed to be 100.
func Calculate(goodProduction, plannedTime, downtimeMinutes, targetProduction float64) Metrics {
	return CalculateWithQuality(goodProduction, plannedTime, downtimeMinutes, targetProduction, 100)
}

// CalculateWithQuality is Calculate with an explicit quality percentage
func CalculateWithQuality(goodProduction, plannedTime, downtimeMinutes, targetProduction, quality float64) Metrics {
	actualRuntime := plannedTime - downtimeMinutes

	var expected float64
	if plannedTime > 0 && actualRuntime > 0 {
		expected = targetProduction * actualRuntime / plannedTime
	}
	return compose(goodProduction, plannedTime, actualRuntime, expected, quality)
}

// Quality returns the good share of everything produced, 100 when nothing was produced
func Quality(goodProduction, filmWaste, organicWaste float64) float64 {
	total := goodProduction + filmWaste + organicWaste
	if total <= 0 {
		return 100
	}
	return clamp(goodProduction / total * 100)
}

// Policy carries the rate assumptions used for per-record metrics, where
// machines may have no individual target.
type Policy struct {
	DefaultProductionRate float64 `json:"default_production_rate"` // units per minute
	ExpectedEfficiency    float64 `json:"expected_efficiency"`     // 0-1
}

// DefaultPolicy returns the observed production defaults
func DefaultPolicy() Policy {
	return Policy{
		DefaultProductionRate: DefaultProductionRate,
		ExpectedEfficiency:    DefaultExpectedEfficiency,
	}
}

// ForRecord computes metrics for a single production run. Expected output is
// the runtime at the policy rate and efficiency; quality comes from the waste counters.
func (p Policy) ForRecord(goodProduction, filmWaste, organicWaste, plannedTime, downtimeMinutes float64) Metrics {
	actualRuntime := plannedTime - downtimeMinutes

	var expected float64
	if plannedTime > 0 && actualRuntime > 0 {
		expected = actualRuntime * p.DefaultProductionRate * p.ExpectedEfficiency
	}
	return compose(goodProduction, plannedTime, actualRuntime, expected, Quality(goodProduction, filmWaste, organicWaste))
}

func compose(goodProduction, plannedTime, actualRuntime, expected, quality float64) Metrics {
	var availability float64
	if plannedTime > 0 {
		availability = clamp(actualRuntime / plannedTime * 100)
	}

	var performance float64
	if expected > 0 {
		performance = clamp(math.Min(goodProduction/expected*100, 100))
	}

	quality = clamp(quality)

	return Metrics{
		OEE:          clamp(availability * performance * quality / 10000),
		Availability: availability,
		Performance:  performance,
		Quality:      quality,
	}
}

// clamp bounds a percentage to [0,100]; NaN maps to 0
func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
