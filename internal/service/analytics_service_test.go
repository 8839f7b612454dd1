package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/logging"
	"oee-analytics/internal/model"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCalculateChangePercent tests the calculateChangePercent function
func TestCalculateChangePercent(t *testing.T) {
	tests := []struct {
		name           string
		current        float64
		previous       float64
		expectedResult float64
		description    string
	}{
		{
			name:           "normal case - positive change",
			current:        110.0,
			previous:       100.0,
			expectedResult: 10.0,
			description:    "10% increase from 100 to 110",
		},
		{
			name:           "normal case - negative change",
			current:        90.0,
			previous:       100.0,
			expectedResult: -10.0,
			description:    "10% decrease from 100 to 90",
		},
		{
			name:           "normal case - no change",
			current:        100.0,
			previous:       100.0,
			expectedResult: 0.0,
			description:    "No change, should return 0.0",
		},
		{
			name:           "previous month empty, current month producing",
			current:        5000.0,
			previous:       0.0,
			expectedResult: 100.0,
			description:    "Growth from nothing is reported as 100%",
		},
		{
			name:           "both months empty",
			current:        0.0,
			previous:       0.0,
			expectedResult: 0.0,
			description:    "Both zero, should return 0.0 (no change)",
		},
		{
			name:           "current month empty",
			current:        0.0,
			previous:       100.0,
			expectedResult: -100.0,
			description:    "Current is zero, should return -100.0",
		},
		{
			name:           "decimal precision - rounds to 2 decimal places",
			current:        111.111,
			previous:       100.0,
			expectedResult: 11.11,
			description:    "Should round to 2 decimal places",
		},
		{
			name:           "small values",
			current:        0.11,
			previous:       0.10,
			expectedResult: 10.0,
			description:    "Handles very small values correctly",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := calculateChangePercent(tt.current, tt.previous)
			if result != tt.expectedResult {
				t.Errorf("calculateChangePercent(%f, %f) = %f, expected %f. %s",
					tt.current, tt.previous, result, tt.expectedResult, tt.description)
			}
		})
	}
}

// TestCalculateProductivity tests the month over month trend labels
func TestCalculateProductivity(t *testing.T) {
	service := &analyticsService{}

	tests := []struct {
		name     string
		current  float64
		previous float64
		trend    string
	}{
		{name: "exactly 5% up is an improvement", current: 105, previous: 100, trend: TrendImprovement},
		{name: "exactly 5% down is a decline", current: 95, previous: 100, trend: TrendDecline},
		{name: "small change is stable", current: 104.9, previous: 100, trend: TrendStable},
		{name: "no data in either month is stable", current: 0, previous: 0, trend: TrendStable},
		{name: "first producing month is an improvement", current: 10, previous: 0, trend: TrendImprovement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := service.calculateProductivity(
				[]model.ProductionRecord{{GoodProduction: tt.current}},
				[]model.ProductionRecord{{GoodProduction: tt.previous}},
			)
			if cmp.Trend != tt.trend {
				t.Errorf("trend for %v vs %v = %q, expected %q", tt.current, tt.previous, cmp.Trend, tt.trend)
			}
		})
	}
}

// TestCalculateDowntimeBreakdown checks that category shares always add up
func TestCalculateDowntimeBreakdown(t *testing.T) {
	service := &analyticsService{}

	tests := []struct {
		name      string
		events    []model.DowntimeEvent
		wantTotal float64
		wantFirst string
	}{
		{
			name:      "no downtime",
			events:    nil,
			wantTotal: 0,
		},
		{
			name:      "only zero-minute events",
			events:    []model.DowntimeEvent{{Category: "mechanical", Minutes: 0}},
			wantTotal: 0,
		},
		{
			name: "single category",
			events: []model.DowntimeEvent{
				{Category: "mechanical", Minutes: 30},
				{Category: "mechanical", Minutes: 45},
			},
			wantTotal: 100,
			wantFirst: "mechanical",
		},
		{
			name: "thirds do not drift",
			events: []model.DowntimeEvent{
				{Category: "mechanical", Minutes: 20},
				{Category: "electrical", Minutes: 20},
				{Category: "material", Minutes: 20},
			},
			wantTotal: 100,
			wantFirst: "electrical",
		},
		{
			name: "uneven categories",
			events: []model.DowntimeEvent{
				{Category: "changeover", Minutes: 7},
				{Category: "mechanical", Minutes: 130},
				{Category: "", Minutes: 11},
				{Category: "quality", Minutes: 3.5},
				{Category: "electrical", Minutes: 61},
			},
			wantTotal: 100,
			wantFirst: "mechanical",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breakdown := service.calculateDowntimeBreakdown(tt.events)

			var total float64
			for _, c := range breakdown {
				total += c.Percentage
			}
			if math.Abs(total-tt.wantTotal) > 0.1 {
				t.Errorf("category percentages sum to %f, expected %f", total, tt.wantTotal)
			}
			if tt.wantFirst != "" && (len(breakdown) == 0 || breakdown[0].Category != tt.wantFirst) {
				t.Errorf("largest category = %+v, expected %s first", breakdown, tt.wantFirst)
			}
		})
	}
}

// TestCalculateTrend tests the two-bucket OEE trend
func TestCalculateTrend(t *testing.T) {
	service := &analyticsService{}

	history := func(values ...float64) []model.OEEHistoryEntry {
		entries := make([]model.OEEHistoryEntry, len(values))
		for i, v := range values {
			entries[i] = model.OEEHistoryEntry{OEE: v}
		}
		return entries
	}

	tests := []struct {
		name    string
		history []model.OEEHistoryEntry
		want    float64
	}{
		{name: "empty", history: nil, want: 0},
		{name: "single entry", history: history(70), want: 0},
		{name: "improving", history: history(60, 60, 70, 70), want: 10},
		{name: "declining", history: history(80, 70, 60), want: -15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := service.calculateTrend(tt.history); got != tt.want {
				t.Errorf("calculateTrend() = %f, expected %f", got, tt.want)
			}
		})
	}
}

func TestCalculatePerformanceVariation(t *testing.T) {
	service := &analyticsService{}
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	period := PeriodInfo{StartDate: start, EndDate: start.AddDate(0, 0, 4)}

	records := []model.ProductionRecord{
		{StartTime: start.Add(8 * time.Hour), GoodProduction: 60},
		{StartTime: start.Add(16 * time.Hour), GoodProduction: 40},
		{StartTime: start.AddDate(0, 0, 1), GoodProduction: 100},
		{StartTime: start.AddDate(0, 0, 2), GoodProduction: 200},
	}

	v := service.calculatePerformanceVariation(records, period)
	require.Len(t, v.Daily, 4, "every calendar day is present, zero days included")
	assert.Equal(t, 100.0, v.MeanDaily)
	assert.Equal(t, 100.0, v.Daily[0].Production)
	assert.Equal(t, 0.0, v.Daily[0].Deviation)
	assert.Equal(t, 100.0, v.Daily[2].Deviation)
	assert.Equal(t, 0.0, v.Daily[3].Production)
	assert.Equal(t, 100.0, v.MaxVariation)
	assert.Equal(t, 1, v.VariationDays)

	empty := service.calculatePerformanceVariation(nil, period)
	assert.Len(t, empty.Daily, 4)
	assert.Zero(t, empty.MaxVariation)
	assert.Zero(t, empty.VariationDays)
}

func TestAssessRisk(t *testing.T) {
	service := &analyticsService{}

	base := func() *HistoricalAnalytics {
		return &HistoricalAnalytics{
			Averages:     oee.Metrics{OEE: 85},
			Productivity: ProductivityComparison{Trend: TrendStable},
		}
	}

	tests := []struct {
		name       string
		mutate     func(a *HistoricalAnalytics)
		hasHistory bool
		want       RiskLevel
		factors    int
	}{
		{name: "healthy", mutate: func(a *HistoricalAnalytics) {}, hasHistory: true, want: RiskLow},
		{
			name:       "decline alone",
			mutate:     func(a *HistoricalAnalytics) { a.Productivity.Trend = TrendDecline },
			hasHistory: true, want: RiskMedium, factors: 1,
		},
		{
			name:       "variation alone",
			mutate:     func(a *HistoricalAnalytics) { a.PerformanceVariation.MaxVariation = 31 },
			hasHistory: true, want: RiskMedium, factors: 1,
		},
		{
			name:       "downtime alone",
			mutate:     func(a *HistoricalAnalytics) { a.Totals.DowntimeHours = 101 },
			hasHistory: true, want: RiskMedium, factors: 1,
		},
		{
			name:       "low oee forces high",
			mutate:     func(a *HistoricalAnalytics) { a.Averages.OEE = 69.9 },
			hasHistory: true, want: RiskHigh, factors: 1,
		},
		{
			name:       "low oee is ignored without history",
			mutate:     func(a *HistoricalAnalytics) { a.Averages.OEE = 0 },
			hasHistory: false, want: RiskLow,
		},
		{
			name: "two factors compound",
			mutate: func(a *HistoricalAnalytics) {
				a.Productivity.Trend = TrendDecline
				a.Totals.DowntimeHours = 150
			},
			hasHistory: true, want: RiskHigh, factors: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base()
			tt.mutate(a)
			risk := service.assessRisk(a, tt.hasHistory)
			assert.Equal(t, tt.want, risk.Level)
			assert.Len(t, risk.Factors, tt.factors)
			assert.Len(t, risk.Recommendations, tt.factors)
		})
	}
}

func TestAssessRiskIsMonotonic(t *testing.T) {
	service := &analyticsService{}

	triggers := []func(a *HistoricalAnalytics){
		func(a *HistoricalAnalytics) { a.Productivity.Trend = TrendDecline },
		func(a *HistoricalAnalytics) { a.PerformanceVariation.MaxVariation = 45 },
		func(a *HistoricalAnalytics) { a.Averages.OEE = 50 },
		func(a *HistoricalAnalytics) { a.Totals.DowntimeHours = 120 },
	}

	// every ordering of the four triggers
	var permute func(order []int, k int)
	permute = func(order []int, k int) {
		if k == len(order) {
			a := &HistoricalAnalytics{Averages: oee.Metrics{OEE: 90}, Productivity: ProductivityComparison{Trend: TrendStable}}
			previous := service.assessRisk(a, true).Level
			for _, i := range order {
				triggers[i](a)
				level := service.assessRisk(a, true).Level
				if level.rank() < previous.rank() {
					t.Errorf("order %v: risk dropped from %s to %s", order, previous, level)
				}
				previous = level
			}
			return
		}
		for i := k; i < len(order); i++ {
			order[k], order[i] = order[i], order[k]
			permute(order, k+1)
			order[k], order[i] = order[i], order[k]
		}
	}
	permute([]int{0, 1, 2, 3}, 0)
}

func TestCalculateImprovementOpportunities(t *testing.T) {
	service := &analyticsService{}

	got := service.calculateImprovementOpportunities(oee.Metrics{Availability: 80, Performance: 95, Quality: 90})
	require.Len(t, got, 2)
	assert.Equal(t, "availability", got[0].Area)
	assert.InDelta(t, 3.5, got[0].Potential, 1e-9)
	assert.Equal(t, "quality", got[1].Area)
	assert.InDelta(t, 4.5, got[1].Potential, 1e-9)

	assert.Empty(t, service.calculateImprovementOpportunities(oee.Metrics{Availability: 85, Performance: 90, Quality: 95}))
}

func TestGetHistoricalAnalyticsEmptyStore(t *testing.T) {
	env := newTestEnv(t, testNow)

	report, err := env.analytics.GetHistoricalAnalytics(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), report.Period.StartDate)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), report.PreviousPeriod.StartDate)
	assert.Equal(t, oee.Metrics{}, report.Averages)
	assert.Zero(t, report.Trend)
	assert.Zero(t, report.MTBFHours)
	assert.Empty(t, report.DowntimeBreakdown)
	assert.Empty(t, report.DailyOEE)
	assert.Empty(t, report.ImprovementOpportunities)
	assert.Equal(t, TrendStable, report.Productivity.Trend)
	assert.Len(t, report.PerformanceVariation.Daily, 31)
	assert.Equal(t, RiskLow, report.Risk.Level)
}

func TestGetHistoricalAnalytics(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()
	createMachine(t, env, "m-1", 10000)

	march10 := time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)
	march11 := march10.AddDate(0, 0, 1)
	february := time.Date(2024, 2, 12, 6, 0, 0, 0, time.UTC)

	for _, in := range []ProductionRecordInput{
		recordInput("m-1", march10, 240, 9000, 240, 0),
		recordInput("m-1", march11, 240, 9000, 240, 0),
		recordInput("m-2", march10, 240, 5000, 240, 0),
	} {
		_, err := env.production.Create(ctx, in)
		require.NoError(t, err)
	}
	// last month's run, stored without a current-month history entry
	require.NoError(t, env.repo.CreateProductionRecord(ctx, &model.ProductionRecord{
		ID:             "feb-run",
		MachineID:      "m-1",
		StartTime:      february,
		EndTime:        february.Add(8 * time.Hour),
		GoodProduction: 20000,
		PlannedTime:    480,
	}))

	ninety, thirty := 90.0, 30.0
	_, err := env.events.RecordDowntime(ctx, DowntimeInput{MachineID: "m-1", Category: "mechanical", StartTime: &march10, Minutes: &ninety})
	require.NoError(t, err)
	_, err = env.events.RecordDowntime(ctx, DowntimeInput{MachineID: "m-1", Category: "electrical", StartTime: &march11, Minutes: &thirty})
	require.NoError(t, err)
	_, err = env.events.RaiseAlert(ctx, AlertInput{MachineID: "m-1", Severity: model.AlertSeverityCritical, Message: "jam"})
	require.NoError(t, err)
	_, err = env.events.RaiseAlert(ctx, AlertInput{MachineID: "m-1", Severity: model.AlertSeverityWarning, Message: "slow"})
	require.NoError(t, err)

	machine := "m-1"
	report, err := env.analytics.GetHistoricalAnalytics(ctx, &machine)
	require.NoError(t, err)

	recordMetrics := oee.DefaultPolicy().ForRecord(9000, 0, 0, 240, 0)
	assert.InDelta(t, recordMetrics.OEE, report.Averages.OEE, 0.01)
	assert.Equal(t, 18000.0, report.Totals.Production)
	assert.Equal(t, 2, report.Totals.Records)
	assert.Equal(t, 2, report.Totals.HistoryEntries)
	assert.Equal(t, 2, report.Totals.DowntimeEvents)
	assert.Equal(t, 1, report.Totals.CriticalAlerts)
	assert.Equal(t, 2.0, report.Totals.DowntimeHours)
	assert.Equal(t, 4.0, report.MTBFHours, "480 planned minutes over two stops")

	require.Len(t, report.DowntimeBreakdown, 2)
	assert.Equal(t, DowntimeCategory{Category: "mechanical", Hours: 1.5, Percentage: 75, Events: 1}, report.DowntimeBreakdown[0])
	assert.Equal(t, 25.0, report.DowntimeBreakdown[1].Percentage)

	assert.Equal(t, 20000.0, report.Productivity.PreviousProduction)
	assert.Equal(t, -10.0, report.Productivity.ChangePercent)
	assert.Equal(t, TrendDecline, report.Productivity.Trend)

	assert.Equal(t, RiskHigh, report.Risk.Level)
	assert.GreaterOrEqual(t, len(report.Risk.Factors), 2)
	assert.NotEmpty(t, report.ImprovementOpportunities)
	require.Len(t, report.DailyOEE, 1, "history is stamped at write time")
	assert.Equal(t, "2024-03-15", report.DailyOEE[0].Date)
}

func TestGetMonthlyAnalyticsSelectsMonth(t *testing.T) {
	env := newTestEnv(t, testNow)
	ctx := context.Background()

	_, err := env.production.Create(ctx, recordInput("m-1", time.Date(2024, 2, 12, 6, 0, 0, 0, time.UTC), 480, 20000, 480, 0))
	require.NoError(t, err)

	report, err := env.analytics.GetMonthlyAnalytics(ctx, nil, time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 20000.0, report.Totals.Production)
	assert.Len(t, report.PerformanceVariation.Daily, 29, "leap year February")
	assert.Equal(t, TrendImprovement, report.Productivity.Trend)
}

// brokenHistoryRepo fails history reads the way the gateway does when both
// stores are down
type brokenHistoryRepo struct {
	repository.OEERepository
}

func (brokenHistoryRepo) ListOEEHistory(ctx context.Context, filter repository.HistoryFilter) ([]model.OEEHistoryEntry, error) {
	return nil, &apperror.TerminalStoreError{Op: "list_oee_history", Err: errors.New("disk I/O error")}
}

func TestGetHistoricalAnalyticsPropagatesStoreFailure(t *testing.T) {
	repo := brokenHistoryRepo{OEERepository: newTestRepo(t)}
	service := NewAnalyticsService(repo, fixedClock(testNow), logging.Discard())

	_, err := service.GetHistoricalAnalytics(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsTerminal(err))
}
