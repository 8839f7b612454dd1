package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"oee-analytics/internal/model"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"
)

// AnalyticsService defines the interface for analytics operations
type AnalyticsService interface {
	// GetHistoricalAnalytics reports on the current calendar month
	GetHistoricalAnalytics(ctx context.Context, machineID *string) (*HistoricalAnalytics, error)
	// GetMonthlyAnalytics reports on the calendar month containing month
	GetMonthlyAnalytics(ctx context.Context, machineID *string, month time.Time) (*HistoricalAnalytics, error)
}

// RiskLevel grades the risk assessment, low < medium < high
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (l RiskLevel) rank() int {
	switch l {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Productivity trend labels
const (
	TrendImprovement = "improvement"
	TrendDecline     = "decline"
	TrendStable      = "stable"
)

// Thresholds used by the aggregator
const (
	productivityChangeThreshold = 5.0
	dailyVariationThreshold     = 20.0
	maxVariationRiskThreshold   = 30.0
	oeeRiskThreshold            = 70.0
	downtimeRiskHours           = 100.0

	availabilityTarget = 85.0
	performanceTarget  = 90.0
	qualityTarget      = 95.0
)

// HistoricalAnalytics is the monthly analytics report
type HistoricalAnalytics struct {
	MachineID                *string                  `json:"machine_id,omitempty"`
	Period                   PeriodInfo               `json:"period"`
	PreviousPeriod           PeriodInfo               `json:"previous_period"`
	Averages                 oee.Metrics              `json:"averages"`
	Totals                   AnalyticsTotals          `json:"totals"`
	Trend                    float64                  `json:"trend"`
	MTBFHours                float64                  `json:"mtbf_hours"`
	DowntimeBreakdown        []DowntimeCategory       `json:"downtime_breakdown"`
	DailyOEE                 []DailyOEE               `json:"daily_oee"`
	ImprovementOpportunities []ImprovementOpportunity `json:"improvement_opportunities"`
	Productivity             ProductivityComparison   `json:"productivity"`
	PerformanceVariation     PerformanceVariation     `json:"performance_variation"`
	Risk                     RiskAssessment           `json:"risk"`
}

// PeriodInfo contains date range information, end exclusive
type PeriodInfo struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// AnalyticsTotals contains summary totals for the period
type AnalyticsTotals struct {
	Production     float64 `json:"production"`
	Waste          float64 `json:"waste"`
	DowntimeHours  float64 `json:"downtime_hours"`
	PlannedHours   float64 `json:"planned_hours"`
	Records        int     `json:"records"`
	HistoryEntries int     `json:"history_entries"`
	DowntimeEvents int     `json:"downtime_events"`
	CriticalAlerts int     `json:"critical_alerts"`
}

// DowntimeCategory is one slice of the downtime breakdown
type DowntimeCategory struct {
	Category   string  `json:"category"`
	Hours      float64 `json:"hours"`
	Percentage float64 `json:"percentage"`
	Events     int     `json:"events"`
}

// DailyOEE is the average OEE of the history entries of one day
type DailyOEE struct {
	Date    string  `json:"date"`
	OEE     float64 `json:"oee"`
	Entries int     `json:"entries"`
}

// ImprovementOpportunity suggests where OEE points can be recovered
type ImprovementOpportunity struct {
	Area       string  `json:"area"`
	Current    float64 `json:"current"`
	Target     float64 `json:"target"`
	Potential  float64 `json:"potential"`
	Suggestion string  `json:"suggestion"`
}

// ProductivityComparison compares good production with the previous month
type ProductivityComparison struct {
	CurrentProduction  float64 `json:"current_production"`
	PreviousProduction float64 `json:"previous_production"`
	ChangePercent      float64 `json:"change_percent"`
	Trend              string  `json:"trend"`
}

// DailyProduction is the good production of one calendar day
type DailyProduction struct {
	Date       string  `json:"date"`
	Production float64 `json:"production"`
	// Deviation from the daily mean in percent, 0 for days without production
	Deviation float64 `json:"deviation"`
}

// PerformanceVariation summarizes day to day production swings
type PerformanceVariation struct {
	Daily         []DailyProduction `json:"daily"`
	MeanDaily     float64           `json:"mean_daily"`
	MaxVariation  float64           `json:"max_variation"`
	VariationDays int               `json:"variation_days"`
}

// RiskAssessment grades the period and lists what drove the grade
type RiskAssessment struct {
	Level           RiskLevel `json:"level"`
	Factors         []string  `json:"factors"`
	Recommendations []string  `json:"recommendations"`
}

// analyticsService implements AnalyticsService
type analyticsService struct {
	repo   repository.OEERepository
	now    Clock
	logger *slog.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(repo repository.OEERepository, clock Clock, logger *slog.Logger) AnalyticsService {
	return &analyticsService{repo: repo, now: clockOrSystem(clock), logger: logger}
}

func (s *analyticsService) GetHistoricalAnalytics(ctx context.Context, machineID *string) (*HistoricalAnalytics, error) {
	return s.GetMonthlyAnalytics(ctx, machineID, s.now())
}

// periodData holds everything fetched for one report
type periodData struct {
	history         []model.OEEHistoryEntry
	downtime        []model.DowntimeEvent
	records         []model.ProductionRecord
	previousRecords []model.ProductionRecord
	criticalAlerts  []model.Alert
}

func (s *analyticsService) GetMonthlyAnalytics(ctx context.Context, machineID *string, month time.Time) (*HistoricalAnalytics, error) {
	if machineID != nil && *machineID == "" {
		machineID = nil
	}
	period, previous := monthPeriods(month)

	data, err := s.fetch(ctx, machineID, period, previous)
	if err != nil {
		s.logger.Error("failed to load analytics data",
			"machine_id", derefString(machineID),
			"error", err.Error(),
		)
		return nil, err
	}

	result := &HistoricalAnalytics{
		MachineID:      machineID,
		Period:         period,
		PreviousPeriod: previous,
		Averages:       s.calculateAverages(data.history),
		Trend:          s.calculateTrend(data.history),
		DailyOEE:       s.calculateDailyOEE(data.history),
	}

	result.Totals = s.calculateTotals(data)
	result.MTBFHours = s.calculateMTBF(data.records, len(data.downtime))
	result.DowntimeBreakdown = s.calculateDowntimeBreakdown(data.downtime)
	result.Productivity = s.calculateProductivity(data.records, data.previousRecords)
	result.PerformanceVariation = s.calculatePerformanceVariation(data.records, period)
	result.Risk = s.assessRisk(result, len(data.history) > 0)
	if len(data.history) > 0 {
		result.ImprovementOpportunities = s.calculateImprovementOpportunities(result.Averages)
	} else {
		result.ImprovementOpportunities = []ImprovementOpportunity{}
	}

	return result, nil
}

func (s *analyticsService) fetch(ctx context.Context, machineID *string, period, previous PeriodInfo) (*periodData, error) {
	id := derefString(machineID)
	var (
		data periodData
		err  error
	)

	data.history, err = s.repo.ListOEEHistory(ctx, repository.HistoryFilter{
		MachineID: id, Start: period.StartDate, End: period.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load oee history: %w", err)
	}

	data.downtime, err = s.repo.ListDowntimeEvents(ctx, repository.DowntimeFilter{
		MachineID: id, Start: period.StartDate, End: period.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load downtime events: %w", err)
	}

	data.records, err = s.repo.ListProductionRecords(ctx, repository.ProductionRecordFilter{
		MachineID: id, Start: period.StartDate, End: period.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load production records: %w", err)
	}

	data.criticalAlerts, err = s.repo.ListAlerts(ctx, repository.AlertFilter{
		MachineID: id, Severity: model.AlertSeverityCritical, Start: period.StartDate, End: period.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}

	data.previousRecords, err = s.repo.ListProductionRecords(ctx, repository.ProductionRecordFilter{
		MachineID: id, Start: previous.StartDate, End: previous.EndDate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load previous production records: %w", err)
	}

	return &data, nil
}

// monthPeriods returns the calendar month containing t and the month before, in UTC
func monthPeriods(t time.Time) (current, previous PeriodInfo) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	current = PeriodInfo{StartDate: start, EndDate: start.AddDate(0, 1, 0)}
	previous = PeriodInfo{StartDate: start.AddDate(0, -1, 0), EndDate: start}
	return current, previous
}

// calculateAverages computes simple averages over the history entries
func (s *analyticsService) calculateAverages(history []model.OEEHistoryEntry) oee.Metrics {
	if len(history) == 0 {
		return oee.Metrics{}
	}
	var sum oee.Metrics
	for _, h := range history {
		sum.OEE += h.OEE
		sum.Availability += h.Availability
		sum.Performance += h.Performance
		sum.Quality += h.Quality
	}
	n := float64(len(history))
	return oee.Metrics{
		OEE:          round2(sum.OEE / n),
		Availability: round2(sum.Availability / n),
		Performance:  round2(sum.Performance / n),
		Quality:      round2(sum.Quality / n),
	}
}

// calculateTrend is the mean OEE of the second half of the history minus the first half
func (s *analyticsService) calculateTrend(history []model.OEEHistoryEntry) float64 {
	if len(history) < 2 {
		return 0
	}
	mid := len(history) / 2
	return round2(meanOEE(history[mid:]) - meanOEE(history[:mid]))
}

func meanOEE(entries []model.OEEHistoryEntry) float64 {
	if len(entries) == 0 {
		return 0
	}
	var total float64
	for _, e := range entries {
		total += e.OEE
	}
	return total / float64(len(entries))
}

func (s *analyticsService) calculateDailyOEE(history []model.OEEHistoryEntry) []DailyOEE {
	days := make(map[string]*DailyOEE)
	for _, h := range history {
		key := h.Timestamp.UTC().Format(time.DateOnly)
		d, ok := days[key]
		if !ok {
			d = &DailyOEE{Date: key}
			days[key] = d
		}
		d.OEE += h.OEE
		d.Entries++
	}

	series := make([]DailyOEE, 0, len(days))
	for _, d := range days {
		d.OEE = round2(d.OEE / float64(d.Entries))
		series = append(series, *d)
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Date < series[j].Date })
	return series
}

func (s *analyticsService) calculateTotals(data *periodData) AnalyticsTotals {
	var totals AnalyticsTotals
	for _, r := range data.records {
		totals.Production += r.GoodProduction
		totals.Waste += r.TotalWaste()
		totals.PlannedHours += r.PlannedTime / 60
	}
	for _, e := range data.downtime {
		totals.DowntimeHours += e.Minutes / 60
	}

	totals.Production = round2(totals.Production)
	totals.Waste = round2(totals.Waste)
	totals.PlannedHours = round2(totals.PlannedHours)
	totals.DowntimeHours = round2(totals.DowntimeHours)
	totals.Records = len(data.records)
	totals.HistoryEntries = len(data.history)
	totals.DowntimeEvents = len(data.downtime)
	totals.CriticalAlerts = len(data.criticalAlerts)
	return totals
}

// calculateMTBF is planned time per downtime event, in hours
func (s *analyticsService) calculateMTBF(records []model.ProductionRecord, events int) float64 {
	if events == 0 {
		return 0
	}
	var planned float64
	for _, r := range records {
		planned += r.PlannedTime
	}
	return round2(planned / float64(events) / 60)
}

// calculateDowntimeBreakdown groups downtime hours by category, largest first
func (s *analyticsService) calculateDowntimeBreakdown(events []model.DowntimeEvent) []DowntimeCategory {
	byCategory := make(map[string]*DowntimeCategory)
	var totalHours float64

	for _, e := range events {
		category := e.Category
		if category == "" {
			category = "uncategorized"
		}
		c, ok := byCategory[category]
		if !ok {
			c = &DowntimeCategory{Category: category}
			byCategory[category] = c
		}
		hours := e.Minutes / 60
		c.Hours += hours
		c.Events++
		totalHours += hours
	}

	breakdown := make([]DowntimeCategory, 0, len(byCategory))
	if totalHours <= 0 {
		return breakdown
	}
	for _, c := range byCategory {
		c.Percentage = round2(c.Hours / totalHours * 100)
		c.Hours = round2(c.Hours)
		breakdown = append(breakdown, *c)
	}
	sort.Slice(breakdown, func(i, j int) bool {
		if breakdown[i].Hours != breakdown[j].Hours {
			return breakdown[i].Hours > breakdown[j].Hours
		}
		return breakdown[i].Category < breakdown[j].Category
	})
	return breakdown
}

func (s *analyticsService) calculateProductivity(current, previous []model.ProductionRecord) ProductivityComparison {
	cmp := ProductivityComparison{
		CurrentProduction:  round2(sumGood(current)),
		PreviousProduction: round2(sumGood(previous)),
	}
	cmp.ChangePercent = calculateChangePercent(cmp.CurrentProduction, cmp.PreviousProduction)

	switch {
	case cmp.ChangePercent >= productivityChangeThreshold:
		cmp.Trend = TrendImprovement
	case cmp.ChangePercent <= -productivityChangeThreshold:
		cmp.Trend = TrendDecline
	default:
		cmp.Trend = TrendStable
	}
	return cmp
}

func sumGood(records []model.ProductionRecord) float64 {
	var total float64
	for _, r := range records {
		total += r.GoodProduction
	}
	return total
}

// calculatePerformanceVariation builds the production series for every day
// of the period and measures how far producing days stray from the mean
func (s *analyticsService) calculatePerformanceVariation(records []model.ProductionRecord, period PeriodInfo) PerformanceVariation {
	perDay := make(map[string]float64)
	for _, r := range records {
		perDay[r.StartTime.UTC().Format(time.DateOnly)] += r.GoodProduction
	}

	var daily []DailyProduction
	var total float64
	for day := period.StartDate; day.Before(period.EndDate); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		daily = append(daily, DailyProduction{Date: key, Production: perDay[key]})
		total += perDay[key]
	}

	variation := PerformanceVariation{Daily: daily}
	if len(daily) == 0 {
		return variation
	}
	mean := total / float64(len(daily))
	variation.MeanDaily = round2(mean)
	if mean <= 0 {
		return variation
	}

	for i := range daily {
		if daily[i].Production == 0 {
			continue
		}
		deviation := math.Abs(daily[i].Production-mean) / mean * 100
		daily[i].Deviation = round2(deviation)
		daily[i].Production = round2(daily[i].Production)
		if deviation > variation.MaxVariation {
			variation.MaxVariation = deviation
		}
		if deviation > dailyVariationThreshold {
			variation.VariationDays++
		}
	}
	variation.MaxVariation = round2(variation.MaxVariation)
	return variation
}

// assessRisk grades the report. One factor gives medium, two or more give
// high, and a low average OEE gives high on its own. The OEE factor only
// applies when the month has history entries; an empty month averages to
// zero and is not graded as low OEE. Improvement opportunities follow the
// same rule.
func (s *analyticsService) assessRisk(a *HistoricalAnalytics, hasHistory bool) RiskAssessment {
	risk := RiskAssessment{
		Level:           RiskLow,
		Factors:         []string{},
		Recommendations: []string{},
	}
	escalate := func(level RiskLevel) {
		if level.rank() > risk.Level.rank() {
			risk.Level = level
		}
	}
	add := func(factor, recommendation string) {
		risk.Factors = append(risk.Factors, factor)
		risk.Recommendations = append(risk.Recommendations, recommendation)
	}

	if a.Productivity.Trend == TrendDecline {
		add(fmt.Sprintf("Productivity declined %.1f%% versus the previous month", math.Abs(a.Productivity.ChangePercent)),
			"Review shift staffing and material supply against last month's runs")
	}
	if a.PerformanceVariation.MaxVariation > maxVariationRiskThreshold {
		add(fmt.Sprintf("Daily production varies up to %.1f%% from the mean", a.PerformanceVariation.MaxVariation),
			"Standardize changeovers and operating procedures to stabilize daily output")
	}
	lowOEE := hasHistory && a.Averages.OEE < oeeRiskThreshold
	if lowOEE {
		add(fmt.Sprintf("Average OEE of %.1f%% is below %.0f%%", a.Averages.OEE, oeeRiskThreshold),
			"Run a loss analysis to find the weakest OEE factor")
	}
	if a.Totals.DowntimeHours > downtimeRiskHours {
		add(fmt.Sprintf("Downtime reached %.1f hours this month", a.Totals.DowntimeHours),
			"Prioritize preventive maintenance for the largest downtime categories")
	}

	switch {
	case len(risk.Factors) >= 2:
		escalate(RiskHigh)
	case len(risk.Factors) == 1:
		escalate(RiskMedium)
	}
	if lowOEE {
		escalate(RiskHigh)
	}
	return risk
}

// calculateImprovementOpportunities lists the OEE factors below target with
// the OEE points a fix could recover
func (s *analyticsService) calculateImprovementOpportunities(avg oee.Metrics) []ImprovementOpportunity {
	opportunities := []ImprovementOpportunity{}

	if avg.Availability < availabilityTarget {
		opportunities = append(opportunities, ImprovementOpportunity{
			Area:       "availability",
			Current:    avg.Availability,
			Target:     availabilityTarget,
			Potential:  round2((availabilityTarget - avg.Availability) * 0.7),
			Suggestion: "Reduce unplanned stops with preventive maintenance and faster changeovers",
		})
	}
	if avg.Performance < performanceTarget {
		opportunities = append(opportunities, ImprovementOpportunity{
			Area:       "performance",
			Current:    avg.Performance,
			Target:     performanceTarget,
			Potential:  round2((performanceTarget - avg.Performance) * 0.8),
			Suggestion: "Address micro-stops and reduced speed on the line",
		})
	}
	if avg.Quality < qualityTarget {
		opportunities = append(opportunities, ImprovementOpportunity{
			Area:       "quality",
			Current:    avg.Quality,
			Target:     qualityTarget,
			Potential:  round2((qualityTarget - avg.Quality) * 0.9),
			Suggestion: "Cut film and organic waste through process control at startup",
		})
	}
	return opportunities
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
