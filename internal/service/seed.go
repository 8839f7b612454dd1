package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/model"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"

	"github.com/google/uuid"
)

// SeedOptions controls demo data generation
type SeedOptions struct {
	// Days of history to generate, ending today
	Days int
	// RandSeed makes runs reproducible
	RandSeed int64
}

// SeedSummary reports what a seed run wrote
type SeedSummary struct {
	Machines       int `json:"machines"`
	Records        int `json:"records"`
	Skipped        int `json:"skipped"`
	DowntimeEvents int `json:"downtime_events"`
	Alerts         int `json:"alerts"`
}

// Seeder fills a store with demo machines and production history. Ids are
// derived from machine codes and run times, so seeding twice skips runs that
// already exist instead of duplicating them.
type Seeder struct {
	repo         repository.OEERepository
	policy       oee.Policy
	rollupPolicy RollupPolicy
	now          Clock
	logger       *slog.Logger
}

// NewSeeder creates a seeder writing through repo
func NewSeeder(repo repository.OEERepository, policy oee.Policy, rollupPolicy RollupPolicy, clock Clock, logger *slog.Logger) *Seeder {
	return &Seeder{
		repo:         repo,
		policy:       policy,
		rollupPolicy: rollupPolicy,
		now:          clockOrSystem(clock),
		logger:       logger,
	}
}

var seedMachines = []struct {
	code   string
	name   string
	target float64
	rate   float64 // share of the policy rate this machine reaches
}{
	{"EXT-01", "Film Extruder 1", 12000, 0.95},
	{"EXT-02", "Film Extruder 2", 12000, 0.80},
	{"PKG-01", "Bagging Line 1", 9000, 0.90},
	{"CMP-01", "Organic Compactor", 6000, 0.70},
}

var downtimeCategories = []string{"mechanical", "electrical", "material", "changeover", "quality"}

var shifts = []struct {
	name  string
	start int // hour of day
}{
	{"morning", 6},
	{"afternoon", 14},
	{"night", 22},
}

func seedID(parts ...string) string {
	name := "oeemon"
	for _, p := range parts {
		name += "/" + p
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// Seed writes machines, shift runs, downtime events and alerts for the last
// opts.Days days. Runs go through the production service so every derived
// value is computed exactly as for live writes.
func (s *Seeder) Seed(ctx context.Context, opts SeedOptions) (*SeedSummary, error) {
	if opts.Days <= 0 {
		return nil, apperror.Invalid("days", "must be positive")
	}
	rng := rand.New(rand.NewSource(opts.RandSeed))
	summary := &SeedSummary{}

	// history timestamps follow the seeded runs, not the wall clock
	var writeTime time.Time
	clock := func() time.Time { return writeTime }
	records := NewProductionService(s.repo, s.policy, NewRollup(s.repo, s.rollupPolicy, clock, s.logger), clock, s.logger)
	events := NewEventService(s.repo, clock)

	machines, err := s.createMachines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create machines: %w", err)
	}
	summary.Machines = len(machines)

	today := s.now().UTC().Truncate(24 * time.Hour)
	startDate := today.AddDate(0, 0, -opts.Days+1)

	for day := startDate; !day.After(today); day = day.AddDate(0, 0, 1) {
		for i, m := range machines {
			def := seedMachines[i]
			for _, shift := range shifts {
				start := day.Add(time.Duration(shift.start) * time.Hour)
				end := start.Add(8 * time.Hour)
				if end.After(s.now()) {
					continue
				}

				id := seedID("record", m.Code, start.Format(time.RFC3339))
				if _, err := s.repo.GetProductionRecord(ctx, id); err == nil {
					summary.Skipped++
					continue
				} else if !apperror.IsNotFound(err) {
					return nil, fmt.Errorf("failed to check production record: %w", err)
				}

				planned := 480.0
				downtime := float64(rng.Intn(60))
				runtime := planned - downtime
				good := runtime * s.policy.DefaultProductionRate * s.policy.ExpectedEfficiency * def.rate * (0.8 + rng.Float64()*0.25)
				film := good * (0.01 + rng.Float64()*0.04)
				organic := good * rng.Float64() * 0.01

				writeTime = end
				rec, err := records.Create(ctx, ProductionRecordInput{
					ID:              id,
					MachineID:       &m.ID,
					StartTime:       &start,
					EndTime:         &end,
					GoodProduction:  ptr(float64(int(good))),
					FilmWaste:       ptr(float64(int(film))),
					OrganicWaste:    ptr(float64(int(organic))),
					PlannedTime:     &planned,
					DowntimeMinutes: &downtime,
					Shift:           ptr(shift.name),
					OperatorID:      ptr(fmt.Sprintf("op-%02d", rng.Intn(12)+1)),
					BatchNumber:     ptr(fmt.Sprintf("%s-%s", m.Code, start.Format("20060102-15"))),
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create production record: %w", err)
				}
				summary.Records++

				if downtime >= 20 {
					category := downtimeCategories[rng.Intn(len(downtimeCategories))]
					stopStart := start.Add(time.Duration(rng.Intn(6*60)) * time.Minute)
					if _, err := events.RecordDowntime(ctx, DowntimeInput{
						MachineID: m.ID,
						Reason:    fmt.Sprintf("%s stop during %s shift", category, shift.name),
						Category:  category,
						StartTime: &stopStart,
						Minutes:   &downtime,
					}); err != nil {
						return nil, fmt.Errorf("failed to create downtime event: %w", err)
					}
					summary.DowntimeEvents++
				}

				if rec.OEE < 50 {
					if _, err := events.RaiseAlert(ctx, AlertInput{
						MachineID: m.ID,
						Severity:  model.AlertSeverityCritical,
						Message:   fmt.Sprintf("OEE dropped to %.1f%% on %s shift", rec.OEE, shift.name),
					}); err != nil {
						return nil, fmt.Errorf("failed to create alert: %w", err)
					}
					summary.Alerts++
				}
			}
		}
	}

	// leave live metrics relative to the real clock
	live := NewRollup(s.repo, s.rollupPolicy, s.now, s.logger)
	for _, m := range machines {
		if _, err := live.Run(ctx, m.ID); err != nil {
			return nil, fmt.Errorf("failed to roll up machine %s: %w", m.Code, err)
		}
	}

	s.logger.Info("seeded store",
		"machines", summary.Machines,
		"records", summary.Records,
		"skipped", summary.Skipped,
		"downtime_events", summary.DowntimeEvents,
		"alerts", summary.Alerts,
	)
	return summary, nil
}

func (s *Seeder) createMachines(ctx context.Context) ([]model.Machine, error) {
	machines := make([]model.Machine, 0, len(seedMachines))
	for _, def := range seedMachines {
		id := seedID("machine", def.code)
		m, err := s.repo.GetMachine(ctx, id)
		if err == nil {
			machines = append(machines, *m)
			continue
		}
		if !apperror.IsNotFound(err) {
			return nil, err
		}

		m = &model.Machine{
			ID:               id,
			Code:             def.code,
			Name:             def.name,
			Status:           model.MachineStatusActive,
			TargetProduction: def.target,
		}
		if err := s.repo.CreateMachine(ctx, m); err != nil {
			return nil, err
		}
		machines = append(machines, *m)
	}
	return machines, nil
}

func ptr[T any](v T) *T {
	return &v
}
