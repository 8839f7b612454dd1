package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"
)

// RollupPolicy controls the machine metric rollup
type RollupPolicy struct {
	Window time.Duration

	// No-data default used when the window holds no records
	NoDataTargetShare     float64
	NoDataPlannedMinutes  float64
	NoDataDowntimeMinutes float64
}

// DefaultRollupPolicy returns a 24h window with the 85% / 480 / 30 placeholder
func DefaultRollupPolicy() RollupPolicy {
	return RollupPolicy{
		Window:                24 * time.Hour,
		NoDataTargetShare:     0.85,
		NoDataPlannedMinutes:  480,
		NoDataDowntimeMinutes: 30,
	}
}

// MachineRollup is the result of recomputing a machine's live metrics
type MachineRollup struct {
	MachineID string `json:"machine_id"`
	oee.Metrics
	CurrentProduction float64   `json:"current_production"`
	PlannedTime       float64   `json:"planned_time"`
	DowntimeMinutes   float64   `json:"downtime_minutes"`
	TotalWaste        float64   `json:"total_waste"`
	RecordCount       int       `json:"record_count"`
	WindowStart       time.Time `json:"window_start"`
	WindowEnd         time.Time `json:"window_end"`
	// Synthetic is set when the metrics come from the no-data default
	// rather than measured records.
	Synthetic bool `json:"synthetic"`
}

// Rollup recomputes machine metrics from the persisted records of a trailing
// window. Runs for the same machine are serialized.
type Rollup struct {
	repo   repository.OEERepository
	policy RollupPolicy
	locks  *keyedMutex
	now    Clock
	logger *slog.Logger
}

// NewRollup creates a rollup over repo
func NewRollup(repo repository.OEERepository, policy RollupPolicy, clock Clock, logger *slog.Logger) *Rollup {
	if policy.Window <= 0 {
		policy.Window = DefaultRollupPolicy().Window
	}
	return &Rollup{
		repo:   repo,
		policy: policy,
		locks:  newKeyedMutex(),
		now:    clockOrSystem(clock),
		logger: logger,
	}
}

// Run recomputes and stores the live metrics of machineID. It returns a
// NotFoundError when the machine row does not exist.
func (r *Rollup) Run(ctx context.Context, machineID string) (*MachineRollup, error) {
	unlock := r.locks.Lock(machineID)
	defer unlock()

	machine, err := r.repo.GetMachine(ctx, machineID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	windowStart := now.Add(-r.policy.Window)
	records, err := r.repo.ListProductionRecords(ctx, repository.ProductionRecordFilter{
		MachineID: machineID,
		Start:     windowStart,
		End:       now,
	})
	if err != nil {
		return nil, err
	}

	result := &MachineRollup{
		MachineID:   machineID,
		RecordCount: len(records),
		WindowStart: windowStart,
		WindowEnd:   now,
	}

	var filmWaste, organicWaste float64
	for i := range records {
		result.CurrentProduction += records[i].GoodProduction
		result.PlannedTime += records[i].PlannedTime
		result.DowntimeMinutes += records[i].DowntimeMinutes
		filmWaste += records[i].FilmWaste
		organicWaste += records[i].OrganicWaste
	}
	result.TotalWaste = filmWaste + organicWaste

	target := math.Max(machine.TargetProduction, 1)
	if len(records) == 0 {
		result.Synthetic = true
		result.CurrentProduction = target * r.policy.NoDataTargetShare
		result.PlannedTime = r.policy.NoDataPlannedMinutes
		result.DowntimeMinutes = r.policy.NoDataDowntimeMinutes
	}

	quality := oee.Quality(result.CurrentProduction, filmWaste, organicWaste)
	result.Metrics = oee.CalculateWithQuality(result.CurrentProduction, result.PlannedTime, result.DowntimeMinutes, target, quality)

	err = r.repo.UpdateMachineMetrics(ctx, machineID, repository.MachineMetrics{
		OEE:               result.OEE,
		Availability:      result.Availability,
		Performance:       result.Performance,
		Quality:           result.Quality,
		CurrentProduction: result.CurrentProduction,
		Synthetic:         result.Synthetic,
		UpdatedAt:         now,
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("machine metrics rolled up",
		"machine_id", machineID,
		"records", result.RecordCount,
		"oee", result.OEE,
		"synthetic", result.Synthetic,
	)
	return result, nil
}

// runAfterWrite rolls up machineID after a record write. Failures are logged
// and never fail the write that triggered them.
func (r *Rollup) runAfterWrite(ctx context.Context, machineID string) {
	if _, err := r.Run(ctx, machineID); err != nil {
		if apperror.IsNotFound(err) {
			r.logger.Info("skipping rollup for unknown machine",
				"machine_id", machineID,
			)
			return
		}
		r.logger.Error("machine rollup failed",
			"machine_id", machineID,
			"error", err.Error(),
		)
	}
}
