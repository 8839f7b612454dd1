package service

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/model"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"

	"github.com/google/uuid"
)

// ProductionService defines the production record operations
type ProductionService interface {
	Create(ctx context.Context, input ProductionRecordInput) (*model.ProductionRecord, error)
	Update(ctx context.Context, id string, patch ProductionRecordInput) (*model.ProductionRecord, error)
	Delete(ctx context.Context, id string) error
	// Upsert updates when input.ID is set and creates otherwise
	Upsert(ctx context.Context, input ProductionRecordInput) (*model.ProductionRecord, error)
	Get(ctx context.Context, id string) (*model.ProductionRecord, error)
	List(ctx context.Context, filter repository.ProductionRecordFilter) ([]model.ProductionRecord, error)
}

// ProductionRecordInput carries caller-supplied record fields. Nil means
// "not provided": required on create, unchanged on update. Derived metrics
// are never accepted from callers.
type ProductionRecordInput struct {
	ID              string     `json:"id,omitempty"`
	MachineID       *string    `json:"machine_id,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	GoodProduction  *float64   `json:"good_production,omitempty"`
	FilmWaste       *float64   `json:"film_waste,omitempty"`
	OrganicWaste    *float64   `json:"organic_waste,omitempty"`
	PlannedTime     *float64   `json:"planned_time,omitempty"`
	DowntimeMinutes *float64   `json:"downtime_minutes,omitempty"`
	Shift           *string    `json:"shift,omitempty"`
	OperatorID      *string    `json:"operator_id,omitempty"`
	MaterialCode    *string    `json:"material_code,omitempty"`
	BatchNumber     *string    `json:"batch_number,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
}

// productionService implements ProductionService
type productionService struct {
	repo   repository.OEERepository
	policy oee.Policy
	rollup *Rollup
	now    Clock
	newID  func() string
	logger *slog.Logger
}

// NewProductionService creates a new production service
func NewProductionService(repo repository.OEERepository, policy oee.Policy, rollup *Rollup, clock Clock, logger *slog.Logger) ProductionService {
	return &productionService{
		repo:   repo,
		policy: policy,
		rollup: rollup,
		now:    clockOrSystem(clock),
		newID:  uuid.NewString,
		logger: logger,
	}
}

func (s *productionService) Create(ctx context.Context, input ProductionRecordInput) (*model.ProductionRecord, error) {
	if input.MachineID == nil || strings.TrimSpace(*input.MachineID) == "" {
		return nil, apperror.Invalid("machine_id", "is required")
	}
	if input.StartTime == nil {
		return nil, apperror.Invalid("start_time", "is required")
	}
	if input.EndTime == nil {
		return nil, apperror.Invalid("end_time", "is required")
	}
	if input.GoodProduction == nil {
		return nil, apperror.Invalid("good_production", "is required")
	}

	rec := &model.ProductionRecord{ID: input.ID}
	if rec.ID == "" {
		rec.ID = s.newID()
	}
	applyInput(rec, input)

	if err := normalizeRecord(rec, input.PlannedTime == nil); err != nil {
		return nil, err
	}
	s.derive(rec)

	if err := s.repo.CreateProductionRecord(ctx, rec); err != nil {
		s.logger.Error("failed to create production record",
			"machine_id", rec.MachineID,
			"error", err.Error(),
		)
		return nil, err
	}

	s.afterWrite(ctx, rec, "")
	return rec, nil
}

func (s *productionService) Update(ctx context.Context, id string, patch ProductionRecordInput) (*model.ProductionRecord, error) {
	if patch.MachineID != nil && strings.TrimSpace(*patch.MachineID) == "" {
		return nil, apperror.Invalid("machine_id", "must not be empty")
	}

	rec, err := s.repo.GetProductionRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *rec
	applyInput(rec, patch)

	if err := normalizeRecord(rec, false); err != nil {
		return nil, err
	}
	if metricInputsChanged(&before, rec) {
		s.derive(rec)
	}

	if err := s.repo.UpdateProductionRecord(ctx, rec); err != nil {
		s.logger.Error("failed to update production record",
			"record_id", id,
			"error", err.Error(),
		)
		return nil, err
	}

	previousMachine := ""
	if before.MachineID != rec.MachineID {
		previousMachine = before.MachineID
	}
	s.afterWrite(ctx, rec, previousMachine)
	return rec, nil
}

func (s *productionService) Delete(ctx context.Context, id string) error {
	rec, err := s.repo.GetProductionRecord(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteProductionRecord(ctx, id); err != nil {
		return err
	}
	s.rollup.runAfterWrite(ctx, rec.MachineID)
	return nil
}

func (s *productionService) Upsert(ctx context.Context, input ProductionRecordInput) (*model.ProductionRecord, error) {
	if input.ID != "" {
		return s.Update(ctx, input.ID, input)
	}
	return s.Create(ctx, input)
}

func (s *productionService) Get(ctx context.Context, id string) (*model.ProductionRecord, error) {
	return s.repo.GetProductionRecord(ctx, id)
}

func (s *productionService) List(ctx context.Context, filter repository.ProductionRecordFilter) ([]model.ProductionRecord, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperror.Invalid("limit", "limit and offset must not be negative")
	}
	return s.repo.ListProductionRecords(ctx, filter)
}

// derive recomputes the four metrics from the record's raw counters
func (s *productionService) derive(rec *model.ProductionRecord) {
	m := s.policy.ForRecord(rec.GoodProduction, rec.FilmWaste, rec.OrganicWaste, rec.PlannedTime, rec.DowntimeMinutes)
	rec.Availability = m.Availability
	rec.Performance = m.Performance
	rec.Quality = m.Quality
	rec.OEE = m.OEE
}

// afterWrite appends the history snapshot and refreshes machine metrics.
// The record is already stored, so failures here are logged only.
func (s *productionService) afterWrite(ctx context.Context, rec *model.ProductionRecord, previousMachine string) {
	entry := &model.OEEHistoryEntry{
		ID:                 s.newID(),
		MachineID:          rec.MachineID,
		ProductionRecordID: rec.ID,
		Timestamp:          s.now(),
		OEE:                rec.OEE,
		Availability:       rec.Availability,
		Performance:        rec.Performance,
		Quality:            rec.Quality,
		GoodProduction:     rec.GoodProduction,
		TotalWaste:         rec.TotalWaste(),
		DowntimeMinutes:    rec.DowntimeMinutes,
		PlannedTime:        rec.PlannedTime,
		Shift:              rec.Shift,
	}
	if err := s.repo.AppendOEEHistory(ctx, entry); err != nil {
		s.logger.Error("failed to append oee history",
			"record_id", rec.ID,
			"machine_id", rec.MachineID,
			"error", err.Error(),
		)
	}

	s.rollup.runAfterWrite(ctx, rec.MachineID)
	if previousMachine != "" {
		s.rollup.runAfterWrite(ctx, previousMachine)
	}
}

func applyInput(rec *model.ProductionRecord, in ProductionRecordInput) {
	if in.MachineID != nil {
		rec.MachineID = strings.TrimSpace(*in.MachineID)
	}
	if in.StartTime != nil {
		rec.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		rec.EndTime = in.EndTime.UTC()
	}
	if in.GoodProduction != nil {
		rec.GoodProduction = *in.GoodProduction
	}
	if in.FilmWaste != nil {
		rec.FilmWaste = *in.FilmWaste
	}
	if in.OrganicWaste != nil {
		rec.OrganicWaste = *in.OrganicWaste
	}
	if in.PlannedTime != nil {
		rec.PlannedTime = *in.PlannedTime
	}
	if in.DowntimeMinutes != nil {
		rec.DowntimeMinutes = *in.DowntimeMinutes
	}
	if in.Shift != nil {
		rec.Shift = *in.Shift
	}
	if in.OperatorID != nil {
		rec.OperatorID = *in.OperatorID
	}
	if in.MaterialCode != nil {
		rec.MaterialCode = *in.MaterialCode
	}
	if in.BatchNumber != nil {
		rec.BatchNumber = *in.BatchNumber
	}
	if in.Notes != nil {
		rec.Notes = *in.Notes
	}
}

// normalizeRecord validates a merged record in place. A run whose end is not
// after its start crossed midnight and gets 24h added to its end. When
// defaultPlanned is set the planned time becomes the run duration.
func normalizeRecord(rec *model.ProductionRecord, defaultPlanned bool) error {
	if rec.StartTime.IsZero() {
		return apperror.Invalid("start_time", "is required")
	}
	if rec.EndTime.IsZero() {
		return apperror.Invalid("end_time", "is required")
	}
	if rec.EndTime.Equal(rec.StartTime) {
		return apperror.Invalid("end_time", "must differ from start_time")
	}
	if rec.EndTime.Before(rec.StartTime) {
		rec.EndTime = rec.EndTime.Add(24 * time.Hour)
		if !rec.EndTime.After(rec.StartTime) {
			return apperror.Invalid("end_time", "must be after start_time")
		}
	}

	if defaultPlanned {
		rec.PlannedTime = rec.EndTime.Sub(rec.StartTime).Minutes()
	}

	numbers := []struct {
		field string
		value float64
	}{
		{"good_production", rec.GoodProduction},
		{"film_waste", rec.FilmWaste},
		{"organic_waste", rec.OrganicWaste},
		{"planned_time", rec.PlannedTime},
		{"downtime_minutes", rec.DowntimeMinutes},
	}
	for _, n := range numbers {
		if math.IsNaN(n.value) || math.IsInf(n.value, 0) {
			return apperror.Invalid(n.field, "must be a finite number")
		}
		if n.value < 0 {
			return apperror.Invalid(n.field, "must not be negative")
		}
	}
	return nil
}

func metricInputsChanged(before, after *model.ProductionRecord) bool {
	return before.GoodProduction != after.GoodProduction ||
		before.PlannedTime != after.PlannedTime ||
		before.DowntimeMinutes != after.DowntimeMinutes ||
		before.FilmWaste != after.FilmWaste ||
		before.OrganicWaste != after.OrganicWaste
}
