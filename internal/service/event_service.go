package service

import (
	"context"
	"math"
	"strings"
	"time"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/model"
	"oee-analytics/internal/repository"

	"github.com/google/uuid"
)

// EventService records downtime events and alerts, the collaborator sources
// read by the historical aggregator.
type EventService interface {
	RecordDowntime(ctx context.Context, input DowntimeInput) (*model.DowntimeEvent, error)
	ListDowntime(ctx context.Context, filter repository.DowntimeFilter) ([]model.DowntimeEvent, error)
	RaiseAlert(ctx context.Context, input AlertInput) (*model.Alert, error)
	ListAlerts(ctx context.Context, filter repository.AlertFilter) ([]model.Alert, error)
}

// DowntimeInput describes a machine stop. Minutes may be omitted when the
// end time is known.
type DowntimeInput struct {
	MachineID string     `json:"machine_id"`
	Reason    string     `json:"reason"`
	Category  string     `json:"category"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Minutes   *float64   `json:"minutes,omitempty"`
}

// AlertInput describes an alert raised against a machine
type AlertInput struct {
	MachineID string              `json:"machine_id"`
	Severity  model.AlertSeverity `json:"severity"`
	Message   string              `json:"message"`
}

type eventService struct {
	repo repository.OEERepository
	now  Clock
}

// NewEventService creates a new event service
func NewEventService(repo repository.OEERepository, clock Clock) EventService {
	return &eventService{repo: repo, now: clockOrSystem(clock)}
}

func (s *eventService) RecordDowntime(ctx context.Context, input DowntimeInput) (*model.DowntimeEvent, error) {
	if strings.TrimSpace(input.MachineID) == "" {
		return nil, apperror.Invalid("machine_id", "is required")
	}
	if strings.TrimSpace(input.Category) == "" {
		return nil, apperror.Invalid("category", "is required")
	}
	if input.StartTime == nil {
		return nil, apperror.Invalid("start_time", "is required")
	}

	e := &model.DowntimeEvent{
		ID:        uuid.NewString(),
		MachineID: strings.TrimSpace(input.MachineID),
		Reason:    input.Reason,
		Category:  strings.ToLower(strings.TrimSpace(input.Category)),
		StartTime: input.StartTime.UTC(),
	}

	if input.EndTime != nil {
		end := input.EndTime.UTC()
		if !end.After(e.StartTime) {
			return nil, apperror.Invalid("end_time", "must be after start_time")
		}
		e.EndTime = &end
	}

	switch {
	case input.Minutes != nil:
		e.Minutes = *input.Minutes
	case e.EndTime != nil:
		e.Minutes = e.EndTime.Sub(e.StartTime).Minutes()
	default:
		return nil, apperror.Invalid("minutes", "is required when end_time is not set")
	}
	if math.IsNaN(e.Minutes) || math.IsInf(e.Minutes, 0) || e.Minutes < 0 {
		return nil, apperror.Invalid("minutes", "must not be negative")
	}

	if err := s.repo.CreateDowntimeEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *eventService) ListDowntime(ctx context.Context, filter repository.DowntimeFilter) ([]model.DowntimeEvent, error) {
	return s.repo.ListDowntimeEvents(ctx, filter)
}

func (s *eventService) RaiseAlert(ctx context.Context, input AlertInput) (*model.Alert, error) {
	if strings.TrimSpace(input.MachineID) == "" {
		return nil, apperror.Invalid("machine_id", "is required")
	}
	if !input.Severity.Valid() {
		return nil, apperror.Invalid("severity", "must be one of info, warning, critical")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, apperror.Invalid("message", "is required")
	}

	a := &model.Alert{
		ID:        uuid.NewString(),
		CreatedAt: s.now(),
		MachineID: strings.TrimSpace(input.MachineID),
		Severity:  input.Severity,
		Message:   input.Message,
	}
	if err := s.repo.CreateAlert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *eventService) ListAlerts(ctx context.Context, filter repository.AlertFilter) ([]model.Alert, error) {
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, apperror.Invalid("severity", "must be one of info, warning, critical")
	}
	return s.repo.ListAlerts(ctx, filter)
}
