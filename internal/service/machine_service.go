package service

import (
	"context"
	"log/slog"
	"math"
	"strings"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/model"
	"oee-analytics/internal/repository"

	"github.com/google/uuid"
)

// MachineService defines machine registry operations
type MachineService interface {
	Get(ctx context.Context, id string) (*model.Machine, error)
	List(ctx context.Context) ([]model.Machine, error)
	Create(ctx context.Context, input MachineInput) (*model.Machine, error)
	// Update applies an operator edit of name, status or target
	Update(ctx context.Context, id string, patch MachineInput) (*model.Machine, error)
	// Refresh recomputes the machine's live metrics
	Refresh(ctx context.Context, id string) (*MachineRollup, error)
}

// MachineInput carries operator-editable machine fields
type MachineInput struct {
	ID               string               `json:"id,omitempty"`
	Code             *string              `json:"code,omitempty"`
	Name             *string              `json:"name,omitempty"`
	Status           *model.MachineStatus `json:"status,omitempty"`
	TargetProduction *float64             `json:"target_production,omitempty"`
}

type machineService struct {
	repo   repository.OEERepository
	rollup *Rollup
	logger *slog.Logger
}

// NewMachineService creates a new machine service
func NewMachineService(repo repository.OEERepository, rollup *Rollup, logger *slog.Logger) MachineService {
	return &machineService{repo: repo, rollup: rollup, logger: logger}
}

func (s *machineService) Get(ctx context.Context, id string) (*model.Machine, error) {
	return s.repo.GetMachine(ctx, id)
}

func (s *machineService) List(ctx context.Context) ([]model.Machine, error) {
	return s.repo.ListMachines(ctx)
}

func (s *machineService) Create(ctx context.Context, input MachineInput) (*model.Machine, error) {
	if input.Code == nil || strings.TrimSpace(*input.Code) == "" {
		return nil, apperror.Invalid("code", "is required")
	}
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, apperror.Invalid("name", "is required")
	}

	m := &model.Machine{
		ID:               input.ID,
		Status:           model.MachineStatusActive,
		TargetProduction: 1,
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	} else {
		_, err := s.repo.GetMachine(ctx, m.ID)
		switch {
		case err == nil:
			return nil, apperror.Invalid("id", "machine %q already exists", m.ID)
		case !apperror.IsNotFound(err):
			return nil, err
		}
	}
	if err := applyMachineInput(m, input); err != nil {
		return nil, err
	}

	if err := s.repo.CreateMachine(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info("machine created",
		"machine_id", m.ID,
		"code", m.Code,
	)

	// populate live metrics, synthetic until the first record arrives
	if _, err := s.rollup.Run(ctx, m.ID); err != nil {
		s.logger.Error("initial machine rollup failed",
			"machine_id", m.ID,
			"error", err.Error(),
		)
		return m, nil
	}
	return s.repo.GetMachine(ctx, m.ID)
}

func (s *machineService) Update(ctx context.Context, id string, patch MachineInput) (*model.Machine, error) {
	m, err := s.repo.GetMachine(ctx, id)
	if err != nil {
		return nil, err
	}
	targetChanged := patch.TargetProduction != nil && *patch.TargetProduction != m.TargetProduction

	if err := applyMachineInput(m, patch); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateMachine(ctx, m); err != nil {
		return nil, err
	}

	if targetChanged {
		if _, err := s.rollup.Run(ctx, id); err != nil {
			s.logger.Error("machine rollup failed",
				"machine_id", id,
				"error", err.Error(),
			)
			return m, nil
		}
		return s.repo.GetMachine(ctx, id)
	}
	return m, nil
}

func (s *machineService) Refresh(ctx context.Context, id string) (*MachineRollup, error) {
	return s.rollup.Run(ctx, id)
}

func applyMachineInput(m *model.Machine, in MachineInput) error {
	if in.Code != nil {
		code := strings.TrimSpace(*in.Code)
		if code == "" {
			return apperror.Invalid("code", "must not be empty")
		}
		m.Code = code
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperror.Invalid("name", "must not be empty")
		}
		m.Name = name
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperror.Invalid("status", "must be one of active, under-maintenance, stopped, inactive")
		}
		m.Status = *in.Status
	}
	if in.TargetProduction != nil {
		target := *in.TargetProduction
		if math.IsNaN(target) || math.IsInf(target, 0) || target < 1 {
			return apperror.Invalid("target_production", "must be at least 1")
		}
		m.TargetProduction = target
	}
	return nil
}
