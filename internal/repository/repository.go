package repository

import (
	"context"
	"time"

	"oee-analytics/internal/model"
)

// ProductionRecordFilter narrows a production record listing. Zero values
// mean "no constraint"; Start/End bound the record start time as [Start, End).
type ProductionRecordFilter struct {
	MachineID  string
	Start      time.Time
	End        time.Time
	Shift      string
	OperatorID string
	Limit      int
	Offset     int
}

// HistoryFilter narrows an OEE history listing by machine and timestamp range
type HistoryFilter struct {
	MachineID string
	Start     time.Time
	End       time.Time
}

// DowntimeFilter narrows a downtime listing by machine and start time range
type DowntimeFilter struct {
	MachineID string
	Start     time.Time
	End       time.Time
}

// AlertFilter narrows an alert listing
type AlertFilter struct {
	MachineID string
	Severity  model.AlertSeverity
	Start     time.Time
	End       time.Time
}

// MachineMetrics are the rollup columns written onto a machine
type MachineMetrics struct {
	OEE               float64
	Availability      float64
	Performance       float64
	Quality           float64
	CurrentProduction float64
	Synthetic         bool
	UpdatedAt         time.Time
}

// OEERepository is the store contract shared by the primary store, the
// fallback store and the hybrid gateway in front of both.
//
// Get/Update/Delete of an unknown id return an apperror.NotFoundError.
// Create* calls upsert on id: replaying the same write during replication or
// sync leaves the same row, while a different row under an existing id
// replaces it. Callers creating new entities check the id first.
type OEERepository interface {
	GetMachine(ctx context.Context, id string) (*model.Machine, error)
	ListMachines(ctx context.Context) ([]model.Machine, error)
	CreateMachine(ctx context.Context, m *model.Machine) error
	UpdateMachine(ctx context.Context, m *model.Machine) error
	UpdateMachineMetrics(ctx context.Context, id string, metrics MachineMetrics) error

	GetProductionRecord(ctx context.Context, id string) (*model.ProductionRecord, error)
	ListProductionRecords(ctx context.Context, filter ProductionRecordFilter) ([]model.ProductionRecord, error)
	CreateProductionRecord(ctx context.Context, r *model.ProductionRecord) error
	UpdateProductionRecord(ctx context.Context, r *model.ProductionRecord) error
	DeleteProductionRecord(ctx context.Context, id string) error

	AppendOEEHistory(ctx context.Context, e *model.OEEHistoryEntry) error
	ListOEEHistory(ctx context.Context, filter HistoryFilter) ([]model.OEEHistoryEntry, error)

	CreateDowntimeEvent(ctx context.Context, e *model.DowntimeEvent) error
	ListDowntimeEvents(ctx context.Context, filter DowntimeFilter) ([]model.DowntimeEvent, error)

	CreateAlert(ctx context.Context, a *model.Alert) error
	ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error)

	Ping(ctx context.Context) error
}
