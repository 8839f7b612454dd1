package model

import (
	"time"
)

// MachineStatus is the lifecycle state of a machine
type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "active"
	MachineStatusMaintenance MachineStatus = "under-maintenance"
	MachineStatusStopped     MachineStatus = "stopped"
	MachineStatusInactive    MachineStatus = "inactive"
)

// Valid reports whether s is a known status
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineStatusActive, MachineStatusMaintenance, MachineStatusStopped, MachineStatusInactive:
		return true
	}
	return false
}

// AlertSeverity classifies alerts raised against a machine
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// Valid reports whether s is a known severity
func (s AlertSeverity) Valid() bool {
	switch s {
	case AlertSeverityInfo, AlertSeverityWarning, AlertSeverityCritical:
		return true
	}
	return false
}

// Machine represents a piece of production equipment and its live metrics
type Machine struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	Code   string        `gorm:"not null;size:64;uniqueIndex" json:"code" yaml:"code"`
	Name   string        `gorm:"not null;size:255" json:"name" yaml:"name"`
	Status MachineStatus `gorm:"not null;size:32;default:active" json:"status" yaml:"status"`

	// Live metrics written by the rollup, percentages in [0,100]
	OEE               float64    `json:"oee" yaml:"oee"`
	Availability      float64    `json:"availability" yaml:"availability"`
	Performance       float64    `json:"performance" yaml:"performance"`
	Quality           float64    `json:"quality" yaml:"quality"`
	CurrentProduction float64    `json:"current_production" yaml:"current_production"`
	TargetProduction  float64    `gorm:"not null;default:1" json:"target_production" yaml:"target_production"`
	MetricsSynthetic  bool       `gorm:"not null;default:false" json:"metrics_synthetic" yaml:"metrics_synthetic"`
	MetricsUpdatedAt  *time.Time `json:"metrics_updated_at,omitempty" yaml:"metrics_updated_at,omitempty"`
}

// TableName specifies the table name for Machine
func (Machine) TableName() string {
	return "machines"
}

// ProductionRecord is one production run of one machine
type ProductionRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	MachineID string    `gorm:"not null;size:36;index:idx_record_machine_start,priority:1" json:"machine_id" yaml:"machine_id"`
	StartTime time.Time `gorm:"not null;index:idx_record_machine_start,priority:2" json:"start_time" yaml:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time" yaml:"end_time"`

	// Waste is counted in units for film and kilograms for organic material;
	// planned and downtime values are minutes.
	GoodProduction  float64 `gorm:"not null" json:"good_production" yaml:"good_production"`
	FilmWaste       float64 `gorm:"not null;default:0" json:"film_waste" yaml:"film_waste"`
	OrganicWaste    float64 `gorm:"not null;default:0" json:"organic_waste" yaml:"organic_waste"`
	PlannedTime     float64 `gorm:"not null" json:"planned_time" yaml:"planned_time"`
	DowntimeMinutes float64 `gorm:"not null;default:0" json:"downtime_minutes" yaml:"downtime_minutes"`

	Shift        string `gorm:"size:32;index" json:"shift,omitempty" yaml:"shift,omitempty"`
	OperatorID   string `gorm:"size:64;index" json:"operator_id,omitempty" yaml:"operator_id,omitempty"`
	MaterialCode string `gorm:"size:64" json:"material_code,omitempty" yaml:"material_code,omitempty"`
	BatchNumber  string `gorm:"size:64" json:"batch_number,omitempty" yaml:"batch_number,omitempty"`
	Notes        string `gorm:"type:text" json:"notes,omitempty" yaml:"notes,omitempty"`

	// Derived metrics, always recomputed on write
	Availability float64 `json:"availability" yaml:"availability"`
	Performance  float64 `json:"performance" yaml:"performance"`
	Quality      float64 `json:"quality" yaml:"quality"`
	OEE          float64 `json:"oee" yaml:"oee"`
}

// TableName specifies the table name for ProductionRecord
func (ProductionRecord) TableName() string {
	return "production_records"
}

// TotalWaste returns both waste counters combined
func (r *ProductionRecord) TotalWaste() float64 {
	return r.FilmWaste + r.OrganicWaste
}

// OEEHistoryEntry is an immutable snapshot taken on every production record write
type OEEHistoryEntry struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	MachineID          string    `gorm:"not null;size:36;index:idx_history_machine_ts,priority:1" json:"machine_id" yaml:"machine_id"`
	ProductionRecordID string    `gorm:"size:36;index" json:"production_record_id" yaml:"production_record_id"`
	Timestamp          time.Time `gorm:"not null;index:idx_history_machine_ts,priority:2" json:"timestamp" yaml:"timestamp"`

	OEE          float64 `json:"oee" yaml:"oee"`
	Availability float64 `json:"availability" yaml:"availability"`
	Performance  float64 `json:"performance" yaml:"performance"`
	Quality      float64 `json:"quality" yaml:"quality"`

	GoodProduction  float64 `json:"good_production" yaml:"good_production"`
	TotalWaste      float64 `json:"total_waste" yaml:"total_waste"`
	DowntimeMinutes float64 `json:"downtime_minutes" yaml:"downtime_minutes"`
	PlannedTime     float64 `json:"planned_time" yaml:"planned_time"`
	Shift           string  `gorm:"size:32" json:"shift,omitempty" yaml:"shift,omitempty"`
}

// TableName specifies the table name for OEEHistoryEntry
func (OEEHistoryEntry) TableName() string {
	return "oee_history"
}

// DowntimeEvent records a stop of a machine, independent of production runs
type DowntimeEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	MachineID string     `gorm:"not null;size:36;index:idx_downtime_machine_start,priority:1" json:"machine_id" yaml:"machine_id"`
	Reason    string     `gorm:"size:255" json:"reason" yaml:"reason"`
	Category  string     `gorm:"not null;size:64" json:"category" yaml:"category"`
	StartTime time.Time  `gorm:"not null;index:idx_downtime_machine_start,priority:2" json:"start_time" yaml:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Minutes   float64    `gorm:"not null" json:"minutes" yaml:"minutes"`
}

// TableName specifies the table name for DowntimeEvent
func (DowntimeEvent) TableName() string {
	return "downtime_events"
}

// Alert is a notification raised against a machine
type Alert struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id" yaml:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at" yaml:"created_at"`

	MachineID  string        `gorm:"not null;size:36;index" json:"machine_id" yaml:"machine_id"`
	Severity   AlertSeverity `gorm:"not null;size:16;index" json:"severity" yaml:"severity"`
	Message    string        `gorm:"type:text" json:"message" yaml:"message"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty" yaml:"resolved_at,omitempty"`
}

// TableName specifies the table name for Alert
func (Alert) TableName() string {
	return "alerts"
}

// All returns every persisted model, in migration order
func All() []any {
	return []any{
		&Machine{},
		&ProductionRecord{},
		&OEEHistoryEntry{},
		&DowntimeEvent{},
		&Alert{},
	}
}
