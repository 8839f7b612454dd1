package repository

import (
	"context"
	"fmt"
	"os"

	"oee-analytics/internal/model"

	"gopkg.in/yaml.v3"
)

// Snapshot is a fixed set of known primary-store rows used to seed the
// fallback store at cold start.
type Snapshot struct {
	Machines          []model.Machine          `yaml:"machines"`
	ProductionRecords []model.ProductionRecord `yaml:"production_records"`
	OEEHistory        []model.OEEHistoryEntry  `yaml:"oee_history"`
	DowntimeEvents    []model.DowntimeEvent    `yaml:"downtime_events"`
	Alerts            []model.Alert            `yaml:"alerts"`
}

// Len returns the number of rows in the snapshot
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Machines) + len(s.ProductionRecords) + len(s.OEEHistory) +
		len(s.DowntimeEvents) + len(s.Alerts)
}

// SnapshotFromYAML parses a snapshot from raw YAML bytes
func SnapshotFromYAML(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid snapshot yaml: %w", err)
	}
	return &s, nil
}

// LoadSnapshot reads a YAML snapshot from path
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return SnapshotFromYAML(data)
}

// WriteFile stores the snapshot as YAML at path
func (s *Snapshot) WriteFile(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ExportSnapshot copies every row reachable through repo into a snapshot
func ExportSnapshot(ctx context.Context, repo OEERepository) (*Snapshot, error) {
	var (
		s   Snapshot
		err error
	)
	if s.Machines, err = repo.ListMachines(ctx); err != nil {
		return nil, fmt.Errorf("failed to export machines: %w", err)
	}
	if s.ProductionRecords, err = repo.ListProductionRecords(ctx, ProductionRecordFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export production records: %w", err)
	}
	if s.OEEHistory, err = repo.ListOEEHistory(ctx, HistoryFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export oee history: %w", err)
	}
	if s.DowntimeEvents, err = repo.ListDowntimeEvents(ctx, DowntimeFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export downtime events: %w", err)
	}
	if s.Alerts, err = repo.ListAlerts(ctx, AlertFilter{}); err != nil {
		return nil, fmt.Errorf("failed to export alerts: %w", err)
	}
	return &s, nil
}

// SyncReport summarizes a fallback sync
type SyncReport struct {
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// SyncFallback writes every snapshot row into the fallback store. It is best
// effort: failures are logged and counted, never returned.
func (h *HybridRepository) SyncFallback(ctx context.Context, s *Snapshot) SyncReport {
	var report SyncReport
	if s == nil {
		return report
	}

	apply := func(kind, id string, err error) {
		if err != nil {
			report.Failed++
			h.logger.Warn("fallback sync skipped row",
				"kind", kind,
				"id", id,
				"error", err.Error(),
			)
			return
		}
		report.Written++
	}

	for i := range s.Machines {
		m := &s.Machines[i]
		apply("machine", m.ID, h.fallback.CreateMachine(ctx, m))
	}
	for i := range s.ProductionRecords {
		r := &s.ProductionRecords[i]
		apply("production_record", r.ID, h.fallback.CreateProductionRecord(ctx, r))
	}
	for i := range s.OEEHistory {
		e := &s.OEEHistory[i]
		apply("oee_history", e.ID, h.fallback.AppendOEEHistory(ctx, e))
	}
	for i := range s.DowntimeEvents {
		e := &s.DowntimeEvents[i]
		apply("downtime_event", e.ID, h.fallback.CreateDowntimeEvent(ctx, e))
	}
	for i := range s.Alerts {
		a := &s.Alerts[i]
		apply("alert", a.ID, h.fallback.CreateAlert(ctx, a))
	}

	h.logger.Info("fallback sync finished",
		"written", report.Written,
		"failed", report.Failed,
	)
	return report
}
