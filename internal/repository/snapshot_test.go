package repository

import (
	"context"
	"path/filepath"
	"testing"

	"oee-analytics/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFromYAML(t *testing.T) {
	s, err := SnapshotFromYAML([]byte(`
machines:
  - id: m-1
    code: EXT-01
    name: Extruder 1
    status: active
    target_production: 1000
production_records:
  - id: r-1
    machine_id: m-1
    start_time: 2024-03-10T08:00:00Z
    end_time: 2024-03-10T12:00:00Z
    good_production: 400
    planned_time: 240
    downtime_minutes: 10
downtime_events:
  - id: d-1
    machine_id: m-1
    category: mechanical
    start_time: 2024-03-10T09:00:00Z
    minutes: 10
`))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, model.MachineStatusActive, s.Machines[0].Status)
	assert.Equal(t, 400.0, s.ProductionRecords[0].GoodProduction)
	assert.True(t, baseTime.Equal(s.ProductionRecords[0].StartTime))

	_, err = SnapshotFromYAML([]byte("machines: {not: a list"))
	assert.Error(t, err)
}

func TestSnapshotExportWriteLoad(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo(t, "source")

	require.NoError(t, repo.CreateMachine(ctx, &model.Machine{ID: "m-1", Code: "EXT-01", Name: "Extruder", TargetProduction: 1000}))
	require.NoError(t, repo.CreateProductionRecord(ctx, sampleRecord("r-1", "m-1", baseTime)))
	require.NoError(t, repo.AppendOEEHistory(ctx, &model.OEEHistoryEntry{ID: "h-1", MachineID: "m-1", Timestamp: baseTime}))

	exported, err := ExportSnapshot(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, 3, exported.Len())

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, exported.WriteFile(path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, loaded.ProductionRecords, 1)
	assert.Equal(t, "r-1", loaded.ProductionRecords[0].ID)
	assert.Equal(t, "EXT-01", loaded.Machines[0].Code)

	_, err = LoadSnapshot(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	var empty *Snapshot
	assert.Zero(t, empty.Len())
}
