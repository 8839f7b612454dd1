package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"oee-analytics/internal/config"
	"oee-analytics/internal/logging"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"

	"github.com/stretchr/testify/require"
)

var testDBCounter atomic.Int64

func newTestRepo(t *testing.T) repository.OEERepository {
	t.Helper()
	dsn := fmt.Sprintf("file:service_test_%d?mode=memory&cache=shared", testDBCounter.Add(1))
	db, err := repository.OpenFallback(config.FallbackStoreConfig{Path: dsn}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })
	return repository.NewGormRepository(db, "test")
}

func fixedClock(now time.Time) Clock {
	return func() time.Time { return now }
}

type testEnv struct {
	repo       repository.OEERepository
	rollup     *Rollup
	production ProductionService
	machines   MachineService
	events     EventService
	analytics  AnalyticsService
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	repo := newTestRepo(t)
	return newTestEnvWithRepo(repo, now)
}

func newTestEnvWithRepo(repo repository.OEERepository, now time.Time) *testEnv {
	clock := fixedClock(now)
	log := logging.Discard()
	rollup := NewRollup(repo, DefaultRollupPolicy(), clock, log)
	return &testEnv{
		repo:       repo,
		rollup:     rollup,
		production: NewProductionService(repo, oee.DefaultPolicy(), rollup, clock, log),
		machines:   NewMachineService(repo, rollup, log),
		events:     NewEventService(repo, clock),
		analytics:  NewAnalyticsService(repo, clock, log),
	}
}

// recordInput builds a complete create payload
func recordInput(machineID string, start time.Time, runMinutes int, good, planned, downtime float64) ProductionRecordInput {
	end := start.Add(time.Duration(runMinutes) * time.Minute)
	return ProductionRecordInput{
		MachineID:       &machineID,
		StartTime:       &start,
		EndTime:         &end,
		GoodProduction:  &good,
		PlannedTime:     &planned,
		DowntimeMinutes: &downtime,
	}
}
