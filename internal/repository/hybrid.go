package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/model"

	"github.com/sony/gobreaker"
)

// BreakerSettings configures the circuit breaker in front of the primary store
type BreakerSettings struct {
	Enabled          bool
	FailureThreshold uint32
	Cooldown         time.Duration
	HalfOpenRequests uint32
}

// HybridOptions configures a HybridRepository
type HybridOptions struct {
	Breaker         BreakerSettings
	ReplicateWrites bool
}

// HybridRepository fronts a primary remote store and a local fallback store
// with the OEERepository contract.
//
// Every call tries the primary first. A primary failure is logged and the
// same call is run on the fallback, whose result is returned instead. When
// both fail the caller gets a TerminalStoreError wrapping the fallback's
// error. NotFound and Validation answers from the primary are returned as is.
// The breaker only short-circuits the primary; it never blocks the fallback.
type HybridRepository struct {
	primary   OEERepository
	fallback  OEERepository
	breaker   *gobreaker.CircuitBreaker
	replicate bool
	logger    *slog.Logger
}

var _ OEERepository = (*HybridRepository)(nil)

// NewHybridRepository creates the gateway. Both stores are owned by the caller.
func NewHybridRepository(primary, fallback OEERepository, opts HybridOptions, logger *slog.Logger) *HybridRepository {
	h := &HybridRepository{
		primary:   primary,
		fallback:  fallback,
		replicate: opts.ReplicateWrites,
		logger:    logger,
	}

	if opts.Breaker.Enabled {
		threshold := opts.Breaker.FailureThreshold
		if threshold == 0 {
			threshold = 1
		}
		h.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "primary-store",
			MaxRequests: opts.Breaker.HalfOpenRequests,
			Timeout:     opts.Breaker.Cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				breakerState.Set(float64(to))
				logger.Warn("circuit breaker state changed",
					"breaker", name,
					"from", from.String(),
					"to", to.String(),
				)
			},
			IsSuccessful: func(err error) bool {
				return err == nil || apperror.IsDomain(err) || errors.Is(err, context.Canceled)
			},
		})
	}

	return h
}

// BreakerState reports the primary circuit breaker state, "disabled" without one
func (h *HybridRepository) BreakerState() string {
	if h.breaker == nil {
		return "disabled"
	}
	return h.breaker.State().String()
}

// callPrimary runs fn on the primary through the breaker, when configured
func (h *HybridRepository) callPrimary(fn func() (interface{}, error)) (interface{}, error) {
	if h.breaker == nil {
		return fn()
	}
	return h.breaker.Execute(fn)
}

// handoff decides whether a primary error moves the call to the fallback
func (h *HybridRepository) handoff(ctx context.Context, op string, err error) (*apperror.StoreUnavailableError, bool) {
	if err == nil || apperror.IsDomain(err) || ctx.Err() != nil {
		return nil, false
	}
	unavailable := &apperror.StoreUnavailableError{Store: "primary", Op: op, Err: err}
	primaryFailures.WithLabelValues(op).Inc()
	h.logger.Warn("primary store failed, using fallback store",
		"op", op,
		"error", err.Error(),
		"breaker", h.BreakerState(),
	)
	return unavailable, true
}

func (h *HybridRepository) terminal(op string, primaryErr *apperror.StoreUnavailableError, fallbackErr error) error {
	terminalFailures.WithLabelValues(op).Inc()
	h.logger.Error("fallback store failed",
		"op", op,
		"primary_error", primaryErr.Error(),
		"error", fallbackErr.Error(),
	)
	return &apperror.TerminalStoreError{Op: op, Primary: primaryErr, Err: fallbackErr}
}

// query runs a read on the primary, handing off to the fallback on failure
func query[T any](ctx context.Context, h *HybridRepository, op string, fn func(OEERepository) (T, error)) (T, error) {
	var zero T

	out, err := h.callPrimary(func() (interface{}, error) {
		return fn(h.primary)
	})
	if err == nil {
		return out.(T), nil
	}

	unavailable, ok := h.handoff(ctx, op, err)
	if !ok {
		return zero, err
	}

	result, fallbackErr := fn(h.fallback)
	if fallbackErr != nil {
		return zero, h.terminal(op, unavailable, fallbackErr)
	}
	fallbackServed.WithLabelValues(op).Inc()
	return result, nil
}

// exec runs a write on the primary, handing off to the fallback on failure.
// After a primary success the write is mirrored into the fallback when
// replication is on; mirror failures are logged and dropped.
func (h *HybridRepository) exec(ctx context.Context, op string, fn func(OEERepository) error, mirror func(OEERepository) error) error {
	_, err := h.callPrimary(func() (interface{}, error) {
		return nil, fn(h.primary)
	})
	if err == nil {
		if h.replicate && mirror != nil {
			h.mirror(ctx, op, mirror)
		}
		return nil
	}

	unavailable, ok := h.handoff(ctx, op, err)
	if !ok {
		return err
	}

	if fallbackErr := fn(h.fallback); fallbackErr != nil {
		return h.terminal(op, unavailable, fallbackErr)
	}
	fallbackServed.WithLabelValues(op).Inc()
	return nil
}

func (h *HybridRepository) mirror(ctx context.Context, op string, fn func(OEERepository) error) {
	if err := fn(h.fallback); err != nil {
		replicationFailures.WithLabelValues(op).Inc()
		h.logger.Warn("fallback replication failed",
			"op", op,
			"error", err.Error(),
		)
	}
}

func (h *HybridRepository) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	return query(ctx, h, "get_machine", func(r OEERepository) (*model.Machine, error) {
		return r.GetMachine(ctx, id)
	})
}

func (h *HybridRepository) ListMachines(ctx context.Context) ([]model.Machine, error) {
	return query(ctx, h, "list_machines", func(r OEERepository) ([]model.Machine, error) {
		return r.ListMachines(ctx)
	})
}

func (h *HybridRepository) CreateMachine(ctx context.Context, m *model.Machine) error {
	write := func(r OEERepository) error { return r.CreateMachine(ctx, m) }
	return h.exec(ctx, "create_machine", write, write)
}

func (h *HybridRepository) UpdateMachine(ctx context.Context, m *model.Machine) error {
	return h.exec(ctx, "update_machine",
		func(r OEERepository) error { return r.UpdateMachine(ctx, m) },
		func(r OEERepository) error {
			err := r.UpdateMachine(ctx, m)
			if apperror.IsNotFound(err) {
				return r.CreateMachine(ctx, m)
			}
			return err
		})
}

func (h *HybridRepository) UpdateMachineMetrics(ctx context.Context, id string, metrics MachineMetrics) error {
	write := func(r OEERepository) error { return r.UpdateMachineMetrics(ctx, id, metrics) }
	return h.exec(ctx, "update_machine_metrics", write, write)
}

func (h *HybridRepository) GetProductionRecord(ctx context.Context, id string) (*model.ProductionRecord, error) {
	return query(ctx, h, "get_production_record", func(r OEERepository) (*model.ProductionRecord, error) {
		return r.GetProductionRecord(ctx, id)
	})
}

func (h *HybridRepository) ListProductionRecords(ctx context.Context, filter ProductionRecordFilter) ([]model.ProductionRecord, error) {
	return query(ctx, h, "list_production_records", func(r OEERepository) ([]model.ProductionRecord, error) {
		return r.ListProductionRecords(ctx, filter)
	})
}

func (h *HybridRepository) CreateProductionRecord(ctx context.Context, rec *model.ProductionRecord) error {
	write := func(r OEERepository) error { return r.CreateProductionRecord(ctx, rec) }
	return h.exec(ctx, "create_production_record", write, write)
}

func (h *HybridRepository) UpdateProductionRecord(ctx context.Context, rec *model.ProductionRecord) error {
	return h.exec(ctx, "update_production_record",
		func(r OEERepository) error { return r.UpdateProductionRecord(ctx, rec) },
		func(r OEERepository) error {
			err := r.UpdateProductionRecord(ctx, rec)
			if apperror.IsNotFound(err) {
				return r.CreateProductionRecord(ctx, rec)
			}
			return err
		})
}

func (h *HybridRepository) DeleteProductionRecord(ctx context.Context, id string) error {
	return h.exec(ctx, "delete_production_record",
		func(r OEERepository) error { return r.DeleteProductionRecord(ctx, id) },
		func(r OEERepository) error {
			if err := r.DeleteProductionRecord(ctx, id); err != nil && !apperror.IsNotFound(err) {
				return err
			}
			return nil
		})
}

func (h *HybridRepository) AppendOEEHistory(ctx context.Context, e *model.OEEHistoryEntry) error {
	write := func(r OEERepository) error { return r.AppendOEEHistory(ctx, e) }
	return h.exec(ctx, "append_oee_history", write, write)
}

func (h *HybridRepository) ListOEEHistory(ctx context.Context, filter HistoryFilter) ([]model.OEEHistoryEntry, error) {
	return query(ctx, h, "list_oee_history", func(r OEERepository) ([]model.OEEHistoryEntry, error) {
		return r.ListOEEHistory(ctx, filter)
	})
}

func (h *HybridRepository) CreateDowntimeEvent(ctx context.Context, e *model.DowntimeEvent) error {
	write := func(r OEERepository) error { return r.CreateDowntimeEvent(ctx, e) }
	return h.exec(ctx, "create_downtime_event", write, write)
}

func (h *HybridRepository) ListDowntimeEvents(ctx context.Context, filter DowntimeFilter) ([]model.DowntimeEvent, error) {
	return query(ctx, h, "list_downtime_events", func(r OEERepository) ([]model.DowntimeEvent, error) {
		return r.ListDowntimeEvents(ctx, filter)
	})
}

func (h *HybridRepository) CreateAlert(ctx context.Context, a *model.Alert) error {
	write := func(r OEERepository) error { return r.CreateAlert(ctx, a) }
	return h.exec(ctx, "create_alert", write, write)
}

func (h *HybridRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	return query(ctx, h, "list_alerts", func(r OEERepository) ([]model.Alert, error) {
		return r.ListAlerts(ctx, filter)
	})
}

// Ping succeeds when at least one store answers
func (h *HybridRepository) Ping(ctx context.Context) error {
	return h.exec(ctx, "ping", func(r OEERepository) error { return r.Ping(ctx) }, nil)
}

// StoreHealth reports each store's reachability
type StoreHealth struct {
	Primary  string `json:"primary"`
	Fallback string `json:"fallback"`
	Breaker  string `json:"breaker"`
}

// Health pings both stores directly, bypassing the breaker
func (h *HybridRepository) Health(ctx context.Context) StoreHealth {
	status := func(err error) string {
		if err != nil {
			return "unavailable"
		}
		return "ok"
	}
	return StoreHealth{
		Primary:  status(h.primary.Ping(ctx)),
		Fallback: status(h.fallback.Ping(ctx)),
		Breaker:  h.BreakerState(),
	}
}
