package repository

import (
	"context"
	"errors"
	"fmt"

	"oee-analytics/internal/apperror"
	"oee-analytics/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormRepository implements OEERepository on any gorm dialect. The same
// implementation backs the PostgreSQL primary and the SQLite fallback.
type gormRepository struct {
	db   *gorm.DB
	name string
}

// NewGormRepository creates a store over db; name labels it in errors and logs
func NewGormRepository(db *gorm.DB, name string) OEERepository {
	return &gormRepository{db: db, name: name}
}

// upsertOnID makes inserts idempotent so replication and seeding can replay them
var upsertOnID = clause.OnConflict{
	Columns:   []clause.Column{{Name: "id"}},
	UpdateAll: true,
}

// translate maps gorm errors onto the domain error kinds
func (r *gormRepository) translate(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperror.NotFound(entity, id)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperror.Invalid(entity, "conflicts with an existing %s", entity)
	default:
		return fmt.Errorf("%s store: %s %s: %w", r.name, entity, id, err)
	}
}

func (r *gormRepository) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	var m model.Machine
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, r.translate(err, "machine", id)
	}
	return &m, nil
}

func (r *gormRepository) ListMachines(ctx context.Context) ([]model.Machine, error) {
	var machines []model.Machine
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&machines).Error; err != nil {
		return nil, r.translate(err, "machine", "*")
	}
	return machines, nil
}

func (r *gormRepository) CreateMachine(ctx context.Context, m *model.Machine) error {
	err := r.db.WithContext(ctx).Clauses(upsertOnID).Create(m).Error
	return r.translate(err, "machine", m.ID)
}

func (r *gormRepository) UpdateMachine(ctx context.Context, m *model.Machine) error {
	res := r.db.WithContext(ctx).Model(m).
		Select("*").Omit("id", "created_at").
		Updates(m)
	if res.Error != nil {
		return r.translate(res.Error, "machine", m.ID)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("machine", m.ID)
	}
	return nil
}

func (r *gormRepository) UpdateMachineMetrics(ctx context.Context, id string, metrics MachineMetrics) error {
	res := r.db.WithContext(ctx).Model(&model.Machine{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"oee":                metrics.OEE,
			"availability":       metrics.Availability,
			"performance":        metrics.Performance,
			"quality":            metrics.Quality,
			"current_production": metrics.CurrentProduction,
			"metrics_synthetic":  metrics.Synthetic,
			"metrics_updated_at": metrics.UpdatedAt,
			"updated_at":         metrics.UpdatedAt,
		})
	if res.Error != nil {
		return r.translate(res.Error, "machine", id)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("machine", id)
	}
	return nil
}

func (r *gormRepository) GetProductionRecord(ctx context.Context, id string) (*model.ProductionRecord, error) {
	var rec model.ProductionRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, r.translate(err, "production record", id)
	}
	return &rec, nil
}

// ListProductionRecords returns matching records, newest first
func (r *gormRepository) ListProductionRecords(ctx context.Context, filter ProductionRecordFilter) ([]model.ProductionRecord, error) {
	query := r.db.WithContext(ctx).Model(&model.ProductionRecord{})

	if filter.MachineID != "" {
		query = query.Where("machine_id = ?", filter.MachineID)
	}
	if !filter.Start.IsZero() {
		query = query.Where("start_time >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("start_time < ?", filter.End)
	}
	if filter.Shift != "" {
		query = query.Where("shift = ?", filter.Shift)
	}
	if filter.OperatorID != "" {
		query = query.Where("operator_id = ?", filter.OperatorID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var records []model.ProductionRecord
	if err := query.Order("created_at DESC").Order("id DESC").Find(&records).Error; err != nil {
		return nil, r.translate(err, "production record", "*")
	}
	return records, nil
}

func (r *gormRepository) CreateProductionRecord(ctx context.Context, rec *model.ProductionRecord) error {
	err := r.db.WithContext(ctx).Clauses(upsertOnID).Create(rec).Error
	return r.translate(err, "production record", rec.ID)
}

func (r *gormRepository) UpdateProductionRecord(ctx context.Context, rec *model.ProductionRecord) error {
	res := r.db.WithContext(ctx).Model(rec).
		Select("*").Omit("id", "created_at").
		Updates(rec)
	if res.Error != nil {
		return r.translate(res.Error, "production record", rec.ID)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("production record", rec.ID)
	}
	return nil
}

func (r *gormRepository) DeleteProductionRecord(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ProductionRecord{})
	if res.Error != nil {
		return r.translate(res.Error, "production record", id)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("production record", id)
	}
	return nil
}

func (r *gormRepository) AppendOEEHistory(ctx context.Context, e *model.OEEHistoryEntry) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(e).Error
	return r.translate(err, "oee history entry", e.ID)
}

// ListOEEHistory returns entries in timestamp order, oldest first
func (r *gormRepository) ListOEEHistory(ctx context.Context, filter HistoryFilter) ([]model.OEEHistoryEntry, error) {
	query := r.db.WithContext(ctx).Model(&model.OEEHistoryEntry{})

	if filter.MachineID != "" {
		query = query.Where("machine_id = ?", filter.MachineID)
	}
	if !filter.Start.IsZero() {
		query = query.Where("timestamp >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("timestamp < ?", filter.End)
	}

	var entries []model.OEEHistoryEntry
	if err := query.Order("timestamp ASC").Order("id ASC").Find(&entries).Error; err != nil {
		return nil, r.translate(err, "oee history entry", "*")
	}
	return entries, nil
}

func (r *gormRepository) CreateDowntimeEvent(ctx context.Context, e *model.DowntimeEvent) error {
	err := r.db.WithContext(ctx).Clauses(upsertOnID).Create(e).Error
	return r.translate(err, "downtime event", e.ID)
}

func (r *gormRepository) ListDowntimeEvents(ctx context.Context, filter DowntimeFilter) ([]model.DowntimeEvent, error) {
	query := r.db.WithContext(ctx).Model(&model.DowntimeEvent{})

	if filter.MachineID != "" {
		query = query.Where("machine_id = ?", filter.MachineID)
	}
	if !filter.Start.IsZero() {
		query = query.Where("start_time >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("start_time < ?", filter.End)
	}

	var events []model.DowntimeEvent
	if err := query.Order("start_time ASC").Find(&events).Error; err != nil {
		return nil, r.translate(err, "downtime event", "*")
	}
	return events, nil
}

func (r *gormRepository) CreateAlert(ctx context.Context, a *model.Alert) error {
	err := r.db.WithContext(ctx).Clauses(upsertOnID).Create(a).Error
	return r.translate(err, "alert", a.ID)
}

func (r *gormRepository) ListAlerts(ctx context.Context, filter AlertFilter) ([]model.Alert, error) {
	query := r.db.WithContext(ctx).Model(&model.Alert{})

	if filter.MachineID != "" {
		query = query.Where("machine_id = ?", filter.MachineID)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if !filter.Start.IsZero() {
		query = query.Where("created_at >= ?", filter.Start)
	}
	if !filter.End.IsZero() {
		query = query.Where("created_at < ?", filter.End)
	}

	var alerts []model.Alert
	if err := query.Order("created_at DESC").Find(&alerts).Error; err != nil {
		return nil, r.translate(err, "alert", "*")
	}
	return alerts, nil
}

func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("%s store: %w", r.name, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s store: %w", r.name, err)
	}
	return nil
}
