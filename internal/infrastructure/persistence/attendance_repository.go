package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/attendsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAttendanceRepository implements attendance.AttendanceRepository using GORM
type GormAttendanceRepository struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// AttendanceRepositoryOption configures a GormAttendanceRepository
type AttendanceRepositoryOption func(*GormAttendanceRepository)

// WithLocation sets the zone clock times are returned in. It must be the
// zone punches were recorded in, otherwise the overnight rule compares
// clocks from different zones.
func WithLocation(loc *time.Location) AttendanceRepositoryOption {
	return func(r *GormAttendanceRepository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// NewGormAttendanceRepository creates a new GormAttendanceRepository
func NewGormAttendanceRepository(db *gorm.DB, opts ...AttendanceRepositoryOption) *GormAttendanceRepository {
	r := &GormAttendanceRepository{db: db, loc: time.UTC, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpsertPunches inserts the fact or, when (employee, date) already exists,
// overwrites only its punch columns. On return fact.ID is the stored row's ID.
func (r *GormAttendanceRepository) UpsertPunches(ctx context.Context, fact *attendance.AttendanceFact) error {
	if fact.ID == uuid.Nil {
		fact.ID = uuid.New()
	}
	now := r.now()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	fact.Touch(now)
	if !fact.Status.IsValid() {
		fact.Status = attendance.SyncStatusPending
	}

	model := models.AttendanceFactModelFromDomain(fact)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "employee_id"}, {Name: "attendance_date"}},
			DoUpdates: clause.AssignmentColumns(models.PunchColumns),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	var stored models.AttendanceFactModel
	if err := r.db.WithContext(ctx).
		Select("id", "created_at").
		Where("employee_id = ? AND attendance_date = ?", model.EmployeeID, model.AttendanceDate).
		First(&stored).Error; err != nil {
		return err
	}
	fact.ID = stored.ID
	fact.CreatedAt = stored.CreatedAt
	return nil
}

// FindByID finds a fact by ID
func (r *GormAttendanceRepository) FindByID(ctx context.Context, id uuid.UUID) (*attendance.AttendanceFact, error) {
	var model models.AttendanceFactModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attendance.ErrFactNotFound
		}
		return nil, err
	}
	return model.ToDomain(r.loc), nil
}

// FindByEmployeeAndDate finds the fact of an employee for a calendar date
func (r *GormAttendanceRepository) FindByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date time.Time) (*attendance.AttendanceFact, error) {
	var model models.AttendanceFactModel
	if err := r.db.WithContext(ctx).
		Where("employee_id = ? AND attendance_date = ?", employeeID, attendance.DateOf(date)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attendance.ErrFactNotFound
		}
		return nil, err
	}
	return model.ToDomain(r.loc), nil
}

// SelectForSync returns the batch described by filter, ordered by attempts,
// date and employee code. The filter is expected to be normalized.
func (r *GormAttendanceRepository) SelectForSync(ctx context.Context, filter attendance.SelectionFilter) ([]attendance.AttendanceFact, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AttendanceFactModel{}).
		Where("status IN ?", filter.EffectiveStatuses())
	if filter.CapsAttempts() {
		query = query.Where("sync_attempts < ?", filter.MaxAttempts)
	}
	if filter.Date != nil {
		query = query.Where("attendance_date = ?", attendance.DateOf(*filter.Date))
	}
	if filter.EmployeeCode != "" {
		query = query.Where("employee_code = ?", filter.EmployeeCode)
	}
	if filter.MaxRecords > 0 {
		query = query.Limit(filter.MaxRecords)
	}

	var rows []models.AttendanceFactModel
	if err := query.
		Order("sync_attempts ASC").
		Order("attendance_date ASC").
		Order("employee_code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(rows), nil
}

// Transition locks the row, applies fn and writes the reconciliation tuple
// in a single transaction. When fn fails nothing is written.
func (r *GormAttendanceRepository) Transition(ctx context.Context, id uuid.UUID, fn func(*attendance.AttendanceFact) error) (*attendance.AttendanceFact, error) {
	var result *attendance.AttendanceFact
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.AttendanceFactModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return attendance.ErrFactNotFound
			}
			return err
		}

		fact := model.ToDomain(r.loc)
		if err := fn(fact); err != nil {
			return err
		}

		now := r.now()
		res := tx.Model(&models.AttendanceFactModel{}).
			Where("id = ?", id).
			Updates(models.ReconciliationColumns(fact, now))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		fact.Touch(now)
		result = fact
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List returns a page of facts for operators, newest date first
func (r *GormAttendanceRepository) List(ctx context.Context, filter attendance.ListFilter, page shared.Page) ([]attendance.AttendanceFact, int64, error) {
	page = page.Normalize()
	query := r.applyListFilter(r.db.WithContext(ctx).Model(&models.AttendanceFactModel{}), filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.AttendanceFactModel
	if err := query.
		Order("attendance_date DESC").
		Order("employee_code ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return r.toDomainList(rows), total, nil
}

// CountByStatus counts facts per status, optionally within a date range
func (r *GormAttendanceRepository) CountByStatus(ctx context.Context, from, to *time.Time) (map[attendance.SyncStatus]int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AttendanceFactModel{})
	if from != nil {
		query = query.Where("attendance_date >= ?", attendance.DateOf(*from))
	}
	if to != nil {
		query = query.Where("attendance_date <= ?", attendance.DateOf(*to))
	}

	var rows []struct {
		Status attendance.SyncStatus
		Count  int64
	}
	if err := query.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[attendance.SyncStatus]int64{
		attendance.SyncStatusPending: 0,
		attendance.SyncStatusSynced:  0,
		attendance.SyncStatusFailed:  0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *GormAttendanceRepository) applyListFilter(query *gorm.DB, filter attendance.ListFilter) *gorm.DB {
	if filter.Date != nil {
		query = query.Where("attendance_date = ?", attendance.DateOf(*filter.Date))
	}
	if filter.From != nil {
		query = query.Where("attendance_date >= ?", attendance.DateOf(*filter.From))
	}
	if filter.To != nil {
		query = query.Where("attendance_date <= ?", attendance.DateOf(*filter.To))
	}
	if filter.EmployeeCode != "" {
		query = query.Where("employee_code = ?", filter.EmployeeCode)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	return query
}

func (r *GormAttendanceRepository) toDomainList(rows []models.AttendanceFactModel) []attendance.AttendanceFact {
	facts := make([]attendance.AttendanceFact, 0, len(rows))
	for i := range rows {
		facts = append(facts, *rows[i].ToDomain(r.loc))
	}
	return facts
}
