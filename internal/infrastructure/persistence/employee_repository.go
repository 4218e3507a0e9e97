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

// GormEmployeeRepository implements attendance.EmployeeRepository using GORM
type GormEmployeeRepository struct {
	db *gorm.DB
}

// NewGormEmployeeRepository creates a new GormEmployeeRepository
func NewGormEmployeeRepository(db *gorm.DB) *GormEmployeeRepository {
	return &GormEmployeeRepository{db: db}
}

// Upsert inserts the employee or refreshes the profile of the row with the same code.
// On return employee.ID is the ID of the stored row.
func (r *GormEmployeeRepository) Upsert(ctx context.Context, employee *attendance.Employee) error {
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	now := time.Now()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	employee.Touch(now)

	model := models.EmployeeModelFromDomain(employee)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"first_name", "last_name", "full_name", "department", "area", "is_active", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	var stored models.EmployeeModel
	if err := r.db.WithContext(ctx).Select("id", "created_at").Where("code = ?", employee.Code).First(&stored).Error; err != nil {
		return err
	}
	employee.ID = stored.ID
	employee.CreatedAt = stored.CreatedAt
	return nil
}

// FindByCode finds an employee by source code
func (r *GormEmployeeRepository) FindByCode(ctx context.Context, code string) (*attendance.Employee, error) {
	var model models.EmployeeModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attendance.ErrEmployeeNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an employee by ID
func (r *GormEmployeeRepository) FindByID(ctx context.Context, id uuid.UUID) (*attendance.Employee, error) {
	var model models.EmployeeModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, attendance.ErrEmployeeNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// List returns a page of employees ordered by code, with the total count
func (r *GormEmployeeRepository) List(ctx context.Context, page shared.Page) ([]attendance.Employee, int64, error) {
	page = page.Normalize()

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.EmployeeModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.EmployeeModel
	if err := r.db.WithContext(ctx).
		Order("code ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	employees := make([]attendance.Employee, 0, len(rows))
	for i := range rows {
		employees = append(employees, *rows[i].ToDomain())
	}
	return employees, total, nil
}

// Count returns the number of employees, optionally only active ones
func (r *GormEmployeeRepository) Count(ctx context.Context, activeOnly bool) (int64, error) {
	var total int64
	query := r.db.WithContext(ctx).Model(&models.EmployeeModel{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
