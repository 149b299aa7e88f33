package taskdef

import (
	"context"

	"gorm.io/gorm"
)

// Repository describes database operations available for task definitions.
// The engine side only ever reads; writes belong to the administrative
// surface.
type Repository interface {
	Create(ctx context.Context, def *TaskDefinition) error
	GetByID(ctx context.Context, id string) (*TaskDefinition, error)
	List(ctx context.Context) ([]TaskDefinition, error)
	ListEnabled(ctx context.Context) ([]TaskDefinition, error)
	Update(ctx context.Context, def *TaskDefinition) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Create(ctx context.Context, def *TaskDefinition) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}
	return r.db.WithContext(ctx).Create(def).Error
}

func (r *gormRepository) GetByID(ctx context.Context, id string) (*TaskDefinition, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var def TaskDefinition
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&def).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *gormRepository) List(ctx context.Context) ([]TaskDefinition, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var defs []TaskDefinition
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&defs).Error
	if err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *gormRepository) ListEnabled(ctx context.Context) ([]TaskDefinition, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var defs []TaskDefinition
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&defs).Error
	if err != nil {
		return nil, err
	}
	return defs, nil
}

func (r *gormRepository) Update(ctx context.Context, def *TaskDefinition) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Model(&TaskDefinition{}).
		Where("id = ?", def.ID).
		Updates(map[string]any{
			"name":        def.Name,
			"description": def.Description,
			"raw_sql":     def.RawSQL,
			"cron_expr":   def.CronExpr,
			"recipient":   def.Recipient,
			"is_active":   def.IsActive,
			"updated_at":  def.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) SetActive(ctx context.Context, id string, active bool) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Model(&TaskDefinition{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&TaskDefinition{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
