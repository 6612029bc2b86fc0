package repository

import (
	"context"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DrawingRepository struct {
	db *gorm.DB
}

func NewDrawingRepository(db *gorm.DB) *DrawingRepository {
	return &DrawingRepository{db: db}
}

func (r *DrawingRepository) Create(ctx context.Context, d *entity.Drawing) error {
	return r.db.WithContext(ctx).Omit("LatestVersion").Create(d).Error
}

func (r *DrawingRepository) FindByID(ctx context.Context, id string) (*entity.Drawing, error) {
	var d entity.Drawing
	err := r.db.WithContext(ctx).
		Preload("LatestVersion").
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// FindByIDForUpdate takes a row lock on the drawing. Every mutating workflow
// operation goes through here first, which serialises them per drawing.
func (r *DrawingRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Drawing, error) {
	var d entity.Drawing
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *DrawingRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&entity.Drawing{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DrawingFilter narrows a listing. Empty fields are ignored.
type DrawingFilter struct {
	ProjectID  string
	SentTo     string
	SentBy     string
	Status     string
	Discipline string
}

func (r *DrawingRepository) List(ctx context.Context, f DrawingFilter) ([]entity.Drawing, error) {
	query := r.db.WithContext(ctx).Preload("LatestVersion")
	if f.ProjectID != "" {
		query = query.Where("project_id = ?", f.ProjectID)
	}
	if f.SentTo != "" {
		query = query.Where("sent_to = ?", f.SentTo)
	}
	if f.SentBy != "" {
		query = query.Where("sent_by = ?", f.SentBy)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Discipline != "" {
		query = query.Where("discipline = ?", f.Discipline)
	}

	var drawings []entity.Drawing
	err := query.Order("updated_at DESC").Find(&drawings).Error
	return drawings, err
}
