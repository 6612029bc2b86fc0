package repository

import (
	"context"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliverableRepository struct {
	db *gorm.DB
}

func NewDeliverableRepository(db *gorm.DB) *DeliverableRepository {
	return &DeliverableRepository{db: db}
}

func (r *DeliverableRepository) Create(ctx context.Context, d *entity.Deliverable) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *DeliverableRepository) FindByID(ctx context.Context, id string) (*entity.Deliverable, error) {
	var d entity.Deliverable
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *DeliverableRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Deliverable, error) {
	var d entity.Deliverable
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&d).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

func (r *DeliverableRepository) ListByProject(ctx context.Context, projectID string) ([]entity.Deliverable, error) {
	var items []entity.Deliverable
	err := r.db.WithContext(ctx).
		Preload("Tasks").
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// ListIDsWithTasks returns deliverables that have at least one linked task.
func (r *DeliverableRepository) ListIDsWithTasks(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&entity.Task{}).
		Where("deliverable_id IS NOT NULL").
		Distinct("deliverable_id").
		Pluck("deliverable_id", &ids).Error
	return ids, err
}

func (r *DeliverableRepository) UpdateStatus(ctx context.Context, id, status string, completedAt *time.Time) error {
	return r.db.WithContext(ctx).
		Model(&entity.Deliverable{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"completed_at": completedAt,
			"updated_at":   time.Now(),
		}).Error
}
