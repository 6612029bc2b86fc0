package repository

import (
	"context"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepository reads and moves tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// FindByIDForUpdate locks the task row until the surrounding transaction ends.
func (r *TaskRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.Task, error) {
	var task entity.Task
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// UpdateStatus sets status and keeps completed_at in step with it.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id, status string, now time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	if status == entity.TaskStatusCompleted {
		updates["completed_at"] = now
	} else {
		updates["completed_at"] = nil
	}
	res := r.db.WithContext(ctx).Model(&entity.Task{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *TaskRepository) ListByProject(ctx context.Context, projectID string) ([]entity.Task, error) {
	var tasks []entity.Task
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListByAssignee returns the user's tasks, soonest due first.
func (r *TaskRepository) ListByAssignee(ctx context.Context, userID, status string) ([]entity.Task, error) {
	query := r.db.WithContext(ctx).Where("assignee_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var tasks []entity.Task
	err := query.Order("due_date ASC NULLS LAST, created_at ASC").Find(&tasks).Error
	return tasks, err
}

// StatusesByDeliverable returns the status of every task linked to the deliverable.
func (r *TaskRepository) StatusesByDeliverable(ctx context.Context, deliverableID string) ([]string, error) {
	var statuses []string
	err := r.db.WithContext(ctx).
		Model(&entity.Task{}).
		Where("deliverable_id = ?", deliverableID).
		Pluck("status", &statuses).Error
	return statuses, err
}
