package repository

import (
	"context"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
)

type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) Create(ctx context.Context, s *entity.Submission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*entity.Submission, error) {
	var s entity.Submission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// FindLatestByDrawing returns the most recent submission by submission time.
func (r *SubmissionRepository) FindLatestByDrawing(ctx context.Context, drawingID string) (*entity.Submission, error) {
	var s entity.Submission
	err := r.db.WithContext(ctx).
		Where("drawing_id = ?", drawingID).
		Order("submitted_at DESC, id DESC").
		First(&s).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *SubmissionRepository) CountOpen(ctx context.Context, drawingID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Submission{}).
		Where("drawing_id = ? AND status = ?", drawingID, entity.SubmissionPending).
		Count(&count).Error
	return count, err
}

// Close moves a pending submission to its final status.
func (r *SubmissionRepository) Close(ctx context.Context, id string, status entity.SubmissionStatus, reviewer string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&entity.Submission{}).
		Where("id = ? AND status = ?", id, entity.SubmissionPending).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewed_by": reviewer,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SubmissionRepository) ListByDrawing(ctx context.Context, drawingID string) ([]entity.Submission, error) {
	var items []entity.Submission
	err := r.db.WithContext(ctx).
		Where("drawing_id = ?", drawingID).
		Order("submitted_at DESC, id DESC").
		Find(&items).Error
	return items, err
}
