package repository

import (
	"context"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
)

// CommentRepository is append-only: no update or delete.
type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Append(ctx context.Context, c *entity.DrawingComment) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CommentRepository) ListByVersion(ctx context.Context, versionID string) ([]entity.DrawingComment, error) {
	var comments []entity.DrawingComment
	err := r.db.WithContext(ctx).
		Where("version_id = ?", versionID).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	return comments, err
}
