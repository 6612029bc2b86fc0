package repository

import (
	"context"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
)

// VersionRepository is the version store. Versions are insert-only apart from
// the is_latest flag.
type VersionRepository struct {
	db *gorm.DB
}

func NewVersionRepository(db *gorm.DB) *VersionRepository {
	return &VersionRepository{db: db}
}

func (r *VersionRepository) Create(ctx context.Context, v *entity.DrawingVersion) error {
	return r.db.WithContext(ctx).Omit("Comments").Create(v).Error
}

func (r *VersionRepository) FindByID(ctx context.Context, drawingID, id string) (*entity.DrawingVersion, error) {
	var v entity.DrawingVersion
	err := r.db.WithContext(ctx).
		Where("id = ? AND drawing_id = ?", id, drawingID).
		First(&v).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

func (r *VersionRepository) FindLatest(ctx context.Context, drawingID string) (*entity.DrawingVersion, error) {
	var v entity.DrawingVersion
	err := r.db.WithContext(ctx).
		Where("drawing_id = ? AND is_latest", drawingID).
		First(&v).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &v, nil
}

// ClearLatest turns off is_latest on the drawing's current latest version.
func (r *VersionRepository) ClearLatest(ctx context.Context, drawingID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.DrawingVersion{}).
		Where("drawing_id = ? AND is_latest", drawingID).
		Update("is_latest", false)
	return res.RowsAffected, res.Error
}

// ListWithComments returns versions ascending by number, each with its
// comments ascending by creation time.
func (r *VersionRepository) ListWithComments(ctx context.Context, drawingID string) ([]entity.DrawingVersion, error) {
	var versions []entity.DrawingVersion
	err := r.db.WithContext(ctx).
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("drawing_id = ?", drawingID).
		Order("version_number ASC").
		Find(&versions).Error
	return versions, err
}
