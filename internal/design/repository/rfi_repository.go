package repository

import (
	"context"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RFIRepository struct {
	db *gorm.DB
}

func NewRFIRepository(db *gorm.DB) *RFIRepository {
	return &RFIRepository{db: db}
}

func (r *RFIRepository) Create(ctx context.Context, rfi *entity.RFI) error {
	return r.db.WithContext(ctx).Create(rfi).Error
}

func (r *RFIRepository) FindByIDForUpdate(ctx context.Context, id string) (*entity.RFI, error) {
	var rfi entity.RFI
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&rfi).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rfi, nil
}

func (r *RFIRepository) Save(ctx context.Context, rfi *entity.RFI) error {
	return r.db.WithContext(ctx).Save(rfi).Error
}

func (r *RFIRepository) ListByProject(ctx context.Context, projectID, status string) ([]entity.RFI, error) {
	query := r.db.WithContext(ctx).Where("project_id = ?", projectID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var items []entity.RFI
	err := query.Order("created_at DESC").Find(&items).Error
	return items, err
}

func (r *RFIRepository) ListSentTo(ctx context.Context, userID string) ([]entity.RFI, error) {
	var items []entity.RFI
	err := r.db.WithContext(ctx).
		Where("sent_to = ?", userID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}
