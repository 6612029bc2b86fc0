package repository

import (
	"context"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TeamRepository struct {
	db *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// Add inserts a membership. Returns ErrDuplicate when the user is already on the team.
func (r *TeamRepository) Add(ctx context.Context, m *entity.TeamMember) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (r *TeamRepository) ListByProject(ctx context.Context, projectID string) ([]entity.TeamMember, error) {
	var items []entity.TeamMember
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}
