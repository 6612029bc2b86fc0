package repository

import (
	"context"

	"github.com/gigfactory/designhub/internal/design/entity"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, p *entity.Project) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var p entity.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ProjectFilter narrows a project listing. Empty fields are ignored.
type ProjectFilter struct {
	ClientID string
}

func (r *ProjectRepository) List(ctx context.Context, f ProjectFilter) ([]entity.Project, error) {
	query := r.db.WithContext(ctx)
	if f.ClientID != "" {
		query = query.Where("client_id = ?", f.ClientID)
	}
	var items []entity.Project
	err := query.Order("created_at DESC, id ASC").Find(&items).Error
	return items, err
}

// ListAssignedTo returns the projects where the user is assigned at least one
// task or is a team member.
func (r *ProjectRepository) ListAssignedTo(ctx context.Context, userID string) ([]entity.Project, error) {
	var items []entity.Project
	err := r.db.WithContext(ctx).
		Where("id IN (?) OR id IN (?)",
			r.db.Model(&entity.Task{}).Select("project_id").Where("assignee_id = ?", userID),
			r.db.Model(&entity.TeamMember{}).Select("project_id").Where("user_id = ?", userID),
		).
		Order("created_at DESC, id ASC").
		Find(&items).Error
	return items, err
}

func (r *ProjectRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Project{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}
