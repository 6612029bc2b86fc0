package service

import (
	"context"
	"errors"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/gigfactory/designhub/internal/design/sse"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectService covers the project-management records the review workflow
// consumes: projects, tasks and deliverables.
type ProjectService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	prop   *propagator
	hub    *sse.Hub
	logger *zap.Logger
}

func NewProjectService(db *gorm.DB, repos *repository.Repositories, prop *propagator, hub *sse.Hub, logger *zap.Logger) *ProjectService {
	return &ProjectService{db: db, repos: repos, prop: prop, hub: hub, logger: logger.Named("project")}
}

type CreateProjectInput struct {
	Name        string
	Description string
	ClientID    string
	StartDate   *time.Time
	EndDate     *time.Time
	CreatedBy   string
}

func (s *ProjectService) CreateProject(ctx context.Context, in CreateProjectInput) (*entity.Project, error) {
	if err := missingFields(map[string]string{"name": in.Name, "created_by": in.CreatedBy}); err != nil {
		return nil, err
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return nil, &ValidationError{Msg: "end_date must not be before start_date"}
	}
	p := &entity.Project{
		ID:          newID(),
		Name:        in.Name,
		Description: in.Description,
		ClientID:    strPtr(in.ClientID),
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedBy:   in.CreatedBy,
	}
	if err := s.repos.Project.Create(ctx, p); err != nil {
		return nil, &PersistenceError{Op: "create project", Err: err}
	}
	return p, nil
}

func (s *ProjectService) GetProject(ctx context.Context, id string) (*entity.Project, error) {
	p, err := s.repos.Project.FindByID(ctx, id)
	if err != nil {
		return nil, txErr("get project", lookupErr("project", id, err))
	}
	return p, nil
}

// ListProjects returns every project, or only the client's when clientID is set.
func (s *ProjectService) ListProjects(ctx context.Context, clientID string) ([]entity.Project, error) {
	items, err := s.repos.Project.List(ctx, repository.ProjectFilter{ClientID: clientID})
	if err != nil {
		return nil, &PersistenceError{Op: "list projects", Err: err}
	}
	return items, nil
}

// ListAssignedProjects returns the projects a user works on through a task
// assignment or team membership.
func (s *ProjectService) ListAssignedProjects(ctx context.Context, userID string) ([]entity.Project, error) {
	if err := missingFields(map[string]string{"user_id": userID}); err != nil {
		return nil, err
	}
	items, err := s.repos.Project.ListAssignedTo(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list assigned projects", Err: err}
	}
	return items, nil
}

type AddTeamMemberInput struct {
	ProjectID   string
	UserID      string
	Email       string
	Designation string
	Status      string
	AddedBy     string
}

// AddTeamMember puts a user on a project team. Adding the same user twice is
// an InvalidStateError.
func (s *ProjectService) AddTeamMember(ctx context.Context, in AddTeamMemberInput) (*entity.TeamMember, error) {
	if err := missingFields(map[string]string{"project_id": in.ProjectID, "user_id": in.UserID, "added_by": in.AddedBy}); err != nil {
		return nil, err
	}
	exists, err := s.repos.Project.Exists(ctx, in.ProjectID)
	if err != nil {
		return nil, &PersistenceError{Op: "add team member", Err: err}
	}
	if !exists {
		return nil, &NotFoundError{Resource: "project", ID: in.ProjectID}
	}
	status := in.Status
	if status == "" {
		status = entity.TeamStatusInternal
	}
	m := &entity.TeamMember{
		ID:          newID(),
		ProjectID:   in.ProjectID,
		UserID:      in.UserID,
		Email:       in.Email,
		Designation: in.Designation,
		Status:      status,
		AddedBy:     in.AddedBy,
	}
	if err := s.repos.Team.Add(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &InvalidStateError{Msg: "user " + in.UserID + " is already on the project team"}
		}
		return nil, &PersistenceError{Op: "add team member", Err: err}
	}
	return m, nil
}

func (s *ProjectService) ListTeam(ctx context.Context, projectID string) ([]entity.TeamMember, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	items, err := s.repos.Team.ListByProject(ctx, projectID)
	if err != nil {
		return nil, &PersistenceError{Op: "list team", Err: err}
	}
	return items, nil
}

type CreateTaskInput struct {
	ProjectID     string
	DeliverableID string
	Name          string
	Priority      string
	AssigneeID    string
	DueDate       *time.Time
	CreatedBy     string
}

// CreateTask adds a pending task. Adding it to a completed deliverable
// reopens the deliverable.
func (s *ProjectService) CreateTask(ctx context.Context, in CreateTaskInput) (*entity.Task, error) {
	if err := missingFields(map[string]string{"project_id": in.ProjectID, "name": in.Name, "created_by": in.CreatedBy}); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = "medium"
	}
	switch priority {
	case "low", "medium", "high":
	default:
		return nil, &ValidationError{Msg: "priority must be low, medium or high"}
	}

	task := &entity.Task{
		ID:            newID(),
		ProjectID:     in.ProjectID,
		DeliverableID: strPtr(in.DeliverableID),
		Name:          in.Name,
		Priority:      priority,
		Status:        entity.TaskStatusPending,
		AssigneeID:    strPtr(in.AssigneeID),
		DueDate:       in.DueDate,
		CreatedBy:     in.CreatedBy,
	}

	var dc *DeliverableChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		if _, err := repos.Project.FindByID(ctx, in.ProjectID); err != nil {
			return lookupErr("project", in.ProjectID, err)
		}
		if task.DeliverableID != nil {
			d, err := repos.Deliverable.FindByIDForUpdate(ctx, *task.DeliverableID)
			if err != nil {
				return lookupErr("deliverable", *task.DeliverableID, err)
			}
			if d.ProjectID != in.ProjectID {
				return &ValidationError{Msg: "deliverable belongs to another project"}
			}
		}
		if err := repos.Task.Create(ctx, task); err != nil {
			return err
		}
		if task.DeliverableID != nil {
			var err error
			dc, err = s.prop.recompute(ctx, repos, *task.DeliverableID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, txErr("create task", err)
	}
	s.notifyDeliverable(dc)
	return task, nil
}

func (s *ProjectService) ListTasks(ctx context.Context, projectID string) ([]entity.Task, error) {
	tasks, err := s.repos.Task.ListByProject(ctx, projectID)
	if err != nil {
		return nil, &PersistenceError{Op: "list tasks", Err: err}
	}
	return tasks, nil
}

// ListAssignedTasks returns the tasks assigned to a user, optionally by status.
func (s *ProjectService) ListAssignedTasks(ctx context.Context, userID, status string) ([]entity.Task, error) {
	if err := missingFields(map[string]string{"user_id": userID}); err != nil {
		return nil, err
	}
	if status != "" && !entity.ValidTaskStatus(status) {
		return nil, &ValidationError{Msg: "status must be one of: pending, in_progress, completed"}
	}
	tasks, err := s.repos.Task.ListByAssignee(ctx, userID, status)
	if err != nil {
		return nil, &PersistenceError{Op: "list assigned tasks", Err: err}
	}
	return tasks, nil
}

// UpdateTaskStatus changes a task by hand and recomputes its deliverable in
// the same transaction.
func (s *ProjectService) UpdateTaskStatus(ctx context.Context, taskID, status string) (*entity.Task, *TaskChange, error) {
	if !entity.ValidTaskStatus(status) {
		return nil, nil, &ValidationError{Msg: "status must be one of: pending, in_progress, completed"}
	}

	var change *TaskChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		change, err = s.prop.setTaskStatus(ctx, repository.NewRepositories(tx), taskID, status)
		return err
	})
	if err != nil {
		return nil, nil, txErr("update task status", err)
	}
	if change != nil {
		s.notifyDeliverable(change.Deliverable)
	}

	task, err := s.repos.Task.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, txErr("get task", lookupErr("task", taskID, err))
	}
	return task, change, nil
}

type CreateDeliverableInput struct {
	ProjectID string
	Name      string
	Number    string
	DueDate   *time.Time
	CreatedBy string
}

func (s *ProjectService) CreateDeliverable(ctx context.Context, in CreateDeliverableInput) (*entity.Deliverable, error) {
	if err := missingFields(map[string]string{"project_id": in.ProjectID, "name": in.Name, "created_by": in.CreatedBy}); err != nil {
		return nil, err
	}
	exists, err := s.repos.Project.Exists(ctx, in.ProjectID)
	if err != nil {
		return nil, &PersistenceError{Op: "create deliverable", Err: err}
	}
	if !exists {
		return nil, &NotFoundError{Resource: "project", ID: in.ProjectID}
	}
	d := &entity.Deliverable{
		ID:        newID(),
		ProjectID: in.ProjectID,
		Name:      in.Name,
		Number:    in.Number,
		Status:    entity.DeliverableStatusInProgress,
		DueDate:   in.DueDate,
		CreatedBy: in.CreatedBy,
	}
	if err := s.repos.Deliverable.Create(ctx, d); err != nil {
		return nil, &PersistenceError{Op: "create deliverable", Err: err}
	}
	return d, nil
}

func (s *ProjectService) GetDeliverable(ctx context.Context, id string) (*entity.Deliverable, error) {
	d, err := s.repos.Deliverable.FindByID(ctx, id)
	if err != nil {
		return nil, txErr("get deliverable", lookupErr("deliverable", id, err))
	}
	return d, nil
}

func (s *ProjectService) ListDeliverables(ctx context.Context, projectID string) ([]entity.Deliverable, error) {
	items, err := s.repos.Deliverable.ListByProject(ctx, projectID)
	if err != nil {
		return nil, &PersistenceError{Op: "list deliverables", Err: err}
	}
	return items, nil
}

// RecomputeDeliverableStatus re-derives one deliverable's status from its tasks.
func (s *ProjectService) RecomputeDeliverableStatus(ctx context.Context, deliverableID string) (*entity.Deliverable, error) {
	var dc *DeliverableChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		dc, err = s.prop.recompute(ctx, repository.NewRepositories(tx), deliverableID)
		return err
	})
	if err != nil {
		return nil, txErr("recompute deliverable", err)
	}
	s.notifyDeliverable(dc)
	return s.GetDeliverable(ctx, deliverableID)
}

// RecomputeAll recomputes every deliverable that has tasks, one transaction
// each. Returns how many changed.
func (s *ProjectService) RecomputeAll(ctx context.Context) (int, error) {
	ids, err := s.repos.Deliverable.ListIDsWithTasks(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "list deliverables", Err: err}
	}
	changed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		var dc *DeliverableChange
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			dc, err = s.prop.recompute(ctx, repository.NewRepositories(tx), id)
			return err
		})
		if err != nil {
			s.logger.Warn("recompute deliverable failed", zap.String("deliverable_id", id), zap.Error(err))
			continue
		}
		if dc != nil {
			changed++
			s.notifyDeliverable(dc)
		}
	}
	return changed, nil
}

func (s *ProjectService) notifyDeliverable(dc *DeliverableChange) {
	if dc == nil {
		return
	}
	s.hub.PublishDeliverableUpdate(dc.ProjectID, dc.DeliverableID, dc.To)
}
