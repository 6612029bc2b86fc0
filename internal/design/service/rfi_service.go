package service

import (
	"context"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EventRFICreated  = "rfi.created"
	EventRFIResolved = "rfi.resolved"
)

// RFIService handles requests for information raised on a project.
type RFIService struct {
	db     *gorm.DB
	repos  *repository.Repositories
	logger *zap.Logger
	now    func() time.Time
}

func NewRFIService(db *gorm.DB, repos *repository.Repositories, logger *zap.Logger) *RFIService {
	return &RFIService{db: db, repos: repos, logger: logger.Named("rfi"), now: time.Now}
}

type CreateRFIInput struct {
	ProjectID string
	Title     string
	Details   string
	Priority  string
	Documents []entity.FileRef
	CreatedBy string
	SentTo    string
}

type rfiEvent struct {
	RFIID     string `json:"rfi_id"`
	ProjectID string `json:"project_id"`
	ActorID   string `json:"actor_id"`
	SentTo    string `json:"sent_to"`
	Status    string `json:"status"`
}

func (s *RFIService) Create(ctx context.Context, in CreateRFIInput) (*entity.RFI, error) {
	if err := missingFields(map[string]string{
		"project_id": in.ProjectID,
		"title":      in.Title,
		"created_by": in.CreatedBy,
		"sent_to":    in.SentTo,
	}); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = entity.RFIPriorityMedium
	}
	switch priority {
	case entity.RFIPriorityLow, entity.RFIPriorityMedium, entity.RFIPriorityHigh:
	default:
		return nil, &ValidationError{Msg: "priority must be low, medium or high"}
	}
	if err := validateRefs("documents", in.Documents); err != nil {
		return nil, err
	}

	rfi := &entity.RFI{
		ID:        newID(),
		ProjectID: in.ProjectID,
		Title:     in.Title,
		Details:   in.Details,
		Priority:  priority,
		Status:    entity.RFIStatusOpen,
		Documents: in.Documents,
		CreatedBy: in.CreatedBy,
		SentTo:    in.SentTo,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		if _, err := repos.Project.FindByID(ctx, in.ProjectID); err != nil {
			return lookupErr("project", in.ProjectID, err)
		}
		if err := repos.RFI.Create(ctx, rfi); err != nil {
			return err
		}
		return repos.Outbox.Append(ctx, EventRFICreated, rfi.ID, rfi.ProjectID, rfiEvent{
			RFIID: rfi.ID, ProjectID: rfi.ProjectID, ActorID: rfi.CreatedBy, SentTo: rfi.SentTo, Status: rfi.Status,
		})
	})
	if err != nil {
		return nil, txErr("create rfi", err)
	}
	return rfi, nil
}

// ListByProject lists a project's RFIs, newest first. status may be empty.
func (s *RFIService) ListByProject(ctx context.Context, projectID, status string) ([]entity.RFI, error) {
	if status != "" && status != entity.RFIStatusOpen && status != entity.RFIStatusResolved {
		return nil, &ValidationError{Msg: "status must be open or resolved"}
	}
	items, err := s.repos.RFI.ListByProject(ctx, projectID, status)
	if err != nil {
		return nil, &PersistenceError{Op: "list rfis", Err: err}
	}
	return items, nil
}

func (s *RFIService) ListSentTo(ctx context.Context, userID string) ([]entity.RFI, error) {
	items, err := s.repos.RFI.ListSentTo(ctx, userID)
	if err != nil {
		return nil, &PersistenceError{Op: "list rfis", Err: err}
	}
	return items, nil
}

type ResolveRFIInput struct {
	RFIID      string
	ResolvedBy string
	Resolution string
	Documents  []entity.FileRef
}

// Resolve answers an open RFI. Resolving twice is an InvalidStateError.
func (s *RFIService) Resolve(ctx context.Context, in ResolveRFIInput) (*entity.RFI, error) {
	if err := missingFields(map[string]string{
		"rfi_id":      in.RFIID,
		"resolved_by": in.ResolvedBy,
		"resolution":  in.Resolution,
	}); err != nil {
		return nil, err
	}
	if err := validateRefs("documents", in.Documents); err != nil {
		return nil, err
	}

	var rfi *entity.RFI
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)
		r, err := repos.RFI.FindByIDForUpdate(ctx, in.RFIID)
		if err != nil {
			return lookupErr("rfi", in.RFIID, err)
		}
		if r.Status == entity.RFIStatusResolved {
			return &InvalidStateError{Msg: "rfi " + r.ID + " is already resolved"}
		}
		now := s.now()
		r.Status = entity.RFIStatusResolved
		r.Resolution = in.Resolution
		r.ResolutionDocuments = in.Documents
		r.ResolvedBy = &in.ResolvedBy
		r.ResolvedAt = &now
		if err := repos.RFI.Save(ctx, r); err != nil {
			return err
		}
		rfi = r
		return repos.Outbox.Append(ctx, EventRFIResolved, r.ID, r.ProjectID, rfiEvent{
			RFIID: r.ID, ProjectID: r.ProjectID, ActorID: in.ResolvedBy, SentTo: r.CreatedBy, Status: r.Status,
		})
	})
	if err != nil {
		return nil, txErr("resolve rfi", err)
	}
	return rfi, nil
}
