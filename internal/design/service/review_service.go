package service

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"github.com/gigfactory/designhub/internal/design/sse"
	"github.com/gigfactory/designhub/internal/design/workflow"
	"github.com/gigfactory/designhub/internal/shared/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Outbox event types for the review workflow.
const (
	EventDrawingCreated           = "drawing.created"
	EventDrawingRevisionUploaded  = "drawing.revision_uploaded"
	EventDrawingExpertReviewed    = "drawing.expert_reviewed"
	EventDrawingSubmittedToClient = "drawing.submitted_to_client"
	EventDrawingClientReviewed    = "drawing.client_reviewed"
)

// ReviewService runs the designer -> expert -> client drawing review.
//
// Each operation is one transaction that starts by locking the drawing row,
// so concurrent operations on the same drawing run one after another and
// version numbers cannot collide. Task and deliverable side effects and the
// outbox event commit or roll back with the drawing change.
type ReviewService struct {
	db      *gorm.DB
	repos   *repository.Repositories
	machine *workflow.Machine
	prop    *propagator
	cache   *historyCache
	hub     *sse.Hub
	store   storage.Store
	logger  *zap.Logger
	now     func() time.Time
}

func NewReviewService(db *gorm.DB, repos *repository.Repositories, machine *workflow.Machine, prop *propagator,
	cache *historyCache, hub *sse.Hub, store storage.Store, logger *zap.Logger) *ReviewService {
	return &ReviewService{
		db:      db,
		repos:   repos,
		machine: machine,
		prop:    prop,
		cache:   cache,
		hub:     hub,
		store:   store,
		logger:  logger.Named("review"),
		now:     time.Now,
	}
}

// drawingEvent is the outbox payload of every drawing.* event.
type drawingEvent struct {
	DrawingID    string               `json:"drawing_id"`
	ProjectID    string               `json:"project_id"`
	ActorID      string               `json:"actor_id"`
	From         entity.DrawingStatus `json:"from,omitempty"`
	To           entity.DrawingStatus `json:"to"`
	VersionID    string               `json:"version_id,omitempty"`
	Version      int                  `json:"version,omitempty"`
	Decision     string               `json:"decision,omitempty"`
	SubmissionID string               `json:"submission_id,omitempty"`
	Task         *TaskChange          `json:"task,omitempty"`
}

type CreateDrawingInput struct {
	ProjectID  string
	Name       string
	Discipline string
	SentBy     string // designer
	SentTo     string // reviewing expert
	TaskID     string
	Files      []entity.FileRef
	Comment    string
}

// CreateDrawing stores version 1 and sends the drawing to the expert.
// A linked task moves to in progress.
func (s *ReviewService) CreateDrawing(ctx context.Context, in CreateDrawingInput) (*entity.Drawing, error) {
	if err := missingFields(map[string]string{
		"project_id": in.ProjectID,
		"name":       in.Name,
		"discipline": in.Discipline,
		"sent_by":    in.SentBy,
		"sent_to":    in.SentTo,
	}); err != nil {
		return nil, err
	}
	if err := validateFiles(in.Files); err != nil {
		return nil, err
	}

	status, err := s.machine.Fire(entity.DrawingStatusDraft, workflow.EventSubmit)
	if err != nil {
		return nil, transitionErr(err, entity.DrawingStatusDraft)
	}

	now := s.now()
	drawingID, versionID := newID(), newID()
	drawing := &entity.Drawing{
		ID:              drawingID,
		ProjectID:       in.ProjectID,
		Name:            in.Name,
		Discipline:      in.Discipline,
		Status:          status,
		LatestVersionID: &versionID,
		TaskID:          strPtr(in.TaskID),
		CreatedBy:       in.SentBy,
		ExpertID:        in.SentTo,
		SentBy:          in.SentBy,
		SentTo:          in.SentTo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	version := &entity.DrawingVersion{
		ID:            versionID,
		DrawingID:     drawingID,
		VersionNumber: 1,
		Files:         in.Files,
		IsLatest:      true,
		UploadedBy:    in.SentBy,
		CreatedAt:     now,
	}

	var taskChange *TaskChange
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		if _, err := repos.Project.FindByID(ctx, in.ProjectID); err != nil {
			return lookupErr("project", in.ProjectID, err)
		}
		if drawing.TaskID != nil {
			task, err := repos.Task.FindByID(ctx, in.TaskID)
			if err != nil {
				return lookupErr("task", in.TaskID, err)
			}
			if task.ProjectID != in.ProjectID {
				return &ValidationError{Msg: "task belongs to another project"}
			}
		}

		if err := repos.Drawing.Create(ctx, drawing); err != nil {
			return err
		}
		if err := repos.Version.Create(ctx, version); err != nil {
			return err
		}
		if err := s.appendComment(ctx, repos, drawing.ID, versionID, in.SentBy, entity.RoleDesigner, in.Comment); err != nil {
			return err
		}

		if drawing.TaskID != nil {
			var err error
			taskChange, err = s.prop.setTaskStatus(ctx, repos, in.TaskID, entity.TaskStatusInProgress)
			if err != nil {
				return err
			}
		}

		return repos.Outbox.Append(ctx, EventDrawingCreated, drawing.ID, drawing.ProjectID, drawingEvent{
			DrawingID: drawing.ID,
			ProjectID: drawing.ProjectID,
			ActorID:   in.SentBy,
			From:      entity.DrawingStatusDraft,
			To:        status,
			VersionID: versionID,
			Version:   1,
			Task:      taskChange,
		})
	})
	if err != nil {
		return nil, s.fail("create drawing", drawingID, err)
	}

	drawing.LatestVersion = version
	s.afterCommit(ctx, drawing, "created", taskChange)
	return drawing, nil
}

type UploadRevisionInput struct {
	DrawingID  string
	UploadedBy string
	Files      []entity.FileRef
	Comment    string
}

// UploadRevision adds the next version after a revision request and sends the
// drawing back to its expert.
func (s *ReviewService) UploadRevision(ctx context.Context, in UploadRevisionInput) (*entity.DrawingVersion, error) {
	if err := missingFields(map[string]string{"drawing_id": in.DrawingID, "uploaded_by": in.UploadedBy}); err != nil {
		return nil, err
	}
	if err := validateFiles(in.Files); err != nil {
		return nil, err
	}

	var (
		drawing *entity.Drawing
		version *entity.DrawingVersion
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		d, err := repos.Drawing.FindByIDForUpdate(ctx, in.DrawingID)
		if err != nil {
			return lookupErr("drawing", in.DrawingID, err)
		}
		next, err := s.machine.Fire(d.Status, workflow.EventUploadRevision)
		if err != nil {
			return transitionErr(err, d.Status)
		}

		latest, err := repos.Version.FindLatest(ctx, d.ID)
		if err != nil {
			return err
		}
		if _, err := repos.Version.ClearLatest(ctx, d.ID); err != nil {
			return err
		}

		now := s.now()
		version = &entity.DrawingVersion{
			ID:            newID(),
			DrawingID:     d.ID,
			VersionNumber: latest.VersionNumber + 1,
			Files:         in.Files,
			IsLatest:      true,
			UploadedBy:    in.UploadedBy,
			CreatedAt:     now,
		}
		if err := repos.Version.Create(ctx, version); err != nil {
			return err
		}

		from := d.Status
		d.Status = next
		d.PreviousVersionID = &latest.ID
		d.LatestVersionID = &version.ID
		d.ExpertDecision, d.ClientDecision = nil, nil
		d.SentBy, d.SentTo = in.UploadedBy, d.ExpertID
		d.UpdatedAt = now
		if err := repos.Drawing.Update(ctx, d.ID, map[string]interface{}{
			"status":              d.Status,
			"previous_version_id": d.PreviousVersionID,
			"latest_version_id":   d.LatestVersionID,
			"expert_decision":     nil,
			"client_decision":     nil,
			"sent_by":             d.SentBy,
			"sent_to":             d.SentTo,
			"updated_at":          now,
		}); err != nil {
			return err
		}
		if err := s.appendComment(ctx, repos, d.ID, version.ID, in.UploadedBy, entity.RoleDesigner, in.Comment); err != nil {
			return err
		}

		drawing = d
		return repos.Outbox.Append(ctx, EventDrawingRevisionUploaded, d.ID, d.ProjectID, drawingEvent{
			DrawingID: d.ID,
			ProjectID: d.ProjectID,
			ActorID:   in.UploadedBy,
			From:      from,
			To:        next,
			VersionID: version.ID,
			Version:   version.VersionNumber,
		})
	})
	if err != nil {
		return nil, s.fail("upload revision", in.DrawingID, err)
	}

	s.afterCommit(ctx, drawing, "revision_uploaded", nil)
	return version, nil
}

type ReviewInput struct {
	DrawingID  string
	ReviewerID string
	Decision   string
	Comment    string
}

// ExpertReview approves the drawing or sends it back to the designer.
func (s *ReviewService) ExpertReview(ctx context.Context, in ReviewInput) (*entity.Drawing, error) {
	if err := missingFields(map[string]string{"drawing_id": in.DrawingID, "reviewer_id": in.ReviewerID}); err != nil {
		return nil, err
	}
	outcome, err := workflow.ParseExpertDecision(in.Decision)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	var drawing *entity.Drawing
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		d, err := repos.Drawing.FindByIDForUpdate(ctx, in.DrawingID)
		if err != nil {
			return lookupErr("drawing", in.DrawingID, err)
		}
		next, err := s.machine.Fire(d.Status, outcome.Event)
		if err != nil {
			return transitionErr(err, d.Status)
		}

		from := d.Status
		d.Status = next
		d.ExpertDecision = &outcome.Decision
		d.ExpertID = in.ReviewerID
		d.SentBy = in.ReviewerID
		if outcome.Event == workflow.EventExpertApprove {
			d.SentTo = in.ReviewerID
		} else {
			d.SentTo = d.CreatedBy
		}
		d.UpdatedAt = s.now()
		if err := repos.Drawing.Update(ctx, d.ID, map[string]interface{}{
			"status":          d.Status,
			"expert_decision": outcome.Decision,
			"expert_id":       d.ExpertID,
			"sent_by":         d.SentBy,
			"sent_to":         d.SentTo,
			"updated_at":      d.UpdatedAt,
		}); err != nil {
			return err
		}
		if err := s.appendComment(ctx, repos, d.ID, deref(d.LatestVersionID), in.ReviewerID, entity.RoleExpert, in.Comment); err != nil {
			return err
		}

		drawing = d
		return repos.Outbox.Append(ctx, EventDrawingExpertReviewed, d.ID, d.ProjectID, drawingEvent{
			DrawingID: d.ID,
			ProjectID: d.ProjectID,
			ActorID:   in.ReviewerID,
			From:      from,
			To:        next,
			Decision:  outcome.Decision,
		})
	})
	if err != nil {
		return nil, s.fail("expert review", in.DrawingID, err)
	}

	s.afterCommit(ctx, drawing, "expert_reviewed", nil)
	return drawing, nil
}

type SubmitToClientInput struct {
	DrawingID   string
	SubmittedBy string
	SubmittedTo string
	Comment     string
}

// SubmitToClient records the hand-off of an expert-approved drawing to the client.
func (s *ReviewService) SubmitToClient(ctx context.Context, in SubmitToClientInput) (*entity.Submission, error) {
	if err := missingFields(map[string]string{
		"drawing_id":   in.DrawingID,
		"submitted_by": in.SubmittedBy,
		"submitted_to": in.SubmittedTo,
	}); err != nil {
		return nil, err
	}

	var (
		drawing    *entity.Drawing
		submission *entity.Submission
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		d, err := repos.Drawing.FindByIDForUpdate(ctx, in.DrawingID)
		if err != nil {
			return lookupErr("drawing", in.DrawingID, err)
		}
		next, err := s.machine.Fire(d.Status, workflow.EventSendToClient)
		if err != nil {
			return &InvalidStateError{
				Msg:     "Drawing must be Approved by Expert before sending to client (current status: " + d.Status.Label() + ")",
				Current: d.Status,
			}
		}

		open, err := repos.Submission.CountOpen(ctx, d.ID)
		if err != nil {
			return err
		}
		if open > 0 {
			return &InvalidStateError{Msg: "drawing already has an open submission", Current: d.Status}
		}

		now := s.now()
		submission = &entity.Submission{
			ID:          newID(),
			DrawingID:   d.ID,
			VersionID:   deref(d.LatestVersionID),
			SubmittedBy: in.SubmittedBy,
			SubmittedTo: in.SubmittedTo,
			Status:      entity.SubmissionPending,
			SubmittedAt: now,
		}
		if err := repos.Submission.Create(ctx, submission); err != nil {
			return err
		}

		from := d.Status
		d.Status = next
		d.ClientID = &in.SubmittedTo
		d.ClientDecision = nil
		d.SentBy, d.SentTo = in.SubmittedBy, in.SubmittedTo
		d.UpdatedAt = now
		if err := repos.Drawing.Update(ctx, d.ID, map[string]interface{}{
			"status":          d.Status,
			"client_id":       in.SubmittedTo,
			"client_decision": nil,
			"sent_by":         d.SentBy,
			"sent_to":         d.SentTo,
			"updated_at":      now,
		}); err != nil {
			return err
		}
		if err := s.appendComment(ctx, repos, d.ID, submission.VersionID, in.SubmittedBy, entity.RoleExpert, in.Comment); err != nil {
			return err
		}

		drawing = d
		return repos.Outbox.Append(ctx, EventDrawingSubmittedToClient, d.ID, d.ProjectID, drawingEvent{
			DrawingID:    d.ID,
			ProjectID:    d.ProjectID,
			ActorID:      in.SubmittedBy,
			From:         from,
			To:           next,
			SubmissionID: submission.ID,
		})
	})
	if err != nil {
		return nil, s.fail("submit to client", in.DrawingID, err)
	}

	s.afterCommit(ctx, drawing, "submitted_to_client", nil)
	return submission, nil
}

// ClientReviewResult is the outcome of a client review.
type ClientReviewResult struct {
	Drawing    *entity.Drawing    `json:"drawing"`
	Submission *entity.Submission `json:"submission"`
	Task       *TaskChange        `json:"task,omitempty"`
}

// ClientReview closes the drawing's most recent submission with the client's decision.
func (s *ReviewService) ClientReview(ctx context.Context, in ReviewInput) (*ClientReviewResult, error) {
	return s.clientReview(ctx, in, "")
}

// ClientReviewBySubmission is ClientReview addressed by submission id. The
// submission must be its drawing's most recent one.
func (s *ReviewService) ClientReviewBySubmission(ctx context.Context, submissionID string, in ReviewInput) (*ClientReviewResult, error) {
	if submissionID == "" {
		return nil, &ValidationError{Msg: "missing required fields: submission_id"}
	}
	sub, err := s.repos.Submission.FindByID(ctx, submissionID)
	if err != nil {
		return nil, s.fail("client review", "", lookupErr("submission", submissionID, err))
	}
	in.DrawingID = sub.DrawingID
	return s.clientReview(ctx, in, submissionID)
}

func (s *ReviewService) clientReview(ctx context.Context, in ReviewInput, submissionID string) (*ClientReviewResult, error) {
	if err := missingFields(map[string]string{"drawing_id": in.DrawingID, "client_id": in.ReviewerID}); err != nil {
		return nil, err
	}
	outcome, err := workflow.ParseClientDecision(in.Decision)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	result := &ClientReviewResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.NewRepositories(tx)

		d, err := repos.Drawing.FindByIDForUpdate(ctx, in.DrawingID)
		if err != nil {
			return lookupErr("drawing", in.DrawingID, err)
		}
		sub, err := repos.Submission.FindLatestByDrawing(ctx, d.ID)
		if err != nil {
			return lookupErr("submission for drawing", d.ID, err)
		}
		if submissionID != "" && sub.ID != submissionID {
			return &InvalidStateError{Msg: "submission " + submissionID + " is not the drawing's latest submission", Current: d.Status}
		}
		if sub.Status != entity.SubmissionPending {
			return &InvalidStateError{Msg: "submission " + sub.ID + " is already " + string(sub.Status), Current: d.Status}
		}
		next, err := s.machine.Fire(d.Status, outcome.Event)
		if err != nil {
			return transitionErr(err, d.Status)
		}

		now := s.now()
		if err := repos.Submission.Close(ctx, sub.ID, outcome.SubmissionStatus, in.ReviewerID, now); err != nil {
			return err
		}
		sub.Status = outcome.SubmissionStatus
		sub.ReviewedBy = &in.ReviewerID
		sub.ReviewedAt = &now

		from := d.Status
		d.Status = next
		d.ClientDecision = &outcome.Decision
		d.SentBy = in.ReviewerID
		if outcome.Event == workflow.EventClientApprove {
			d.SentTo = d.ExpertID
		} else {
			d.SentTo = d.CreatedBy
		}
		d.UpdatedAt = now
		if err := repos.Drawing.Update(ctx, d.ID, map[string]interface{}{
			"status":          d.Status,
			"client_decision": outcome.Decision,
			"sent_by":         d.SentBy,
			"sent_to":         d.SentTo,
			"updated_at":      now,
		}); err != nil {
			return err
		}
		if err := s.appendComment(ctx, repos, d.ID, sub.VersionID, in.ReviewerID, entity.RoleClient, in.Comment); err != nil {
			return err
		}

		if outcome.Event == workflow.EventClientApprove && d.TaskID != nil {
			result.Task, err = s.prop.setLinkedTaskStatus(ctx, repos, d.ID, *d.TaskID, entity.TaskStatusCompleted)
			if err != nil {
				return err
			}
		}

		result.Drawing, result.Submission = d, sub
		return repos.Outbox.Append(ctx, EventDrawingClientReviewed, d.ID, d.ProjectID, drawingEvent{
			DrawingID:    d.ID,
			ProjectID:    d.ProjectID,
			ActorID:      in.ReviewerID,
			From:         from,
			To:           next,
			Decision:     outcome.Decision,
			SubmissionID: sub.ID,
			Task:         result.Task,
		})
	})
	if err != nil {
		return nil, s.fail("client review", in.DrawingID, err)
	}

	s.afterCommit(ctx, result.Drawing, "client_reviewed", result.Task)
	return result, nil
}

// GetHistory returns the drawing's versions ascending by number, each with its
// comments ascending by time.
func (s *ReviewService) GetHistory(ctx context.Context, drawingID string) ([]entity.DrawingVersion, error) {
	if versions, ok := s.cache.get(ctx, drawingID); ok {
		return versions, nil
	}
	if _, err := s.repos.Drawing.FindByID(ctx, drawingID); err != nil {
		return nil, s.fail("get history", drawingID, lookupErr("drawing", drawingID, err))
	}
	versions, err := s.repos.Version.ListWithComments(ctx, drawingID)
	if err != nil {
		return nil, s.fail("get history", drawingID, err)
	}
	for i := range versions {
		if versions[i].Comments == nil {
			versions[i].Comments = []entity.DrawingComment{}
		}
	}
	s.cache.set(ctx, drawingID, versions)
	return versions, nil
}

func (s *ReviewService) GetDrawing(ctx context.Context, id string) (*entity.Drawing, error) {
	d, err := s.repos.Drawing.FindByID(ctx, id)
	if err != nil {
		return nil, s.fail("get drawing", id, lookupErr("drawing", id, err))
	}
	return d, nil
}

func (s *ReviewService) ListDrawings(ctx context.Context, f repository.DrawingFilter) ([]entity.Drawing, error) {
	items, err := s.repos.Drawing.List(ctx, f)
	if err != nil {
		return nil, s.fail("list drawings", "", err)
	}
	return items, nil
}

func (s *ReviewService) ListSubmissions(ctx context.Context, drawingID string) ([]entity.Submission, error) {
	if _, err := s.repos.Drawing.FindByID(ctx, drawingID); err != nil {
		return nil, s.fail("list submissions", drawingID, lookupErr("drawing", drawingID, err))
	}
	items, err := s.repos.Submission.ListByDrawing(ctx, drawingID)
	if err != nil {
		return nil, s.fail("list submissions", drawingID, err)
	}
	return items, nil
}

// OpenArtifact streams one file of a version.
func (s *ReviewService) OpenArtifact(ctx context.Context, drawingID, versionID string, index int) (*entity.FileRef, io.ReadCloser, error) {
	if s.store == nil {
		return nil, nil, &NotFoundError{Resource: "artifact storage"}
	}
	v, err := s.repos.Version.FindByID(ctx, drawingID, versionID)
	if err != nil {
		return nil, nil, s.fail("open artifact", drawingID, lookupErr("version", versionID, err))
	}
	if index < 0 || index >= len(v.Files) {
		return nil, nil, &NotFoundError{Resource: "file", ID: versionID + "#" + strconv.Itoa(index)}
	}
	ref := v.Files[index]
	rc, err := s.store.Open(ctx, ref.Path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, &NotFoundError{Resource: "file", ID: ref.Path}
		}
		return nil, nil, s.fail("open artifact", drawingID, err)
	}
	return &ref, rc, nil
}

func (s *ReviewService) appendComment(ctx context.Context, repos *repository.Repositories, drawingID, versionID, commenterID, role, body string) error {
	if body == "" {
		return nil
	}
	return repos.Comment.Append(ctx, &entity.DrawingComment{
		ID:          newID(),
		VersionID:   versionID,
		DrawingID:   drawingID,
		CommenterID: commenterID,
		Role:        role,
		Body:        body,
		CreatedAt:   s.now(),
	})
}

// afterCommit drops the cached history and notifies connected clients.
func (s *ReviewService) afterCommit(ctx context.Context, d *entity.Drawing, action string, task *TaskChange) {
	s.cache.invalidate(ctx, d.ID)
	s.hub.PublishDrawingUpdate(sse.DrawingUpdate{
		ProjectID: d.ProjectID,
		DrawingID: d.ID,
		Status:    string(d.Status),
		Action:    action,
	}, d.SentTo)
	if task != nil && task.Deliverable != nil {
		s.hub.PublishDeliverableUpdate(task.Deliverable.ProjectID, task.Deliverable.DeliverableID, task.Deliverable.To)
	}
}

// fail logs persistence failures and converts them to PersistenceError.
func (s *ReviewService) fail(op, drawingID string, err error) error {
	err = txErr(op, err)
	var pe *PersistenceError
	if errors.As(err, &pe) {
		s.logger.Error(op+" failed", zap.String("drawing_id", drawingID), zap.Error(pe.Err))
	}
	return err
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
