package service

import (
	"context"
	"errors"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/design/repository"
	"go.uber.org/zap"
)

// Outbox event types for task and deliverable changes.
const (
	EventTaskStatusChanged        = "task.status_changed"
	EventDeliverableStatusChanged = "deliverable.status_changed"
)

// DeliverableChange is a deliverable status flip made inside a transaction.
type DeliverableChange struct {
	ProjectID     string `json:"project_id"`
	DeliverableID string `json:"deliverable_id"`
	From          string `json:"from"`
	To            string `json:"to"`
}

// TaskChange is a task status change and the deliverable flip it caused, if any.
type TaskChange struct {
	ProjectID   string             `json:"project_id"`
	TaskID      string             `json:"task_id"`
	From        string             `json:"from"`
	To          string             `json:"to"`
	Deliverable *DeliverableChange `json:"deliverable,omitempty"`
}

// propagator applies task and deliverable side effects on a transaction's repositories.
type propagator struct {
	logger *zap.Logger
	now    func() time.Time
}

// setTaskStatus moves a task and recomputes its deliverable. Returns nil change
// when the status was already set.
func (p *propagator) setTaskStatus(ctx context.Context, repos *repository.Repositories, taskID, status string) (*TaskChange, error) {
	task, err := repos.Task.FindByIDForUpdate(ctx, taskID)
	if err != nil {
		return nil, lookupErr("task", taskID, err)
	}
	if task.Status == status {
		return nil, nil
	}

	if err := repos.Task.UpdateStatus(ctx, task.ID, status, p.now()); err != nil {
		return nil, err
	}
	change := &TaskChange{ProjectID: task.ProjectID, TaskID: task.ID, From: task.Status, To: status}
	if err := repos.Outbox.Append(ctx, EventTaskStatusChanged, task.ID, task.ProjectID, change); err != nil {
		return nil, err
	}

	if task.DeliverableID != nil {
		dc, err := p.recompute(ctx, repos, *task.DeliverableID)
		if err != nil {
			return nil, err
		}
		change.Deliverable = dc
	}
	return change, nil
}

// setLinkedTaskStatus is setTaskStatus for a drawing's linked task: a task that
// no longer exists is logged and skipped so the review itself still succeeds.
func (p *propagator) setLinkedTaskStatus(ctx context.Context, repos *repository.Repositories, drawingID, taskID, status string) (*TaskChange, error) {
	change, err := p.setTaskStatus(ctx, repos, taskID, status)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		p.logger.Warn("linked task missing, skipping propagation",
			zap.String("drawing_id", drawingID),
			zap.String("task_id", taskID),
		)
		return nil, nil
	}
	return change, err
}

// recompute derives the deliverable status from its tasks:
// completed iff it has tasks and all of them are completed.
// A deliverable without tasks is left alone. Idempotent.
func (p *propagator) recompute(ctx context.Context, repos *repository.Repositories, deliverableID string) (*DeliverableChange, error) {
	d, err := repos.Deliverable.FindByIDForUpdate(ctx, deliverableID)
	if err != nil {
		return nil, lookupErr("deliverable", deliverableID, err)
	}

	statuses, err := repos.Task.StatusesByDeliverable(ctx, deliverableID)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, nil
	}

	allDone := true
	for _, s := range statuses {
		if s != entity.TaskStatusCompleted {
			allDone = false
			break
		}
	}

	var (
		target      string
		completedAt *time.Time
	)
	switch {
	case allDone && d.Status != entity.DeliverableStatusCompleted:
		now := p.now()
		target, completedAt = entity.DeliverableStatusCompleted, &now
	case !allDone && d.Status == entity.DeliverableStatusCompleted:
		target = entity.DeliverableStatusInProgress
	default:
		return nil, nil
	}

	if err := repos.Deliverable.UpdateStatus(ctx, d.ID, target, completedAt); err != nil {
		return nil, err
	}
	change := &DeliverableChange{ProjectID: d.ProjectID, DeliverableID: d.ID, From: d.Status, To: target}
	if err := repos.Outbox.Append(ctx, EventDeliverableStatusChanged, d.ID, d.ProjectID, change); err != nil {
		return nil, err
	}
	return change, nil
}
