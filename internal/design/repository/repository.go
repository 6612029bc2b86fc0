package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// Repositories groups every repository over one *gorm.DB.
// Pass a transaction handle to bind them all to that transaction.
type Repositories struct {
	Project     *ProjectRepository
	Task        *TaskRepository
	Deliverable *DeliverableRepository
	Drawing     *DrawingRepository
	Version     *VersionRepository
	Comment     *CommentRepository
	Submission  *SubmissionRepository
	RFI         *RFIRepository
	Outbox      *OutboxRepository
	Team        *TeamRepository
}

func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Project:     NewProjectRepository(db),
		Task:        NewTaskRepository(db),
		Deliverable: NewDeliverableRepository(db),
		Drawing:     NewDrawingRepository(db),
		Version:     NewVersionRepository(db),
		Comment:     NewCommentRepository(db),
		Submission:  NewSubmissionRepository(db),
		RFI:         NewRFIRepository(db),
		Outbox:      NewOutboxRepository(db),
		Team:        NewTeamRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
