package entity

import (
	"time"
)

// Project is the container every drawing, task and deliverable belongs to.
type Project struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	Name        string     `json:"name" gorm:"size:128;not null"`
	Description string     `json:"description" gorm:"type:text"`
	ClientID    *string    `json:"client_id" gorm:"size:32"`
	StartDate   *time.Time `json:"start_date" gorm:"type:date"`
	EndDate     *time.Time `json:"end_date" gorm:"type:date"`
	CreatedBy   string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// Task status constants
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
)

// ValidTaskStatus reports whether s is a task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// Task is owned by project management; the review workflow only moves its status.
type Task struct {
	ID            string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID     string     `json:"project_id" gorm:"size:32;not null;index"`
	DeliverableID *string    `json:"deliverable_id" gorm:"size:32;index"`
	Name          string     `json:"name" gorm:"size:256;not null"`
	Priority      string     `json:"priority" gorm:"size:16;not null;default:medium"`
	Status        string     `json:"status" gorm:"size:16;not null;default:pending"`
	AssigneeID    *string    `json:"assignee_id" gorm:"size:32;index"`
	DueDate       *time.Time `json:"due_date" gorm:"type:date"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedBy     string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Task) TableName() string {
	return "tasks"
}

// Deliverable status constants
const (
	DeliverableStatusInProgress = "in_progress"
	DeliverableStatusCompleted  = "completed"
)

// Deliverable is a project work item whose status is derived from its tasks.
type Deliverable struct {
	ID          string     `json:"id" gorm:"primaryKey;size:32"`
	ProjectID   string     `json:"project_id" gorm:"size:32;not null;index"`
	Name        string     `json:"name" gorm:"size:256;not null"`
	Number      string     `json:"number" gorm:"size:64"`
	Status      string     `json:"status" gorm:"size:16;not null;default:in_progress"`
	DueDate     *time.Time `json:"due_date" gorm:"type:date"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedBy   string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Tasks []Task `json:"tasks,omitempty" gorm:"foreignKey:DeliverableID"`
}

func (Deliverable) TableName() string {
	return "deliverables"
}
