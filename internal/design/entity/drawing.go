package entity

import (
	"time"

	"gorm.io/datatypes"
)

// DrawingStatus is the review state of a drawing.
type DrawingStatus string

const (
	DrawingStatusDraft                    DrawingStatus = "draft"
	DrawingStatusSentToExpert             DrawingStatus = "sent_to_expert"
	DrawingStatusApprovedByExpert         DrawingStatus = "approved_by_expert"
	DrawingStatusRevisionRequiredByExpert DrawingStatus = "revision_required_by_expert"
	DrawingStatusSentToClient             DrawingStatus = "sent_to_client"
	DrawingStatusApprovedByClient         DrawingStatus = "approved_by_client"
	DrawingStatusRevisionRequiredByClient DrawingStatus = "revision_required_by_client"
	DrawingStatusRejectedByClient         DrawingStatus = "rejected_by_client"
)

var drawingStatusLabels = map[DrawingStatus]string{
	DrawingStatusDraft:                    "Draft",
	DrawingStatusSentToExpert:             "Sent to Expert",
	DrawingStatusApprovedByExpert:         "Approved by Expert",
	DrawingStatusRevisionRequiredByExpert: "Revision Required by Expert",
	DrawingStatusSentToClient:             "Sent to Client",
	DrawingStatusApprovedByClient:         "Approved by Client",
	DrawingStatusRevisionRequiredByClient: "Revision Required by Client",
	DrawingStatusRejectedByClient:         "Rejected by Client",
}

// Label returns the display name used in listings and exports.
func (s DrawingStatus) Label() string {
	if l, ok := drawingStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

func (s DrawingStatus) Valid() bool {
	_, ok := drawingStatusLabels[s]
	return ok
}

// Expert and client decisions recorded on the drawing.
const (
	DecisionApproved         = "approved"
	DecisionRevisionRequired = "revision_required"
	DecisionRejected         = "rejected"
)

// Commenter roles.
const (
	RoleDesigner = "designer"
	RoleExpert   = "expert"
	RoleClient   = "client"
	RoleAdmin    = "admin"
)

// Drawing is a design document tracked through designer -> expert -> client review.
type Drawing struct {
	ID                string        `json:"id" gorm:"primaryKey;size:32"`
	ProjectID         string        `json:"project_id" gorm:"size:32;not null;index"`
	Name              string        `json:"name" gorm:"size:256;not null"`
	Discipline        string        `json:"discipline" gorm:"size:64;not null"`
	Status            DrawingStatus `json:"status" gorm:"size:32;not null;index"`
	ExpertDecision    *string       `json:"expert_decision" gorm:"size:32"`
	ClientDecision    *string       `json:"client_decision" gorm:"size:32"`
	LatestVersionID   *string       `json:"latest_version_id" gorm:"size:32"`
	PreviousVersionID *string       `json:"previous_version_id" gorm:"size:32"`
	TaskID            *string       `json:"task_id" gorm:"size:32;index"`
	CreatedBy         string        `json:"created_by" gorm:"size:32;not null"`
	ExpertID          string        `json:"expert_id" gorm:"size:32"`
	ClientID          *string       `json:"client_id" gorm:"size:32"`
	SentBy            string        `json:"sent_by" gorm:"size:32;not null"`
	SentTo            string        `json:"sent_to" gorm:"size:32;not null;index"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	LatestVersion *DrawingVersion `json:"latest_version,omitempty" gorm:"foreignKey:LatestVersionID"`
}

func (Drawing) TableName() string {
	return "drawings"
}

// FileRef is an opaque reference to a stored drawing artifact.
type FileRef struct {
	Path        string `json:"path" binding:"required"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// DrawingVersion is one immutable upload of a drawing.
// (drawing_id, version_number) is unique and at most one row per drawing has is_latest.
type DrawingVersion struct {
	ID            string                       `json:"id" gorm:"primaryKey;size:32"`
	DrawingID     string                       `json:"drawing_id" gorm:"size:32;not null;uniqueIndex:uq_drawing_versions_number,priority:1"`
	VersionNumber int                          `json:"version_number" gorm:"not null;uniqueIndex:uq_drawing_versions_number,priority:2"`
	Files         datatypes.JSONSlice[FileRef] `json:"files" gorm:"type:jsonb;not null"`
	IsLatest      bool                         `json:"is_latest" gorm:"not null;default:false"`
	UploadedBy    string                       `json:"uploaded_by" gorm:"size:32;not null"`
	CreatedAt     time.Time                    `json:"created_at"`

	Comments []DrawingComment `json:"comments" gorm:"foreignKey:VersionID"`
}

func (DrawingVersion) TableName() string {
	return "drawing_versions"
}

// DrawingComment is an append-only note on a version.
type DrawingComment struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	VersionID   string    `json:"version_id" gorm:"size:32;not null;index"`
	DrawingID   string    `json:"drawing_id" gorm:"size:32;not null;index"`
	CommenterID string    `json:"commenter_id" gorm:"size:32;not null"`
	Role        string    `json:"role" gorm:"size:16;not null"`
	Body        string    `json:"body" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (DrawingComment) TableName() string {
	return "drawing_comments"
}

type SubmissionStatus string

const (
	SubmissionPending          SubmissionStatus = "pending"
	SubmissionApproved         SubmissionStatus = "approved"
	SubmissionRevisionRequired SubmissionStatus = "revision_required"
	SubmissionRejected         SubmissionStatus = "rejected"
)

// Submission records an expert handing a drawing to a client.
type Submission struct {
	ID          string           `json:"id" gorm:"primaryKey;size:32"`
	DrawingID   string           `json:"drawing_id" gorm:"size:32;not null;index"`
	VersionID   string           `json:"version_id" gorm:"size:32;not null"`
	SubmittedBy string           `json:"submitted_by" gorm:"size:32;not null"`
	SubmittedTo string           `json:"submitted_to" gorm:"size:32;not null;index"`
	Status      SubmissionStatus `json:"status" gorm:"size:32;not null;default:pending"`
	SubmittedAt time.Time        `json:"submitted_at" gorm:"not null;index"`
	ReviewedBy  *string          `json:"reviewed_by" gorm:"size:32"`
	ReviewedAt  *time.Time       `json:"reviewed_at"`
}

func (Submission) TableName() string {
	return "drawing_submissions"
}
