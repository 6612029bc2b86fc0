package entity

import (
	"time"

	"gorm.io/datatypes"
)

const (
	RFIStatusOpen     = "open"
	RFIStatusResolved = "resolved"
)

const (
	RFIPriorityLow    = "low"
	RFIPriorityMedium = "medium"
	RFIPriorityHigh   = "high"
)

// RFI is a request for information raised on a project.
type RFI struct {
	ID                  string                       `json:"id" gorm:"primaryKey;size:32"`
	ProjectID           string                       `json:"project_id" gorm:"size:32;not null;index"`
	Title               string                       `json:"title" gorm:"size:256;not null"`
	Details             string                       `json:"details" gorm:"type:text"`
	Priority            string                       `json:"priority" gorm:"size:16;not null;default:medium"`
	Status              string                       `json:"status" gorm:"size:16;not null;default:open"`
	Documents           datatypes.JSONSlice[FileRef] `json:"documents" gorm:"type:jsonb"`
	CreatedBy           string                       `json:"created_by" gorm:"size:32;not null"`
	SentTo              string                       `json:"sent_to" gorm:"size:32;not null;index"`
	Resolution          string                       `json:"resolution" gorm:"type:text"`
	ResolutionDocuments datatypes.JSONSlice[FileRef] `json:"resolution_documents" gorm:"type:jsonb"`
	ResolvedBy          *string                      `json:"resolved_by" gorm:"size:32"`
	ResolvedAt          *time.Time                   `json:"resolved_at"`
	CreatedAt           time.Time                    `json:"created_at"`
	UpdatedAt           time.Time                    `json:"updated_at"`
}

func (RFI) TableName() string {
	return "rfis"
}
