package entity

import "time"

const TeamStatusInternal = "internal stakeholder"

// TeamMember puts a user on a project team. (project_id, user_id) is unique.
type TeamMember struct {
	ID          string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID   string    `json:"project_id" gorm:"size:32;not null;uniqueIndex:uq_team_members_project_user,priority:1"`
	UserID      string    `json:"user_id" gorm:"size:32;not null;index;uniqueIndex:uq_team_members_project_user,priority:2"`
	Email       string    `json:"email" gorm:"size:128"`
	Designation string    `json:"designation" gorm:"size:64"`
	Status      string    `json:"status" gorm:"size:32;not null;default:internal stakeholder"`
	AddedBy     string    `json:"added_by" gorm:"size:32;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

func (TeamMember) TableName() string {
	return "team_members"
}
