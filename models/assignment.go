package models

import "time"

// End reasons recorded when an assignment stops being active.
const (
	EndReasonCompleted  = "completed"
	EndReasonReplaced   = "replaced"
	EndReasonEnded      = "ended"
	EndReasonArchived   = "archived"
	EndReasonLeadClosed = "lead_closed"
)

// CadenceAssignment binds a lead to a cadence. Rows are kept as history once
// completed; only one row per lead may have CompletedAt unset.
type CadenceAssignment struct {
	ID        uint `gorm:"primarykey" json:"id"`
	LeadID    uint `gorm:"not null;index;uniqueIndex:idx_lead_cadence_assignments_active,where:completed_at IS NULL" json:"lead_id"`
	CadenceID uint `gorm:"not null;index" json:"cadence_id"`

	AssignedAt  time.Time  `gorm:"not null" json:"assigned_at"`
	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	PausedAt    *time.Time `json:"paused_at"`
	CompletedAt *time.Time `gorm:"index" json:"completed_at"`
	EndReason   string     `json:"end_reason,omitempty"` // completed, replaced, ended, archived, lead_closed

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Cadence *Cadence `gorm:"foreignKey:CadenceID" json:"cadence,omitempty"`
}

func (CadenceAssignment) TableName() string { return "lead_cadence_assignments" }

func (a CadenceAssignment) Active() bool { return a.CompletedAt == nil }

func (a CadenceAssignment) Paused() bool { return a.PausedAt != nil }

// StepProgress records that a lead completed one step of its assignment.
type StepProgress struct {
	ID                    uint      `gorm:"primarykey" json:"id"`
	LeadID                uint      `gorm:"not null;uniqueIndex:idx_lead_cadence_progress_step,priority:1" json:"lead_id"`
	CadenceStepID         uint      `gorm:"not null;uniqueIndex:idx_lead_cadence_progress_step,priority:2" json:"cadence_step_id"`
	AssignmentID          uint      `gorm:"not null;index" json:"assignment_id"`
	CompletedAt           time.Time `gorm:"not null" json:"completed_at"`
	CompletedByActivityID *uint     `json:"completed_by_activity_id"`
	CreatedAt             time.Time `json:"created_at"`
}

func (StepProgress) TableName() string { return "lead_cadence_progress" }
