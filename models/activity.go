package models

import "time"

const (
	ActivitySourceUser       = "user"
	ActivitySourceAutomation = "automation"
)

// ActivityLogEntry is an outreach action actually performed for a lead.
// Entries are append-only: nothing in the service updates or deletes them.
type ActivityLogEntry struct {
	ID        uint  `gorm:"primarykey" json:"id"`
	CompanyID uint  `gorm:"not null;index" json:"company_id"`
	LeadID    uint  `gorm:"not null;index" json:"lead_id"`
	UserID    *uint `gorm:"index" json:"user_id"` // nil for automation callers

	ActionType ActionType `gorm:"not null" json:"action_type"`
	Notes      string     `gorm:"type:text" json:"notes"`
	Source     string     `gorm:"not null;default:'user'" json:"source"` // user, automation
	CreatedAt  time.Time  `gorm:"not null;index" json:"created_at"`
}

func (ActivityLogEntry) TableName() string { return "lead_activity_log" }
