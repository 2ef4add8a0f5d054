package models

import (
	"time"

	"gorm.io/gorm"
)

// Lead statuses that drive the cadence lifecycle.
const (
	LeadStatusNew       = "new"
	LeadStatusInProcess = "in_process"
	LeadStatusQuoted    = "quoted"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
)

// Lead carries only the fields the cadence lifecycle reads and writes.
type Lead struct {
	gorm.Model
	CompanyID  uint       `gorm:"not null;index" json:"company_id"`
	AssignedTo *uint      `gorm:"index" json:"assigned_to"`
	LeadStatus string     `gorm:"not null;default:'new'" json:"lead_status"` // new, in_process, quoted, won, lost
	ArchivedAt *time.Time `json:"archived_at"`
}

// Closed reports whether the lead has left the sales pipeline.
func (l Lead) Closed() bool {
	return l.LeadStatus == LeadStatusWon || l.LeadStatus == LeadStatusLost
}

func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusInProcess, LeadStatusQuoted, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}
