package models

import "gorm.io/gorm"

// TimeOfDay is the slot a step is scheduled in within its day.
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
)

// Rank orders slots within a day, morning first. Unknown slots sort last.
func (t TimeOfDay) Rank() int {
	switch t {
	case TimeOfDayMorning:
		return 0
	case TimeOfDayAfternoon:
		return 1
	}
	return 2
}

func (t TimeOfDay) Valid() bool {
	return t == TimeOfDayMorning || t == TimeOfDayAfternoon
}

// ActionType is the outreach channel of a step or a logged activity.
type ActionType string

const (
	ActionLiveCall     ActionType = "live_call"
	ActionOutboundCall ActionType = "outbound_call"
	ActionTextMessage  ActionType = "text_message"
	ActionAICall       ActionType = "ai_call"
	ActionEmail        ActionType = "email"
)

// ActionTypes lists every accepted action type.
var ActionTypes = []ActionType{
	ActionLiveCall,
	ActionOutboundCall,
	ActionTextMessage,
	ActionAICall,
	ActionEmail,
}

func (a ActionType) Valid() bool {
	for _, t := range ActionTypes {
		if a == t {
			return true
		}
	}
	return false
}

// Priority of a cadence step.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Cadence is a reusable outreach template owned by a company
type Cadence struct {
	gorm.Model
	CompanyID uint `gorm:"not null;index;uniqueIndex:idx_sales_cadences_single_default,where:is_default = true AND deleted_at IS NULL" json:"company_id"`

	Name        string `gorm:"not null;size:200" json:"name"`
	Description string `json:"description"`
	IsActive    bool   `gorm:"not null" json:"is_active"`
	IsDefault   bool   `gorm:"not null;default:false" json:"is_default"`

	// Relations
	Steps []CadenceStep `gorm:"foreignKey:CadenceID" json:"steps,omitempty"`
}

func (Cadence) TableName() string { return "sales_cadences" }

// CadenceStep is one scheduled touchpoint within a cadence
type CadenceStep struct {
	gorm.Model
	CadenceID uint `gorm:"not null;index" json:"cadence_id"`

	DayNumber    int        `gorm:"not null" json:"day_number"`       // offset in days from cadence start
	TimeOfDay    TimeOfDay  `gorm:"not null" json:"time_of_day"`      // morning, afternoon
	ActionType   ActionType `gorm:"not null" json:"action_type"`      // live_call, outbound_call, text_message, ai_call, email
	Priority     Priority   `gorm:"default:'medium'" json:"priority"` // low, medium, high, urgent
	Description  string     `json:"description"`
	DisplayOrder int        `gorm:"not null;default:0" json:"display_order"`
}

func (CadenceStep) TableName() string { return "sales_cadence_steps" }

// OrderKey is the position of a step in resolver order.
type OrderKey struct {
	Day          int
	Slot         int
	DisplayOrder int
}

func (s CadenceStep) OrderKey() OrderKey {
	return OrderKey{Day: s.DayNumber, Slot: s.TimeOfDay.Rank(), DisplayOrder: s.DisplayOrder}
}

// Less reports whether k sorts before o.
func (k OrderKey) Less(o OrderKey) bool {
	if k.Day != o.Day {
		return k.Day < o.Day
	}
	if k.Slot != o.Slot {
		return k.Slot < o.Slot
	}
	return k.DisplayOrder < o.DisplayOrder
}
