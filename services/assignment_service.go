package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salescadence/cadence"
	"salescadence/models"
	"salescadence/realtime"
)

// AssignmentService moves leads through their cadence assignments.
type AssignmentService struct {
	base
}

func NewAssignmentService(db *gorm.DB, logger *logrus.Entry, opts ...Option) *AssignmentService {
	return &AssignmentService{base: newBase(db, logger, opts)}
}

// StepView is a cadence step with the lead's completion state.
type StepView struct {
	models.CadenceStep
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at"`
	DueAt       time.Time  `json:"due_at"`
}

// CadenceProgress is a lead's active assignment with per-step progress.
type CadenceProgress struct {
	Assignment models.CadenceAssignment `json:"assignment"`
	Cadence    models.Cadence           `json:"cadence"`
	Steps      []StepView               `json:"steps"`
	NextStep   *StepView                `json:"next_step"`
	Completed  int                      `json:"completed"`
	Total      int                      `json:"total"`
	Paused     bool                     `json:"paused"`
}

// NextStepView is the resolver's answer for one lead.
type NextStepView struct {
	Step   models.CadenceStep `json:"step"`
	DueAt  time.Time          `json:"due_at"`
	Paused bool               `json:"paused"`
}

// DueStep is an overdue next step found by ScanDue.
type DueStep struct {
	CompanyID    uint
	LeadID       uint
	AssignmentID uint
	Step         models.CadenceStep
	DueAt        time.Time
}

// Progress returns the lead's active assignment and step progress, or nil
// when the lead has no active cadence.
func (s *AssignmentService) Progress(ctx context.Context, companyID, leadID uint) (*CadenceProgress, error) {
	db := s.db.WithContext(ctx)
	if _, err := findLead(db, companyID, leadID); err != nil {
		return nil, err
	}
	state, err := loadState(db, leadID)
	if err != nil || state.Assignment == nil {
		return nil, err
	}
	var c models.Cadence
	if err := db.Unscoped().First(&c, state.Assignment.CadenceID).Error; err != nil {
		return nil, err
	}

	done := cadence.CompletedSet(state.Progress)
	next := state.NextStep()
	out := &CadenceProgress{
		Assignment: *state.Assignment,
		Cadence:    c,
		Steps:      make([]StepView, 0, len(state.Steps)),
		Total:      len(state.Steps),
		Paused:     state.Assignment.Paused(),
	}
	for _, step := range state.Steps {
		view := StepView{
			CadenceStep: step,
			DueAt:       cadence.DueAt(state.Assignment.StartedAt, step, s.location),
		}
		if p, ok := done[step.ID]; ok {
			at := p.CompletedAt
			view.IsCompleted = true
			view.CompletedAt = &at
			out.Completed++
		}
		out.Steps = append(out.Steps, view)
		if next != nil && next.ID == step.ID {
			v := view
			out.NextStep = &v
		}
	}
	return out, nil
}

// NextStep resolves the earliest incomplete step of the lead's active
// assignment. It returns nil when there is none.
func (s *AssignmentService) NextStep(ctx context.Context, companyID, leadID uint) (*NextStepView, error) {
	db := s.db.WithContext(ctx)
	if _, err := findLead(db, companyID, leadID); err != nil {
		return nil, err
	}
	state, err := loadState(db, leadID)
	if err != nil {
		return nil, err
	}
	next := state.NextStep()
	if next == nil {
		return nil, nil
	}
	return &NextStepView{
		Step:   *next,
		DueAt:  cadence.DueAt(state.Assignment.StartedAt, *next, s.location),
		Paused: state.Assignment.Paused(),
	}, nil
}

// Start begins a cadence for a lead that has none. Without cadenceID the
// company's default cadence is used. The lead must already have an owner.
func (s *AssignmentService) Start(ctx context.Context, companyID, leadID uint, cadenceID *uint, actorID *uint) (*models.CadenceAssignment, error) {
	var assignment *models.CadenceAssignment
	var c *models.Cadence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := findLead(tx, companyID, leadID)
		if err != nil {
			return err
		}
		if lead.AssignedTo == nil {
			return Invalid("lead must be assigned to a user before starting cadence")
		}
		current, err := activeAssignment(tx, leadID)
		if err != nil {
			return err
		}
		if current != nil {
			return conflict("lead already has an active cadence")
		}
		c, err = pickCadence(tx, companyID, cadenceID)
		if err != nil {
			return err
		}
		assignment, err = s.begin(tx, leadID, c.ID)
		return err
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, conflict("lead already has an active cadence")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"company_id": companyID,
		"lead_id":    leadID,
		"cadence_id": c.ID,
		"actor_id":   actorID,
	}).Info("Cadence started")
	s.publish(realtime.EventCadenceStarted, companyID, leadID, map[string]interface{}{
		"cadence_id":   c.ID,
		"cadence_name": c.Name,
	})
	return assignment, nil
}

// Assign puts a lead on cadenceID, replacing any active assignment and
// clearing its progress. An unowned lead is assigned to the actor and a new
// lead moves to in_process.
func (s *AssignmentService) Assign(ctx context.Context, companyID, leadID, cadenceID, actorID uint) (*models.CadenceAssignment, error) {
	if cadenceID == 0 {
		return nil, Invalid("cadence_id is required")
	}
	var assignment *models.CadenceAssignment
	var c *models.Cadence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := findLead(tx, companyID, leadID)
		if err != nil {
			return err
		}
		c, err = pickCadence(tx, companyID, &cadenceID)
		if err != nil {
			return err
		}

		leadUpdates := map[string]interface{}{}
		if lead.AssignedTo == nil {
			leadUpdates["assigned_to"] = actorID
		}
		if lead.LeadStatus == models.LeadStatusNew {
			leadUpdates["lead_status"] = models.LeadStatusInProcess
		}
		if len(leadUpdates) > 0 {
			if err := tx.Model(lead).Updates(leadUpdates).Error; err != nil {
				return err
			}
		}

		if _, err := s.finish(tx, leadID, models.EndReasonReplaced); err != nil {
			return err
		}
		assignment, err = s.begin(tx, leadID, c.ID)
		return err
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, conflict("lead cadence changed concurrently")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"company_id": companyID,
		"lead_id":    leadID,
		"cadence_id": c.ID,
		"actor_id":   actorID,
	}).Info("Cadence assigned")
	s.publish(realtime.EventCadenceStarted, companyID, leadID, map[string]interface{}{
		"cadence_id":   c.ID,
		"cadence_name": c.Name,
	})
	return assignment, nil
}

// Pause holds the lead's active assignment. Steps are not completed while
// paused.
func (s *AssignmentService) Pause(ctx context.Context, companyID, leadID uint) (*models.CadenceAssignment, error) {
	return s.setPaused(ctx, companyID, leadID, true)
}

// Unpause resumes a paused assignment.
func (s *AssignmentService) Unpause(ctx context.Context, companyID, leadID uint) (*models.CadenceAssignment, error) {
	return s.setPaused(ctx, companyID, leadID, false)
}

func (s *AssignmentService) setPaused(ctx context.Context, companyID, leadID uint, paused bool) (*models.CadenceAssignment, error) {
	var a *models.CadenceAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findLead(tx, companyID, leadID); err != nil {
			return err
		}
		var err error
		a, err = activeAssignment(tx, leadID)
		if err != nil {
			return err
		}
		if a == nil {
			return notFound("cadence assignment")
		}
		var pausedAt *time.Time
		if paused {
			if a.PausedAt != nil {
				return nil
			}
			now := s.now()
			pausedAt = &now
		} else if a.PausedAt == nil {
			return nil
		}
		if err := tx.Model(a).Update("paused_at", pausedAt).Error; err != nil {
			return err
		}
		a.PausedAt = pausedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	eventType := realtime.EventCadenceResumed
	if paused {
		eventType = realtime.EventCadencePaused
	}
	s.logger.WithFields(logrus.Fields{"company_id": companyID, "lead_id": leadID, "paused": paused}).Info("Cadence pause toggled")
	s.publish(eventType, companyID, leadID, map[string]interface{}{"assignment_id": a.ID})
	return a, nil
}

// End completes the lead's active assignment and clears its progress.
func (s *AssignmentService) End(ctx context.Context, companyID, leadID uint) error {
	var ended *models.CadenceAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findLead(tx, companyID, leadID); err != nil {
			return err
		}
		var err error
		ended, err = s.finish(tx, leadID, models.EndReasonEnded)
		if err != nil {
			return err
		}
		if ended == nil {
			return notFound("cadence assignment")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"company_id": companyID, "lead_id": leadID}).Info("Cadence ended")
	s.publish(realtime.EventCadenceEnded, companyID, leadID, map[string]interface{}{
		"assignment_id": ended.ID,
		"reason":        ended.EndReason,
	})
	return nil
}

// scanPageSize bounds how many assignments ScanDue loads per query.
var scanPageSize = 500

// ScanDue lists active, unpaused assignments whose next step is due at or
// before now. Assignments are read in id-ordered pages until every active
// one has been examined; limit caps the due steps returned, not the
// assignments examined. A limit of zero returns all of them.
func (s *AssignmentService) ScanDue(ctx context.Context, now time.Time, limit int) ([]DueStep, error) {
	db := s.db.WithContext(ctx)
	stepsByCadence := map[uint][]models.CadenceStep{}
	var due []DueStep
	var lastID uint
	for {
		var rows []struct {
			models.CadenceAssignment
			CompanyID uint
		}
		err := db.Model(&models.CadenceAssignment{}).
			Select("lead_cadence_assignments.*, leads.company_id AS company_id").
			Joins("JOIN leads ON leads.id = lead_cadence_assignments.lead_id AND leads.deleted_at IS NULL").
			Where("lead_cadence_assignments.completed_at IS NULL AND lead_cadence_assignments.paused_at IS NULL").
			Where("lead_cadence_assignments.id > ?", lastID).
			Order("lead_cadence_assignments.id ASC").
			Limit(scanPageSize).
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}

		for _, row := range rows {
			lastID = row.ID
			steps, ok := stepsByCadence[row.CadenceID]
			if !ok {
				steps, err = cadenceSteps(db, row.CadenceID)
				if err != nil {
					return nil, err
				}
				stepsByCadence[row.CadenceID] = steps
			}
			var progress []models.StepProgress
			if err := db.Where("lead_id = ? AND assignment_id = ?", row.LeadID, row.ID).Find(&progress).Error; err != nil {
				return nil, err
			}
			next := cadence.NextStep(steps, progress)
			if next == nil {
				continue
			}
			at := cadence.DueAt(row.StartedAt, *next, s.location)
			if at.After(now) {
				continue
			}
			due = append(due, DueStep{
				CompanyID:    row.CompanyID,
				LeadID:       row.LeadID,
				AssignmentID: row.ID,
				Step:         *next,
				DueAt:        at,
			})
			if limit > 0 && len(due) == limit {
				return due, nil
			}
		}
		if len(rows) < scanPageSize {
			return due, nil
		}
	}
}

func pickCadence(tx *gorm.DB, companyID uint, cadenceID *uint) (*models.Cadence, error) {
	if cadenceID == nil || *cadenceID == 0 {
		return DefaultCadence(tx, companyID)
	}
	c, err := findCadence(tx, companyID, *cadenceID)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, notFound("active sales cadence")
	}
	return c, nil
}

func (s *AssignmentService) begin(tx *gorm.DB, leadID, cadenceID uint) (*models.CadenceAssignment, error) {
	return startAssignment(tx, leadID, cadenceID, s.now())
}

func startAssignment(tx *gorm.DB, leadID, cadenceID uint, now time.Time) (*models.CadenceAssignment, error) {
	// Progress is per lead and step, so a fresh assignment starts clean.
	if err := tx.Where("lead_id = ?", leadID).Delete(&models.StepProgress{}).Error; err != nil {
		return nil, err
	}
	a := models.CadenceAssignment{
		LeadID:     leadID,
		CadenceID:  cadenceID,
		AssignedAt: now,
		StartedAt:  now,
	}
	if err := tx.Create(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// finish completes the lead's active assignment, if any, and clears its
// progress rows.
func (s *AssignmentService) finish(tx *gorm.DB, leadID uint, reason string) (*models.CadenceAssignment, error) {
	return finishActive(tx, leadID, reason, s.now())
}

func finishActive(tx *gorm.DB, leadID uint, reason string, now time.Time) (*models.CadenceAssignment, error) {
	a, err := activeAssignment(tx, leadID)
	if err != nil || a == nil {
		return nil, err
	}
	if err := tx.Model(a).Updates(map[string]interface{}{
		"completed_at": now,
		"end_reason":   reason,
	}).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("lead_id = ?", leadID).Delete(&models.StepProgress{}).Error; err != nil {
		return nil, err
	}
	a.CompletedAt = &now
	a.EndReason = reason
	return a, nil
}
