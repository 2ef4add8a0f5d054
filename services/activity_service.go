package services

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"salescadence/cadence"
	"salescadence/models"
	"salescadence/realtime"
)

// ActivityService records outreach activities and advances cadences.
type ActivityService struct {
	base
}

func NewActivityService(db *gorm.DB, logger *logrus.Entry, opts ...Option) *ActivityService {
	return &ActivityService{base: newBase(db, logger, opts)}
}

// LogActivityInput describes one performed activity.
type LogActivityInput struct {
	CompanyID  uint
	LeadID     uint
	UserID     *uint
	ActionType models.ActionType
	Notes      string
	Source     string
	// SkipTaskCompletion records the entry without touching cadence progress.
	SkipTaskCompletion bool
}

// LogResult is what LogActivity did.
type LogResult struct {
	Activity            models.ActivityLogEntry `json:"activity"`
	CompletedStep       *models.CadenceStep     `json:"completed_step"`
	Progress            *models.StepProgress    `json:"progress,omitempty"`
	AssignmentCompleted bool                    `json:"assignment_completed"`
	NextStep            *models.CadenceStep     `json:"next_step"`
	Skipped             cadence.SkipReason      `json:"skipped,omitempty"`
}

// LogActivity appends an activity entry and, unless asked to skip, completes
// the earliest matching step of the lead's active cadence. The entry and the
// progress row commit together.
func (s *ActivityService) LogActivity(ctx context.Context, in LogActivityInput) (*LogResult, error) {
	if !in.ActionType.Valid() {
		return nil, Invalid("invalid action_type")
	}
	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = models.ActivitySourceUser
	}
	if source != models.ActivitySourceUser && source != models.ActivitySourceAutomation {
		return nil, Invalid("invalid source")
	}

	var res LogResult
	var companyID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := findLead(tx, in.CompanyID, in.LeadID)
		if err != nil {
			return err
		}
		companyID = lead.CompanyID

		now := s.now()
		entry := models.ActivityLogEntry{
			CompanyID:  lead.CompanyID,
			LeadID:     lead.ID,
			UserID:     in.UserID,
			ActionType: in.ActionType,
			Notes:      in.Notes,
			Source:     source,
			CreatedAt:  now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		res.Activity = entry

		state, err := loadState(tx, lead.ID)
		if err != nil {
			return err
		}
		decision := cadence.ApplyStepCompletion(state, entry, in.SkipTaskCompletion, now)
		res.Skipped = decision.Skipped
		if decision.Completes() {
			ins := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "lead_id"}, {Name: "cadence_step_id"}},
				DoNothing: true,
			}).Create(decision.Progress)
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected == 0 {
				// A concurrent log already completed this step.
				res.Skipped = cadence.SkipNoMatch
				state, err = loadState(tx, lead.ID)
				if err != nil {
					return err
				}
			} else {
				res.CompletedStep = decision.Step
				res.Progress = decision.Progress
				state.Progress = append(state.Progress, *decision.Progress)
				if decision.CompletesAssignment {
					if err := tx.Model(state.Assignment).Updates(map[string]interface{}{
						"completed_at": now,
						"end_reason":   models.EndReasonCompleted,
					}).Error; err != nil {
						return err
					}
					state.Assignment.CompletedAt = &now
					state.Assignment.EndReason = models.EndReasonCompleted
					res.AssignmentCompleted = true
				}
			}
		}
		res.NextStep = state.NextStep()
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"company_id":  companyID,
		"lead_id":     in.LeadID,
		"activity_id": res.Activity.ID,
		"action_type": in.ActionType,
	}
	if res.CompletedStep != nil {
		fields["cadence_step_id"] = res.CompletedStep.ID
	}
	if res.Skipped != cadence.SkipNone {
		fields["skipped"] = res.Skipped
	}
	s.logger.WithFields(fields).Info("Activity logged")

	s.publish(realtime.EventActivityLogged, companyID, in.LeadID, res.Activity)
	if res.CompletedStep != nil {
		s.publish(realtime.EventStepCompleted, companyID, in.LeadID, map[string]interface{}{
			"cadence_step_id": res.CompletedStep.ID,
			"activity_id":     res.Activity.ID,
			"next_step":       res.NextStep,
		})
	}
	if res.AssignmentCompleted {
		s.publish(realtime.EventCadenceComplete, companyID, in.LeadID, map[string]interface{}{
			"assignment_id": res.Progress.AssignmentID,
		})
	}
	return &res, nil
}

// ListActivities returns the lead's entries, newest first.
func (s *ActivityService) ListActivities(ctx context.Context, companyID, leadID uint, limit int) ([]models.ActivityLogEntry, error) {
	db := s.db.WithContext(ctx)
	if _, err := findLead(db, companyID, leadID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.ActivityLogEntry
	err := db.Where("lead_id = ? AND company_id = ?", leadID, companyID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
