package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salescadence/models"
	"salescadence/realtime"
)

// LeadService applies pipeline changes that start or stop cadences.
type LeadService struct {
	base
}

func NewLeadService(db *gorm.DB, logger *logrus.Entry, opts ...Option) *LeadService {
	return &LeadService{base: newBase(db, logger, opts)}
}

// StatusChange reports the cadence side effects of a status update.
type StatusChange struct {
	Lead            models.Lead               `json:"lead"`
	Started         *models.CadenceAssignment `json:"started_assignment,omitempty"`
	EndedAssignment *models.CadenceAssignment `json:"ended_assignment,omitempty"`
}

// UpdateStatus moves a lead through the pipeline. Entering in_process with an
// owner and no active cadence starts the company default, if one exists.
// Won and lost end the active cadence.
func (s *LeadService) UpdateStatus(ctx context.Context, companyID, leadID uint, status string) (*StatusChange, error) {
	if !models.ValidLeadStatus(status) {
		return nil, Invalid("invalid lead_status")
	}
	var out StatusChange
	var startedCadence *models.Cadence
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lead, err := findLead(tx, companyID, leadID)
		if err != nil {
			return err
		}
		if lead.ArchivedAt != nil {
			return conflict("lead is archived")
		}
		if err := tx.Model(lead).Update("lead_status", status).Error; err != nil {
			return err
		}
		lead.LeadStatus = status
		out.Lead = *lead

		switch {
		case lead.Closed():
			out.EndedAssignment, err = finishActive(tx, lead.ID, models.EndReasonLeadClosed, s.now())
			if err != nil {
				return err
			}
		case status == models.LeadStatusInProcess && lead.AssignedTo != nil:
			current, err := activeAssignment(tx, lead.ID)
			if err != nil || current != nil {
				return err
			}
			c, err := DefaultCadence(tx, companyID)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			startedCadence = c
			out.Started, err = startAssignment(tx, lead.ID, c.ID, s.now())
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, conflict("lead cadence changed concurrently")
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"company_id": companyID, "lead_id": leadID, "lead_status": status}).Info("Lead status updated")
	if out.Started != nil {
		s.publish(realtime.EventCadenceStarted, companyID, leadID, map[string]interface{}{
			"cadence_id":   startedCadence.ID,
			"cadence_name": startedCadence.Name,
		})
	}
	if out.EndedAssignment != nil {
		s.publish(realtime.EventCadenceEnded, companyID, leadID, map[string]interface{}{
			"assignment_id": out.EndedAssignment.ID,
			"reason":        out.EndedAssignment.EndReason,
		})
	}
	return &out, nil
}

// Archive hides a lead and ends its cadence.
func (s *LeadService) Archive(ctx context.Context, companyID, leadID uint) (*models.Lead, error) {
	var lead *models.Lead
	var ended *models.CadenceAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = findLead(tx, companyID, leadID)
		if err != nil {
			return err
		}
		if lead.ArchivedAt != nil {
			return nil
		}
		now := s.now()
		if err := tx.Model(lead).Update("archived_at", now).Error; err != nil {
			return err
		}
		lead.ArchivedAt = &now
		ended, err = finishActive(tx, lead.ID, models.EndReasonArchived, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"company_id": companyID, "lead_id": leadID}).Info("Lead archived")
	if ended != nil {
		s.publish(realtime.EventCadenceEnded, companyID, leadID, map[string]interface{}{
			"assignment_id": ended.ID,
			"reason":        ended.EndReason,
		})
	}
	return lead, nil
}

// Recover un-archives a lead. Its cadence is not restarted.
func (s *LeadService) Recover(ctx context.Context, companyID, leadID uint) (*models.Lead, error) {
	db := s.db.WithContext(ctx)
	lead, err := findLead(db, companyID, leadID)
	if err != nil {
		return nil, err
	}
	if lead.ArchivedAt == nil {
		return lead, nil
	}
	if err := db.Model(lead).Update("archived_at", nil).Error; err != nil {
		return nil, err
	}
	lead.ArchivedAt = nil
	s.logger.WithFields(logrus.Fields{"company_id": companyID, "lead_id": leadID}).Info("Lead recovered")
	return lead, nil
}
