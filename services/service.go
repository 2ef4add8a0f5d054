// Package services implements the cadence engine's operations on top of
// gorm. Every exported method is one request-sized unit of work scoped to a
// company; the rules themselves live in package cadence.
package services

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salescadence/cadence"
	"salescadence/models"
	"salescadence/realtime"
)

type base struct {
	db       *gorm.DB
	logger   *logrus.Entry
	events   realtime.Publisher
	now      func() time.Time
	location *time.Location
}

// Option tweaks a service at construction.
type Option func(*base)

// WithEvents publishes lifecycle events to p.
func WithEvents(p realtime.Publisher) Option {
	return func(b *base) { b.events = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithLocation sets the zone due times are computed in.
func WithLocation(loc *time.Location) Option {
	return func(b *base) { b.location = loc }
}

func newBase(db *gorm.DB, logger *logrus.Entry, opts []Option) base {
	b := base{
		db:       db,
		logger:   logger,
		events:   realtime.Nop{},
		now:      time.Now,
		location: time.UTC,
	}
	if b.logger == nil {
		b.logger = logrus.NewEntry(logrus.StandardLogger())
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) publish(eventType string, companyID, leadID uint, data interface{}) {
	b.events.Publish(realtime.Event{
		Type:      eventType,
		CompanyID: companyID,
		LeadID:    leadID,
		Data:      data,
		At:        b.now(),
	})
}

func findLead(tx *gorm.DB, companyID, leadID uint) (*models.Lead, error) {
	var lead models.Lead
	if err := tx.Where("id = ? AND company_id = ?", leadID, companyID).First(&lead).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("lead")
		}
		return nil, err
	}
	return &lead, nil
}

func findCadence(tx *gorm.DB, companyID, cadenceID uint) (*models.Cadence, error) {
	var c models.Cadence
	if err := tx.Where("id = ? AND company_id = ?", cadenceID, companyID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("sales cadence")
		}
		return nil, err
	}
	return &c, nil
}

func activeAssignment(tx *gorm.DB, leadID uint) (*models.CadenceAssignment, error) {
	var found []models.CadenceAssignment
	err := tx.Where("lead_id = ? AND completed_at IS NULL", leadID).
		Order("id DESC").
		Limit(1).
		Find(&found).Error
	if err != nil || len(found) == 0 {
		return nil, err
	}
	return &found[0], nil
}

func cadenceSteps(tx *gorm.DB, cadenceID uint) ([]models.CadenceStep, error) {
	var steps []models.CadenceStep
	if err := tx.Where("cadence_id = ?", cadenceID).Find(&steps).Error; err != nil {
		return nil, err
	}
	cadence.SortSteps(steps)
	return steps, nil
}

// loadState reads the lead's active assignment, its cadence's steps and the
// progress recorded against that assignment.
func loadState(tx *gorm.DB, leadID uint) (cadence.State, error) {
	a, err := activeAssignment(tx, leadID)
	if err != nil || a == nil {
		return cadence.State{}, err
	}
	steps, err := cadenceSteps(tx, a.CadenceID)
	if err != nil {
		return cadence.State{}, err
	}
	var progress []models.StepProgress
	if err := tx.Where("lead_id = ? AND assignment_id = ?", leadID, a.ID).Find(&progress).Error; err != nil {
		return cadence.State{}, err
	}
	return cadence.State{Assignment: a, Steps: steps, Progress: progress}, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
