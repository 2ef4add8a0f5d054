package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"salescadence/cadence"
	"salescadence/models"
	"salescadence/realtime"
)

const maxCadenceNameLength = 200

// CadenceService manages a company's cadences and their steps.
type CadenceService struct {
	base
}

func NewCadenceService(db *gorm.DB, logger *logrus.Entry, opts ...Option) *CadenceService {
	return &CadenceService{base: newBase(db, logger, opts)}
}

// CadenceInput creates a cadence, optionally with its initial steps.
type CadenceInput struct {
	Name        string
	Description string
	IsActive    *bool
	IsDefault   bool
	Steps       []StepInput
}

// CadenceUpdate changes only the fields that are set.
type CadenceUpdate struct {
	Name        *string
	Description *string
	IsActive    *bool
	IsDefault   *bool
}

// StepInput describes a new step.
type StepInput struct {
	DayNumber    int
	TimeOfDay    models.TimeOfDay
	ActionType   models.ActionType
	Priority     models.Priority
	Description  string
	DisplayOrder int
}

// StepUpdate changes only the fields that are set.
type StepUpdate struct {
	DayNumber    *int
	TimeOfDay    *models.TimeOfDay
	ActionType   *models.ActionType
	Priority     *models.Priority
	Description  *string
	DisplayOrder *int
}

// ReorderItemResult reports one item of a reorder batch.
type ReorderItemResult struct {
	ID           uint   `json:"id"`
	DisplayOrder int    `json:"display_order"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
}

// ReorderResult reports a whole reorder batch.
type ReorderResult struct {
	Results   []ReorderItemResult `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", Invalid("name is required")
	}
	if utf8.RuneCountInString(name) > maxCadenceNameLength {
		return "", Invalid(fmt.Sprintf("name must be at most %d characters", maxCadenceNameLength))
	}
	return name, nil
}

func (in StepInput) step(cadenceID uint) models.CadenceStep {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	return models.CadenceStep{
		CadenceID:    cadenceID,
		DayNumber:    in.DayNumber,
		TimeOfDay:    in.TimeOfDay,
		ActionType:   in.ActionType,
		Priority:     priority,
		Description:  strings.TrimSpace(in.Description),
		DisplayOrder: in.DisplayOrder,
	}
}

// List returns the company's cadences with their steps in resolver order.
func (s *CadenceService) List(ctx context.Context, companyID uint) ([]models.Cadence, error) {
	var cadences []models.Cadence
	if err := s.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Preload("Steps").
		Order("created_at ASC, id ASC").
		Find(&cadences).Error; err != nil {
		return nil, err
	}
	for i := range cadences {
		cadence.SortSteps(cadences[i].Steps)
	}
	return cadences, nil
}

// Get returns one cadence with its steps.
func (s *CadenceService) Get(ctx context.Context, companyID, cadenceID uint) (*models.Cadence, error) {
	c, err := findCadence(s.db.WithContext(ctx).Preload("Steps"), companyID, cadenceID)
	if err != nil {
		return nil, err
	}
	cadence.SortSteps(c.Steps)
	return c, nil
}

// Create adds a cadence. When IsDefault is set the company's previous
// default is cleared in the same transaction.
func (s *CadenceService) Create(ctx context.Context, companyID uint, in CadenceInput) (*models.Cadence, error) {
	name, err := cleanName(in.Name)
	if err != nil {
		return nil, err
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	if in.IsDefault && !active {
		return nil, Invalid("an inactive cadence cannot be the default")
	}

	steps := make([]models.CadenceStep, 0, len(in.Steps))
	var problems []string
	for i, si := range in.Steps {
		step := si.step(0)
		for _, p := range cadence.StepProblems(step) {
			problems = append(problems, fmt.Sprintf("steps[%d]: %s", i, p))
		}
		if cadence.Collides(steps, step) {
			problems = append(problems, fmt.Sprintf("steps[%d]: another step already uses this day, time and display order", i))
		}
		steps = append(steps, step)
	}
	if err := Invalid(problems...); err != nil {
		return nil, err
	}

	c := models.Cadence{
		CompanyID:   companyID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    active,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		for i := range steps {
			steps[i].CadenceID = c.ID
		}
		if len(steps) > 0 {
			if err := tx.Create(&steps).Error; err != nil {
				return err
			}
		}
		if in.IsDefault {
			if err := swapDefault(tx, companyID, c.ID); err != nil {
				return err
			}
			c.IsDefault = true
		}
		return nil
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, conflict("another default cadence was set concurrently")
		}
		return nil, err
	}
	c.Steps = steps
	cadence.SortSteps(c.Steps)

	s.logger.WithFields(logrus.Fields{"company_id": companyID, "cadence_id": c.ID}).Info("Sales cadence created")
	if c.IsDefault {
		s.publish(realtime.EventDefaultChanged, companyID, 0, map[string]interface{}{"cadence_id": c.ID})
	}
	return &c, nil
}

// Update applies a partial update to a cadence.
func (s *CadenceService) Update(ctx context.Context, companyID, cadenceID uint, in CadenceUpdate) (*models.Cadence, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		name, err := cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	var out *models.Cadence
	defaultChanged := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := findCadence(tx, companyID, cadenceID)
		if err != nil {
			return err
		}
		active := c.IsActive
		if in.IsActive != nil {
			active = *in.IsActive
		}
		makeDefault := in.IsDefault != nil && *in.IsDefault
		if makeDefault && !active {
			return Invalid("an inactive cadence cannot be the default")
		}
		// A deactivated cadence stops being the default.
		if (in.IsDefault != nil && !*in.IsDefault) || !active {
			if c.IsDefault {
				updates["is_default"] = false
				defaultChanged = true
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(c).Updates(updates).Error; err != nil {
				return err
			}
		}
		if makeDefault && !c.IsDefault {
			if err := swapDefault(tx, companyID, c.ID); err != nil {
				return err
			}
			defaultChanged = true
		}

		out, err = findCadence(tx.Preload("Steps"), companyID, cadenceID)
		return err
	})
	if err != nil {
		if isDuplicate(err) {
			return nil, conflict("another default cadence was set concurrently")
		}
		return nil, err
	}
	cadence.SortSteps(out.Steps)
	if defaultChanged {
		s.publish(realtime.EventDefaultChanged, companyID, 0, map[string]interface{}{"cadence_id": out.ID})
	}
	return out, nil
}

// SetDefault makes cadenceID the company's only default cadence.
func (s *CadenceService) SetDefault(ctx context.Context, companyID, cadenceID uint) (*models.Cadence, error) {
	yes := true
	return s.Update(ctx, companyID, cadenceID, CadenceUpdate{IsDefault: &yes})
}

// swapDefault clears every other default of the company and then flags
// cadenceID. Run inside a transaction; the partial unique index on
// (company_id) WHERE is_default rejects any interleaving that would leave
// two defaults.
func swapDefault(tx *gorm.DB, companyID, cadenceID uint) error {
	if err := tx.Model(&models.Cadence{}).
		Where("company_id = ? AND id <> ? AND is_default = ?", companyID, cadenceID, true).
		Update("is_default", false).Error; err != nil {
		return err
	}
	res := tx.Model(&models.Cadence{}).
		Where("id = ? AND company_id = ? AND is_active = ?", cadenceID, companyID, true).
		Update("is_default", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("active sales cadence")
	}
	return nil
}

// Delete soft-deletes a cadence and its steps. Cadences still driving an
// active assignment cannot be deleted.
func (s *CadenceService) Delete(ctx context.Context, companyID, cadenceID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := findCadence(tx, companyID, cadenceID)
		if err != nil {
			return err
		}
		var active int64
		if err := tx.Model(&models.CadenceAssignment{}).
			Where("cadence_id = ? AND completed_at IS NULL", c.ID).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return conflict(fmt.Sprintf("sales cadence is active for %d lead(s)", active))
		}
		if c.IsDefault {
			if err := tx.Model(c).Update("is_default", false).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("cadence_id = ?", c.ID).Delete(&models.CadenceStep{}).Error; err != nil {
			return err
		}
		return tx.Delete(c).Error
	})
}

// AddStep appends a step to a cadence.
func (s *CadenceService) AddStep(ctx context.Context, companyID, cadenceID uint, in StepInput) (*models.CadenceStep, error) {
	step := in.step(cadenceID)
	if err := Invalid(cadence.StepProblems(step)...); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCadence(tx, companyID, cadenceID); err != nil {
			return err
		}
		existing, err := cadenceSteps(tx, cadenceID)
		if err != nil {
			return err
		}
		if cadence.Collides(existing, step) {
			return Invalid("another step already uses this day, time and display order")
		}
		return tx.Create(&step).Error
	})
	if err != nil {
		return nil, err
	}
	return &step, nil
}

// UpdateStep applies a partial update to one step.
func (s *CadenceService) UpdateStep(ctx context.Context, companyID, cadenceID, stepID uint, in StepUpdate) (*models.CadenceStep, error) {
	var out models.CadenceStep
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCadence(tx, companyID, cadenceID); err != nil {
			return err
		}
		existing, err := cadenceSteps(tx, cadenceID)
		if err != nil {
			return err
		}
		var step *models.CadenceStep
		for i := range existing {
			if existing[i].ID == stepID {
				step = &existing[i]
				break
			}
		}
		if step == nil {
			return notFound("cadence step")
		}

		next := *step
		if in.DayNumber != nil {
			next.DayNumber = *in.DayNumber
		}
		if in.TimeOfDay != nil {
			next.TimeOfDay = *in.TimeOfDay
		}
		if in.ActionType != nil {
			next.ActionType = *in.ActionType
		}
		if in.Priority != nil {
			next.Priority = *in.Priority
			if next.Priority == "" {
				next.Priority = models.PriorityMedium
			}
		}
		if in.Description != nil {
			next.Description = strings.TrimSpace(*in.Description)
		}
		if in.DisplayOrder != nil {
			next.DisplayOrder = *in.DisplayOrder
		}
		if err := Invalid(cadence.StepProblems(next)...); err != nil {
			return err
		}
		if cadence.Collides(existing, next) {
			return Invalid("another step already uses this day, time and display order")
		}

		if err := tx.Model(step).Updates(map[string]interface{}{
			"day_number":    next.DayNumber,
			"time_of_day":   next.TimeOfDay,
			"action_type":   next.ActionType,
			"priority":      next.Priority,
			"description":   next.Description,
			"display_order": next.DisplayOrder,
		}).Error; err != nil {
			return err
		}
		return tx.First(&out, step.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteStep removes one step from a cadence.
func (s *CadenceService) DeleteStep(ctx context.Context, companyID, cadenceID, stepID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findCadence(tx, companyID, cadenceID); err != nil {
			return err
		}
		res := tx.Where("id = ? AND cadence_id = ?", stepID, cadenceID).Delete(&models.CadenceStep{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound("cadence step")
		}
		return nil
	})
}

// ReorderSteps applies a batch of display order changes. Items succeed or
// fail on their own; a failed item never rolls back the others.
func (s *CadenceService) ReorderSteps(ctx context.Context, companyID, cadenceID uint, changes []cadence.OrderChange) (*ReorderResult, error) {
	if len(changes) == 0 {
		return nil, Invalid("steps are required")
	}
	db := s.db.WithContext(ctx)
	if _, err := findCadence(db, companyID, cadenceID); err != nil {
		return nil, err
	}
	existing, err := cadenceSteps(db, cadenceID)
	if err != nil {
		return nil, err
	}

	result := &ReorderResult{Results: make([]ReorderItemResult, 0, len(changes))}
	for _, planned := range cadence.PlanReorder(existing, changes) {
		item := ReorderItemResult{ID: planned.ID, DisplayOrder: planned.DisplayOrder}
		if planned.OK() {
			res := db.Model(&models.CadenceStep{}).
				Where("id = ? AND cadence_id = ?", planned.ID, cadenceID).
				Update("display_order", planned.DisplayOrder)
			switch {
			case res.Error != nil:
				s.logger.WithError(res.Error).WithField("step_id", planned.ID).Error("Failed to reorder cadence step")
				item.Error = "failed to update step"
			case res.RowsAffected == 0:
				item.Error = "step not found"
			default:
				item.Success = true
			}
		} else {
			item.Error = planned.Reason
		}

		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
		result.Results = append(result.Results, item)
	}
	return result, nil
}

// DefaultCadence returns the company's active default cadence.
func DefaultCadence(tx *gorm.DB, companyID uint) (*models.Cadence, error) {
	var c models.Cadence
	err := tx.Where("company_id = ? AND is_active = ? AND is_default = ?", companyID, true, true).
		Order("created_at DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("default cadence")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
