// Package seed loads cadence templates from YAML files.
package seed

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"salescadence/models"
	"salescadence/services"
)

// File is the top-level document of a seed file.
type File struct {
	Cadences []Cadence `yaml:"cadences"`
}

type Cadence struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"`
	Default     bool   `yaml:"default"`
	Steps       []Step `yaml:"steps"`
}

type Step struct {
	Day         int    `yaml:"day"`
	Time        string `yaml:"time"`
	Action      string `yaml:"action"`
	Priority    string `yaml:"priority"`
	Description string `yaml:"description"`
	Order       int    `yaml:"order"`
}

// Decode parses a seed document. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return &f, nil
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

func (c Cadence) input() services.CadenceInput {
	in := services.CadenceInput{
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.Active,
		IsDefault:   c.Default,
	}
	for _, s := range c.Steps {
		in.Steps = append(in.Steps, services.StepInput{
			DayNumber:    s.Day,
			TimeOfDay:    models.TimeOfDay(s.Time),
			ActionType:   models.ActionType(s.Action),
			Priority:     models.Priority(s.Priority),
			Description:  s.Description,
			DisplayOrder: s.Order,
		})
	}
	return in
}

// Apply creates every cadence of f for companyID. It stops at the first
// failure and returns the cadences created so far.
func Apply(ctx context.Context, svc *services.CadenceService, companyID uint, f *File) ([]models.Cadence, error) {
	var created []models.Cadence
	for i, c := range f.Cadences {
		out, err := svc.Create(ctx, companyID, c.input())
		if err != nil {
			return created, fmt.Errorf("cadence %d (%q): %w", i+1, c.Name, err)
		}
		created = append(created, *out)
	}
	return created, nil
}
