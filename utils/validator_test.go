package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepBody struct {
	DayNumber  int    `json:"day_number" validate:"gte=0"`
	TimeOfDay  string `json:"time_of_day" validate:"required,time_of_day"`
	ActionType string `json:"action_type" validate:"required,action_type"`
	Priority   string `json:"priority" validate:"priority"`
}

type cadenceBody struct {
	Name  string     `json:"name" validate:"required,max=10"`
	Steps []stepBody `json:"steps" validate:"dive"`
}

func TestValidateStructMessages(t *testing.T) {
	err := ValidateStruct(cadenceBody{
		Steps: []stepBody{{DayNumber: -1, TimeOfDay: "evening", ActionType: "fax", Priority: "meh"}},
	})
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, ValidationErrors{
		"name is required",
		"steps[0].day_number must be greater than or equal to 0",
		"invalid steps[0].time_of_day",
		"invalid steps[0].action_type",
		"invalid steps[0].priority",
	}, verrs)
	assert.Contains(t, err.Error(), "name is required, ")
}

func TestValidateStructAccepts(t *testing.T) {
	assert.NoError(t, ValidateStruct(cadenceBody{
		Name:  "Outreach",
		Steps: []stepBody{{TimeOfDay: "morning", ActionType: "ai_call"}},
	}))

	err := ValidateStruct(cadenceBody{Name: "far too long a name"})
	assert.EqualError(t, err, "name must be at most 10")
}
