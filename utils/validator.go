package utils

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"salescadence/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json names so messages match request bodies.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("action_type", func(fl validator.FieldLevel) bool {
		return models.ActionType(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("time_of_day", func(fl validator.FieldLevel) bool {
		return models.TimeOfDay(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || models.Priority(s).Valid()
	})
	_ = v.RegisterValidation("lead_status", func(fl validator.FieldLevel) bool {
		return models.ValidLeadStatus(fl.Field().String())
	})
	return v
}

// ValidationErrors lists every failed rule of a struct.
type ValidationErrors []string

func (e ValidationErrors) Error() string { return strings.Join(e, ", ") }

// ValidateStruct returns nil or ValidationErrors.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	var errors ValidationErrors
	for _, err := range fieldErrs {
		field := fieldName(err.Namespace())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			errors = append(errors, field+" is required")
		case "min":
			errors = append(errors, field+" must be at least "+param)
		case "max":
			errors = append(errors, field+" must be at most "+param)
		case "gte":
			errors = append(errors, field+" must be greater than or equal to "+param)
		case "action_type", "time_of_day", "priority", "lead_status":
			errors = append(errors, "invalid "+field)
		default:
			errors = append(errors, field+" is invalid")
		}
	}
	return errors
}

// fieldName drops the root struct from a namespace like
// "StepRequest.steps[0].day_number".
func fieldName(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
