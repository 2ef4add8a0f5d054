package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"salescadence/cadence"
	"salescadence/models"
	"salescadence/services"
	"salescadence/utils"
)

type CadenceController struct {
	Service *services.CadenceService
	Logger  *logrus.Entry
}

func NewCadenceController(service *services.CadenceService, logger *logrus.Entry) *CadenceController {
	return &CadenceController{
		Service: service,
		Logger:  logger,
	}
}

type StepRequest struct {
	DayNumber    int    `json:"day_number" validate:"gte=0"`
	TimeOfDay    string `json:"time_of_day" validate:"required,time_of_day"`
	ActionType   string `json:"action_type" validate:"required,action_type"`
	Priority     string `json:"priority" validate:"priority"`
	Description  string `json:"description" validate:"max=2000"`
	DisplayOrder int    `json:"display_order" validate:"gte=0"`
}

func (r StepRequest) input() services.StepInput {
	return services.StepInput{
		DayNumber:    r.DayNumber,
		TimeOfDay:    models.TimeOfDay(r.TimeOfDay),
		ActionType:   models.ActionType(r.ActionType),
		Priority:     models.Priority(r.Priority),
		Description:  r.Description,
		DisplayOrder: r.DisplayOrder,
	}
}

type CreateCadenceRequest struct {
	Name        string        `json:"name" validate:"required,max=200"`
	Description string        `json:"description" validate:"max=2000"`
	IsActive    *bool         `json:"is_active"`
	IsDefault   bool          `json:"is_default"`
	Steps       []StepRequest `json:"steps" validate:"dive"`
}

type UpdateCadenceRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	IsActive    *bool   `json:"is_active"`
	IsDefault   *bool   `json:"is_default"`
}

type UpdateStepRequest struct {
	DayNumber    *int    `json:"day_number" validate:"omitempty,gte=0"`
	TimeOfDay    *string `json:"time_of_day" validate:"omitempty,time_of_day"`
	ActionType   *string `json:"action_type" validate:"omitempty,action_type"`
	Priority     *string `json:"priority" validate:"omitempty,priority"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
	DisplayOrder *int    `json:"display_order" validate:"omitempty,gte=0"`
}

type ReorderStepsRequest struct {
	Steps []cadence.OrderChange `json:"steps" validate:"required,min=1"`
}

// ListCadences returns the company's cadences with their ordered steps
func (cc *CadenceController) ListCadences(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadences, err := cc.Service.List(c.UserContext(), companyID)
	if err != nil {
		return respondError(c, "list_cadences_failed", err)
	}
	return c.JSON(utils.SuccessResponse(cadences))
}

func (cc *CadenceController) GetCadence(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	out, err := cc.Service.Get(c.UserContext(), companyID, cadenceID)
	if err != nil {
		return respondError(c, "get_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(out))
}

// CreateCadence creates a cadence, optionally with steps, in one transaction
func (cc *CadenceController) CreateCadence(c *fiber.Ctx) error {
	userID, companyID, err := caller(c)
	if err != nil {
		return err
	}
	var req CreateCadenceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	in := services.CadenceInput{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		IsDefault:   req.IsDefault,
	}
	for _, step := range req.Steps {
		in.Steps = append(in.Steps, step.input())
	}
	out, err := cc.Service.Create(c.UserContext(), companyID, in)
	if err != nil {
		return respondError(c, "create_cadence_failed", err)
	}

	cc.Logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"company_id": companyID,
		"cadence_id": out.ID,
		"steps":      len(out.Steps),
	}).Info("Sales cadence created")
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(out))
}

func (cc *CadenceController) UpdateCadence(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	var req UpdateCadenceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	out, err := cc.Service.Update(c.UserContext(), companyID, cadenceID, services.CadenceUpdate{
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		IsDefault:   req.IsDefault,
	})
	if err != nil {
		return respondError(c, "update_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(out))
}

func (cc *CadenceController) DeleteCadence(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	if err := cc.Service.Delete(c.UserContext(), companyID, cadenceID); err != nil {
		return respondError(c, "delete_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// SetDefaultCadence makes the cadence the one new leads start on
func (cc *CadenceController) SetDefaultCadence(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	out, err := cc.Service.SetDefault(c.UserContext(), companyID, cadenceID)
	if err != nil {
		return respondError(c, "set_default_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(out))
}

func (cc *CadenceController) AddStep(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	var req StepRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	step, err := cc.Service.AddStep(c.UserContext(), companyID, cadenceID, req.input())
	if err != nil {
		return respondError(c, "add_cadence_step_failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(step))
}

func (cc *CadenceController) UpdateStep(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	stepID, err := idParam(c, "stepId", "step ID")
	if err != nil {
		return err
	}
	var req UpdateStepRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	in := services.StepUpdate{
		DayNumber:    req.DayNumber,
		Description:  req.Description,
		DisplayOrder: req.DisplayOrder,
	}
	if req.TimeOfDay != nil {
		in.TimeOfDay = utils.Pointer(models.TimeOfDay(*req.TimeOfDay))
	}
	if req.ActionType != nil {
		in.ActionType = utils.Pointer(models.ActionType(*req.ActionType))
	}
	if req.Priority != nil {
		in.Priority = utils.Pointer(models.Priority(*req.Priority))
	}
	step, err := cc.Service.UpdateStep(c.UserContext(), companyID, cadenceID, stepID, in)
	if err != nil {
		return respondError(c, "update_cadence_step_failed", err)
	}
	return c.JSON(utils.SuccessResponse(step))
}

func (cc *CadenceController) DeleteStep(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	stepID, err := idParam(c, "stepId", "step ID")
	if err != nil {
		return err
	}
	if err := cc.Service.DeleteStep(c.UserContext(), companyID, cadenceID, stepID); err != nil {
		return respondError(c, "delete_cadence_step_failed", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": true}))
}

// ReorderSteps applies display-order changes item by item. A batch with
// some rejected items still answers 200 with per-item results.
func (cc *CadenceController) ReorderSteps(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	cadenceID, err := idParam(c, "cadenceId", "cadence ID")
	if err != nil {
		return err
	}
	var req ReorderStepsRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	res, err := cc.Service.ReorderSteps(c.UserContext(), companyID, cadenceID, req.Steps)
	if err != nil {
		return respondError(c, "reorder_cadence_steps_failed", err)
	}
	return c.JSON(utils.SuccessResponse(res))
}
