package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"salescadence/services"
	"salescadence/utils"
)

// LeadCadenceController serves /leads/:id/cadence.
type LeadCadenceController struct {
	Service *services.AssignmentService
	Logger  *logrus.Entry
}

func NewLeadCadenceController(service *services.AssignmentService, logger *logrus.Entry) *LeadCadenceController {
	return &LeadCadenceController{
		Service: service,
		Logger:  logger,
	}
}

type StartCadenceRequest struct {
	CadenceID *uint `json:"cadence_id"`
}

type AssignCadenceRequest struct {
	CadenceID uint `json:"cadence_id" validate:"required"`
}

type PauseCadenceRequest struct {
	Paused *bool `json:"paused" validate:"required"`
}

// GetLeadCadence returns the active assignment with step progress, or null
func (lc *LeadCadenceController) GetLeadCadence(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	progress, err := lc.Service.Progress(c.UserContext(), companyID, leadID)
	if err != nil {
		return respondError(c, "get_lead_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(progress))
}

func (lc *LeadCadenceController) GetNextStep(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	next, err := lc.Service.NextStep(c.UserContext(), companyID, leadID)
	if err != nil {
		return respondError(c, "get_next_step_failed", err)
	}
	return c.JSON(utils.SuccessResponse(next))
}

// StartLeadCadence starts the given or default cadence for an owned lead
func (lc *LeadCadenceController) StartLeadCadence(c *fiber.Ctx) error {
	userID, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	var req StartCadenceRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	a, err := lc.Service.Start(c.UserContext(), companyID, leadID, req.CadenceID, &userID)
	if err != nil {
		return respondError(c, "start_lead_cadence_failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(a))
}

// AssignLeadCadence replaces the lead's cadence
func (lc *LeadCadenceController) AssignLeadCadence(c *fiber.Ctx) error {
	userID, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	var req AssignCadenceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	a, err := lc.Service.Assign(c.UserContext(), companyID, leadID, req.CadenceID, userID)
	if err != nil {
		return respondError(c, "assign_lead_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(a))
}

func (lc *LeadCadenceController) PauseLeadCadence(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	var req PauseCadenceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	pause := lc.Service.Unpause
	if *req.Paused {
		pause = lc.Service.Pause
	}
	a, err := pause(c.UserContext(), companyID, leadID)
	if err != nil {
		return respondError(c, "pause_lead_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(a))
}

func (lc *LeadCadenceController) EndLeadCadence(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	if err := lc.Service.End(c.UserContext(), companyID, leadID); err != nil {
		return respondError(c, "end_lead_cadence_failed", err)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"ended": true}))
}
