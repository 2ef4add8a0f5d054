package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"salescadence/services"
	"salescadence/utils"
)

type LeadController struct {
	Service *services.LeadService
	Logger  *logrus.Entry
}

func NewLeadController(service *services.LeadService, logger *logrus.Entry) *LeadController {
	return &LeadController{
		Service: service,
		Logger:  logger,
	}
}

type UpdateLeadStatusRequest struct {
	LeadStatus string `json:"lead_status" validate:"required,lead_status"`
}

// UpdateLeadStatus moves the lead through the pipeline, starting or ending
// its cadence as the status requires
func (lc *LeadController) UpdateLeadStatus(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	var req UpdateLeadStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	change, err := lc.Service.UpdateStatus(c.UserContext(), companyID, leadID, req.LeadStatus)
	if err != nil {
		return respondError(c, "update_lead_status_failed", err)
	}
	return c.JSON(utils.SuccessResponse(change))
}

func (lc *LeadController) ArchiveLead(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	lead, err := lc.Service.Archive(c.UserContext(), companyID, leadID)
	if err != nil {
		return respondError(c, "archive_lead_failed", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

func (lc *LeadController) RecoverLead(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	lead, err := lc.Service.Recover(c.UserContext(), companyID, leadID)
	if err != nil {
		return respondError(c, "recover_lead_failed", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}
