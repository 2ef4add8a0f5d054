package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"salescadence/models"
	"salescadence/services"
	"salescadence/utils"
)

type ActivityController struct {
	Service *services.ActivityService
	Logger  *logrus.Entry
}

func NewActivityController(service *services.ActivityService, logger *logrus.Entry) *ActivityController {
	return &ActivityController{
		Service: service,
		Logger:  logger,
	}
}

type LogActivityRequest struct {
	ActionType         string `json:"action_type" validate:"required,action_type"`
	Notes              string `json:"notes" validate:"max=5000"`
	SkipTaskCompletion bool   `json:"skip_task_completion"`
}

// LogActivity records an activity performed by the caller and completes the
// matching cadence step unless skip_task_completion is set
func (ac *ActivityController) LogActivity(c *fiber.Ctx) error {
	userID, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	var req LogActivityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	res, err := ac.Service.LogActivity(c.UserContext(), services.LogActivityInput{
		CompanyID:          companyID,
		LeadID:             leadID,
		UserID:             &userID,
		ActionType:         models.ActionType(req.ActionType),
		Notes:              req.Notes,
		Source:             models.ActivitySourceUser,
		SkipTaskCompletion: req.SkipTaskCompletion,
	})
	if err != nil {
		return respondError(c, "log_activity_failed", err)
	}
	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(res))
}

// ListActivities returns the lead's activity log, newest first
func (ac *ActivityController) ListActivities(c *fiber.Ctx) error {
	_, companyID, err := caller(c)
	if err != nil {
		return err
	}
	leadID, err := idParam(c, "id", "lead ID")
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	entries, err := ac.Service.ListActivities(c.UserContext(), companyID, leadID, limit)
	if err != nil {
		return respondError(c, "list_activities_failed", err)
	}
	return c.JSON(utils.SuccessResponse(entries))
}
