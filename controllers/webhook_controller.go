package controller

import (
	"fmt"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"salescadence/models"
	"salescadence/services"
	"salescadence/utils"
)

// WebhookController accepts calls from trusted automation.
type WebhookController struct {
	Activities *services.ActivityService
	Logger     *logrus.Entry
}

func NewWebhookController(activities *services.ActivityService, logger *logrus.Entry) *WebhookController {
	return &WebhookController{
		Activities: activities,
		Logger:     logger,
	}
}

type CallOutcomeRequest struct {
	CompanyID       uint   `json:"company_id" validate:"required"`
	LeadID          uint   `json:"lead_id" validate:"required"`
	CallID          string `json:"call_id" validate:"required,max=200"`
	Outcome         string `json:"outcome" validate:"required,oneof=successful no_answer busy failed voicemail"`
	DurationSeconds int    `json:"duration_seconds" validate:"gte=0"`
	CallType        string `json:"call_type" validate:"omitempty,oneof=ai_call outbound_call"`
}

// CallOutcomeNotes renders the activity note for a finished call.
func CallOutcomeNotes(outcome, callID string, durationSeconds int) string {
	notes := fmt.Sprintf("Call %s - ID: %s", outcome, callID)
	if durationSeconds > 0 {
		notes += fmt.Sprintf(" (%dm)", int(math.Round(float64(durationSeconds)/60)))
	}
	return notes
}

// HandleCallOutcome logs a finished automated call as an activity, which
// advances the lead's cadence like any user-logged call
func (wc *WebhookController) HandleCallOutcome(c *fiber.Ctx) error {
	var req CallOutcomeRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	actionType := models.ActionAICall
	if req.CallType != "" {
		actionType = models.ActionType(req.CallType)
	}

	eventID := c.Get("X-Webhook-Event-Id")
	if eventID == "" {
		eventID = uuid.NewString()
	}
	log := wc.Logger.WithFields(logrus.Fields{
		"event_id":   eventID,
		"company_id": req.CompanyID,
		"lead_id":    req.LeadID,
		"call_id":    req.CallID,
		"outcome":    req.Outcome,
	})

	res, err := wc.Activities.LogActivity(c.UserContext(), services.LogActivityInput{
		CompanyID:  req.CompanyID,
		LeadID:     req.LeadID,
		ActionType: actionType,
		Notes:      CallOutcomeNotes(req.Outcome, req.CallID, req.DurationSeconds),
		Source:     models.ActivitySourceAutomation,
	})
	if err != nil {
		log.WithError(err).Warn("Call outcome not recorded")
		return respondError(c, "call_outcome_failed", err)
	}
	log.WithField("activity_id", res.Activity.ID).Info("Call outcome recorded")

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"event_id": eventID,
		"result":   res,
	}))
}
