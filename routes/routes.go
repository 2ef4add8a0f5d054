package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	controller "salescadence/controllers"
	"salescadence/middleware"
	"salescadence/realtime"
	"salescadence/services"
	"salescadence/utils"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	DB            *gorm.DB
	Hub           *realtime.Hub
	JWTSecret     string
	WebhookSecret string

	RateLimitActivity int
	RateLimitStorage  fiber.Storage

	Location    *time.Location
	CORSOrigins []string
	// Clock overrides time.Now in services.
	Clock func() time.Time
	// RequestLog enables fiber's access log.
	RequestLog bool
}

// NewApp builds the fiber app with middleware and every route.
func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "salescadence",
		ErrorHandler: utils.ErrorHandler,
	})
	app.Use(recover.New())

	cors := middleware.DefaultCORSConfig()
	if len(d.CORSOrigins) > 0 {
		cors.AllowedOrigins = d.CORSOrigins
	}
	app.Use(middleware.CORS(cors))

	SetupRoutes(app, d)
	return app
}

func serviceOptions(d Deps) []services.Option {
	opts := []services.Option{}
	if d.Hub != nil {
		opts = append(opts, services.WithEvents(d.Hub))
	}
	if d.Location != nil {
		opts = append(opts, services.WithLocation(d.Location))
	}
	if d.Clock != nil {
		opts = append(opts, services.WithClock(d.Clock))
	}
	return opts
}

func SetupRoutes(app *fiber.App, d Deps) {
	opts := serviceOptions(d)
	cadenceService := services.NewCadenceService(d.DB, utils.Component("cadence_service"), opts...)
	assignmentService := services.NewAssignmentService(d.DB, utils.Component("assignment_service"), opts...)
	activityService := services.NewActivityService(d.DB, utils.Component("activity_service"), opts...)
	leadService := services.NewLeadService(d.DB, utils.Component("lead_service"), opts...)

	cadenceController := controller.NewCadenceController(cadenceService, utils.Component("cadence_controller"))
	leadCadenceController := controller.NewLeadCadenceController(assignmentService, utils.Component("lead_cadence_controller"))
	activityController := controller.NewActivityController(activityService, utils.Component("activity_controller"))
	leadController := controller.NewLeadController(leadService, utils.Component("lead_controller"))
	webhookController := controller.NewWebhookController(activityService, utils.Component("webhook_controller"))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	handlers := []fiber.Handler{middleware.Protected(d.JWTSecret)}
	if d.RequestLog {
		handlers = append(handlers, logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	api := app.Group("/api/v1", handlers...)

	cadences := api.Group("/sales-cadences")
	cadences.Get("/", cadenceController.ListCadences)
	cadences.Post("/", cadenceController.CreateCadence)
	cadences.Get("/:cadenceId", cadenceController.GetCadence)
	cadences.Put("/:cadenceId", cadenceController.UpdateCadence)
	cadences.Delete("/:cadenceId", cadenceController.DeleteCadence)
	cadences.Post("/:cadenceId/default", cadenceController.SetDefaultCadence)
	cadences.Post("/:cadenceId/steps", cadenceController.AddStep)
	cadences.Put("/:cadenceId/steps/reorder", cadenceController.ReorderSteps)
	cadences.Put("/:cadenceId/steps/:stepId", cadenceController.UpdateStep)
	cadences.Delete("/:cadenceId/steps/:stepId", cadenceController.DeleteStep)

	lead := api.Group("/leads/:id")
	lead.Get("/cadence", leadCadenceController.GetLeadCadence)
	lead.Get("/cadence/next", leadCadenceController.GetNextStep)
	lead.Post("/cadence", leadCadenceController.StartLeadCadence)
	lead.Put("/cadence", leadCadenceController.AssignLeadCadence)
	lead.Patch("/cadence", leadCadenceController.PauseLeadCadence)
	lead.Delete("/cadence", leadCadenceController.EndLeadCadence)
	lead.Get("/activities", activityController.ListActivities)
	lead.Post("/activities", middleware.ActivityRateLimiter(d.RateLimitActivity, d.RateLimitStorage), activityController.LogActivity)
	lead.Patch("/status", leadController.UpdateLeadStatus)
	lead.Post("/archive", leadController.ArchiveLead)
	lead.Post("/recover", leadController.RecoverLead)

	if d.Hub != nil {
		realtimeController := controller.NewRealtimeController(d.Hub, utils.Component("realtime"))
		api.Get("/realtime/cadence", realtimeController.RequireUpgrade, realtimeController.Stream())
	}

	webhooks := app.Group("/webhooks", middleware.WebhookSecret(d.WebhookSecret))
	webhooks.Post("/call-outcome", webhookController.HandleCallOutcome)

	app.Use(func(c *fiber.Ctx) error {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Not Found", nil)
	})
}
