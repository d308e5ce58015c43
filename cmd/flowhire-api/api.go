package main

import (
	"log/slog"
	"strconv"

	"github.com/flowhire/flowhire/pkg/engine"
	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/ledger"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/flowhire/flowhire/pkg/trigger"
	"github.com/flowhire/flowhire/pkg/web"
	"github.com/flowhire/flowhire/pkg/webhook"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(logger *slog.Logger, p persistence.Persistence, eventBus eventbus.EventBus) *API {
	return &API{
		logger:      logger,
		persistence: p,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	runLedger := ledger.NewLedger(a.persistence, a.logger)
	matcher := trigger.NewMatcher(a.persistence, a.eventBus, a.logger)
	approvals := engine.NewApprovalService(a.persistence, runLedger, a.eventBus, a.logger)
	dispatcher := webhook.NewDispatcher(a.persistence, matcher, a.logger)

	handlers := web.NewAPIHandlers(a.persistence, runLedger, matcher, approvals, dispatcher, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Flowhire Workflow API")
	})

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/run", handlers.TriggerWorkflow)
	w.Get("/:id/runs", handlers.GetWorkflowRuns)

	r := app.Group("/runs")
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/approval", handlers.ResolveApproval)

	s := app.Group("/schedules")
	s.Get("/", handlers.GetSchedules)
	s.Post("/", handlers.CreateSchedule)
	s.Get("/:id", handlers.GetSchedule)
	s.Delete("/:id", handlers.DeleteSchedule)

	t := app.Group("/templates")
	t.Get("/", handlers.GetTemplates)
	t.Post("/:id/instantiate", handlers.InstantiateTemplate)

	app.Post("/webhook/:webhookId", handlers.ReceiveWebhook)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	return a.App().Listen(":" + strconv.Itoa(port))
}
