package router

import (
	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/content-pipeline/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	healthHandler := handler.NewHealthHandler(deps)
	jobHandler := handler.NewJobHandler(deps)
	orchestratorHandler := handler.NewOrchestratorHandler(deps)
	eventHandler := handler.NewEventHandler(deps)
	webhookHandler := handler.NewWebhookHandler(deps)

	// GET /health - Backing service reachability
	r.GET("/health", healthHandler.Health)

	// Signed inbound webhooks authenticate by HMAC, not bearer token
	webhooks := r.Group("/webhooks")
	{
		webhooks.POST("/sync", webhookHandler.ReceiveSync)
		webhooks.POST("/payment", webhookHandler.ReceivePayment)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(BearerAuthMiddleware(deps.TriggerToken))
	{
		// POST /api/v1/orchestrators/:kind/run - Run one orchestrator invocation
		v1.POST("/orchestrators/:kind/run", orchestratorHandler.Run)

		// POST /api/v1/content/events - Fan a content event out to sync destinations
		v1.POST("/content/events", eventHandler.PublishContentEvent)

		// GET /api/v1/deliveries?event_id= - Delivery logs of one event
		v1.GET("/deliveries", eventHandler.ListDeliveries)

		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Enqueue a translation or scheduled-publish job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)
		}
	}

	return r
}
