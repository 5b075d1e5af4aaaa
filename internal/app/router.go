package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"fleetshift/internal/handler"
	"fleetshift/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TransferHandler    *handler.TransferHandler
	TripHandler        *handler.TripHandler
	OperatorHandler    *handler.OperatorHandler
	NegotiationHandler *handler.NegotiationHandler
	RedisClient        *redis.Client // Optional; enables idempotent POSTs
	NewRelicApp        *newrelic.Application
	Logger             *zap.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.IdentityMiddleware())
	router.Use(middleware.RequestLogger(logger))

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributesMiddleware())
	}

	if deps.RedisClient != nil {
		router.Use(middleware.IdempotencyMiddleware(deps.RedisClient, logger))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	{
		v1.POST("/transfers", deps.TransferHandler.CreateTransfer)

		// Trip routes.
		trips := v1.Group("/trips")
		{
			trips.GET("/:id/occupancy", deps.TripHandler.GetOccupancy)
			trips.GET("/:id/candidates", deps.TripHandler.GetCandidates)
			trips.GET("/:id/compensation", deps.TripHandler.GetCompensation)
			trips.GET("/:id/transfer-logs", deps.TransferHandler.ListTransferLogs)
			trips.POST("/:id/transfer", deps.TransferHandler.TransferTrip)
		}

		// Operator routes.
		operators := v1.Group("/operators")
		{
			operators.GET("/:id/dashboard", deps.OperatorHandler.GetDashboard)
		}

		// Negotiation routes.
		negotiations := v1.Group("/negotiations")
		{
			negotiations.POST("", deps.NegotiationHandler.Propose)
			negotiations.GET("", deps.NegotiationHandler.List)
			negotiations.GET("/:id", deps.NegotiationHandler.Get)
			negotiations.POST("/:id/accept", deps.NegotiationHandler.Accept)
			negotiations.POST("/:id/counter-offer", deps.NegotiationHandler.CounterOffer)
			negotiations.POST("/:id/reject", deps.NegotiationHandler.Reject)
			negotiations.POST("/:id/withdraw", deps.NegotiationHandler.Withdraw)
		}
	}

	return router
}
