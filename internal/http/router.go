package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"parking-service/internal/http/middleware"
)

// HealthFunc reports whether the service's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

type RouterParams struct {
	Handler        *Handler
	AuthMiddleware gin.HandlerFunc
	Health         HealthFunc
	Gatherer       prometheus.Gatherer
	Logger         zerolog.Logger
	Environment    string
}

func NewRouter(p RouterParams) *gin.Engine {
	if p.Environment == "production" || p.Environment == "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	handler := p.Handler
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(p.Logger))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/healthz", func(c *gin.Context) {
		if p.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := p.Health(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if p.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{})))
	}

	// Customer surface: the ticket code is the credential.
	public := router.Group("/api/v1")
	{
		public.GET("/tickets/:code", handler.getTicket)
		public.POST("/tickets/:code/payments", handler.submitPayment)
		public.PUT("/tickets/:code/planned-exit", handler.setPlannedExit)
		public.POST("/tickets/:code/subscriptions", handler.subscribeCustomer)
		public.DELETE("/subscriptions", handler.unsubscribe)
	}

	admin := router.Group("/api/v1/admin")
	admin.Use(p.AuthMiddleware)
	{
		admin.GET("/tickets", handler.listTickets)
		admin.POST("/tickets/seed", handler.seedTickets)
		admin.POST("/tickets/:code/vehicle", handler.assignVehicle)
		admin.POST("/tickets/:code/confirm", handler.confirmParking)
		admin.POST("/tickets/:code/exit", handler.processExit)

		admin.GET("/payments", handler.listPayments)
		admin.POST("/payments/:id/validate", handler.validatePayment)
		admin.POST("/payments/:id/reject", handler.rejectPayment)

		admin.GET("/history", handler.listHistory)
		admin.GET("/history/:id", handler.getHistory)
		admin.POST("/history/:id/rebuild", handler.rebuildHistory)

		admin.POST("/subscriptions", handler.subscribeStaff)
		admin.GET("/notifications", handler.listOutbox)
	}

	return router
}
