// internal/app/router.go
package app

import (
	"net/http"

	billinghandler "babylon-billing-service/internal/handlers/billing"
	licensehandler "babylon-billing-service/internal/handlers/license"
	planhandler "babylon-billing-service/internal/handlers/plans"
	wshandler "babylon-billing-service/internal/handlers/websocket"
	"babylon-billing-service/internal/middleware"
	xjwt "babylon-billing-service/internal/pkg/jwt"
	"babylon-billing-service/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

type routerHandlers struct {
	subscription *billinghandler.SubscriptionHandler
	webhook      *billinghandler.WebhookHandler
	payment      *billinghandler.PaymentHandler
	plans        *planhandler.Handler
	license      *licensehandler.Handler
	ws           *wshandler.Handler
}

func (s *Server) buildRouter(h routerHandlers, jwtManager *xjwt.Manager) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(),
		metrics.Middleware(),
	)

	router.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", metrics.Handler())

	auth := middleware.AuthMiddleware(jwtManager)

	api := router.Group("/api")
	{
		api.GET("/plans", h.plans.List)

		asaasGroup := api.Group("/asaas")
		{
			asaasGroup.POST("/create-subscription", auth, h.subscription.CreateSubscription)
			asaasGroup.POST("/verify-payment", auth, h.payment.VerifyPayment)

			// Authenticated by the webhook token header, not a JWT.
			asaasGroup.POST("/asaas-webhook", h.webhook.HandleNotification)
		}

		api.GET("/licenses/active", auth, h.license.Active)
		api.GET("/licenses", auth, h.license.History)
		api.GET("/invoices", auth, h.license.Invoices)
	}

	// The ws handler authenticates via query token itself; browsers cannot
	// send the Authorization header on the upgrade request.
	router.GET("/ws", h.ws.Serve)

	return router
}
