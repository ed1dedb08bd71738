package http

import (
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/internal/metrics"
	"github.com/layer-3/walletauth/service"
	"github.com/sirupsen/logrus"
)

// SetupRouter sets up the Gin router
func SetupRouter(
	challenger *service.Challenger,
	authService *service.AuthService,
	limiter *RateLimiter,
	log logrus.FieldLogger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log), Metrics())

	handlers := NewAuthHandlers(challenger, authService)

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Auth routes
	auth := router.Group("/auth")
	auth.Use(limiter.Handler())
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
