package app

import (
	"go-surplus-storefront/internal/middleware"
	"go-surplus-storefront/internal/storefront"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func registerModules(router *gin.Engine, a *App, logger *zap.Logger) {
	// --- Handlers ---
	storefrontHandler := storefront.NewHandler(a.Registry, a.Rates)

	// --- Middleware ---
	router.Use(
		middleware.RequestID(),
		cors.New(cors.Config{
			AllowOrigins:     a.cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
		}),
		middleware.ClientMiddleware(a.cfg.SecureCookies),
		middleware.AccessLog(logger),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	{
		storefront.RegisterRoutes(api, storefrontHandler, logger)
	}
}
