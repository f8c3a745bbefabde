package http

import (
	"github.com/atang/wimf-backend/internal/delivery/http/handler"
	"github.com/atang/wimf-backend/internal/delivery/http/middleware"
	"github.com/atang/wimf-backend/pkg/logger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Router struct {
	locationHandler *handler.LocationHandler
	adminHandler    *handler.AdminHandler
	authMiddleware  *middleware.AuthMiddleware
	log             *logger.Logger
	allowedOrigins  []string
}

func NewRouter(
	locationHandler *handler.LocationHandler,
	adminHandler *handler.AdminHandler,
	authMiddleware *middleware.AuthMiddleware,
	log *logger.Logger,
	allowedOrigins []string,
) *Router {
	return &Router{
		locationHandler: locationHandler,
		adminHandler:    adminHandler,
		authMiddleware:  authMiddleware,
		log:             log,
		allowedOrigins:  allowedOrigins,
	}
}

func (r *Router) Setup() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(r.log))

	if len(r.allowedOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = r.allowedOrigins
		corsConfig.AllowCredentials = true
		corsConfig.AddAllowHeaders("Authorization")
		router.Use(cors.New(corsConfig))
	}

	// Health check (supports both GET and HEAD)
	healthHandler := func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	api := router.Group("/api/where-is-my-friends")
	api.Use(r.authMiddleware.RequireAuth())
	{
		api.GET("", r.locationHandler.GetState)
		api.POST("/locations", r.locationHandler.ShareLocation)
		api.GET("/locations/nearby", r.locationHandler.FindNearby)
		api.DELETE("/locations", r.locationHandler.RemoveLocation)
		api.GET("/ip-location", r.locationHandler.IPLocation)

		admin := api.Group("")
		admin.Use(r.authMiddleware.RequireAdmin())
		{
			admin.GET("/debug-stats", r.adminHandler.DebugStats)
		}
	}

	return router
}
