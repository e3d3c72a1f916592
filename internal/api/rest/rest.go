package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alpha-fi/cheddar-nft-minter/internal/api/middleware"
)

// SetupRoutes configures all API routes on the router
func SetupRoutes(router *gin.Engine, handler *Handler, authCfg middleware.AuthConfig) {
	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// change methods need a caller identity and may attach a deposit
		v1.POST("/call/:method", middleware.Auth(authCfg), handler.Call)

		// views are read-only but still gated behind authentication
		v1.POST("/view/:method", middleware.Auth(authCfg), handler.View)
	}
}
