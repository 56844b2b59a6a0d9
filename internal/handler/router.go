package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/hpn/hpn-co2-enricher/internal/ui"
)

// RouterConfig carries the middleware settings for NewRouter.
type RouterConfig struct {
	Logger      *slog.Logger
	Console     *ui.Console
	CORSOrigins []string
}

// NewRouter wires middleware and routes onto a fresh gin engine.
func NewRouter(h *EnrichHandler, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()

	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(CORSMiddleware(cfg.CORSOrigins))
	router.Use(LoggingMiddleware(logger, cfg.Console))

	v1 := router.Group("/v1")
	{
		v1.POST("/enrich", h.HandleEnrich)
		v1.POST("/products", h.HandleSaveProduct)
		v1.GET("/products", h.HandleListProducts)
		v1.GET("/products/export", h.HandleExport)
		v1.GET("/products/:id", h.HandleGetProduct)
		v1.PUT("/settings/api-key", h.HandleSetAPIKey)
		v1.GET("/models", h.HandleModels)
	}
	router.GET("/health", h.HandleHealth)

	return router
}
