// Package handler exposes the enrichment pipeline over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
	"github.com/hpn/hpn-co2-enricher/internal/enricher"
	"github.com/hpn/hpn-co2-enricher/internal/report"
	"github.com/hpn/hpn-co2-enricher/internal/store"
	"github.com/hpn/hpn-co2-enricher/internal/ui"
)

// Store is the persistence the handler needs. *store.Store implements it.
type Store interface {
	GeminiAPIKey(ctx context.Context) (string, error)
	SetGeminiAPIKey(ctx context.Context, key string) error
	HasProduct(ctx context.Context, id string) (bool, error)
	GetProduct(ctx context.Context, id string) (store.SavedProduct, error)
	SaveProduct(ctx context.Context, p domain.Product, r domain.EnrichmentResult) (bool, error)
	ListProducts(ctx context.Context) ([]store.SavedProduct, error)
}

// EnrichRequest is the body of POST /v1/enrich and POST /v1/products.
type EnrichRequest struct {
	Product domain.Product `json:"product"`
	APIKey  string         `json:"apiKey,omitempty"`
}

// SetAPIKeyRequest is the body of PUT /v1/settings/api-key.
type SetAPIKeyRequest struct {
	APIKey string `json:"apiKey" binding:"required"`
}

// SaveResponse reports whether POST /v1/products wrote a new record.
type SaveResponse struct {
	Saved  bool               `json:"saved"`
	Record store.SavedProduct `json:"record"`
}

// EnrichHandler serves the enrichment and history endpoints.
type EnrichHandler struct {
	registry *enricher.Registry
	store    Store
	keyRing  *domain.KeyRing
	models   []string
	console  *ui.Console
	logger   *slog.Logger
}

// Option is a functional option for configuring EnrichHandler.
type Option func(*EnrichHandler)

// WithKeyRing sets the server-side keys used when a request brings none.
func WithKeyRing(ring *domain.KeyRing) Option {
	return func(h *EnrichHandler) {
		h.keyRing = ring
	}
}

// WithModels sets the chain reported by GET /v1/models.
func WithModels(models []string) Option {
	return func(h *EnrichHandler) {
		if len(models) > 0 {
			h.models = append([]string(nil), models...)
		}
	}
}

// WithConsole enables styled console output.
func WithConsole(c *ui.Console) Option {
	return func(h *EnrichHandler) {
		h.console = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *EnrichHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewEnrichHandler creates a new EnrichHandler.
func NewEnrichHandler(registry *enricher.Registry, st Store, opts ...Option) *EnrichHandler {
	h := &EnrichHandler{
		registry: registry,
		store:    st,
		models:   domain.DefaultModelCandidates(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// HandleEnrich handles POST /v1/enrich.
func (h *EnrichHandler) HandleEnrich(c *gin.Context) {
	req, ok := h.bindEnrichRequest(c)
	if !ok {
		return
	}

	result, err := h.enrich(c, req)
	if err != nil {
		h.sendError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// HandleSaveProduct handles POST /v1/products. A product already in history
// is returned as is and never re-enriched.
func (h *EnrichHandler) HandleSaveProduct(c *gin.Context) {
	req, ok := h.bindEnrichRequest(c)
	if !ok {
		return
	}
	if strings.TrimSpace(req.Product.ID) == "" {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request_error", "product.id is required to save a product"))
		return
	}

	ctx := c.Request.Context()
	exists, err := h.store.HasProduct(ctx, req.Product.ID)
	if err != nil {
		h.sendError(c, err)
		return
	}
	if exists {
		existing, err := h.store.GetProduct(ctx, req.Product.ID)
		if err != nil {
			h.sendError(c, err)
			return
		}
		c.JSON(http.StatusOK, SaveResponse{Saved: false, Record: existing})
		return
	}

	result, err := h.enrich(c, req)
	if err != nil {
		h.sendError(c, err)
		return
	}

	inserted, err := h.store.SaveProduct(ctx, req.Product, result)
	if err != nil {
		h.sendError(c, err)
		return
	}
	record, err := h.store.GetProduct(ctx, req.Product.ID)
	if err != nil {
		h.sendError(c, err)
		return
	}

	status := http.StatusCreated
	if !inserted {
		status = http.StatusOK
	}
	c.JSON(status, SaveResponse{Saved: inserted, Record: record})
}

// HandleListProducts handles GET /v1/products.
func (h *EnrichHandler) HandleListProducts(c *gin.Context) {
	items, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	if items == nil {
		items = []store.SavedProduct{}
	}
	c.JSON(http.StatusOK, gin.H{"products": items, "count": len(items)})
}

// HandleGetProduct handles GET /v1/products/:id.
func (h *EnrichHandler) HandleGetProduct(c *gin.Context) {
	item, err := h.store.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// HandleExport handles GET /v1/products/export as a CSV download.
func (h *EnrichHandler) HandleExport(c *gin.Context) {
	items, err := h.store.ListProducts(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}

	filename := fmt.Sprintf("co2-history-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)
	if err := report.CSV(c.Writer, items); err != nil {
		_ = c.Error(err)
	}
}

// HandleSetAPIKey handles PUT /v1/settings/api-key.
func (h *EnrichHandler) HandleSetAPIKey(c *gin.Context) {
	var req SetAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request_error", "Invalid request body: "+err.Error()))
		return
	}
	if err := h.store.SetGeminiAPIKey(c.Request.Context(), req.APIKey); err != nil {
		h.sendError(c, err)
		return
	}
	h.logger.Info("gemini api key stored")
	c.Status(http.StatusNoContent)
}

// HandleModels handles GET /v1/models and lists the fallback chain in order.
func (h *EnrichHandler) HandleModels(c *gin.Context) {
	data := make([]gin.H, len(h.models))
	for i, m := range h.models {
		data[i] = gin.H{
			"id":       m,
			"object":   "model",
			"owned_by": "google",
			"priority": i + 1,
		}
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

// HandleHealth handles GET /health.
func (h *EnrichHandler) HandleHealth(c *gin.Context) {
	active, throttled := 0, 0
	if h.keyRing != nil {
		active, throttled = h.keyRing.Counts()
	}

	status := "healthy"
	if h.keyRing != nil && h.keyRing.Size() > 0 && active == 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         status,
		"active_keys":    active,
		"throttled_keys": throttled,
		"enrichers":      h.registry.Len(),
		"evicted":        h.registry.Evictions(),
		"cache":          h.registry.CacheStats(),
	})
}

func (h *EnrichHandler) bindEnrichRequest(c *gin.Context) (EnrichRequest, bool) {
	var req EnrichRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request_error", "Invalid request body: "+err.Error()))
		return req, false
	}
	if strings.TrimSpace(req.Product.Title) == "" {
		c.JSON(http.StatusBadRequest, errorBody("invalid_request_error", "product.title is required"))
		return req, false
	}
	return req, true
}

// enrich resolves the key, runs the pipeline and puts a server key on cooldown
// when the provider rate limits it.
func (h *EnrichHandler) enrich(c *gin.Context, req EnrichRequest) (domain.EnrichmentResult, error) {
	key, fromRing, err := h.resolveKey(c, req)
	if err != nil {
		return domain.EnrichmentResult{}, err
	}
	c.Set(ctxKeyUsed, key)

	result, err := h.registry.Enrich(c.Request.Context(), req.Product, key)
	if err != nil {
		if fromRing && domain.IsRateLimit(err) {
			h.keyRing.MarkThrottled(key)
			if h.console != nil {
				h.console.PrintKeyThrottled(key, h.keyRing.Cooldown())
			}
		}
		return domain.EnrichmentResult{}, err
	}

	c.Set(ctxModel, result.ModelUsed)
	return result, nil
}

// resolveKey picks the Gemini key: body, then header, then stored setting, then the server key ring.
func (h *EnrichHandler) resolveKey(c *gin.Context, req EnrichRequest) (key string, fromRing bool, err error) {
	if k := strings.TrimSpace(req.APIKey); k != "" {
		return k, false, nil
	}
	if k := strings.TrimSpace(c.GetHeader(HeaderGeminiAPIKey)); k != "" {
		return k, false, nil
	}
	if h.store != nil {
		k, err := h.store.GeminiAPIKey(c.Request.Context())
		if err != nil {
			return "", false, err
		}
		if k != "" {
			return k, false, nil
		}
	}
	if h.keyRing != nil && h.keyRing.Size() > 0 {
		k, err := h.keyRing.Next()
		if err != nil {
			return "", false, err
		}
		return k, true, nil
	}
	return "", false, domain.ErrMissingAPIKey
}

// sendError maps pipeline errors to HTTP statuses.
func (h *EnrichHandler) sendError(c *gin.Context, err error) {
	status, errType := classifyHTTP(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.String("type", errType),
			slog.String("error", err.Error()),
		)
	}

	c.AbortWithStatusJSON(status, errorBody(errType, message))
}

func classifyHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingAPIKey):
		return http.StatusBadRequest, "missing_api_key"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrNoKeysAvailable):
		return http.StatusTooManyRequests, string(domain.KindRateLimit)
	case domain.IsRateLimit(err):
		return http.StatusTooManyRequests, string(domain.KindRateLimit)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "client_closed_request"
	}

	if kind := domain.KindOf(err); kind != "" {
		return http.StatusBadGateway, string(kind)
	}
	return http.StatusInternalServerError, "server_error"
}

func errorBody(errType, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"message": message,
			"type":    errType,
		},
	}
}
