// Package api exposes article generation over HTTP. Handlers translate
// pipeline errors into the coarse user-facing taxonomy; raw backend
// error text never leaves the server.
package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/isaomisk/HoroloGen/internal/discovery"
	"github.com/isaomisk/HoroloGen/internal/pipeline"
	"github.com/isaomisk/HoroloGen/internal/policy"
	"github.com/isaomisk/HoroloGen/pkg/apperrors"
	"github.com/isaomisk/HoroloGen/pkg/article"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// Handlers contains the HTTP handlers for article generation.
type Handlers struct {
	pipeline  *pipeline.Generator
	discovery *discovery.Service
	logger    zerolog.Logger
}

// NewHandlers creates handlers over the wired pipeline and discovery
// service.
func NewHandlers(p *pipeline.Generator, d *discovery.Service) *Handlers {
	return &Handlers{
		pipeline:  p,
		discovery: d,
		logger:    logging.GetLogger("api"),
	}
}

// GenerateRequest is the generation payload plus the rewrite switch.
type GenerateRequest struct {
	article.GenerationPayload
	RewriteMode string `json:"rewrite_mode"`
}

// GenerateResponse returns the draft with its provenance metadata.
type GenerateResponse struct {
	IntroText string          `json:"intro_text"`
	SpecsText string          `json:"specs_text"`
	RefMeta   article.RefMeta `json:"ref_meta"`
}

// ErrorResponse is the uniform error shape: a user-safe message with a
// correlation ID, never backend details.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorID   string `json:"error_id"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// Health handles health check requests.
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "horologen",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// GenerateArticle handles POST /api/v1/articles/generate.
func (h *Handlers) GenerateArticle(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	mode, err := article.ParseRewriteMode(req.RewriteMode)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err := req.GenerationPayload.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	draft, meta, err := h.pipeline.Generate(c.Context(), &req.GenerationPayload, mode)
	if err != nil {
		return h.generationError(c, meta.GenerationID, err)
	}

	return c.JSON(GenerateResponse{
		IntroText: draft.IntroText,
		SpecsText: draft.SpecsText,
		RefMeta:   meta,
	})
}

// DiscoverRequest asks for candidate reference URLs for a product.
// FailedURL switches to the replacement search for a URL that could not
// be fetched; brand and reference are not required on that path.
type DiscoverRequest struct {
	Brand          string `json:"brand"`
	Reference      string `json:"reference"`
	Collection     string `json:"collection"`
	MaxURLs        int    `json:"max_urls"`
	IncludeEnglish bool   `json:"include_english"`
	FailedURL      string `json:"failed_url"`
}

// DiscoverResponse lists trusted candidates with the search audit trail.
type DiscoverResponse struct {
	URLs        []string        `json:"urls"`
	EnglishURLs []string        `json:"english_urls,omitempty"`
	Debug       discovery.Debug `json:"debug"`
}

// DiscoverURLs handles POST /api/v1/articles/discover.
func (h *Handlers) DiscoverURLs(c *fiber.Ctx) error {
	var req DiscoverRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}
	if req.MaxURLs <= 0 {
		req.MaxURLs = 3
	}

	if req.FailedURL != "" {
		urls := h.discovery.FallbackSearchFromFailedURL(c.Context(), req.FailedURL, req.MaxURLs)
		return c.JSON(DiscoverResponse{URLs: urls})
	}

	if req.Brand == "" || req.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "brand and reference are required",
		})
	}

	urls, debug := h.discovery.DiscoverReferenceURLs(c.Context(), req.Brand, req.Reference, req.MaxURLs)
	resp := DiscoverResponse{URLs: urls, Debug: debug}
	if req.IncludeEnglish {
		resp.EnglishURLs = h.discovery.DiscoverEnglishURLs(c.Context(), req.Brand, req.Reference, req.Collection, 1)
	}
	return c.JSON(resp)
}

// generationError maps a pipeline failure to a status code and the
// user-facing message template. Policy violations are the staff's
// problem to retry (422); everything else is a retryable upstream
// failure (502).
func (h *Handlers) generationError(c *fiber.Ctx, generationID string, err error) error {
	errorID := apperrors.NewErrorID()
	code := apperrors.ToCode(err)

	h.logger.Error().
		Str("generation_id", generationID).
		Str("error_id", errorID).
		Str("code", code).
		Msg(apperrors.Mask(err.Error()))

	status := fiber.StatusBadGateway
	var violation *policy.Violation
	if errors.As(err, &violation) {
		status = fiber.StatusUnprocessableEntity
	}

	return c.Status(status).JSON(ErrorResponse{
		Error:     apperrors.UserMessage(err, errorID),
		ErrorID:   errorID,
		Code:      code,
		Retryable: status == fiber.StatusBadGateway,
	})
}

// SetupRoutes registers all API routes.
func SetupRoutes(app *fiber.App, h *Handlers) {
	app.Get("/health", h.Health)

	v1 := app.Group("/api/v1")
	articles := v1.Group("/articles")
	articles.Post("/generate", h.GenerateArticle)
	articles.Post("/discover", h.DiscoverURLs)
}
