package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
	"github.com/weerhq/weer/internal/app/service"
	"github.com/weerhq/weer/internal/http/middleware"
	"go.uber.org/zap"
)

// QRRenderer turns a payload URL into an encoded QR image.
type QRRenderer func(payload string) ([]byte, error)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
	Domain      string
	QRRenderer  QRRenderer
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
	domain      string
	qrRenderer  QRRenderer
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
		domain:      deps.Domain,
		qrRenderer:  deps.QRRenderer,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:id", h.GetLink)
			links.Get("/:id/qr", h.GetLinkQR)
			links.Patch("/:id/space", h.ChangeSpace)
			links.Delete("/:id", h.DeleteLink)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	URL        string `json:"url" validate:"required,url"`
	Space      string `json:"space,omitempty" validate:"omitempty,oneof=classic ultra digit custom affix"`
	CustomCode string `json:"custom_code,omitempty"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	ID        int64      `json:"id"`
	URL       string     `json:"url"`
	Code      string     `json:"code,omitempty"`
	CodeSpace string     `json:"code_space"`
	ShortURL  string     `json:"short_url,omitempty"`
	QRCodeID  string     `json:"qr_code_id"`
	Views     int64      `json:"views"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url is required",
		})
	}

	space := codes.Space(req.Space)
	if space == "" {
		space = codes.SpaceClassic
	}
	if (space == codes.SpaceCustom || space == codes.SpaceAffix) && req.CustomCode == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "custom_code is required for the requested space",
		})
	}

	owner := requestOwner(c)
	if space == codes.SpaceAffix && owner.UserID == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "username links require an authenticated account",
		})
	}

	ctx := requestContext(c)
	result, err := h.linkService.Shorten(ctx, service.ShortenInput{
		URL:        req.URL,
		Space:      space,
		CustomCode: req.CustomCode,
		Owner:      owner,
	})
	if err != nil {
		return h.renderServiceError(c, err, "failed to create link")
	}

	return c.Status(fiber.StatusCreated).JSON(h.linkResponse(result.Link, result.Code, result.ExpiresAt))
}

// ListLinks handles GET /api/links
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	limit := 20
	offset := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed := c.QueryInt("offset"); parsed >= 0 {
			offset = parsed
		}
	}

	ctx := requestContext(c)
	links, err := h.linkService.List(ctx, requestOwner(c), limit, offset)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.linkResponse(&links[i], derefCode(links[i].Code), nil)
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  limit,
		"offset": offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	link, loadErr := h.loadOwnedLink(c)
	if loadErr != nil {
		return c.Status(loadErr.StatusCode).JSON(fiber.Map{"error": loadErr.Message})
	}
	return c.JSON(h.linkResponse(link, derefCode(link.Code), nil))
}

// GetLinkQR handles GET /api/links/:id/qr and serves the encoded image for
// the link's immutable QR payload URL.
func (h *APIHandler) GetLinkQR(c *fiber.Ctx) error {
	link, loadErr := h.loadOwnedLink(c)
	if loadErr != nil {
		return c.Status(loadErr.StatusCode).JSON(fiber.Map{"error": loadErr.Message})
	}

	payload := fmt.Sprintf("https://%s/q/%s", h.domain, link.QRCodeID)
	img, renderErr := h.qrRenderer(payload)
	if renderErr != nil {
		h.logger.Error("failed to render qr image", zap.Error(renderErr), zap.Int64("link_id", link.ID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render qr image",
		})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(img)
}

// ChangeSpaceRequest represents the request body for moving a link between
// code spaces.
type ChangeSpaceRequest struct {
	Space      string `json:"space" validate:"required,oneof=classic ultra digit custom affix"`
	CustomCode string `json:"custom_code,omitempty"`
}

// ChangeSpace handles PATCH /api/links/:id/space
func (h *APIHandler) ChangeSpace(c *fiber.Ctx) error {
	link, loadErr := h.loadOwnedLink(c)
	if loadErr != nil {
		return c.Status(loadErr.StatusCode).JSON(fiber.Map{"error": loadErr.Message})
	}

	var req ChangeSpaceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Space == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "space is required",
		})
	}

	space := codes.Space(req.Space)
	if space == codes.SpaceAffix && c.Locals(middleware.LocalsUserID) == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "username links require an authenticated account",
		})
	}

	ctx := requestContext(c)
	result, svcErr := h.linkService.ChangeSpace(ctx, link.ID, space, req.CustomCode)
	if svcErr != nil {
		return h.renderServiceError(c, svcErr, "failed to change code space")
	}

	return c.JSON(h.linkResponse(result.Link, result.Code, result.ExpiresAt))
}

// DeleteLink handles DELETE /api/links/:id
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	link, loadErr := h.loadOwnedLink(c)
	if loadErr != nil {
		return c.Status(loadErr.StatusCode).JSON(fiber.Map{"error": loadErr.Message})
	}

	ctx := requestContext(c)
	if err := h.linkService.Delete(ctx, link.ID); err != nil {
		h.logger.Error("failed to delete link", zap.Error(err), zap.Int64("link_id", link.ID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete link",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type linkLoadError struct {
	StatusCode int
	Message    string
}

// loadOwnedLink resolves the :id parameter and enforces that the requester
// owns the link. Unowned and foreign links both read as not found.
func (h *APIHandler) loadOwnedLink(c *fiber.Ctx) (*model.Link, *linkLoadError) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return nil, &linkLoadError{StatusCode: fiber.StatusBadRequest, Message: "invalid link id"}
	}

	ctx := requestContext(c)
	link, err := h.linkService.Get(ctx, int64(id))
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return nil, &linkLoadError{StatusCode: fiber.StatusNotFound, Message: "link not found"}
		}
		h.logger.Error("failed to load link", zap.Error(err), zap.Int("link_id", id))
		return nil, &linkLoadError{StatusCode: fiber.StatusInternalServerError, Message: "internal server error"}
	}

	if !ownerMatches(link, requestOwner(c)) {
		return nil, &linkLoadError{StatusCode: fiber.StatusNotFound, Message: "link not found"}
	}
	return link, nil
}

func (h *APIHandler) linkResponse(link *model.Link, code string, expiresAt *time.Time) LinkResponse {
	resp := LinkResponse{
		ID:        link.ID,
		URL:       link.URL,
		Code:      code,
		CodeSpace: link.CodeSpace,
		QRCodeID:  link.QRCodeID,
		Views:     link.Views,
		ExpiresAt: expiresAt,
		CreatedAt: link.CreatedAt,
	}
	if code != "" {
		resp.ShortURL = fmt.Sprintf("https://%s/%s", h.domain, code)
	}
	return resp
}

// renderServiceError maps allocation engine errors onto HTTP statuses.
// Exhaustion and temporary unavailability surface as 503 so clients retry
// later instead of treating the failure as permanent.
func (h *APIHandler) renderServiceError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, service.ErrInvalidURL),
		errors.Is(err, service.ErrCustomCodeInvalid),
		errors.Is(err, service.ErrUnknownCodeSpace):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrCustomCodeTaken),
		errors.Is(err, service.ErrSlotAlreadyHeld),
		errors.Is(err, service.ErrLeaseAlreadyHeld):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, service.ErrPoolExhausted),
		errors.Is(err, service.ErrPoolTemporarilyUnavailable),
		errors.Is(err, service.ErrCodeSpaceExhausted):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, repository.ErrLinkNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	default:
		h.logger.Error(fallback, zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fallback,
		})
	}
}

// requestOwner reads the identity middleware results: an authenticated user
// wins over the anonymous session.
func requestOwner(c *fiber.Ctx) service.Owner {
	if userID, ok := c.Locals(middleware.LocalsUserID).(int64); ok {
		return service.Owner{UserID: &userID}
	}
	if sessionID, ok := c.Locals(middleware.LocalsSessionID).(int64); ok {
		return service.Owner{SessionID: &sessionID}
	}
	return service.Owner{}
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func derefCode(code *string) string {
	if code == nil {
		return ""
	}
	return *code
}

func ownerMatches(link *model.Link, owner service.Owner) bool {
	if link.UserID != nil {
		return owner.UserID != nil && *owner.UserID == *link.UserID
	}
	if link.SessionID != nil {
		return owner.SessionID != nil && *owner.SessionID == *link.SessionID
	}
	return false
}
