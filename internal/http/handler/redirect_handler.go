package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/weerhq/weer/internal/app/codes"
	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
	"github.com/weerhq/weer/internal/app/service"
	"github.com/weerhq/weer/internal/http/view"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by redirect handlers.
type RedirectDeps struct {
	Logger         *zap.Logger
	LinkService    service.LinkService
	VisitPublisher *service.VisitPublisher
	Domain         string
}

// RedirectHandler implements the public resolution surface: every short code
// shape plus the QR fetch path.
type RedirectHandler struct {
	logger         *zap.Logger
	linkService    service.LinkService
	visitPublisher *service.VisitPublisher
	domain         string
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:         logger,
		linkService:    deps.LinkService,
		visitPublisher: deps.VisitPublisher,
		domain:         deps.Domain,
	}
}

// Register wires redirect routes onto the provided router. The catch-all
// code route goes last so the fixed prefixes win.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/q/:qrID", h.ResolveQR)
	router.Get("/:code", h.Resolve)
	router.Get("/:username/:code", h.ResolveAffix)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "weer",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:code for every bare code shape.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	return h.resolveAndRedirect(c, c.Params("code"), codes.PathContext{})
}

// ResolveAffix handles GET /:username/:code.
func (h *RedirectHandler) ResolveAffix(c *fiber.Ctx) error {
	return h.resolveAndRedirect(c, c.Params("code"), codes.PathContext{
		Username: c.Params("username"),
	})
}

// ResolveQR handles GET /q/:qrID, the payload URL embedded in QR images.
func (h *RedirectHandler) ResolveQR(c *fiber.Ctx) error {
	return h.resolveAndRedirect(c, c.Params("qrID"), codes.PathContext{QRPath: true})
}

func (h *RedirectHandler) resolveAndRedirect(c *fiber.Ctx, raw string, pathCtx codes.PathContext) error {
	if raw == "" {
		return h.renderNotFound(c)
	}

	ctx := requestContext(c)
	link, err := h.linkService.Resolve(ctx, raw, pathCtx)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return h.renderNotFound(c)
		}
		h.logger.Error("failed to resolve code", zap.Error(err), zap.String("code", raw))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if h.visitPublisher != nil {
		go h.publishVisit(link, raw, c.IP(), c.Get("User-Agent"))
	}

	h.logger.Debug("redirecting short link", zap.String("code", raw), zap.String("target", link.URL))
	return c.Redirect(link.URL, fiber.StatusFound)
}

func (h *RedirectHandler) renderNotFound(c *fiber.Ctx) error {
	html, err := view.RenderNotFoundPage(view.NotFoundPageData{Domain: h.domain})
	if err != nil {
		h.logger.Error("failed to render not-found page", zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "link not found",
		})
	}
	return c.Status(fiber.StatusNotFound).
		Type("html", "utf-8").
		SendString(html)
}

func (h *RedirectHandler) publishVisit(link *model.Link, code, ip, userAgent string) {
	if err := h.visitPublisher.Publish(link.ID, code, link.CodeSpace, ip, userAgent); err != nil {
		h.logger.Error("failed to publish visit event", zap.Error(err), zap.Int64("link_id", link.ID))
	}
}
