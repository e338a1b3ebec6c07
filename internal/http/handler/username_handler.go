package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/weerhq/weer/internal/app/service"
	"github.com/weerhq/weer/internal/http/middleware"
	"go.uber.org/zap"
)

// UsernameDeps groups dependencies required by username handlers.
type UsernameDeps struct {
	Logger    *zap.Logger
	Usernames *service.UsernameService
}

// UsernameHandler implements the username rotation endpoints.
type UsernameHandler struct {
	logger    *zap.Logger
	usernames *service.UsernameService
}

// NewUsernameHandler creates a username handler with the provided dependencies.
func NewUsernameHandler(deps UsernameDeps) *UsernameHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UsernameHandler{
		logger:    logger,
		usernames: deps.Usernames,
	}
}

// Register wires username routes onto the provided router. Everything but
// the availability probe requires an authenticated account.
func (h *UsernameHandler) Register(router fiber.Router) {
	usernames := router.Group("/api/usernames")
	{
		usernames.Get("/availability", h.CheckAvailability)
		usernames.Put("/active", middleware.RequireUser(), h.SetActive)
		usernames.Post("/switch", middleware.RequireUser(), h.SwitchActive)
	}
}

// CheckAvailability handles GET /api/usernames/availability?name=
func (h *UsernameHandler) CheckAvailability(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	available, err := h.usernames.IsAvailable(requestContext(c), name)
	if err != nil {
		h.logger.Error("failed to check username availability", zap.Error(err), zap.String("name", name))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to check availability",
		})
	}

	return c.JSON(fiber.Map{
		"name":      name,
		"available": available,
	})
}

// SetUsernameRequest represents the request body for claiming a username.
type SetUsernameRequest struct {
	Username string `json:"username" validate:"required,min=1,max=64"`
}

// SetActive handles PUT /api/usernames/active
func (h *UsernameHandler) SetActive(c *fiber.Ctx) error {
	var req SetUsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	userID := c.Locals(middleware.LocalsUserID).(int64)
	if err := h.usernames.SetActive(requestContext(c), userID, req.Username); err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to set username", zap.Error(err), zap.Int64("user_id", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to set username",
		})
	}

	return c.JSON(fiber.Map{
		"username": req.Username,
		"active":   true,
	})
}

// SwitchActive handles POST /api/usernames/switch
func (h *UsernameHandler) SwitchActive(c *fiber.Ctx) error {
	var req SetUsernameRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if req.Username == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username is required",
		})
	}

	userID := c.Locals(middleware.LocalsUserID).(int64)
	if err := h.usernames.SwitchActive(requestContext(c), userID, req.Username); err != nil {
		if errors.Is(err, service.ErrUsernameNotSwitchable) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to switch username", zap.Error(err), zap.Int64("user_id", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to switch username",
		})
	}

	return c.JSON(fiber.Map{
		"username": req.Username,
		"active":   true,
	})
}
