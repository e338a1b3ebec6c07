package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/weerhq/weer/internal/app/model"
	"github.com/weerhq/weer/internal/app/repository"
	httpUtil "github.com/weerhq/weer/internal/http/util"
	"go.uber.org/zap"
)

const (
	SessionCookie = "weer_session"

	// LocalsSessionID carries the resolved anonymous session id, when any.
	LocalsSessionID = "session_id"

	sessionTTL = 30 * 24 * time.Hour
)

// Session resolves or creates an anonymous session for requests without an
// authenticated user. The cookie value is a signed token validated before the
// store is consulted; forged cookies never reach Postgres. Failures fail
// open: a request without a resolvable session just has no owner.
func Session(store repository.Store, signer *httpUtil.TokenSigner, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		if token := c.Cookies(SessionCookie); token != "" {
			if err := signer.Validate("session", token); err == nil {
				session, err := store.Sessions().GetByToken(ctx, token)
				if err == nil {
					c.Locals(LocalsSessionID, session.ID)
					_ = store.Sessions().Touch(ctx, session.ID, time.Now())
					return c.Next()
				}
				if !errors.Is(err, repository.ErrSessionNotFound) {
					logger.Error("session lookup failed", zap.Error(err))
					return c.Next()
				}
			}
		}

		token, err := signer.Issue("session")
		if err != nil {
			logger.Error("failed to issue session token", zap.Error(err))
			return c.Next()
		}

		now := time.Now()
		session := &model.Session{
			SessionToken: token,
			LastActive:   now,
			ExpiresAt:    now.Add(sessionTTL),
		}
		if err := store.Sessions().Create(ctx, session); err != nil {
			logger.Error("failed to create session", zap.Error(err))
			return c.Next()
		}

		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    token,
			Expires:  session.ExpiresAt,
			HTTPOnly: true,
			SameSite: "Lax",
		})
		c.Locals(LocalsSessionID, session.ID)
		return c.Next()
	}
}
