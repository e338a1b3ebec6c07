package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	httpUtil "github.com/weerhq/weer/internal/http/util"
)

// LocalsUserID carries the authenticated account id, when any.
const LocalsUserID = "user_id"

// Auth resolves the optional bearer token minted by the external auth layer:
// a signed "<userID>:<token>" pair. Identity management itself (OAuth, email
// verification) lives outside this service; this seam only verifies the
// signature and exposes the account id.
func Auth(signer *httpUtil.TokenSigner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return c.Next()
		}

		raw := strings.TrimPrefix(header, "Bearer ")
		idPart, tokenPart, found := strings.Cut(raw, ":")
		if !found {
			return c.Next()
		}

		userID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			return c.Next()
		}
		if err := signer.Validate(idPart, tokenPart); err != nil {
			return c.Next()
		}

		c.Locals(LocalsUserID, userID)
		return c.Next()
	}
}

// RequireUser aborts with 401 unless Auth resolved an account.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(LocalsUserID) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		return c.Next()
	}
}
