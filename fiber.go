package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// GetSession reads the session a FiberProtectedRoute stored in Locals.
func GetSession(c *fiber.Ctx, key string) (Session, error) {
	raw := c.Locals(key)
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	session, ok := raw.(Session)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}

	return session, nil
}

// GetIdentity reads the re-fetched identity a FiberProtectedRoute stored in
// Locals.
func GetIdentity(c *fiber.Ctx, key string) (Identity, error) {
	raw := c.Locals(key + "_identity")
	if raw == nil {
		return nil, ErrUnableToFindSession
	}

	identity, ok := raw.(Identity)
	if !ok {
		return nil, ErrUnableToDecodeSession
	}

	return identity, nil
}

// FiberProtectedRoute verifies the request token for apps mounting directly
// on fiber instead of the router abstraction. Verification re-fetches the
// identity, so deleted or demoted users are rejected even with a valid
// signature.
func FiberProtectedRoute(auther Authenticator, cfg Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := fiberTokenFromRequest(c, cfg)
		if raw == "" {
			return fiberAuthError(c)
		}

		identity, err := auther.IdentityFromToken(c.UserContext(), raw)
		if err != nil {
			return fiberAuthError(c)
		}

		session, err := auther.SessionFromToken(raw)
		if err != nil {
			return fiberAuthError(c)
		}

		key := cfg.GetContextKey()
		if key == "" {
			key = "user"
		}

		c.Locals(key, session)
		c.Locals(key+"_identity", identity)
		c.Locals(key+"_token", raw)

		return c.Next()
	}
}

// SetFiberSessionCookie writes the token cookie the same way the router
// adapter does.
func SetFiberSessionCookie(c *fiber.Ctx, cfg Config, token string, duration time.Duration) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetContextKey(),
		Value:    token,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearFiberSessionCookie expires the token cookie.
func ClearFiberSessionCookie(c *fiber.Ctx, cfg Config) {
	c.Cookie(&fiber.Cookie{
		Name:     cfg.GetContextKey(),
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func fiberTokenFromRequest(c *fiber.Ctx, cfg Config) string {
	lookup := cfg.GetTokenLookup()
	if lookup == "" {
		lookup = "header:Authorization"
	}

	for _, source := range strings.Split(lookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(source), ":", 2)
		if len(parts) != 2 {
			continue
		}

		var raw string
		switch parts[0] {
		case "header":
			a := c.Get(parts[1])
			scheme := strings.TrimSpace(cfg.GetAuthScheme())
			if scheme == "" {
				scheme = "Bearer"
			}
			l := len(scheme)
			if len(a) > l+1 && strings.EqualFold(a[:l], scheme) {
				raw = strings.TrimSpace(a[l:])
			}
		case "cookie":
			raw = c.Cookies(parts[1])
		case "query":
			raw = c.Query(parts[1])
		}

		if raw != "" {
			return raw
		}
	}

	return ""
}

func fiberAuthError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": ErrInvalidToken.Message,
		"code":  ErrInvalidToken.TextCode,
	})
}
