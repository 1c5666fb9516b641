package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Middleware protects routes with token verification.
type Middleware interface {
	Impersonate(c router.Context, identifier string) error
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// HTTPAuthenticator adapts the Authenticator to a router.
type HTTPAuthenticator interface {
	Middleware
	Login(c router.Context, payload LoginPayload) (*LoginResult, error)
	Logout(c router.Context)
}

type RouteAuthenticator struct {
	auth                   Authenticator
	cfg                    Config
	cookieDuration         time.Duration
	extendedCookieDuration time.Duration
	Logger                 Logger
	ErrorHandler           func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	cookieDuration := time.Duration(DefaultTokenExpiration) * time.Hour
	if cfg.GetTokenExpiration() > 0 {
		cookieDuration = time.Duration(cfg.GetTokenExpiration()) * time.Hour
	}

	extendedCookieDuration := cookieDuration
	if cfg.GetExtendedTokenDuration() > 0 {
		extendedCookieDuration = time.Duration(cfg.GetExtendedTokenDuration()) * time.Hour
	}

	a := &RouteAuthenticator{
		cfg:                    cfg,
		auth:                   auther,
		Logger:                 defLogger{},
		cookieDuration:         cookieDuration,
		extendedCookieDuration: extendedCookieDuration,
	}

	a.ErrorHandler = a.defaultErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetCookieDuration() time.Duration {
	return a.cookieDuration
}

func (a RouteAuthenticator) GetExtendedCookieDuration() time.Duration {
	return a.extendedCookieDuration
}

// ProtectedRoute verifies the request token and re-fetches the current
// identity before letting the handler run. The verified session lands in
// Locals under the configured context key; the identity goes into the
// request context.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			raw := TokenFromRequest(c, cfg)
			if raw == "" {
				return errorHandler(c, ErrUnableToFindSession)
			}

			identity, err := a.auth.IdentityFromToken(c.Context(), raw)
			if err != nil {
				return errorHandler(c, err)
			}

			session, err := a.auth.SessionFromToken(raw)
			if err != nil {
				return errorHandler(c, err)
			}

			c.Locals(a.contextKey(cfg), session)
			c.Locals(a.contextKey(cfg)+"_identity", identity)
			c.Locals(a.contextKey(cfg)+"_token", raw)

			return hf(c)
		}
	}
}

// TokenFromRequest extracts the raw token following the configured lookup,
// e.g. "header:Authorization,cookie:auth_token". Header lookups strip the
// configured auth scheme prefix.
func TokenFromRequest(c router.Context, cfg Config) string {
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
			a := c.GetString(parts[1], "")
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
			raw = c.Query(parts[1], "")
		}

		if raw != "" {
			return raw
		}
	}

	return ""
}

// GetRouterSession returns the session a ProtectedRoute stored for this request.
func GetRouterSession(c router.Context, key string) (Session, error) {
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

// GetRouterIdentity returns the re-fetched identity a ProtectedRoute stored
// for this request.
func GetRouterIdentity(c router.Context, key string) (Identity, error) {
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

// Login authenticates the payload and sets the session cookie. The token is
// returned so API callers can also carry it in a header.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) (*LoginResult, error) {
	result, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %v", err)
		return nil, err
	}

	duration := a.cookieDuration
	if payload.GetExtendedSession() {
		duration = a.extendedCookieDuration
	}

	a.setCookieToken(ctx, result.Token, duration)
	return result, nil
}

// Logout clears the session cookie. There is no server-side session state to
// tear down; the response is an acknowledgment.
func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
}

func (a *RouteAuthenticator) Impersonate(c router.Context, identifier string) error {
	token, err := a.auth.Impersonate(c.Context(), identifier)
	if err != nil {
		a.Logger.Error("Impersonate authentication error: %v", err)
		return err
	}

	a.setCookieToken(c, token, a.cookieDuration)
	return nil
}

// MakeClientRouteAuthErrorHandler builds the handler ProtectedRoute uses when
// verification fails. Optional routes let requests without a token through.
func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		if optional && (errors.Is(err, ErrUnableToFindSession) || IsMalformedError(err)) {
			return ctx.Next()
		}
		return a.ErrorHandler(ctx, err)
	}
}

func (a *RouteAuthenticator) contextKey(cfg Config) string {
	key := cfg.GetContextKey()
	if key == "" {
		key = a.cfg.GetContextKey()
	}
	if key == "" {
		key = "user"
	}
	return key
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     a.cfg.GetContextKey(),
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	status := richErr.Code
	if status == 0 {
		status = http.StatusUnauthorized
	}

	return c.JSON(status, map[string]any{
		"error": ErrInvalidToken.Message,
		"code":  ErrInvalidToken.TextCode,
	})
}

var _ HTTPAuthenticator = (*RouteAuthenticator)(nil)
