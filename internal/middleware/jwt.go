package middleware

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/common"
	"storefront/internal/logger"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

// Claims is the access token issued by the identity provider.
type Claims struct {
	jwt.RegisteredClaims
	Permissions []string `json:"permissions"`
}

// AuthConfig controls how bearer tokens are verified.
type AuthConfig struct {
	KeyFunc  jwt.Keyfunc
	Audience string
	Issuer   string
}

// NewJWKS fetches the provider's signing keys and refreshes them in the
// background. Call EndBackground on shutdown.
func NewJWKS(url string, log *logger.Logger) (*keyfunc.JWKS, error) {
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
		RefreshErrorHandler: func(err error) {
			log.Warn("jwks refresh failed", "url", url, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load jwks from %s: %w", url, err)
	}
	return jwks, nil
}

// JWTAuth rejects requests without a valid bearer token and stores the
// token's subject and permissions in the request context.
func JWTAuth(cfg AuthConfig) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc: parseToken(cfg),
		SuccessHandler: storePrincipal,
		ErrorHandler: func(c echo.Context, err error) error {
			return common.SendUnauthorizedError(c)
		},
	})
}

// OptionalJWTAuth lets anonymous requests through. A valid token still
// populates the principal so public endpoints can recognise staff callers.
func OptionalJWTAuth(cfg AuthConfig) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ParseTokenFunc:         parseToken(cfg),
		SuccessHandler:         storePrincipal,
		ContinueOnIgnoredError: true,
		ErrorHandler: func(c echo.Context, err error) error {
			return nil
		},
	})
}

// StaticPrincipal grants every request the given permissions. Only used when
// no identity provider is configured outside production.
func StaticPrincipal(subject string, permissions []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := common.WithPrincipal(c.Request().Context(), subject, permissions)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func parseToken(cfg AuthConfig) func(c echo.Context, auth string) (interface{}, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256"})}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	return func(c echo.Context, auth string) (interface{}, error) {
		token, err := jwt.ParseWithClaims(auth, &Claims{}, cfg.KeyFunc, opts...)
		if err != nil {
			return nil, err
		}
		if !token.Valid {
			return nil, errors.New("invalid token")
		}
		return token, nil
	}
}

func storePrincipal(c echo.Context) {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok {
		return
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return
	}
	ctx := common.WithPrincipal(c.Request().Context(), claims.Subject, claims.Permissions)
	c.SetRequest(c.Request().WithContext(ctx))
}
