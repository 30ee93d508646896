package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const identityKey contextKey = "auth_identity"

type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role"`
	ProfileID string `json:"profile_id"`
}

type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
}

// JWTMiddleware validates the bearer token and attaches the resolved
// Identity to the request context. Tokens are HMAC-signed; issuer and
// audience are enforced only when configured.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return cfg.Secret, nil
			}, opts...)
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			id, err := identityFromClaims(claims)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			ctx := WithIdentity(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

func identityFromClaims(claims *Claims) (Identity, error) {
	role := Role(claims.Role)
	if !role.Valid() {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "unknown role in token")
	}
	profileID, err := uuid.Parse(claims.ProfileID)
	if err != nil {
		return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "invalid profile_id in token")
	}
	return Identity{
		UserID:    claims.Subject,
		Role:      role,
		ProfileID: profileID,
	}, nil
}

// DevAuthMiddleware is a permissive middleware for development. Requests
// without an Authorization header get a synthetic doctor identity; headers
// of the form "X-Dev-Role: patient" and "X-Dev-Profile: <uuid>" override
// the defaults so both sides of the API can be exercised locally.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := Role(c.Request().Header.Get("X-Dev-Role"))
			if !role.Valid() {
				role = RoleDoctor
			}
			profileID, err := uuid.Parse(c.Request().Header.Get("X-Dev-Profile"))
			if err != nil {
				profileID = uuid.Nil
			}

			ctx := WithIdentity(c.Request().Context(), Identity{
				UserID:    "dev-user",
				Role:      role,
				ProfileID: profileID,
			})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
