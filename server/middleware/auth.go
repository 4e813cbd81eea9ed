// Package middleware holds the echo middleware shared by all API routes.
package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UserIDContextKey is where the authenticated user id lands on the echo
// context.
const UserIDContextKey = "user-id"

type claims struct {
	jwt.RegisteredClaims
}

// JWTAuth validates the bearer token and stashes the subject as the user id.
// With an empty secret, authentication is disabled and requests run as the
// anonymous dev user; useful for local single-user setups.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				c.Set(UserIDContextKey, "dev")
				return next(c)
			}

			authorization := c.Request().Header.Get(echo.HeaderAuthorization)
			token, ok := strings.CutPrefix(authorization, "Bearer ")
			if !ok || token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
			}

			parsed, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !parsed.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			subject, err := parsed.Claims.GetSubject()
			if err != nil || subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
			}
			c.Set(UserIDContextKey, subject)
			return next(c)
		}
	}
}

// UserID reads the authenticated user id from the echo context.
func UserID(c echo.Context) string {
	if id, ok := c.Get(UserIDContextKey).(string); ok {
		return id
	}
	return ""
}
