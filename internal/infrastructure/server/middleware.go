package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	httpHandlers "github.com/taskmaster/client/internal/adapters/http"
)

// authMiddleware validates JWT tokens
func (s *Server) authMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return httpHandlers.NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header")
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				return httpHandlers.NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization header format")
			}

			claims, err := s.tokens.Validate(tokenString)
			if err != nil {
				s.logger.LogSecurityEvent("invalid_token", "", c.RealIP(), map[string]interface{}{
					"error": err.Error(),
				})
				return httpHandlers.NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token")
			}

			if _, err := s.store.User(claims.UserID); err != nil {
				return httpHandlers.NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Unknown user")
			}

			c.Set(httpHandlers.UserContextKey, claims.UserID)
			return next(c)
		}
	}
}
