package middleware

import (
	"net/http"
	"strings"

	"udsp-service/internal/model"
	"udsp-service/pkg/database"
	"udsp-service/pkg/jwtutil"
	"udsp-service/pkg/logger"
	"udsp-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// AuthMiddleware validates the JWT token from the Authorization header and
// loads the acting user. Deactivated accounts are refused even when the
// token is still valid.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Warn("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Warn("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		tokenString := parts[1]

		claims, err := jwtutil.ValidateToken(tokenString)
		if err != nil {
			log.Warn("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// Load the user so role changes and deactivation take effect
		// immediately, not at token expiry
		var user model.User
		if result := database.GetDB().First(&user, claims.UserID); result.Error != nil {
			log.Warn("Token references unknown user", zap.Uint("user_id", claims.UserID))
			prometheus.RecordAuthError("unknown_user")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		if !user.IsActive {
			log.Warn("Deactivated account attempted access", zap.Uint("user_id", user.ID))
			prometheus.RecordAuthError("inactive_account")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account is deactivated"})
		}

		c.Set("user", &user)
		c.Set("user_id", user.ID)

		return next(c)
	}
}

// RequireAdmin allows only users with the admin role past. It must run after
// AuthMiddleware.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, ok := c.Get("user").(*model.User)
		if !ok {
			prometheus.RecordAuthError("missing_identity")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		if !user.IsAdmin() {
			logger.FromContext(c).Warn("Non-admin attempted admin route",
				zap.Uint("user_id", user.ID),
				zap.String("role", user.Role))
			prometheus.RecordAuthError("forbidden_role")
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access required"})
		}

		return next(c)
	}
}

// CurrentUser returns the authenticated user stored by AuthMiddleware
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get("user").(*model.User)
	return user
}
