package middleware

import (
	"net/http"
	"strings"

	"github.com/Kwazak/umnfestival2026-sub001/internal/service"

	"github.com/labstack/echo/v4"
)

const AccountIDKey = "account_id"

// SessionAuth parses the checkout session credential from the Authorization
// header and injects the bound account ID into the request context.
func SessionAuth(identity service.IdentityService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			credential, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || credential == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing session credential")
			}

			accountID, err := identity.ParseCredential(credential)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid session credential")
			}

			c.Set(AccountIDKey, accountID)
			return next(c)
		}
	}
}

// AccountID reads the account bound to the current session.
func AccountID(c echo.Context) (uint, bool) {
	id, ok := c.Get(AccountIDKey).(uint)
	return id, ok
}
