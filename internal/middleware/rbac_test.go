package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func roleApp(role string, allowed ...string) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	})
	app.Use(RequireRole(allowed...))
	app.Get("/staff", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func requireStatus(t *testing.T, app *fiber.App, want int) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/staff", nil))
	require.NoError(t, err)
	require.Equal(t, want, resp.StatusCode)
}

func TestRequireRoleAllowsAuthorizedRoles(t *testing.T) {
	requireStatus(t, roleApp("admin", "admin", "teacher"), fiber.StatusOK)
	requireStatus(t, roleApp("teacher", "admin", "teacher"), fiber.StatusOK)
}

func TestRequireRoleNormalizesCase(t *testing.T) {
	requireStatus(t, roleApp("Teacher", "teacher"), fiber.StatusOK)
}

func TestRequireRoleRejectsUnauthorizedRoles(t *testing.T) {
	requireStatus(t, roleApp("student", "admin", "teacher"), fiber.StatusForbidden)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	requireStatus(t, roleApp("", "admin"), fiber.StatusForbidden)
}
