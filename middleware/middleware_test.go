package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"newbusiness/config"
	"newbusiness/models"
	"newbusiness/testutil"
	"newbusiness/utils"
	"newbusiness/webhook"
)

func TestCORSPreflight(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(ConfigForOrigins([]string{"http://dashboard.test"})))
	app.Options("/ping", func(c *fiber.Ctx) error { return c.SendString("options handler") })
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://dashboard.test", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), webhook.HeaderSignature)
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), webhook.HeaderEvent)

	// OPTIONS without a requested method is not a preflight
	req = httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://dashboard.test")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Contains(t, resp.Header.Get("Access-Control-Expose-Headers"), "X-RateLimit-Remaining")

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://evil.test")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))

	// Webhook senders send no Origin
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil), -1)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestConfigForOriginsKeepsDefaultWhenEmpty(t *testing.T) {
	assert.Equal(t, DefaultCORSConfig().AllowedOrigins, ConfigForOrigins(nil).AllowedOrigins)
}

func TestWebhookRateLimiter(t *testing.T) {
	app := fiber.New()
	app.Post("/webhook/:source", WebhookRateLimiter(2, config.RedisConfig{}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhook/agency-crm", nil), -1)
		require.NoError(t, err)
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, codes)

	// Each source has its own budget
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhook/tv-planner", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookRateLimiterDisabled(t *testing.T) {
	app := fiber.New()
	app.Post("/webhook/:source", WebhookRateLimiter(0, config.RedisConfig{}), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/webhook/agency-crm", nil), -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRedisStorageIgnoresEmptyKeys(t *testing.T) {
	store := NewRedisStorage(config.RedisConfig{Address: "127.0.0.1:0"})
	defer store.Close()

	val, err := store.Get("")
	assert.NoError(t, err)
	assert.Nil(t, val)
	assert.NoError(t, store.Set("", []byte("x"), 0))
	assert.NoError(t, store.Delete(""))
}

func TestProtectedAndAdminOnly(t *testing.T) {
	db := testutil.OpenDB(t)
	const secret = "secret"

	admin := &models.User{Username: "admin", Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
	exec := &models.User{Username: "exec", Email: "exec@example.com", Role: models.RoleAccountExecutive, IsActive: true}
	require.NoError(t, db.Create(admin).Error)
	require.NoError(t, db.Create(exec).Error)

	app := fiber.New()
	app.Get("/me", Protected(db, secret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": c.Locals("userID")})
	})
	app.Get("/admin", Protected(db, secret), AdminOnly(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	call := func(path, header, cookie string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if cookie != "" {
			req.AddCookie(&http.Cookie{Name: "access_token", Value: cookie})
		}
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp.StatusCode
	}

	adminToken, err := utils.GenerateJWTToken(admin, secret)
	require.NoError(t, err)
	execToken, err := utils.GenerateJWTToken(exec, secret)
	require.NoError(t, err)
	forged, err := utils.GenerateJWTToken(admin, "other-secret")
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, call("/me", "", ""))
	assert.Equal(t, fiber.StatusUnauthorized, call("/me", "Basic abc", ""))
	assert.Equal(t, fiber.StatusUnauthorized, call("/me", "Bearer "+forged, ""))
	assert.Equal(t, fiber.StatusOK, call("/me", "Bearer "+execToken, ""))
	assert.Equal(t, fiber.StatusOK, call("/me", "", execToken))

	assert.Equal(t, fiber.StatusForbidden, call("/admin", "Bearer "+execToken, ""))
	assert.Equal(t, fiber.StatusOK, call("/admin", "Bearer "+adminToken, ""))
}
