package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"newbusiness/webhook"
)

// CORSConfig controls cross-origin access to the operator API.
type CORSConfig struct {
	// AllowedOrigins empty means any origin, without credentials
	AllowedOrigins   []string
	AllowCredentials bool
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string

	// MaxAge is the preflight cache lifetime in seconds
	MaxAge int
}

// DefaultCORSConfig allows the local dashboard. The webhook headers are
// allowed so the dashboard can replay signed payloads, and the limiter
// headers are exposed so it can back off.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
		AllowedMethods: []string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPut,
			fiber.MethodDelete,
			fiber.MethodPatch,
			fiber.MethodOptions,
		},
		AllowedHeaders: []string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			fiber.HeaderAuthorization,
			webhook.HeaderEvent,
			webhook.HeaderSignature,
		},
		ExposedHeaders: []string{
			fiber.HeaderContentLength,
			fiber.HeaderRetryAfter,
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
		},
		MaxAge: 3600,
	}
}

// ConfigForOrigins is DefaultCORSConfig restricted to origins. An empty
// list keeps the default origin.
func ConfigForOrigins(origins []string) CORSConfig {
	cfg := DefaultCORSConfig()
	if len(origins) > 0 {
		cfg.AllowedOrigins = origins
	}
	return cfg
}

// CORS answers preflight requests and sets the allow headers on the rest.
func CORS(config ...CORSConfig) fiber.Handler {
	cfg := DefaultCORSConfig()
	if len(config) > 0 {
		cfg = config[0]
	}

	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = true
	}
	anyOrigin := len(allowed) == 0

	methods := strings.Join(cfg.AllowedMethods, ",")
	headers := strings.Join(cfg.AllowedHeaders, ",")
	exposed := strings.Join(cfg.ExposedHeaders, ",")
	maxAge := strconv.Itoa(cfg.MaxAge)

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		c.Vary(fiber.HeaderOrigin)

		switch {
		case origin == "":
			// Server-to-server calls, including inbound webhooks
		case anyOrigin:
			c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		case allowed[origin]:
			c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
			if cfg.AllowCredentials {
				c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
			}
		}

		if c.Method() != fiber.MethodOptions || c.Get(fiber.HeaderAccessControlRequestMethod) == "" {
			if exposed != "" && origin != "" {
				c.Set(fiber.HeaderAccessControlExposeHeaders, exposed)
			}
			return c.Next()
		}

		c.Set(fiber.HeaderAccessControlAllowMethods, methods)
		c.Set(fiber.HeaderAccessControlAllowHeaders, headers)
		c.Set(fiber.HeaderAccessControlMaxAge, maxAge)
		return c.SendStatus(fiber.StatusNoContent)
	}
}
