package middleware

import (
	"log"
	"strings"

	"splitsub/internal/config"
	"splitsub/internal/pkg/jwt"
	"splitsub/internal/pkg/response"
	"splitsub/internal/pkg/secret"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware validates identity-platform tokens and exposes the member
// id to handlers via locals
func AuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var accessToken string

		authHeader := c.Get("Authorization")
		if authHeader != "" && strings.HasPrefix(authHeader, "Bearer ") {
			accessToken = strings.TrimPrefix(authHeader, "Bearer ")
		}

		if accessToken == "" {
			return response.Unauthorized(c, "Access token required")
		}

		claims, err := jwt.ValidateAccessToken(accessToken, cfg.JWT.Secret)
		if err != nil {
			if err == jwt.ErrTokenExpired {
				return response.Unauthorized(c, "Access token expired")
			}
			return response.Unauthorized(c, "Invalid access token")
		}

		c.Locals("memberID", claims.MemberID)
		c.Locals("role", claims.Role)

		return c.Next()
	}
}

// RoleMiddleware creates role-based authorization middleware
func RoleMiddleware(allowedRoles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals("role").(string)
		if !ok {
			return response.Unauthorized(c, "Unauthorized")
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				return c.Next()
			}
		}

		return response.Forbidden(c, "You don't have permission to access this resource")
	}
}

// AdminOnly middleware allows only ADMIN role (moderation, market data)
func AdminOnly() fiber.Handler {
	return RoleMiddleware("ADMIN")
}

// WebhookKeyMiddleware authenticates the payment gateway by its shared key.
// The key travels in X-Webhook-Key and is checked against a bcrypt hash so
// the plaintext never lives in config. An empty hash disables the check for
// local development.
func WebhookKeyMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.Webhook.KeyHash == "" {
			return c.Next()
		}

		key := c.Get("X-Webhook-Key")
		if key == "" || !secret.Verify(key, cfg.Webhook.KeyHash) {
			// log the fingerprint, never the presented key
			log.Printf("⛔ Webhook key rejected from %s (fingerprint %.12s)", c.IP(), secret.Fingerprint(key))
			return response.Unauthorized(c, "Invalid webhook key")
		}
		return c.Next()
	}
}
