package api

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// ──────────────────────────────────────────────────────────────────
// Scoped Bearer Token Authentication
//
// Two tokens, two access levels. API_AUTH_TOKEN unlocks everything,
// including the generation-cost routes (session creation, seed
// sweeps, board actions). API_READ_TOKEN optionally grants a
// read-only view — snapshots and settings — for dashboards that
// should never be able to burn solver time.
//
// If API_AUTH_TOKEN is unset, all requests are allowed (dev mode).
// Public endpoints (WebSocket streams, health, results listing, sweep
// progress) skip auth entirely.
// ──────────────────────────────────────────────────────────────────

// Scope is the access level a route group demands.
type Scope int

const (
	// ScopeRead covers session snapshots and settings reads.
	ScopeRead Scope = iota
	// ScopeMutate covers board actions, session creation, sweeps, and
	// settings writes.
	ScopeMutate
)

// RequireAuth returns a Gin middleware enforcing the given scope.
// WARNING: In GIN_MODE=release, leaving API_AUTH_TOKEN unset exposes all
// protected routes to the public internet. Always set a strong token in prod.
func RequireAuth(scope Scope) gin.HandlerFunc {
	full := os.Getenv("API_AUTH_TOKEN")
	readOnly := os.Getenv("API_READ_TOKEN")

	// Fail loudly in production if auth is not configured.
	if full == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] API_AUTH_TOKEN is not set in release mode. " +
			"All protected endpoints are publicly accessible. " +
			"Set API_AUTH_TOKEN in your environment to enforce authentication.")
	}

	return func(c *gin.Context) {
		// No full token configured: everything is open (development mode).
		if full == "" {
			c.Next()
			return
		}

		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed Authorization header",
				"hint":  "Use: Authorization: Bearer <token>",
			})
			c.Abort()
			return
		}

		// Constant-time comparisons prevent timing-based token enumeration.
		if subtle.ConstantTimeCompare([]byte(token), []byte(full)) == 1 {
			c.Next()
			return
		}
		if readOnly != "" && subtle.ConstantTimeCompare([]byte(token), []byte(readOnly)) == 1 {
			if scope == ScopeRead {
				c.Next()
				return
			}
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Read-only token cannot access generation or board-action routes",
			})
			c.Abort()
			return
		}

		c.JSON(http.StatusForbidden, gin.H{
			"error": "Invalid or expired token",
		})
		c.Abort()
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <t>" header.
func bearerToken(c *gin.Context) (string, bool) {
	auth := c.GetHeader("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
