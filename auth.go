package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"spendocr/pkg/auth"
)

const ownerKey = "owner"

// jwtAuthMiddleware verifies the bearer token and records its subject as the
// owner of whatever the request creates. Without a configured secret every
// request passes anonymously.
func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(jwtSecret) == 0 {
			c.Next()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") || len(authHeader) < 8 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		owner, err := auth.Verify(jwtSecret, authHeader[7:])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			c.Abort()
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

// ownerFromContext returns the authenticated subject, or "" when auth is off.
func ownerFromContext(c *gin.Context) string {
	return c.GetString(ownerKey)
}
