package mw

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const userKey = "courtwatch.user"

// User reads the caller identity from header and stores it on the context.
// Requests without it are rejected.
func User(header string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(header))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": header + " header is required"})
			return
		}
		c.Set(userKey, id)
		c.Next()
	}
}

// UserID returns the identity stored by User.
func UserID(c *gin.Context) string {
	return c.GetString(userKey)
}
