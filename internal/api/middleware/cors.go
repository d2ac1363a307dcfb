package middleware

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

// CORS allows the configured frontend origins. Extra origins come from the
// ALLOWED_ORIGINS environment variable, comma separated.
func CORS() gin.HandlerFunc {
	allowed := map[string]struct{}{
		"http://localhost:3000":  {},
		"https://localhost:3000": {},
		"http://127.0.0.1:3000":  {},
	}
	if custom := os.Getenv("ALLOWED_ORIGINS"); custom != "" {
		for _, origin := range strings.Split(custom, ",") {
			allowed[strings.TrimSpace(origin)] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if _, ok := allowed[origin]; ok {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
