package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// SharedCache marks a response as cacheable by CDNs for sMaxAge seconds and
// allows serving it stale for another swr seconds while revalidating.
func SharedCache(sMaxAge, swr int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("public, s-maxage=%d, stale-while-revalidate=%d", sMaxAge, swr))
		c.Next()
	}
}

// NoStore forbids caching, for responses that depend on the session cookie.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
