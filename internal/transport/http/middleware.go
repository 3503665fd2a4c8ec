package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"quizzly-service/internal/domain"
)

// parentIDKey holds the authenticated parent id in the gin context.
const parentIDKey = "parent_id"

// Authenticator resolves a bearer token to a parent id.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("request")
			return
		}
		entry.Info("request")
	}
}

func requireAuth(auth Authenticator, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			writeError(c, log, domain.ErrInvalidToken)
			return
		}
		id, err := auth.Authenticate(token)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.Set(parentIDKey, id)
		c.Next()
	}
}

// optionalAuth records the caller's identity when a valid token is present
// and lets anonymous requests through otherwise.
func optionalAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if id, err := auth.Authenticate(token); err == nil {
				c.Set(parentIDKey, id)
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func parentID(c *gin.Context) string {
	return c.GetString(parentIDKey)
}
