package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/julienbutty/prometrage-sub001/internal/auth"
	"github.com/julienbutty/prometrage-sub001/internal/http/response"
)

const (
	PasswordHeader = "X-App-Password"
	sessionKey     = "session"
)

// Auth accepts either the shared password header or a bearer token issued by
// /auth/login.
func Auth(manager *auth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if password := c.GetHeader(PasswordHeader); password != "" {
			if err := manager.CheckPassword(password); err != nil {
				response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid password", nil)
				return
			}
			c.Set(sessionKey, auth.Session{})
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "authentication required", nil)
			return
		}
		session, err := manager.Parse(strings.TrimSpace(token))
		if err != nil {
			response.Fail(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token", nil)
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

func SessionFrom(c *gin.Context) (auth.Session, bool) {
	value, ok := c.Get(sessionKey)
	if !ok {
		return auth.Session{}, false
	}
	session, ok := value.(auth.Session)
	return session, ok
}
