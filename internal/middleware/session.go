package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/quizspin-backend/internal/model"
	"github.com/stemsi/quizspin-backend/internal/service"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "quizspin_session"

const (
	// ContextKeySession is the Gin context key for the decoded SessionState.
	ContextKeySession = "session"
	// ContextKeySessionStatus is the Gin context key for the decode status.
	ContextKeySessionStatus = "session_status"
)

// CookieConfig holds the attributes of the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// LoadSession decodes the session cookie into the request context. A missing
// or invalid cookie yields the default session; an invalid one is deleted
// from the browser so it is not presented again.
func LoadSession(store *service.SessionStore, cookie CookieConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookie.Name)
		state, status := store.Read(token)
		if status == service.DecodeInvalid {
			WriteCarrier(c, cookie, store.Clear())
		}

		c.Set(ContextKeySession, state)
		c.Set(ContextKeySessionStatus, status)
		c.Next()
	}
}

// GetSession extracts the decoded session from the Gin context, falling back
// to the default session when LoadSession did not run.
func GetSession(c *gin.Context) model.SessionState {
	val, exists := c.Get(ContextKeySession)
	if !exists {
		return model.DefaultSession()
	}
	state, ok := val.(model.SessionState)
	if !ok {
		return model.DefaultSession()
	}
	return state.Clone()
}

// GetSessionStatus returns how the request's session cookie decoded.
func GetSessionStatus(c *gin.Context) service.DecodeStatus {
	val, _ := c.Get(ContextKeySessionStatus)
	status, ok := val.(service.DecodeStatus)
	if !ok {
		return service.DecodeAbsent
	}
	return status
}

// WriteCarrier applies a carrier instruction as a Set-Cookie header.
func WriteCarrier(c *gin.Context, cookie CookieConfig, carrier service.Carrier) {
	maxAge := int(carrier.MaxAge.Seconds())
	if carrier.Remove() {
		maxAge = -1
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookie.Name, carrier.Token, maxAge, "/", "", cookie.Secure, true)
}
