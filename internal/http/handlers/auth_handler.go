// Google OAuth consent handlers.
//
//   - GET /auth/google            (redirect to the consent screen)
//   - GET /auth/google/callback   (exchange the code and store the token)
//   - GET /auth/status            (whether calendar credentials are available)
//
// The state parameter is a random UUID mirrored in a short-lived HttpOnly
// cookie and compared on callback.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-meeting-bot/internal/calendar"
	"github.com/tbourn/go-meeting-bot/internal/http/middleware"
)

const (
	stateCookie    = "oauth_state"
	stateCookieTTL = 10 * time.Minute
)

// AuthStatusResponse reports the calendar credential state.
type AuthStatusResponse struct {
	Configured bool       `json:"configured"`
	Authorized bool       `json:"authorized"`
	Source     string     `json:"source,omitempty"` // env | stored
	Expiry     *time.Time `json:"expiry,omitempty"`
}

// StartGoogleAuth redirects to the Google consent screen.
func (h *Handlers) StartGoogleAuth(c *gin.Context) {
	if h.Consent == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "google calendar is not configured")
		return
	}
	state := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateCookieTTL.Seconds()), "/auth", "", h.SecureCookies, true)
	c.Redirect(http.StatusFound, h.Consent.AuthURL(state))
}

// GoogleAuthCallback completes the consent flow.
func (h *Handlers) GoogleAuthCallback(c *gin.Context) {
	if h.Consent == nil || h.Tokens == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "google calendar is not configured")
		return
	}
	if e := c.Query("error"); e != "" {
		fail(c, http.StatusBadRequest, ErrCodeOAuthFailed, "authorization denied: "+e)
		return
	}
	want, err := c.Cookie(stateCookie)
	if err != nil || want == "" || c.Query("state") != want {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid oauth state")
		return
	}
	c.SetCookie(stateCookie, "", -1, "/auth", "", h.SecureCookies, true)

	ctx := c.Request.Context()
	tok, err := h.Consent.Exchange(ctx, c.Query("code"))
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("oauth code exchange failed")
		fail(c, http.StatusBadGateway, ErrCodeOAuthFailed, "could not exchange authorization code")
		return
	}
	if strings.TrimSpace(tok.RefreshToken) == "" {
		middleware.LoggerFrom(c).Warn().Msg("consent returned no refresh token")
	}
	if err := h.Tokens.SaveCalendarToken(ctx, calendar.FromOAuthToken(tok)); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not store calendar token")
		return
	}
	middleware.LoggerFrom(c).Info().Msg("google calendar authorized")
	ok(c, http.StatusOK, gin.H{"status": "authorized"})
}

// AuthStatus reports whether calendar credentials are available.
func (h *Handlers) AuthStatus(c *gin.Context) {
	resp := AuthStatusResponse{Configured: h.Consent != nil}
	switch {
	case h.StaticToken:
		resp.Authorized, resp.Source = true, "env"
	case h.Tokens != nil:
		tok, err := h.Tokens.LoadCalendarToken(c.Request.Context())
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load calendar token")
			return
		}
		if tok != nil && (tok.RefreshToken != "" || tok.AccessToken != "") {
			resp.Authorized, resp.Source = true, "stored"
			if !tok.Expiry.IsZero() {
				exp := tok.Expiry
				resp.Expiry = &exp
			}
		}
	}
	ok(c, http.StatusOK, resp)
}
