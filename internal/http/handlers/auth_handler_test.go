package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

type fakeConsent struct {
	codes map[string]*oauth2.Token
}

func (f fakeConsent) AuthURL(state string) string {
	return "https://accounts.example.test/o/oauth2/auth?state=" + url.QueryEscape(state)
}

func (f fakeConsent) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if tok, ok := f.codes[code]; ok {
		return tok, nil
	}
	return nil, errors.New("invalid_grant")
}

type memTokens struct {
	tok     *domain.CalendarToken
	saveErr error
}

func (m *memTokens) SaveCalendarToken(_ context.Context, tok *domain.CalendarToken) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.tok = tok
	return nil
}

func (m *memTokens) LoadCalendarToken(context.Context) (*domain.CalendarToken, error) {
	return m.tok, nil
}

func newAuthRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(deps)
	r := gin.New()
	r.GET("/auth/google", h.StartGoogleAuth)
	r.GET("/auth/google/callback", h.GoogleAuthCallback)
	r.GET("/auth/status", h.AuthStatus)
	return r
}

func TestGoogleAuth_FullFlow(t *testing.T) {
	exp := time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)
	consent := fakeConsent{codes: map[string]*oauth2.Token{
		"good": {AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer", Expiry: exp},
	}}
	store := &memTokens{}
	r := newAuthRouter(Deps{Consent: consent, Tokens: store})

	// Not yet authorized.
	w := do(r, http.MethodGet, "/auth/status", "", nil)
	var st AuthStatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Configured || st.Authorized {
		t.Fatalf("initial status = %+v", st)
	}

	// Start: redirect with a state mirrored in a cookie.
	w = do(r, http.MethodGet, "/auth/google", "", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("start status = %d", w.Code)
	}
	loc, _ := url.Parse(w.Header().Get("Location"))
	state := loc.Query().Get("state")
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookie {
			cookie = c
		}
	}
	if state == "" || cookie == nil || cookie.Value != state || !cookie.HttpOnly {
		t.Fatalf("state=%q cookie=%+v", state, cookie)
	}

	// Callback with a mismatched state is rejected.
	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=good&state=forged", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest || store.tok != nil {
		t.Fatalf("forged state: %d", w.Code)
	}

	// Bad code: upstream failure.
	req = httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=bad&state="+state, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("bad code: %d", w.Code)
	}

	// Good code is stored.
	req = httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=good&state="+state, nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "authorized") {
		t.Fatalf("callback: %d %s", w.Code, w.Body.String())
	}
	if store.tok == nil || store.tok.RefreshToken != "rt" || store.tok.ID != domain.CalendarTokenKey {
		t.Fatalf("stored token = %+v", store.tok)
	}

	w = do(r, http.MethodGet, "/auth/status", "", nil)
	st = AuthStatusResponse{}
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Authorized || st.Source != "stored" || st.Expiry == nil || !st.Expiry.Equal(exp) {
		t.Fatalf("final status = %+v", st)
	}
}

func TestGoogleAuth_ErrorsAndStaticToken(t *testing.T) {
	r := newAuthRouter(Deps{})
	if w := do(r, http.MethodGet, "/auth/google", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured start: %d", w.Code)
	}

	r = newAuthRouter(Deps{Consent: fakeConsent{}, Tokens: &memTokens{}})
	if w := do(r, http.MethodGet, "/auth/google/callback?error=access_denied", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("denied consent: %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/auth/google/callback?code=x&state=y", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing cookie: %d", w.Code)
	}

	r = newAuthRouter(Deps{Consent: fakeConsent{}, StaticToken: true})
	w := do(r, http.MethodGet, "/auth/status", "", nil)
	var st AuthStatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if !st.Authorized || st.Source != "env" {
		t.Fatalf("static status = %+v", st)
	}
}
