package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"

	"github.com/tbourn/go-meeting-bot/internal/config"
	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// Scopes requested during consent.
var Scopes = []string{gcal.CalendarScope, gcal.CalendarEventsScope}

// OAuthConfig builds the Google OAuth client configuration.
func OAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint:     google.Endpoint,
	}
}

// AuthURL returns the consent URL. Offline access with a forced consent
// prompt makes Google hand out a refresh token every time.
func AuthURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.New("missing authorization code")
	}
	return conf.Exchange(ctx, code)
}

// Consent binds AuthURL and Exchange to one OAuth client for the HTTP
// consent routes.
type Consent struct {
	Config *oauth2.Config
}

// AuthURL returns the consent URL for state.
func (c Consent) AuthURL(state string) string { return AuthURL(c.Config, state) }

// Exchange trades code for a token.
func (c Consent) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return Exchange(ctx, c.Config, code)
}

// StoredTokenFunc loads the token persisted by the consent flow. It returns
// (nil, nil) when none was saved yet.
type StoredTokenFunc func(ctx context.Context) (*domain.CalendarToken, error)

// Tokens resolves credentials in order: the configured refresh token, then
// the stored token. With neither it returns ErrDisabled.
func Tokens(conf *oauth2.Config, refreshToken string, stored StoredTokenFunc) TokenSourceFunc {
	var static oauth2.TokenSource
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		static = conf.TokenSource(context.Background(), &oauth2.Token{RefreshToken: refreshToken})
	}
	return func(ctx context.Context) (oauth2.TokenSource, error) {
		if static != nil {
			return static, nil
		}
		if stored == nil {
			return nil, ErrDisabled
		}
		rec, err := stored(ctx)
		if err != nil {
			return nil, fmt.Errorf("load calendar token: %w", err)
		}
		if rec == nil || (rec.RefreshToken == "" && rec.AccessToken == "") {
			return nil, ErrDisabled
		}
		return conf.TokenSource(ctx, ToOAuthToken(rec)), nil
	}
}

// ToOAuthToken converts a stored token.
func ToOAuthToken(rec *domain.CalendarToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    rec.TokenType,
		Expiry:       rec.Expiry,
	}
}

// FromOAuthToken converts a token for storage.
func FromOAuthToken(tok *oauth2.Token) *domain.CalendarToken {
	return &domain.CalendarToken{
		ID:           domain.CalendarTokenKey,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC(),
	}
}
