// Package oauth runs the authorization-code handshake with third-party
// identity providers and turns their user-info responses into a Profile.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/models"
)

// Profile is the identity asserted by a provider after a successful
// handshake.
type Profile struct {
	Provider  models.OAuthProvider
	ID        string
	Email     string
	Name      string
	Username  string
	AvatarURL string
}

// Provider performs the handshake with one identity provider.
type Provider interface {
	Name() models.OAuthProvider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Profile, error)
}

// Credentials are the client settings registered with a provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// Configured reports whether enough settings are present to use the provider.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// fetchFunc loads the profile using an HTTP client that carries the access token.
type fetchFunc func(ctx context.Context, client *http.Client, p *oauthProvider) (*Profile, error)

type oauthProvider struct {
	name        models.OAuthProvider
	config      *oauth2.Config
	userInfoURL string
	emailsURL   string
	fetch       fetchFunc
}

func (p *oauthProvider) Name() models.OAuthProvider {
	return p.name
}

func (p *oauthProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the authorization code for a token and loads the profile.
func (p *oauthProvider) Exchange(ctx context.Context, code string) (*Profile, error) {
	if code == "" {
		return nil, apperrors.WithMessage(apperrors.ErrOAuthFailed, "Missing authorization code")
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrOAuthFailed, fmt.Errorf("%s token exchange: %w", p.name, err))
	}

	profile, err := p.fetch(ctx, p.config.Client(ctx, token), p)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return nil, appErr
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrOAuthFailed, fmt.Errorf("%s user info: %w", p.name, err))
	}
	profile.Provider = p.name
	profile.Email = strings.TrimSpace(profile.Email)
	if profile.ID == "" {
		return nil, apperrors.Wrap(apperrors.ErrOAuthFailed, fmt.Errorf("%s returned no user id", p.name))
	}
	return profile, nil
}

// NewState returns an unguessable value for the OAuth state parameter.
func NewState() string {
	return oauth2.GenerateVerifier()
}

func getJSON(ctx context.Context, client *http.Client, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
