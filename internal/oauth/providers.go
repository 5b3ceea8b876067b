package oauth

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/models"
)

// NewGoogle configures Google sign-in with the profile and email scopes.
func NewGoogle(c Credentials) Provider {
	return &oauthProvider{
		name: models.ProviderGoogle,
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
			RedirectURL:  c.CallbackURL,
		},
		userInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		fetch:       fetchGoogle,
	}
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func fetchGoogle(ctx context.Context, client *http.Client, p *oauthProvider) (*Profile, error) {
	var info googleUserInfo
	if err := getJSON(ctx, client, p.userInfoURL, &info); err != nil {
		return nil, err
	}
	// An unverified address must not be able to claim an existing account.
	if info.Email != "" && !info.VerifiedEmail {
		return nil, apperrors.WithMessage(apperrors.ErrNoEmailFromProvider, "The Google account email is not verified")
	}
	return &Profile{
		ID:        info.ID,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	}, nil
}

// NewGitHub configures GitHub sign-in. The user:email scope lets the
// provider read the primary address when the public profile hides it.
func NewGitHub(c Credentials) Provider {
	return &oauthProvider{
		name: models.ProviderGitHub,
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
			RedirectURL:  c.CallbackURL,
		},
		userInfoURL: "https://api.github.com/user",
		emailsURL:   "https://api.github.com/user/emails",
		fetch:       fetchGitHub,
	}
}

type githubUserInfo struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func fetchGitHub(ctx context.Context, client *http.Client, p *oauthProvider) (*Profile, error) {
	var info githubUserInfo
	if err := getJSON(ctx, client, p.userInfoURL, &info); err != nil {
		return nil, err
	}

	email := info.Email
	if email == "" && p.emailsURL != "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, p.emailsURL, &emails); err != nil {
			return nil, err
		}
		email = primaryEmail(emails)
	}

	name := info.Name
	if name == "" {
		name = info.Login
	}
	profile := &Profile{
		Email:     email,
		Name:      name,
		Username:  info.Login,
		AvatarURL: info.AvatarURL,
	}
	if info.ID != 0 {
		profile.ID = strconv.FormatInt(info.ID, 10)
	}
	return profile, nil
}

// primaryEmail prefers the verified primary address, then any verified one.
func primaryEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}

// NewFacebook configures Facebook login through the Graph API.
func NewFacebook(c Credentials) Provider {
	return &oauthProvider{
		name: models.ProviderFacebook,
		config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email", "public_profile"},
			RedirectURL:  c.CallbackURL,
		},
		userInfoURL: "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)",
		fetch:       fetchFacebook,
	}
}

type facebookUserInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

func fetchFacebook(ctx context.Context, client *http.Client, p *oauthProvider) (*Profile, error) {
	var info facebookUserInfo
	if err := getJSON(ctx, client, p.userInfoURL, &info); err != nil {
		return nil, err
	}
	return &Profile{
		ID:        info.ID,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture.Data.URL,
	}, nil
}
