package oauth

import (
	"sort"
	"strings"

	"scoreauth/internal/config"
	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/models"
)

// Registry holds the providers that are configured for this deployment.
type Registry struct {
	providers map[models.OAuthProvider]Provider
}

// NewRegistry creates a registry of the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[models.OAuthProvider]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// NewRegistryFromConfig registers every provider whose client credentials
// are set.
func NewRegistryFromConfig(cfg *config.Config) *Registry {
	var providers []Provider
	if c := (Credentials{cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL}); c.Configured() {
		providers = append(providers, NewGoogle(c))
	}
	if c := (Credentials{cfg.FacebookAppID, cfg.FacebookAppSecret, cfg.FacebookCallbackURL}); c.Configured() {
		providers = append(providers, NewFacebook(c))
	}
	if c := (Credentials{cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubCallbackURL}); c.Configured() {
		providers = append(providers, NewGitHub(c))
	}
	return NewRegistry(providers...)
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[models.OAuthProvider(strings.ToLower(name))]
	if !ok {
		return nil, apperrors.ErrProviderNotConfigured
	}
	return p, nil
}

// Names lists the configured providers in a stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}
