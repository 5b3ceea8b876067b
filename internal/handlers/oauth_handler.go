package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/logger"
	"scoreauth/internal/oauth"
	"scoreauth/internal/services"
)

const stateCookieMaxAge = 600

// OAuthConfig controls the browser side of the OAuth handshake.
type OAuthConfig struct {
	FrontendURL  string
	StateCookie  string
	CookiePath   string
	SecureCookie bool
}

// OAuthHandler runs the provider redirect and callback.
type OAuthHandler struct {
	authService services.AuthServicer
	providers   *oauth.Registry
	cfg         OAuthConfig
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(authService services.AuthServicer, providers *oauth.Registry, cfg OAuthConfig) *OAuthHandler {
	if cfg.StateCookie == "" {
		cfg.StateCookie = "oauth_state"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &OAuthHandler{authService: authService, providers: providers, cfg: cfg}
}

// Start redirects the browser to the provider's consent page.
// @Summary     Start an OAuth login
// @Description Sets a short-lived state cookie and redirects to the provider
// @Tags        oauth
// @Param       provider path string true "Provider" Enums(google, github, facebook)
// @Success     307 "Redirect to the provider"
// @Failure     404 {object} ErrorResponse "Provider not configured"
// @Router      /auth/{provider} [get]
func (h *OAuthHandler) Start(c *gin.Context) {
	provider, err := h.providers.Get(c.Param("provider"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	state := oauth.NewState()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.StateCookie, state, stateCookieMaxAge, h.cfg.CookiePath, "", h.cfg.SecureCookie, true)
	c.Redirect(http.StatusTemporaryRedirect, provider.AuthCodeURL(state))
}

// Callback completes the handshake and sends the browser back to the
// frontend with either a token or an error code.
// @Summary     Finish an OAuth login
// @Description Redirects to FRONTEND_URL/login with ?token=... on success or ?error=<code> on failure
// @Tags        oauth
// @Param       provider path  string true  "Provider" Enums(google, github, facebook)
// @Param       code     query string false "Authorization code"
// @Param       state    query string true  "State echoed by the provider"
// @Param       error    query string false "Error reported by the provider"
// @Success     302 "Redirect to the frontend"
// @Router      /auth/{provider}/callback [get]
func (h *OAuthHandler) Callback(c *gin.Context) {
	name := c.Param("provider")
	provider, err := h.providers.Get(name)
	if err != nil {
		h.redirectError(c, name, err)
		return
	}

	expected, _ := c.Cookie(h.cfg.StateCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.StateCookie, "", -1, h.cfg.CookiePath, "", h.cfg.SecureCookie, true)

	if denied := c.Query("error"); denied != "" {
		h.redirectError(c, name, apperrors.WithMessage(apperrors.ErrOAuthFailed, denied))
		return
	}
	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		h.redirectError(c, name, apperrors.WithMessage(apperrors.ErrOAuthFailed, "state mismatch"))
		return
	}

	profile, err := provider.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.redirectError(c, name, err)
		return
	}

	result, err := h.authService.OAuthLogin(auditContext(c), provider.Name(), *profile)
	if err != nil {
		h.redirectError(c, name, err)
		return
	}

	logger.Security("auth_oauth_success", "user_id", result.User.ID, "provider", name)
	h.redirect(c, url.Values{"token": {result.Token.AccessToken}})
}

func (h *OAuthHandler) redirectError(c *gin.Context, provider string, err error) {
	code := apperrors.ErrOAuthFailed.Code
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}
	logger.Security("auth_oauth_failed", "provider", provider, "code", code, "error", err.Error())
	h.redirect(c, url.Values{"error": {strings.ToLower(code)}})
}

func (h *OAuthHandler) redirect(c *gin.Context, query url.Values) {
	c.Redirect(http.StatusFound, h.cfg.FrontendURL+"/login?"+query.Encode())
}
