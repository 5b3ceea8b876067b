package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/middleware"
	"scoreauth/internal/models"
	"scoreauth/internal/services"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService services.AuthServicer
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService services.AuthServicer) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" example:"player@example.com"`
	Password string `json:"password" example:"Secret1"`
}

// AuthResponse is returned by register and login
type AuthResponse struct {
	Success bool                   `json:"success" example:"true"`
	Message string                 `json:"message" example:"Login successful"`
	User    models.PublicUser      `json:"user"`
	Token   services.TokenEnvelope `json:"token"`
}

// MessageResponse is a success flag with a message
type MessageResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Logout successful"`
}

// UserResponse wraps a single user
type UserResponse struct {
	Success bool              `json:"success" example:"true"`
	User    models.PublicUser `json:"user"`
}

// Register handles user registration
// @Summary     Register a new user
// @Description Creates a viewer account with a local password and signs it in
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body services.RegisterInput true "Registration data"
// @Success     201 {object} AuthResponse "User registered and token issued"
// @Failure     400 {object} ErrorResponse "Invalid input or duplicate email"
// @Failure     409 {object} ErrorResponse "Username taken"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Success: true,
		Message: "Registration successful",
		User:    result.User,
		Token:   result.Token,
	})
}

// Login handles user login. A locked account also gets a Retry-After header.
// @Summary     Log in with email and password
// @Description Repeated failures lock the email for a while; a locked login answers 429 with Retry-After
// @Tags        auth
// @Accept      json
// @Produce     json
// @Param       request body LoginRequest true "Credentials"
// @Success     200 {object} AuthResponse "Signed in"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid credentials"
// @Failure     403 {object} ErrorResponse "Account inactive"
// @Failure     429 {object} ErrorResponse "Account locked"
// @Header      429 {integer} Retry-After "Seconds until the lock ends"
// @Router      /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		setRetryAfter(c, err)
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Success: true,
		Message: "Login successful",
		User:    result.User,
		Token:   result.Token,
	})
}

func setRetryAfter(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || !errors.Is(err, apperrors.ErrAccountLocked) {
		return
	}
	details, ok := appErr.Details.(services.LockoutDetails)
	if !ok {
		return
	}
	seconds := (details.RemainingLockMs + 999) / 1000
	c.Header("Retry-After", strconv.FormatInt(seconds, 10))
}

// Logout revokes the caller's token when one is present. It always succeeds.
// @Summary     Log out
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} MessageResponse "Logged out"
// @Router      /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if token, ok := middleware.BearerToken(c); ok {
		h.authService.Logout(c.Request.Context(), token)
	}
	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Logout successful"})
}

// Me returns the account behind the bearer token
// @Summary     Current user
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} UserResponse "Current user"
// @Failure     401 {object} ErrorResponse "Missing, invalid, expired or revoked token"
// @Failure     403 {object} ErrorResponse "Account inactive"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		respondWithError(c, apperrors.ErrUnauthorized)
		return
	}

	user, err := h.authService.Me(c.Request.Context(), token)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{Success: true, User: *user})
}

// Validate checks a bearer token for other services.
// @Summary     Validate a token
// @Description Service-to-service check; requires X-API-Key when SERVICE_API_KEY is configured
// @Tags        auth
// @Produce     json
// @Security    BearerAuth
// @Security    ServiceKey
// @Success     200 {object} services.ValidationResult "Token is valid"
// @Failure     401 {object} services.ValidationResult "Token is missing or invalid"
// @Failure     503 {object} ErrorResponse "Store unavailable"
// @Router      /auth/validate [post]
func (h *AuthHandler) Validate(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, services.ValidationResult{Valid: false, Message: "No token provided"})
		return
	}

	result, err := h.authService.ValidateToken(c.Request.Context(), token)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if !result.Valid {
		c.JSON(http.StatusUnauthorized, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
