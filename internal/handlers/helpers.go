package handlers

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "scoreauth/internal/errors"
	"scoreauth/internal/logger"
	"scoreauth/internal/middleware"
	"scoreauth/internal/security"
	"scoreauth/internal/services"
	"scoreauth/internal/uuid"
	"scoreauth/internal/validator"
)

// getClaims extracts the authenticated caller's claims from the Gin context.
// Returns ErrUnauthorized if not present.
func getClaims(c *gin.Context) (*security.Claims, error) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}

// parsePathID parses a UUID path parameter.
// Returns ErrInvalidInput if the parameter is not a valid UUID.
func parsePathID(c *gin.Context, param string) (string, error) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

// bindError turns a JSON binding failure into an itemised validation error.
func bindError(err error) error {
	return apperrors.Validation(validator.FieldErrors(err)...)
}

// auditContext carries the caller's address into audit entries.
func auditContext(c *gin.Context) context.Context {
	return services.WithClientIP(c.Request.Context(), c.ClientIP())
}

// ErrorBody is the error object of every failed response.
type ErrorBody struct {
	Code    string `json:"code" example:"INVALID_CREDENTIALS"`
	Message string `json:"message" example:"Invalid email or password"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse is the body of every failed handler response.
type ErrorResponse struct {
	Success bool      `json:"success" example:"false"`
	Error   ErrorBody `json:"error"`
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, message and details.
// Otherwise it logs the unexpected error and returns a generic internal
// server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, ErrorResponse{
			Error: ErrorBody{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, ErrorResponse{
		Error: ErrorBody{Code: apperrors.ErrInternalServer.Code, Message: apperrors.ErrInternalServer.Message},
	})
}
