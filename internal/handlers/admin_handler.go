package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"scoreauth/internal/models"
	"scoreauth/internal/pagination"
	"scoreauth/internal/services"
)

// AdminHandler handles admin-only user management requests
type AdminHandler struct {
	adminService services.AdminServicer
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(adminService services.AdminServicer) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// UpdateRoleRequest represents the role change payload
type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required" example:"operator"`
}

// UpdateActiveRequest represents the active flag payload
type UpdateActiveRequest struct {
	Active *bool `json:"active" binding:"required" example:"false"`
}

// UserListResponse is one page of users
type UserListResponse struct {
	Success    bool                                       `json:"success" example:"true"`
	Users      []models.PublicUser                        `json:"users"`
	Pagination pagination.PageResponse[models.PublicUser] `json:"pagination"`
}

// TemporaryPasswordResponse carries a freshly issued temporary password
type TemporaryPasswordResponse struct {
	Success           bool   `json:"success" example:"true"`
	TemporaryPassword string `json:"temporaryPassword" example:"ZCpLv3XDrsxc"`
}

// ListUsers returns a page of users, newest first
// @Summary     List users
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number" minimum(1)
// @Param       page_size query int false "Page size"   minimum(1) maximum(100)
// @Success     200 {object} UserListResponse "Users"
// @Failure     400 {object} ErrorResponse "Invalid paging"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     403 {object} ErrorResponse "Admin role required"
// @Router      /auth/users [get]
func (h *AdminHandler) ListUsers(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	page.Defaults()

	result, err := h.adminService.ListUsers(c.Request.Context(), claims, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserListResponse{
		Success:    true,
		Users:      result.Data,
		Pagination: *result,
	})
}

// UpdateRole changes a user's role
// @Summary     Change a user's role
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "User ID"
// @Param       request body UpdateRoleRequest true "New role"
// @Success     200 {object} UserResponse "Updated user"
// @Failure     400 {object} ErrorResponse "Invalid role or id"
// @Failure     403 {object} ErrorResponse "Admin role required"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/users/{id}/role [patch]
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.adminService.UpdateUserRole(auditContext(c), claims, id, req.Role)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{Success: true, User: *user})
}

// UpdateActive activates or deactivates a user
// @Summary     Activate or deactivate a user
// @Description An admin cannot change their own active flag
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string              true "User ID"
// @Param       request body UpdateActiveRequest true "Active flag"
// @Success     200 {object} UserResponse "Updated user"
// @Failure     400 {object} ErrorResponse "Invalid input or self modification"
// @Failure     403 {object} ErrorResponse "Admin role required"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/users/{id}/active [patch]
func (h *AdminHandler) UpdateActive(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.adminService.UpdateUserActive(auditContext(c), claims, id, *req.Active)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, UserResponse{Success: true, User: *user})
}

// ResetPassword issues a temporary password for a local account. The
// plaintext is returned once and never stored.
// @Summary     Reset a user's password
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "User ID"
// @Success     200 {object} TemporaryPasswordResponse "Temporary password, shown once"
// @Failure     400 {object} ErrorResponse "OAuth-only account"
// @Failure     403 {object} ErrorResponse "Admin role required"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /auth/users/{id}/reset-password [post]
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	claims, err := getClaims(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	temporary, err := h.adminService.ResetUserPassword(auditContext(c), claims, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, TemporaryPasswordResponse{Success: true, TemporaryPassword: temporary})
}
