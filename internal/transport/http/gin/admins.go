package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/cinebook/internal/service"
)

// @Summary  Add admin
// @Tags     admin
// @Param    req body  LoginRequest true "payload"
// @Success  201 {object} AdminResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse
// @Router   /admin/add-admin [post]
func handleAddAdmin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		a, err := svcs.Admins.Add(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, AdminResponse{Message: "admin created", Admin: a})
	}
}

// @Summary  Admin login
// @Tags     admin
// @Param    req body  LoginRequest true "payload"
// @Success  200 {object} AdminLoginResponse
// @Failure  401 {object} ErrorResponse
// @Router   /admin/admin-login [post]
func handleAdminLogin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		res, err := svcs.Admins.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, AdminLoginResponse{
			Message:   "authentication complete",
			Token:     res.Token,
			ExpiresAt: res.ExpiresAt,
			ID:        res.Admin.ID.String(),
		})
	}
}

// @Summary  List admins
// @Tags     admin
// @Success  200 {object} AdminsResponse
// @Router   /admin [get]
func handleListAdmins(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Admins.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, AdminsResponse{Admins: list})
	}
}

// @Summary      Reconcile booking indexes
// @Description  Drops index entries without a matching booking and adds the missing ones.
// @Tags         admin
// @Security     BearerAuth
// @Success      200 {object} ReconcileResponse
// @Router       /admin/reconcile [post]
func handleReconcile(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svcs.Reconcile.Sweep(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, ReconcileResponse{Report: report})
	}
}
