package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/cinebook/internal/service"
	"github.com/kirinyoku/cinebook/internal/service/users"
)

func accountInput(req AccountRequest) users.AccountInput {
	return users.AccountInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	}
}

// @Summary  Sign up
// @Tags     users
// @Param    req body  AccountRequest true "payload"
// @Success  201 {object} UserResponse
// @Failure  400 {object} ErrorResponse
// @Failure  409 {object} ErrorResponse "email already registered"
// @Router   /users/sign-up [post]
func handleSignUp(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AccountRequest
		if !bindJSON(c, &req) {
			return
		}

		u, err := svcs.Users.SignUp(c.Request.Context(), accountInput(req))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusCreated, UserResponse{User: u})
	}
}

// @Summary  User login
// @Tags     users
// @Param    req body  LoginRequest true "payload"
// @Success  200 {object} UserLoginResponse
// @Failure  401 {object} ErrorResponse
// @Router   /users/login [post]
func handleUserLogin(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}

		res, err := svcs.Users.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, UserLoginResponse{
			Message:   "login successful",
			Token:     res.Token,
			ExpiresAt: res.ExpiresAt,
			User:      res.User,
		})
	}
}

// @Summary  List users
// @Tags     users
// @Success  200 {object} UsersResponse
// @Router   /users [get]
func handleListUsers(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svcs.Users.List(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, UsersResponse{Users: list})
	}
}

// @Summary   Update own account
// @Tags      users
// @Security  BearerAuth
// @Param     id  path  string  true  "User ID"
// @Param     req body  AccountRequest true "payload"
// @Success   200 {object} UserResponse
// @Failure   403 {object} ErrorResponse
// @Failure   409 {object} ErrorResponse
// @Router    /users/{id} [put]
func handleUpdateUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		var req AccountRequest
		if !bindJSON(c, &req) {
			return
		}

		u, err := svcs.Users.Update(c.Request.Context(), id, p.ID, accountInput(req))
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, UserResponse{Message: "updated successfully", User: u})
	}
}

// @Summary      Delete own account
// @Description  Removes the account and every booking it holds.
// @Tags         users
// @Security     BearerAuth
// @Param        id  path  string  true  "User ID"
// @Success      200 {object} UserResponse
// @Failure      403 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Router       /users/{id} [delete]
func handleDeleteUser(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		u, err := svcs.Users.Delete(c.Request.Context(), id, p.ID)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, UserResponse{Message: "deleted successfully", User: u})
	}
}

// @Summary   List own bookings
// @Tags      users
// @Security  BearerAuth
// @Param     id  path  string  true  "User ID"
// @Success   200 {object} BookingsResponse
// @Failure   403 {object} ErrorResponse
// @Failure   404 {object} ErrorResponse
// @Router    /users/{id}/bookings [get]
// @Router    /bookings/user/{id} [get]
func handleUserBookings(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := mustPrincipal(c)
		if !ok {
			return
		}

		id, ok := parseIDParam(c, "id")
		if !ok {
			return
		}

		if id != p.ID {
			respondErr(c, errNotSelf)
			return
		}

		views, err := svcs.Booking.ListForUser(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.JSON(http.StatusOK, BookingsResponse{Bookings: views})
	}
}
