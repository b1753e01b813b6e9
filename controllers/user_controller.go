package controllers

import (
	"net/http"

	"Gin_postgres_tool_loans/app"
	"Gin_postgres_tool_loans/services"

	"github.com/gin-gonic/gin"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

// GET /api/users?email=&role_id=
func (uc *UserController) ListUsers(c *gin.Context) {
	filter, err := services.ParseUserFilter(c.Query("email"), c.Query("role_id"))
	if err != nil {
		uc.writeError(c, err)
		return
	}

	users, err := uc.Users.List(c.Request.Context(), filter)
	if err != nil {
		uc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"users": users})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	user, err := uc.Users.Get(c.Request.Context(), id)
	if err != nil {
		uc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// POST /api/users
func (uc *UserController) CreateUser(c *gin.Context) {
	var in services.UserCreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	user, err := uc.Users.Create(c.Request.Context(), in)
	if err != nil {
		uc.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// PUT /api/users/:id
func (uc *UserController) UpdateUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var patch services.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}
	user, err := uc.Users.Update(c.Request.Context(), id, patch)
	if err != nil {
		uc.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DELETE /api/users/:id (admin)
func (uc *UserController) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	// Deleting yourself would lock the admin out mid-session.
	if v, exists := c.Get("userID"); exists {
		if uid, _ := v.(uint); uid == id {
			c.JSON(http.StatusBadRequest, app.H{"error": "cannot delete yourself"})
			return
		}
	}

	if err := uc.Users.Remove(c.Request.Context(), id); err != nil {
		uc.writeError(c, err)
		return
	}

	// Revoke every live session of the deleted account.
	_ = uc.Sessions.RevokeAllForUser(c.Request.Context(), id)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
