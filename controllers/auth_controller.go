package controllers

import (
	"net/http"
	"strings"

	"Gin_postgres_tool_loans/app"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

// POST /api/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var in struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}

	u, err := ac.Repo.FindUserByEmail(c.Request.Context(), strings.ToLower(in.Email), 0)
	if err != nil {
		ac.writeError(c, err)
		return
	}
	// Same answer for unknown email and wrong password.
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "invalid credentials"})
		return
	}

	sid := uuid.NewString()
	if err := ac.Sessions.Create(c.Request.Context(), sid, u.ID); err != nil {
		ac.writeError(c, err)
		return
	}
	ac.setAppCookie(c.Writer, sid, ac.Cfg.SessionTTL)

	ac.Log.Info().Uint("user_id", u.ID).Msg("login")
	c.JSON(http.StatusOK, app.H{"user": u})
}

// GET /api/auth/me
func (ac *AuthController) Me(c *gin.Context) {
	v, ok := c.Get("userID")
	if !ok {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	uid, _ := v.(uint)

	u, err := ac.Repo.FindUserByID(c.Request.Context(), uid)
	if err != nil || u == nil {
		c.JSON(http.StatusUnauthorized, app.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// POST /api/auth/logout
func (ac *AuthController) Logout(c *gin.Context) {
	if ck, err := c.Request.Cookie(app.AppSessionCookie); err == nil && ck.Value != "" {
		_ = ac.Sessions.Delete(c.Request.Context(), ck.Value)
	}
	ac.setAppCookie(c.Writer, "", -1)
	c.JSON(http.StatusOK, app.H{"ok": true})
}
