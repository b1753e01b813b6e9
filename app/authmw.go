package app

import (
	"net/http"

	"Gin_postgres_tool_loans/db"
	"Gin_postgres_tool_loans/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

func AuthRequired(sessions *session.Store, repo *db.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		sess, err := sessions.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// Confirm the account still exists; a stale session for a deleted
		// user is dropped here.
		u, err := repo.FindUserByID(c.Request.Context(), sess.UserID)
		if err != nil || u == nil {
			_ = sessions.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}

		c.Set("userID", u.ID)
		c.Set("userEmail", u.Email)
		c.Set("roleID", u.RoleID)
		c.Next()
	}
}

func AdminOnly(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get("roleID")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if roleID, _ := v.(uint); roleID != cfg.AdminRoleID {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
