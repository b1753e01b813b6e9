// controllers/srv.go
package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Gin_postgres_tool_loans/app"
	"Gin_postgres_tool_loans/db"
	"Gin_postgres_tool_loans/services"
	"Gin_postgres_tool_loans/session"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Srv wires the controllers to their dependencies.
type Srv struct {
	Repo      *db.Repo
	Sessions  *session.Store
	Users     *services.UserService
	Tools     *services.ToolService
	Loans     *services.LoanService
	WebOrigin string
	Cfg       app.Config
	Log       zerolog.Logger
}

func GetSrv(a *app.App) *Srv {
	repo := db.NewRepo(a.DB)
	return &Srv{
		Repo:      repo,
		Sessions:  a.Sessions(),
		Users:     services.NewUserService(repo, a.Log),
		Tools:     services.NewToolService(repo, a.Log),
		Loans:     services.NewLoanService(repo, a.Log),
		WebOrigin: a.Config.WebOrigin,
		Cfg:       a.Config,
		Log:       a.Log,
	}
}

// writeError is the only place service error kinds become HTTP statuses.
func (s *Srv) writeError(c *gin.Context, err error) {
	var serr *services.Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case services.KindValidation:
			c.JSON(http.StatusBadRequest, app.H{"error": serr.Message, "details": serr.Details})
			return
		case services.KindReference:
			c.JSON(http.StatusBadRequest, app.H{"error": serr.Message})
			return
		case services.KindConflict:
			c.JSON(http.StatusConflict, app.H{"error": serr.Message})
			return
		case services.KindNotFound:
			c.JSON(http.StatusNotFound, app.H{"error": serr.Message})
			return
		}
	}

	// Storage and programming errors are logged with detail and surfaced
	// without it.
	s.Log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.Request.URL.Path).Msg("internal error")
	c.JSON(http.StatusInternalServerError, app.H{"error": "internal server error"})
}

// bindError shapes body-decoding failures into the same field-level detail
// list the services produce.
func bindError(c *gin.Context, err error) {
	var details []string

	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &verrs):
		for _, fe := range verrs {
			details = append(details, fmt.Sprintf("%s: failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	case errors.As(err, &typeErr):
		details = append(details, fmt.Sprintf("%s: invalid %s", typeErr.Field, typeErr.Type.String()))
	default:
		details = append(details, err.Error())
	}

	c.JSON(http.StatusBadRequest, app.H{"error": "invalid input", "details": details})
}

// idParam parses the :id path segment; on failure it writes the response
// itself and reports false.
func idParam(c *gin.Context) (uint, bool) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, app.H{"error": "id must be a positive integer"})
		return 0, false
	}
	return uint(n), true
}

// setAppCookie installs or clears the session cookie.
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	maxAgeSec := int(maxAge / time.Second)
	if maxAge < 0 {
		maxAgeSec = -1 // delete
	}
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.WebOrigin, "https://"),
		MaxAge:   maxAgeSec,
	})
}
