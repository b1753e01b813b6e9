package routes

import (
	"time"

	"Gin_postgres_tool_loans/app"
	"Gin_postgres_tool_loans/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	s := controllers.GetSrv(a)
	ac := controllers.NewAuthController(s)
	uc := controllers.NewUserController(s)
	tc := controllers.NewToolController(s)
	lc := controllers.NewLoanController(s)

	authMW := app.AuthRequired(s.Sessions, s.Repo)
	adminMW := app.AdminOnly(a.Config)
	seenMW := app.TouchLastSeen(s.Repo, a.RDB, 5*time.Minute)

	// ------------------------------
	// Session auth
	// ------------------------------
	auth := r.Group("/api/auth")
	{
		auth.POST("/login", ac.Login)

		authed := auth.Group("", authMW, seenMW)
		authed.GET("/me", ac.Me)
		authed.POST("/logout", ac.Logout)
	}

	// ------------------------------
	// Users
	// ------------------------------
	users := r.Group("/api/users")
	{
		users.GET("", uc.ListUsers) // ?email=&role_id=
		users.GET("/:id", uc.GetUser)
		users.POST("", uc.CreateUser)
		users.PUT("/:id", uc.UpdateUser)
		// Destructive, admin-gated; it also revokes the victim's sessions.
		users.DELETE("/:id", authMW, adminMW, uc.DeleteUser)
	}

	// ------------------------------
	// Tools
	// ------------------------------
	tools := r.Group("/api/tools")
	{
		tools.GET("", tc.ListTools)
		tools.GET("/:id", tc.GetTool)
		tools.POST("", tc.CreateTool)
		tools.PUT("/:id", tc.UpdateTool)
		tools.DELETE("/:id", tc.DeleteTool)
	}

	// ------------------------------
	// Loans
	// ------------------------------
	loans := r.Group("/api/loans")
	{
		loans.GET("", lc.ListLoans) // ?user_id=&tool_id=&status=
		loans.GET("/:id", lc.GetLoan)
		loans.POST("", lc.CreateLoan)
		loans.PUT("/:id", lc.UpdateLoan)
		loans.DELETE("/:id", lc.DeleteLoan)
	}
}
