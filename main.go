package main

import (
	"context"
	"os"

	"Gin_postgres_tool_loans/app"
	"Gin_postgres_tool_loans/config"
	"Gin_postgres_tool_loans/db"
	"Gin_postgres_tool_loans/routes"
)

func main() {
	config.LoadEnv()

	application := app.MustNew()
	defer application.Close()

	r := application.Router

	// Health
	r.GET("/healthz", func(c *app.Ctx) { c.JSON(200, app.H{"ok": true}) })

	app.BootstrapFirstAdmin(context.Background(), application.Config, db.NewRepo(application.DB), application.Log)

	routes.RegisterRoutes(r, application)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	application.Log.Info().Str("port", port).Msg("listening")
	_ = r.Run(":" + port)
}
