package app

import (
	"context"
	"os"
	"strconv"
	"time"

	"Gin_postgres_tool_loans/db"
	"Gin_postgres_tool_loans/session"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Aliases so handlers stay short
type Ctx = gin.Context
type H = gin.H

// App aggregates the process-wide dependencies; everything downstream gets
// them injected, nothing reads globals.
type App struct {
	Router *gin.Engine
	DB     *gorm.DB
	RDB    *redis.Client
	Log    zerolog.Logger
	Config Config

	sessions *session.Store
}

type Config struct {
	WebOrigin         string
	SessionTTL        time.Duration
	AdminRoleID       uint
	BootstrapEmail    string
	BootstrapPassword string
}

func (a *App) Sessions() *session.Store { return a.sessions }

func MustNew() *App {
	logger := NewLogger()
	log.Logger = logger

	cfg := loadConfig()

	dbConn := db.ConnectDB()

	rdb := redis.NewClient(&redis.Options{
		Addr:     getenv("REDIS_ADDR", "127.0.0.1:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}

	r := gin.New()
	r.Use(RequestLogger(logger), gin.Recovery())
	useCORS(r, cfg.WebOrigin)

	return &App{
		Router:   r,
		DB:       dbConn,
		RDB:      rdb,
		Log:      logger,
		Config:   cfg,
		sessions: session.NewStore(rdb, cfg.SessionTTL),
	}
}

func (a *App) Close() { _ = a.RDB.Close() }

func loadConfig() Config {
	ttl := 24 * time.Hour
	if v := os.Getenv("SESSION_TTL_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			ttl = d
		}
	}

	adminRole := uint(1)
	if v := os.Getenv("ADMIN_ROLE_ID"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil && n > 0 {
			adminRole = uint(n)
		}
	}

	return Config{
		WebOrigin:         getenv("WEB_ORIGIN", "http://localhost:5173"),
		SessionTTL:        ttl,
		AdminRoleID:       adminRole,
		BootstrapEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
		BootstrapPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
