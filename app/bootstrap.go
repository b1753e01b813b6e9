package app

import (
	"context"
	"strings"

	"Gin_postgres_tool_loans/db"
	"Gin_postgres_tool_loans/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// BootstrapFirstAdmin seeds one admin account from the environment when the
// users table is empty, so a fresh deployment can log in at all.
func BootstrapFirstAdmin(ctx context.Context, cfg Config, repo *db.Repo, log zerolog.Logger) {
	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return
	}

	n, err := repo.CountUsers(ctx)
	if err != nil {
		log.Error().Err(err).Msg("bootstrap: count users")
		return
	}
	if n > 0 {
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("bootstrap: hash password")
		return
	}

	u := &models.User{
		Name:         "Administrator",
		Age:          0,
		Phone:        "0000000",
		Address:      "bootstrap",
		Email:        strings.ToLower(cfg.BootstrapEmail),
		PasswordHash: string(hash),
		RoleID:       cfg.AdminRoleID,
	}
	if err := repo.InsertUser(ctx, u); err != nil {
		log.Error().Err(err).Msg("bootstrap: create admin")
		return
	}
	log.Info().Str("email", u.Email).Msg("bootstrap: first admin created")
}
