package db

import (
	"context"

	"Gin_postgres_tool_loans/services"

	"gorm.io/gorm"
)

// Repo implements the repository interfaces the services consume. The DB
// handle is injected at construction; inside Transact it is the transaction.
type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

var (
	_ services.LoanRepository = (*Repo)(nil)
	_ services.UserRepository = (*Repo)(nil)
	_ services.ToolRepository = (*Repo)(nil)
)

func (r *Repo) Transact(ctx context.Context, fn func(services.LoanRepository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{DB: tx})
	})
}
