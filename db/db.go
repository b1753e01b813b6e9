package db

import (
	"fmt"
	"os"

	"Gin_postgres_tool_loans/models"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func ConnectDB() *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)

	// TranslateError turns unique-index violations into gorm.ErrDuplicatedKey,
	// which the services map to conflicts.
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := Migrate(conn); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate models")
	}
	log.Info().Msg("database connected")
	return conn
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Role{}, &models.User{}, &models.Tool{}, &models.Loan{}); err != nil {
		return err
	}

	// Emails and tool names are unique regardless of case
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_email_lower
	  ON %s (LOWER(email));
	`, models.UserTable, models.UserTable)).Error; err != nil {
		return err
	}
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_name_lower
	  ON %s (LOWER(name));
	`, models.ToolTable, models.ToolTable)).Error; err != nil {
		return err
	}

	// At most one active loan per tool. The services check this before
	// writing; this index is the source of truth under concurrency.
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_active_per_tool
	  ON %s (tool_id)
	  WHERE returned_at IS NULL AND LOWER(COALESCE(status, '')) <> '%s';
	`, models.LoanTable, models.LoanTable, models.LoanStatusReturned)).Error; err != nil {
		return err
	}

	// Listing is ordered by borrowed_at descending
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_tool_borrowedat_desc
	  ON %s (tool_id, borrowed_at DESC);
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	return seedRoles(db)
}

// seedRoles keeps the two base roles present so role_id references resolve
// on a fresh database.
func seedRoles(db *gorm.DB) error {
	for _, name := range []string{"admin", "user"} {
		if err := db.Where(models.Role{Name: name}).FirstOrCreate(&models.Role{Name: name}).Error; err != nil {
			return err
		}
	}
	return nil
}
