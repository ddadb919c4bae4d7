package cmd

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/waploaj/DyAPI/internal/migrate"
	"github.com/waploaj/DyAPI/internal/registry"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the gateway schema and tables",
	Long: `Applies the embedded migrations to DATABASE_URL under GATEWAY_DB_SCHEMA.
Already applied versions are skipped.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required for migrate")
	}
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	schema := registry.NormalizeSchema(cfg.Schema)
	if err := migrate.Run(cmd.Context(), db, schema); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	log.Info("migrations applied", "schema", schema, "versions", migrate.Versions())
	return nil
}

func openDB() (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return db, nil
}
