package main

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/smccd/doorcard-data/migrations"
	"github.com/smccd/doorcard-data/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the target schema",
	}
	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(db *sql.DB) error {
				return goose.Up(db, ".")
			})
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(db *sql.DB) error {
				return goose.Down(db, ".")
			})
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(db *sql.DB) error {
				return goose.Status(db, ".")
			})
		},
	}
}

func withMigrator(fn func(db *sql.DB) error) error {
	conf := configuration.Use()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return withCode(exitDB, err)
	}

	db, err := sql.Open("pgx", conf.Database.Opts)
	if err != nil {
		return withCode(exitDB, fmt.Errorf("open database: %w", err))
	}
	defer func() { _ = db.Close() }()

	if err := fn(db); err != nil {
		return withCode(exitDB, err)
	}
	return nil
}
