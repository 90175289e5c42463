package main

import (
	"errors"

	"github.com/spf13/cobra"

	"tilespace-backend/pkg/database"
)

var migrateDSN string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	Long: `Migrate applies every pending migrations/*.up.sql to the Postgres database
named by --dsn or POSTGRES_DSN. Applied versions are tracked in schema_migrations.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := migrateDSN
		if dsn == "" {
			dsn = cfg.PostgresDSN
		}
		if dsn == "" {
			return errors.New("no database: set POSTGRES_DSN or pass --dsn")
		}

		logger.Info().Str("dsn", maskPassword(dsn)).Msg("connecting")
		db, err := database.OpenPostgres(cmd.Context(), dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.ApplyMigrations(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info().Msg("database is up to date")
		return nil
	},
}

// maskPassword 隐藏连接字符串中的密码
func maskPassword(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	if len(dsn) > 10 {
		return dsn[:10] + "***"
	}
	return "***"
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().StringVar(&migrateDSN, "dsn", "", "Postgres connection string")
}
