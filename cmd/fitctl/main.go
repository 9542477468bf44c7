package main

import (
	"context"
	"fmt"
	"os"

	"github.com/2beens/fittrack/internal/config"
	"github.com/2beens/fittrack/internal/db"
	"github.com/2beens/fittrack/internal/logging"
	"github.com/2beens/fittrack/internal/telemetry/metrics"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	envFlag        string
	configPathFlag string

	cfg            *config.Config
	metricsManager *metrics.Manager
)

var rootCmd = &cobra.Command{
	Use:   "fitctl",
	Short: "Admin tooling for the fittrack backend",
	Long: `fitctl runs one-off maintenance tasks against the fittrack database and redis.

EXAMPLES:

  $ fitctl migrate --env production
  $ fitctl jobs reset-daily
  $ fitctl jobs send-reminders
  $ fitctl jobs clean-sessions
  $ fitctl users hash-password 's3cret'`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFlag, configPathFlag)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logging.Setup(logging.LoggerSetupParams{
			LogToStdout:   true,
			LogLevel:      cfg.LogLevel,
			LogFormatJSON: cfg.LogFormatJSON,
			Environment:   cfg.Environment,
		})

		metricsManager = metrics.NewManager("fittrack", "fitctl", metrics.SetupPrometheus())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFlag, "env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "./config.toml", "path for the TOML config file")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(usersCmd)
}

// openDBPool connects using the configured postgres params and FITTRACK_DB_PASS.
func openDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	dbPassword := os.Getenv("FITTRACK_DB_PASS")
	if dbPassword == "" {
		log.Warnln("db password not set. use FITTRACK_DB_PASS")
	}

	return db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:     cfg.PostgresHost,
		DBPort:     cfg.PostgresPort,
		DBName:     cfg.PostgresDBName,
		DBUser:     cfg.PostgresUser,
		DBPassword: dbPassword,
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
