package main

import (
	"fmt"
	"net"
	"os"

	"github.com/2beens/fittrack/internal/auth"
	"github.com/2beens/fittrack/internal/jobs"
	"github.com/2beens/fittrack/internal/mailer"
	"github.com/2beens/fittrack/internal/users"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run a scheduled job once, outside of the service",
}

var resetDailyCmd = &cobra.Command{
	Use:   "reset-daily",
	Short: "Clear every user's workout-done flag and purge expired email tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPool, err := openDBPool(cmd.Context())
		if err != nil {
			return fmt.Errorf("new db pool: %w", err)
		}
		defer dbPool.Close()

		job := jobs.NewDailyResetJob(users.NewRepo(dbPool), users.NewTokensRepo(dbPool))
		return jobs.RunOnce(cmd.Context(), job, metricsManager)
	},
}

var sendRemindersCmd = &cobra.Command{
	Use:   "send-reminders",
	Short: "Email users whose workout time is this hour and who did not work out today",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPool, err := openDBPool(cmd.Context())
		if err != nil {
			return fmt.Errorf("new db pool: %w", err)
		}
		defer dbPool.Close()

		var m mailer.Mailer = mailer.LogMailer{}
		if cfg.SMTPHost != "" {
			m = mailer.NewSMTPMailer(mailer.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				User:     cfg.SMTPUser,
				Password: os.Getenv("FITTRACK_SMTP_PASS"),
				From:     cfg.EmailFrom,
			})
		}

		job := jobs.NewRemindersJob(
			users.NewRepo(dbPool),
			mailer.NewInstrumentedMailer(m, metricsManager),
			cfg.AppName,
		)
		return jobs.RunOnce(cmd.Context(), job, metricsManager)
	},
}

var cleanSessionsCmd = &cobra.Command{
	Use:   "clean-sessions",
	Short: "Drop expired sessions from the redis session registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionTTL, err := cfg.SessionTTLDuration()
		if err != nil {
			return err
		}

		rdb := redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: os.Getenv("FITTRACK_REDIS_PASS"),
		})
		defer rdb.Close()

		authService := auth.NewAuthService(sessionTTL, auth.TokenConfig{
			Secret: os.Getenv("FITTRACK_JWT_SECRET"),
			Issuer: cfg.JWTIssuer,
		}, rdb)

		return jobs.RunOnce(cmd.Context(), jobs.NewSessionsCleanupJob(authService), metricsManager)
	},
}

func init() {
	jobsCmd.AddCommand(resetDailyCmd)
	jobsCmd.AddCommand(sendRemindersCmd)
	jobsCmd.AddCommand(cleanSessionsCmd)
}
