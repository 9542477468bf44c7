package main

import (
	"fmt"

	"github.com/2beens/fittrack/internal/db"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dbPool, err := openDBPool(cmd.Context())
		if err != nil {
			return fmt.Errorf("new db pool: %w", err)
		}
		defer dbPool.Close()

		applied, err := db.Migrate(cmd.Context(), dbPool)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		log.Infof("migrations applied: %d", applied)
		return nil
	},
}
