package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		config, err := setup()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		db, err := openDB(ctx, config.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()

		return migrate(ctx, db)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
