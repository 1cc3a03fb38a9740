package main

import (
	"fmt"
	"os"

	"usercenter/config"
	"usercenter/database"
	"usercenter/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type rootFlags struct {
	env       string
	configDir []string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "usercenter",
		Short:         "User center API: users, profiles, roles and request logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.env, "env", "", "environment name (development, production, test); defaults to $APP_ENV")
	root.PersistentFlags().StringSliceVar(&flags.configDir, "config", nil, "directories searched for config.yaml and .env files")

	root.AddCommand(
		newServeCommand(flags),
		newMigrateCommand(flags),
		newSeedCommand(flags),
	)
	return root
}

// bootstrap loads configuration and builds the logger and database handle
// every command needs. The returned cleanup closes both.
func bootstrap(flags *rootFlags) (*config.Config, *zap.Logger, *gorm.DB, func(), error) {
	cfg, err := config.Load(flags.env, flags.configDir...)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, nil, err
	}

	cleanup := func() {
		if err := database.Close(db); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
		_ = logger.Sync() // Make sure the buffer is flushed before the program exits
	}
	return cfg, logger, db, cleanup, nil
}

func newMigrateCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, db, cleanup, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := database.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migration completed")
			return nil
		},
	}
}

func newSeedCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default roles",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, db, cleanup, err := bootstrap(flags)
			if err != nil {
				return err
			}
			defer cleanup()

			return database.SeedInitialData(db, logger)
		},
	}
}
