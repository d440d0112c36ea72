package commands

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/paulexconde/surveyflow/internal/config"
	"github.com/paulexconde/surveyflow/internal/logger"
	"github.com/paulexconde/surveyflow/internal/repository"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	settings  = viper.New()
	appConfig *config.Config

	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:          "flowctl",
	Short:        "Validate and activate conditional surveys",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.NewConfig(settings)
		if err != nil {
			return err
		}
		logger.Init(cfg.LogLevel, prettyLogs)
		appConfig = cfg
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flags.String("database-url", "", "Postgres connection url (overrides DATABASE_URL)")
	flags.Int("workers", 4, "Parallel validations when checking several surveys")
	flags.BoolVar(&prettyLogs, "pretty", false, "Human readable logs on stderr")

	_ = settings.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))
	_ = settings.BindPFlag("DATABASE_URL", flags.Lookup("database-url"))
	_ = settings.BindPFlag("VALIDATION_WORKERS", flags.Lookup("workers"))
}

func Execute() error {
	return rootCmd.Execute()
}

// openStore connects to the configured database.
func openStore(ctx context.Context) (*repository.Postgres, *sqlx.DB, error) {
	if appConfig == nil {
		return nil, nil, fmt.Errorf("configuration not loaded")
	}

	db, err := repository.Connect(ctx, appConfig.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPostgres(db), db, nil
}
