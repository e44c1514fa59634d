package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/VictoriaMetrics/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/smsfilter/internal/backup"
	"github.com/solatis/smsfilter/internal/core/config"
	"github.com/solatis/smsfilter/internal/core/db"
	"github.com/solatis/smsfilter/internal/core/logging"
	"github.com/solatis/smsfilter/internal/core/store"
	"github.com/solatis/smsfilter/internal/rules"
)

const Version = "0.1.0"

var (
	configFile string

	cfg    *config.ServiceConfig
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:           "smsfilter",
	Short:         "SMS filter rule engine",
	Long:          `smsfilter decides whether inbound messages are blocked or passed using an ordered list of filter rules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger, err = logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat)
		return err
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file path")
	flags.String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	flags.String("data-dir", "./data", "directory of the default SQLite database")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "json", "log format (json, text)")
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

// openDB opens the configured database, defaulting to a SQLite file in
// the data directory.
func openDB() (*sqlx.DB, error) {
	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
		dbURL = db.URLForDataDir(cfg.DataDir)
	}
	return db.Open(dbURL)
}

// app bundles the storage-backed components a command needs.
type app struct {
	db       *sqlx.DB
	queries  *db.Queries
	rules    *store.RuleStore
	messages *store.MessageStore
	metrics  *metrics.Set
	engine   *rules.Engine
	backups  *backup.Manager
}

// openApp opens the configured database, applies pending migrations and
// wires the stores.
func openApp() (*app, error) {
	database, err := openDB()
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}

	set := metrics.NewSet()
	ruleStore := store.NewRuleStore(queries)
	return &app{
		db:       database,
		queries:  queries,
		rules:    ruleStore,
		messages: store.NewMessageStore(queries),
		metrics:  set,
		engine:   rules.NewEngine(ruleStore, logger, set),
		backups:  backup.NewManager(ruleStore, logger, set),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
