package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"ibank-scraper/internal/config"
	"ibank-scraper/internal/database"
	"ibank-scraper/internal/logging"
	"ibank-scraper/internal/notify"
	"ibank-scraper/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath  string
	cookiesPath string
)

var (
	env     config.Env
	profile config.Profile
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "ibank-scraper",
	Short:         "ibank-scraper logs into an internet banking portal and prints balances and transactions as JSON.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var dotenv bool
		env, dotenv = config.LoadEnv()

		base, err := logging.NewLoggerFromEnv()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logger, _ = logging.WithRun(base)
		logger.Debug("starting", zap.String("command", cmd.Name()), zap.Bool("dotenv", dotenv))

		profile, err = config.ReadProfile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read profile %s: %w", configPath, err)
		}
		if err := profile.Validate(); err != nil {
			return err
		}
		if cookiesPath != "" {
			env.SessionStore = "file"
			env.SessionFile = cookiesPath
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The portal profile to use.")
	rootCmd.PersistentFlags().StringVar(&cookiesPath, "cookies", "", "Keep the session in this JSON file instead of the configured store.")
}

// ExecuteContext runs the root command and exits with status 1 on failure.
func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
			_ = logger.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// backends holds the storage a command needs, opened from the environment.
type backends struct {
	store  session.Store
	ledger notify.Ledger
	db     *sql.DB
	redis  *session.RedisStore
}

func (b *backends) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}

func openBackends() (*backends, error) {
	b := &backends{}

	if env.DBConn != "" {
		db, err := database.Open(env.DBConn)
		if err != nil {
			return nil, err
		}
		b.db = db
		b.ledger = notify.NewPostgresLedger(db, profile.Name)
	} else {
		b.ledger = notify.NewFileLedger(env.NotifiedFile, profile.Name)
	}

	switch env.SessionStore {
	case "file", "":
		b.store = session.NewFileStore(env.SessionFile)
	case "postgres":
		if b.db == nil {
			b.Close()
			return nil, fmt.Errorf("SESSION_STORE=postgres needs DB_CONN")
		}
		b.store = session.NewPostgresStore(b.db, profile.Name)
	case "redis":
		cfg := session.DefaultRedisConfig()
		if env.RedisAddr != "" {
			cfg.Addr = env.RedisAddr
		}
		cfg.Password = env.RedisPassword
		store, err := session.NewRedisStore(cfg, profile.Name)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.redis = store
		b.store = store
	default:
		b.Close()
		return nil, fmt.Errorf("unknown SESSION_STORE %q", env.SessionStore)
	}

	logger.Debug("storage ready",
		zap.String("session_store", env.SessionStore),
		zap.Bool("postgres", b.db != nil),
	)
	return b, nil
}

func newNotifier(ledger notify.Ledger) *notify.Webhook {
	if env.WebhookURL == "" {
		return nil
	}
	return notify.NewWebhook(env.WebhookURL, profile.Name, ledger, logger)
}
