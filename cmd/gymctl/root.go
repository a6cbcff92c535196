package main

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/logging"
	"github.com/2beens/gymtracker/internal/securestore"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
)

// app holds what every subcommand needs, set up once in PersistentPreRunE.
type app struct {
	env        string
	configPath string
	verbose    bool

	cfg            *config.Config
	redisClient    *redis.Client
	store          *securestore.Store
	closeStore     func() error
	metricsManager *metrics.Manager
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "gymctl",
		Short: "gymctl - maintenance tool for the gym tracker local store",
		Long: `gymctl works directly on the encrypted local store configured for the
gym tracker service: export and import user data, take full backups,
unlock throttled accounts, push pending data to the remote database
and purge a user's remote records.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.env, "env", "development", "environment [prod | production | dev | development | ddev | dockerdev ]")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "./config.toml", "path for the TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newExportCmd(a),
		newImportCmd(a),
		newBackupCmd(a),
		newStatsCmd(a),
		newUnlockCmd(a),
		newSyncCmd(a),
		newPurgeRemoteCmd(a),
	)

	return rootCmd
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.env, a.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	logLevel := "warn"
	if a.verbose {
		logLevel = "debug"
	}
	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    logLevel,
		Environment: cfg.Environment,
	})
	// keep stdout for command output
	log.SetOutput(os.Stderr)

	a.metricsManager = metrics.NewManager("gymctl", "store", prometheus.NewRegistry())

	storeParams := cfg.StoreOpenParams()
	// a running service may share the store, read and write it directly
	storeParams.CacheSizeMB = 0
	if cfg.StoreBackend == config.StoreBackendRedis {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
			Password: os.Getenv("GYM_REDIS_PASS"),
		})
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		storeParams.RedisClient = a.redisClient
	}

	store, closeStore, err := securestore.Open(ctx, storeParams, a.metricsManager)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = store
	a.closeStore = closeStore

	log.Debugf("opened [%s] store for env [%s]", cfg.StoreBackend, cfg.Environment)
	return nil
}

func (a *app) close() error {
	if a.closeStore != nil {
		if err := a.closeStore(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	if a.redisClient != nil {
		return a.redisClient.Close()
	}
	return nil
}
