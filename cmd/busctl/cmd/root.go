package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"busoptimizer/backend/internal/pkg/config"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
)

var rootCmd = &cobra.Command{
	Use:   "busctl",
	Short: "Operator tool for the bus optimizer backend",
	Long: `busctl runs schema migrations, imports workbooks and manages accounts
without going through the HTTP API. Configuration is read the same way as
the API server: BUSOPT_CONFIG names the yaml file and BUSOPT_* variables
override single values.

Examples:
  busctl migrate
  busctl import-master master_list.xlsx
  busctl import-attendance scans_0112.xlsx --shift night
  busctl create-user --username ops --password secret --role ADMIN`,
	SilenceUsage: true,
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

// backend is the connected state a database command works with.
type backend struct {
	cfg   *config.Config
	log   logger.Logger
	db    *postgresql.Database
	redis *redis.Client
}

func (b *backend) Close() {
	if b.redis != nil {
		_ = b.redis.Close()
	}
	_ = b.db.Close()
}

func connect(ctx context.Context) (*backend, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, err
	}
	if cfg.DB.User == "" || cfg.DB.Host == "" || cfg.DB.Name == "" {
		return nil, errors.New("missing required database configuration")
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	b := &backend{cfg: cfg, log: log, db: postgresql.NewDB(postgresql.Config(cfg.DB), log)}
	if err = b.db.Ping(ctx); err != nil {
		return nil, err
	}

	if cfg.Redis.Enabled {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err = b.redis.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unavailable, cached reports are not invalidated")
			_ = b.redis.Close()
			b.redis = nil
		}
	}

	return b, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "encode output")
}
