package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardanlabs/conf"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"busoptimizer/backend/foundation/web"
	"busoptimizer/backend/internal/auth"
	"busoptimizer/backend/internal/commands"
	"busoptimizer/backend/internal/pkg/config"
	"busoptimizer/backend/internal/pkg/logger"
	"busoptimizer/backend/internal/pkg/repository/postgresql"
	"busoptimizer/backend/internal/router"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, commands.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			usage, uerr := config.Usage(&config.Config{})
			if uerr != nil {
				return errors.Wrap(uerr, "generating config usage")
			}
			fmt.Println(usage)
			return commands.ErrHelp
		}
		return err
	}
	if err = cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	log.Infof("config:\n%s", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// - postgresql
	postgresDB := postgresql.NewDB(postgresql.Config(cfg.DB), log)
	defer postgresDB.Close()
	if err = postgresDB.Ping(ctx); err != nil {
		return err
	}
	if err = commands.MigrateUP(ctx, postgresDB, log); err != nil {
		return err
	}

	// - redis
	var redisDB *redis.Client
	if cfg.Redis.Enabled {
		redisDB = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisDB.Close()
		if err = redisDB.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "redis ping")
		}
	}

	tokens, err := auth.New(cfg.Auth.JWTKey, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(web.NewApp(log), postgresDB, redisDB, tokens, cfg)
	if err = r.Init(ctx); err != nil {
		return err
	}

	server := http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r.App,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Infof("api listening on %s", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err = <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server error")

	case <-ctx.Done():
		log.Info("shutdown started")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return errors.Wrap(err, "could not stop server gracefully")
		}
		log.Info("shutdown complete")
	}

	return nil
}
