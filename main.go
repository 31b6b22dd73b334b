package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"group_chat/internal/api"
	"group_chat/internal/logger"
	"group_chat/internal/observability"
	"group_chat/internal/repository"
	"group_chat/internal/service"
	"group_chat/internal/storage"
	"group_chat/pkg/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "group-chat",
		Short:        "Real-time multi-group chat relay",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./pkg/config/config.yaml or ./config.yaml)")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the WebSocket chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log)
		},
	}

	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the messages table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configPath)
			if err != nil {
				return err
			}
			db, err := storage.Open(cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := repository.Migrate(db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migration complete", "driver", cfg.DB.Driver)
			return nil
		},
	}

	root.AddCommand(serve, migrate)
	return root
}

// setup 載入配置並把全局日誌器替換為配置指定的格式和級別
func setup(configPath string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	return cfg, log, nil
}

func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 初始化資料庫連接
	db, err := storage.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(db); err != nil {
		return fmt.Errorf("failed to auto migrate database: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	// 初始化 repositories 和 services
	repos := repository.NewRepositories(db, cfg.Chat.TimeLayout)
	services := service.NewServices(repos, cfg.Chat, metrics, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	api.SetupRoutes(r, services, cfg.Server, reg, log)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "address", cfg.Server.Address, "db", cfg.DB.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
