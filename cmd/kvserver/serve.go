package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WiccyCheng/MyKVServer/internal/config"
	"github.com/WiccyCheng/MyKVServer/internal/logging"
	"github.com/WiccyCheng/MyKVServer/internal/metricsx"
	"github.com/WiccyCheng/MyKVServer/pkg/broadcaster"
	"github.com/WiccyCheng/MyKVServer/pkg/frame"
	"github.com/WiccyCheng/MyKVServer/pkg/kvpb"
	"github.com/WiccyCheng/MyKVServer/pkg/security"
	"github.com/WiccyCheng/MyKVServer/pkg/service"
	"github.com/WiccyCheng/MyKVServer/pkg/transport"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept mTLS connections and dispatch commands against the configured storage backend",
	Example: "# kvserver serve --config kvserver.yaml",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "kvserver.yaml", "Configuration file path (not read: configuration is loaded from kvserver.* in . or ./config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	store, closeStore, err := config.OpenStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	certPEM, err := os.ReadFile(cfg.TLS.CertFile)
	if err != nil {
		return fmt.Errorf("read cert file: %w", err)
	}
	keyPEM, err := os.ReadFile(cfg.TLS.KeyFile)
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}
	var clientCAPEM []byte
	if cfg.TLS.ClientCAFile != "" {
		clientCAPEM, err = os.ReadFile(cfg.TLS.ClientCAFile)
		if err != nil {
			return fmt.Errorf("read client ca file: %w", err)
		}
	}

	acceptor, err := security.NewServerAcceptor(certPEM, keyPEM, clientCAPEM)
	if err != nil {
		return fmt.Errorf("build tls acceptor: %w", err)
	}

	metricsRegistry := metricsx.NewRegistry()
	bcast := broadcaster.New(metricsRegistry.BroadcasterMetrics())

	hooks := service.Hooks{
		OnReceived: []func(*kvpb.CommandRequest){
			func(req *kvpb.CommandRequest) { logger.Debug("request received", zap.String("request", req.String())) },
		},
	}
	svc := service.New(store, bcast, hooks, logger)

	codec := &frame.Codec{}
	srv := transport.NewServer(cfg.Server.Addr(), acceptor, svc, codec, logger, metricsRegistry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	httpErrCh := make(chan error, 1)
	if cfg.Metrics.Enabled {
		go func() { httpErrCh <- runMetricsServer(ctx, cfg, metricsRegistry, logger) }()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
		stop()
	}

	var shutdownErr *multierror.Error
	if err := srv.Stop(); err != nil {
		shutdownErr = multierror.Append(shutdownErr, fmt.Errorf("stop transport: %w", err))
	}
	if err := closeStore(); err != nil {
		shutdownErr = multierror.Append(shutdownErr, fmt.Errorf("close storage: %w", err))
	}
	logger.Info("transport stopped")
	return shutdownErr.ErrorOrNil()
}

func runMetricsServer(ctx context.Context, cfg config.Config, registry *metricsx.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Endpoint, registry.Handler())

	httpServer := &http.Server{
		Addr:         cfg.Metrics.ListenAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", cfg.Metrics.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics http server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
