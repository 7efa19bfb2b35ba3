// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/concurrent"
	"github.com/uiautodev/uiautodev/health"
	"github.com/uiautodev/uiautodev/internal/config"
	"github.com/uiautodev/uiautodev/internal/deviceconfig"
	"github.com/uiautodev/uiautodev/internal/dispatch"
	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/httpapi"
	"github.com/uiautodev/uiautodev/internal/iostunnel"
	"github.com/uiautodev/uiautodev/internal/provider"
	"github.com/uiautodev/uiautodev/internal/recording"
	"github.com/uiautodev/uiautodev/logging"
)

const applicationName = "uiautodevd"

func newLogger() *zap.Logger {
	l, _ := logging.NewZapLogger(&logging.Options{File: logging.StdoutFile, Level: "info"})
	return l
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   applicationName,
		Short: "supervises Android, iOS, and Harmony device sessions behind one HTTP API",
	}
}

func run(args []string) int {
	root := newRootCmd()
	config.ConfigureFlagSet(root.PersistentFlags())
	root.RunE = func(cmd *cobra.Command, _ []string) error {
		return serve(cmd)
	}
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		return 1
	}
	return 0
}

func serve(cmd *cobra.Command) error {
	logger := newLogger()
	defer logger.Sync()

	v, err := config.New(cmd.PersistentFlags())
	if err != nil {
		return fmt.Errorf("configure viper: %w", err)
	}
	opts, err := config.NewOptions(v)
	if err != nil {
		return fmt.Errorf("resolve configuration: %w", err)
	}

	recordings, err := recording.Open(opts.RecordingsDir)
	if err != nil {
		return fmt.Errorf("open recordings store: %w", err)
	}
	configStore, err := deviceconfig.Open(logger, opts.ConfigDir)
	if err != nil {
		return fmt.Errorf("open device config store: %w", err)
	}

	tunnel := iostunnel.New(logger, "")
	defer tunnel.Cleanup()

	backend := provider.AgentBackend
	if opts.UseADBDriver {
		backend = provider.BridgeBackend
	}

	providers := map[driver.Platform]driver.Provider{
		platformkind.Android: provider.NewAndroidProvider(logger, backend),
		platformkind.IOS:     provider.NewIOSProvider(logger, tunnel, configStore, opts.WDABundleID, opts.WDAPort),
		platformkind.Harmony: provider.NewHarmonyProvider(logger),
	}

	shutdown := make(chan struct{})
	var monitorWG sync.WaitGroup
	monitor := health.New(30*time.Second, logger)
	_ = monitor.Run(&monitorWG, shutdown)
	defer func() {
		close(shutdown)
		if !concurrent.WaitTimeout(&monitorWG, 5*time.Second) {
			logger.Warn("health monitor did not stop within the shutdown grace period")
		}
	}()

	handler := httpapi.New(httpapi.Deps{
		Logger:       logger,
		Providers:    providers,
		Dispatcher:   dispatch.New(logger),
		Recordings:   recordings,
		ConfigStore:  configStore,
		Health:       monitor,
		ExtraHeaders: map[string]string{"X-Content-Type-Options": "nosniff"},
	})

	addr := fmt.Sprintf(":%d", opts.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ErrorLog:          logging.NewErrorLog(logging.DefaultLogger{Writer: os.Stderr}, applicationName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		serverErr <- server.ListenAndServe()
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("listen and serve: %w", err)
		}
	case sig := <-signals:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
	}
	return nil
}

func main() {
	os.Exit(run(os.Args))
}
