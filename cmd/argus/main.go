// Command argus runs the real-time virtual-thread/GC/CPU profiler.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof is intentionally available when --pprof flag is set
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"argus/internal/config"
	"argus/internal/hostsource"
	"argus/internal/logging"
	"argus/internal/system"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "argus",
		Short: "Real-time virtual-thread, GC, and CPU profiler",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			pprofAddr, _ := cmd.Flags().GetString("pprof")
			if pprofAddr != "" {
				go func() {
					logger.Info("pprof server listening", "addr", pprofAddr)
					pprofSrv := &http.Server{Addr: pprofAddr, ReadHeaderTimeout: 10 * time.Second}
					if err := pprofSrv.ListenAndServe(); err != nil {
						logger.Error("pprof server error", "error", err)
					}
				}()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().String("pprof", "", "pprof HTTP server address (e.g. localhost:6060). WARNING: exposes CPU/memory profiles and goroutine dumps — bind to loopback only, never expose publicly")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the profiler service",
		RunE: func(cmd *cobra.Command, args []string) error {
			socketPath, _ := cmd.Flags().GetString("host-socket")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, logger, socketPath)
		},
	}
	serveCmd.Flags().String("host-socket", "/tmp/argus.sock", "Unix socket path the host runtime's event transport connects to")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, socketPath string) error {
	cfg, warnings := config.Load()
	for _, w := range warnings {
		logger.Warn("config: " + w.String())
	}

	source := hostsource.New(socketPath, logger)
	sys := system.New(cfg, source, logger)

	go func() {
		if err := source.Listen(ctx); err != nil {
			logger.Error("host source listener error", "error", err)
		}
	}()

	logger.Info("starting argus", "hostSocket", socketPath, "serverPort", cfg.ServerPort)
	return sys.Start(ctx)
}
