package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/daemon"
	"github.com/sctg-development/photoacoustic-go/internal/errors"
	"github.com/sctg-development/photoacoustic-go/internal/httpapi"
	"github.com/sctg-development/photoacoustic-go/internal/logging"
)

const shutdownGrace = 10 * time.Second

// RunCommand launches the core daemon and blocks until SIGINT/SIGTERM.
func RunCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Launch the acquisition, processing, and thermal daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := conf.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			*settings = *loaded

			logging.Init(logging.Config{
				Path:       settings.Main.Log.Path,
				MaxSizeMB:  settings.Main.Log.MaxSizeMB,
				MaxBackups: settings.Main.Log.MaxBackups,
				MaxAgeDays: settings.Main.Log.MaxAgeDays,
				Level:      logging.ParseLevel(settings.Main.Log.Level),
				ToStderr:   settings.Main.Log.ToStderr,
			})
			logger := logging.ForComponent("cmd")

			supervisor, err := daemon.Launch(settings)
			if err != nil {
				return errors.New(err).Component("cmd").Category(errors.CategoryDaemon).Build()
			}

			server := httpapi.New(settings.HTTP, supervisor)
			go func() {
				if err := server.Start(); err != nil {
					logger.Error("http server stopped", logging.WithErr(err))
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()

			logger.Info("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)

			if err := supervisor.Shutdown(shutdownGrace); err != nil {
				logger.Warn("daemon shutdown incomplete", logging.WithErr(err))
			}
			return logging.Close()
		},
	}
}
