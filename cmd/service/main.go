package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-app/internal/app"
	"gitlab.com/dirk.krummacker/contacts-app/internal/config"
	"gitlab.com/dirk.krummacker/contacts-app/internal/logging"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > PORT=8080 DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
// > DBDRIVER=sqlite go run main.go --port 3000
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	var port int
	cmd := &cobra.Command{
		Use:           "service",
		Short:         "Run the contacts web app",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
				if err := cfg.Validate(); err != nil {
					fmt.Fprintln(os.Stderr, err)
					return err
				}
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "YAML configuration file")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port, overrides PORT")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("could not start", zap.Error(err))
		return err
	}
	if err := a.Run(ctx); err != nil {
		logger.Error("server failed", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
