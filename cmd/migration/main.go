package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gitlab.com/dirk.krummacker/contacts-app/internal/config"
	"gitlab.com/dirk.krummacker/contacts-app/internal/logging"
	"gitlab.com/dirk.krummacker/contacts-app/internal/store"
	"go.uber.org/zap"
)

// Usage example on the command line:
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go up
// > DBHOST=localhost DBUSER=dirk DBPWD=bullo92 go run main.go down-to 1
// > DBDRIVER=pgx DBHOST=localhost:5432 DBUSER=postgres DBPWD=secret go run main.go status
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "migration [command] [args...]",
		Short: "Run the database migrations of the contacts app",
		Long: `Runs a goose command against the configured database. The migrations are embedded in
the binary. Commands: up (default), up-by-one, up-to VERSION, down, down-to VERSION,
redo, reset, status, version.`,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command, args = args[0], args[1:]
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer logger.Sync()
			db, err := store.Open(cmd.Context(), cfg.Database)
			if err != nil {
				logger.Error("could not open database", zap.Error(err))
				return err
			}
			defer db.Close()
			if err := store.Migrate(cmd.Context(), db, command, args...); err != nil {
				logger.Error("migration failed", zap.String("command", command), zap.Error(err))
				return err
			}
			logger.Info("migration finished", zap.String("command", command), zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "YAML configuration file")
	return cmd
}
