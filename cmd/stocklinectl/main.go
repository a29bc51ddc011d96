// Command stocklinectl runs administrative tasks against the stockline
// database without going through the HTTP API.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stockline/stockline/internal/app"
	"github.com/stockline/stockline/internal/config"
	"github.com/stockline/stockline/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stocklinectl",
		Short:         "Administer a stockline deployment",
		SilenceUsage:  true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newProvisionCmd(),
		newBootstrapCmd(),
		newImportCmd(),
	)
	return root
}

// loadConfig reads .env when present, then the environment, and installs the
// configured logger.
func loadConfig() (*config.Config, io.Closer, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.Logging()), nil
}

// withApp runs fn against a fully wired App and releases it afterwards.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, closer, err := loadConfig()
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
