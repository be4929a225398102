package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/zynqcloud/go-assets/internal/config"
	"github.com/zynqcloud/go-assets/internal/logging"
)

// version is overridden at build time with -ldflags "-X main.version=…".
var version = "dev"

// newRootCommand returns the root command with all subcommands attached.
func newRootCommand() *cobra.Command {
	cobra.EnableCommandSorting = false
	var envFile string
	root := &cobra.Command{
		Use:   "assetd",
		Short: "3D model asset service.",
		Long: `assetd accepts STL and OBJ model uploads, stores their bytes on local disk or
S3-compatible object storage, records their metadata in a catalog, and serves
them back for download.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env",
		"dotenv file loaded before reading the environment (ignored if missing)")

	root.AddCommand(newServeCommand(&envFile))
	root.AddCommand(newAuditCommand(&envFile))
	root.AddCommand(newVersionCommand())
	return root
}

// loadRuntime reads configuration and builds the process logger on w.
func loadRuntime(envFile string, w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, w)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
