package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/zynqcloud/go-assets/internal/app"
	"github.com/zynqcloud/go-assets/internal/assets"
)

func newAuditCommand(envFile *string) *cobra.Command {
	var opts assets.AuditOptions
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report records without bytes and bytes without records.",
		Long: `audit walks the catalog and the storage backend and prints a JSON report of
records whose artifact is missing and of orphaned artifacts. Missing records
are never modified. With --prune, orphans older than --min-age are deleted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Logs go to stderr so stdout carries only the report.
			cfg, logger, err := loadRuntime(*envFile, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Manager.Audit(cmd.Context(), opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().BoolVar(&opts.Prune, "prune", false, "delete orphaned artifacts")
	cmd.Flags().DurationVar(&opts.MinAge, "min-age", assets.DefaultOrphanAge,
		"only treat artifacts older than this as orphans")
	return cmd
}
