package cli

import (
	"time"

	"github.com/spf13/cobra"

	"component-registry/config"
)

func newReindexCmd() *cobra.Command {
	var (
		cursorFlag   string
		pageSizeFlag int
		onePageFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the relational and vector indexes from stored content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pageSize := pageSizeFlag
			if pageSize <= 0 {
				pageSize = config.Cfg.Maintenance.ReindexPageSize
			}

			cursor := cursorFlag
			for {
				report, err := service.Reindex(cmd.Context(), cursor, pageSize)
				if err != nil {
					return err
				}
				if err := printJSON(report); err != nil {
					return err
				}
				if !report.Truncated || onePageFlag {
					return nil
				}
				cursor = report.NextCursor
			}
		},
	}

	cmd.Flags().StringVar(&cursorFlag, "cursor", "", "Resume from a previous run's cursor")
	cmd.Flags().IntVar(&pageSizeFlag, "page-size", 0, "Manifests per page")
	cmd.Flags().BoolVar(&onePageFlag, "one-page", false, "Process a single page and print the next cursor")

	return cmd
}

func newReindexDepsCmd() *cobra.Command {
	var (
		cursorFlag   string
		pageSizeFlag int
		onePageFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "reindex-deps",
		Short: "Rescan stored content and rewrite manifest dependency lists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pageSize := pageSizeFlag
			if pageSize <= 0 {
				pageSize = config.Cfg.Maintenance.ReindexPageSize
			}

			cursor := cursorFlag
			for {
				report, err := service.ReindexDependencies(cmd.Context(), cursor, pageSize)
				if err != nil {
					return err
				}
				if err := printJSON(report); err != nil {
					return err
				}
				if !report.Truncated || onePageFlag {
					return nil
				}
				cursor = report.NextCursor
			}
		},
	}

	cmd.Flags().StringVar(&cursorFlag, "cursor", "", "Resume from a previous run's cursor")
	cmd.Flags().IntVar(&pageSizeFlag, "page-size", 0, "Manifests per page")
	cmd.Flags().BoolVar(&onePageFlag, "one-page", false, "Process a single page and print the next cursor")

	return cmd
}

func newCleanupDraftsCmd() *cobra.Command {
	var maxAgeHoursFlag int

	cmd := &cobra.Command{
		Use:   "cleanup-drafts",
		Short: "Discard drafts older than the configured maximum age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			maxAgeHours := maxAgeHoursFlag
			if maxAgeHours <= 0 {
				maxAgeHours = config.Cfg.Maintenance.DraftMaxAgeHours
			}

			report, err := service.CleanupExpiredDrafts(cmd.Context(), time.Duration(maxAgeHours)*time.Hour)
			if err != nil {
				return err
			}

			return printJSON(report)
		},
	}

	cmd.Flags().IntVar(&maxAgeHoursFlag, "max-age-hours", 0, "Draft age threshold in hours")

	return cmd
}
