package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect leads that did not reach Pipefy or WordPress",
	Long:  "Commands for migrating, listing and exporting the delivery journal.",
}

// -- journal migrate --

var journalMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the journal schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		j, err := initJournal(cmd.Context())
		if err != nil {
			return err
		}
		defer j.Close() //nolint:errcheck

		zap.L().Info("journal migrated", zap.String("driver", cfg.Journal.Driver))
		return nil
	},
}

// -- journal list --

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List failed deliveries, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		j, err := initJournal(ctx)
		if err != nil {
			return err
		}
		defer j.Close() //nolint:errcheck

		f, err := journalFilter(cmd)
		if err != nil {
			return err
		}
		entries, err := j.List(ctx, f)
		if err != nil {
			return eris.Wrap(err, "journal list")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No failed deliveries found.")
			return nil
		}

		formatEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

// -- journal export --

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export failed deliveries to an xlsx workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			return eris.New("journal export: --out is required")
		}

		j, err := initJournal(ctx)
		if err != nil {
			return err
		}
		defer j.Close() //nolint:errcheck

		f, err := journalFilter(cmd)
		if err != nil {
			return err
		}
		entries, err := j.List(ctx, f)
		if err != nil {
			return eris.Wrap(err, "journal export")
		}

		file, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "journal export: create file")
		}
		if err := journal.ExportXLSX(file, entries); err != nil {
			_ = file.Close()
			return err
		}
		if err := file.Close(); err != nil {
			return eris.Wrap(err, "journal export: close file")
		}

		zap.L().Info("journal exported", zap.String("path", out), zap.Int("entries", len(entries)))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{journalListCmd, journalExportCmd} {
		c.Flags().String("upstream", "", "only entries for this upstream (pipefy, wordpress, directory)")
		c.Flags().Duration("since", 0, "only entries newer than this, e.g. 72h")
		c.Flags().Int("limit", 100, "maximum number of entries")
	}
	journalExportCmd.Flags().String("out", "", "destination .xlsx path")

	journalCmd.AddCommand(journalMigrateCmd, journalListCmd, journalExportCmd)
	rootCmd.AddCommand(journalCmd)
}

// initJournal opens the configured journal and applies its schema.
func initJournal(ctx context.Context) (journal.Journal, error) {
	if err := cfg.Validate("journal"); err != nil {
		return nil, err
	}
	return openJournal(ctx, cfg)
}

func journalFilter(cmd *cobra.Command) (journal.Filter, error) {
	upstream, _ := cmd.Flags().GetString("upstream")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")
	if since < 0 {
		return journal.Filter{}, eris.New("journal: --since must not be negative")
	}

	f := journal.Filter{Upstream: upstream, Limit: limit}
	if since > 0 {
		f.Since = time.Now().Add(-since)
	}
	return f, nil
}

// formatEntries writes a tabular list of journal entries to out.
func formatEntries(out io.Writer, entries []journal.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tUPSTREAM\tKIND\tNAME\tEMAIL\tPHONE")
	_, _ = fmt.Fprintln(w, "--\t-------\t--------\t----\t----\t-----\t-----")
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			e.Upstream,
			e.ErrorKind,
			e.Lead.Name,
			e.Lead.Email,
			e.Lead.Phone,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
