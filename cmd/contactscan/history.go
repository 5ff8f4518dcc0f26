package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/contactscan/internal/config"
	"github.com/nao1215/contactscan/internal/database"
	"github.com/nao1215/contactscan/internal/engine"
	"github.com/nao1215/contactscan/internal/report"
)

// defaultHistoryLimit is the number of lookups shown without --limit.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previously resolved lookups",
		Long: `History lists lookups recorded in the local database, newest first.

Examples:
  # Show the 20 most recent lookups
  contactscan history

  # Lookups of one website during the last day, as JSON
  contactscan history --website https://jane.example --since 24h -f json

  # Lookups since a date
  contactscan history --since 2026-01-01 --limit 0

  # A single lookup by ID
  contactscan history --id 42`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("name", "n", "", "Only lookups of this display name")
	cmd.Flags().StringP("website", "w", "", "Only lookups of this website")
	cmd.Flags().String("since", "",
		"Only lookups after a duration ago (e.g., 24h) or a date (YYYY-MM-DD)")
	cmd.Flags().IntP("limit", "l", defaultHistoryLimit,
		"Maximum number of lookups (0 for all)")
	cmd.Flags().Int64("id", 0, "Show the lookup with this ID")

	addConfigFlag(cmd)
	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Report format: simple, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	filter, id, err := historyFilter(cmd, time.Now())
	if err != nil {
		return err
	}

	if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "No lookup history yet.")
		return nil
	}

	db, err := database.Open(cfg.DBDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	lookups, err := queryHistory(cmd.Context(), db, filter, id)
	if err != nil {
		return err
	}

	return writeReport(cmd, cfg, report.FromLookups(lookups), false)
}

// queryHistory returns the lookup with id, or the lookups matching filter
// when id is zero.
func queryHistory(ctx context.Context, db *database.ContactDB, filter database.LookupFilter, id int64) ([]engine.Lookup, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if id != 0 {
		rec, err := db.GetLookup(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get lookup: %w", err)
		}
		if rec == nil {
			return nil, fmt.Errorf("lookup %d not found", id)
		}
		return []engine.Lookup{rec.Lookup}, nil
	}

	records, err := db.ListLookups(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list lookups: %w", err)
	}
	lookups := make([]engine.Lookup, len(records))
	for i, rec := range records {
		lookups[i] = rec.Lookup
	}
	return lookups, nil
}

// historyFilter reads the filter flags. now anchors relative --since values.
func historyFilter(cmd *cobra.Command, now time.Time) (database.LookupFilter, int64, error) {
	var (
		filter database.LookupFilter
		err    error
	)
	flags := cmd.Flags()

	if filter.Name, err = flags.GetString("name"); err != nil {
		return filter, 0, err
	}
	if filter.Website, err = flags.GetString("website"); err != nil {
		return filter, 0, err
	}
	if filter.Limit, err = flags.GetInt("limit"); err != nil {
		return filter, 0, err
	}
	if filter.Limit < 0 {
		return filter, 0, fmt.Errorf("--limit must not be negative: %d", filter.Limit)
	}

	since, err := flags.GetString("since")
	if err != nil {
		return filter, 0, err
	}
	if since != "" {
		if filter.Since, err = parseSince(since, now); err != nil {
			return filter, 0, err
		}
	}

	id, err := flags.GetInt64("id")
	if err != nil {
		return filter, 0, err
	}
	return filter, id, nil
}

// parseSince accepts a duration before now, a date or an RFC 3339 time.
func parseSince(value string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("--since must not be negative: %s", value)
		}
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q (want a duration like 24h or a date like 2006-01-02)", value)
}
