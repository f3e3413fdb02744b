package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/recipescan/internal/config"
	"github.com/nao1215/recipescan/internal/database"
	"github.com/nao1215/recipescan/internal/model"
	"github.com/spf13/cobra"
)

// shortIDLen is the number of run ID characters shown in listings.
// Any unique prefix is accepted where a run ID is expected.
const shortIDLen = 8

// defaultRunsLimit is the number of runs listed by default.
const defaultRunsLimit = 20

// NewRunsCmd creates the runs command.
// This command lists crawls archived in the results database.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived crawl runs",
		Long: `Runs lists the crawls archived in the results database, newest first.

Each line shows the run ID prefix, start time, category and recipe counts,
and the error that ended the crawl, if any. Use the ID prefix with
'recipescan export' to write a run's recipes to CSV.

Examples:
  # List the 20 most recent runs
  recipescan runs

  # List every run
  recipescan runs --limit 0

  # Output the list in JSON format
  recipescan runs --json`,
		Args: cobra.NoArgs,
		RunE: runRunsCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultRunsLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().BoolP("json", "j", false,
		"Output the list in JSON format")
	cmd.Flags().StringP("delete", "d", "",
		"Delete the run with the given ID or unique ID prefix")
	cmd.Flags().String("db-dir", "",
		"Directory of the results database (default: XDG data directory)")

	return cmd
}

// runRunsCmd executes the runs command.
func runRunsCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	deleteID, err := cmd.Flags().GetString("delete")
	if err != nil {
		return err
	}

	dbDir, err := getDBDir(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	db, err := openExistingDB(dbDir)
	if errors.Is(err, fs.ErrNotExist) {
		if deleteID != "" {
			return fmt.Errorf("%w: %s", database.ErrRunNotFound, deleteID)
		}
		fmt.Fprintln(out, "No crawl runs archived yet.")
		fmt.Fprintln(out, "\nUse 'recipescan crawl' to crawl a site.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	if deleteID != "" {
		run, err := db.FindRun(ctx, deleteID)
		if err != nil {
			return err
		}
		if err := db.DeleteRun(ctx, run.ID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted crawl run %s\n", run.ID)
		return nil
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return writeRunsJSON(out, runs)
	}
	writeRunsTable(out, runs)
	return nil
}

// getDBDir returns the --db-dir flag or the XDG data directory.
func getDBDir(cmd *cobra.Command) (string, error) {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return "", err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}
	return dbDir, nil
}

// openExistingDB opens the results database without creating it.
// It returns an error wrapping fs.ErrNotExist when no crawl has been
// archived in dbDir.
func openExistingDB(dbDir string) (*database.CrawlDB, error) {
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); err != nil {
		return nil, err
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// writeRunsTable prints runs as an aligned table.
func writeRunsTable(out io.Writer, runs []database.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl runs archived yet.")
		return
	}

	fmt.Fprintf(out, "Crawl runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-8s  %-19s  %-8s  %-16s  %-7s  %s\n",
		"ID", "Started", "Duration", "Categories", "Recipes", "Error")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-8s  %-19s  %-8s  %-16s  %-7d  %s\n",
			run.ID.String()[:shortIDLen],
			run.StartedAt.Local().Format(model.TimestampLayout),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Second),
			formatCategoryCount(run),
			run.Rows,
			run.Error,
		)
	}

	fmt.Fprintln(out, "\nUse 'recipescan export <id>' to write a run's recipes to CSV.")
}

// formatCategoryCount renders "crawled (skipped)" for a run.
func formatCategoryCount(run database.RunSummary) string {
	if run.SkippedCategories == 0 {
		return fmt.Sprintf("%d", run.Categories)
	}
	return fmt.Sprintf("%d (%d skipped)", run.Categories, run.SkippedCategories)
}

// runJSON is the JSON form of one archived run.
type runJSON struct {
	ID                string    `json:"id"`
	LandingURL        string    `json:"landing_url"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	Categories        int       `json:"categories"`
	SkippedCategories int       `json:"skipped_categories"`
	Items             int       `json:"items"`
	Rows              int       `json:"rows"`
	DuplicatesRemoved int       `json:"duplicates_removed"`
	Error             string    `json:"error,omitempty"`
}

// writeRunsJSON prints runs as a JSON array.
func writeRunsJSON(out io.Writer, runs []database.RunSummary) error {
	result := make([]runJSON, 0, len(runs))
	for _, run := range runs {
		result = append(result, runJSON{
			ID:                run.ID.String(),
			LandingURL:        run.LandingURL,
			StartedAt:         run.StartedAt,
			FinishedAt:        run.FinishedAt,
			Categories:        run.Categories,
			SkippedCategories: run.SkippedCategories,
			Items:             run.Items,
			Rows:              run.Rows,
			DuplicatesRemoved: run.DuplicatesRemoved,
			Error:             run.Error,
		})
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
