package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/recipescan/internal/database"
	"github.com/nao1215/recipescan/internal/model"
	"github.com/nao1215/recipescan/internal/report"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export RUN_ID",
		Short: "Write the recipes of an archived run to CSV",
		Long: `Export writes the recipe rows of an archived crawl run as CSV.

RUN_ID may be the full run ID or any unique prefix, as shown by
'recipescan runs'. Rows are written in the order the crawl produced them,
with the same columns as the crawl output.

Examples:
  # Print a run to standard output
  recipescan export 1a2b3c4d

  # Write a run to a file, replacing it
  recipescan export 1a2b3c4d -o soups.csv

  # Append a run to an existing dataset
  recipescan export 1a2b3c4d -o all_recipes.csv --append`,
		Args: cobra.ExactArgs(1),
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Write the CSV to the specified file (default: standard output)")
	cmd.Flags().BoolP("append", "a", false,
		"Append to the output file, writing the header only if it is empty")
	cmd.Flags().String("db-dir", "",
		"Directory of the results database (default: XDG data directory)")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, args []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	appendMode, err := cmd.Flags().GetBool("append")
	if err != nil {
		return err
	}
	if appendMode && outputPath == "" {
		return errors.New("--append requires --output")
	}

	dbDir, err := getDBDir(cmd)
	if err != nil {
		return err
	}

	db, err := openExistingDB(dbDir)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", database.ErrRunNotFound, args[0])
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()

	run, err := db.FindRun(ctx, args[0])
	if err != nil {
		return err
	}

	rows, err := db.GetRunRows(ctx, run.ID)
	if err != nil {
		return err
	}

	switch {
	case outputPath == "":
		_, err = report.NewCSVWriter(cmd.OutOrStdout()).WriteRows(rows)
		return err
	case appendMode:
		if _, err := report.AppendCSV(outputPath, rows); err != nil {
			return fmt.Errorf("failed to append CSV: %w", err)
		}
	default:
		if err := writeCSVFile(outputPath, rows); err != nil {
			return fmt.Errorf("failed to write CSV: %w", err)
		}
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d recipes from run %s to %s\n", len(rows), run.ID, outputPath)
	return nil
}

// writeCSVFile writes rows with a header to path, replacing any earlier file.
func writeCSVFile(path string, rows []model.RecipeRow) (err error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = report.NewCSVWriter(f).WriteRows(rows)
	return err
}
