package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/nao1215/recipescan/internal/database"
	"github.com/nao1215/recipescan/internal/model"
	"github.com/nao1215/recipescan/internal/report"
)

// TestNewExportCmd tests the export command creation.
func TestNewExportCmd(t *testing.T) {
	t.Parallel()

	cmd := NewExportCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "export RUN_ID" {
			t.Errorf("expected use 'export RUN_ID', got %q", cmd.Use)
		}
	})

	t.Run("requires a run ID", func(t *testing.T) {
		t.Parallel()

		cmd := NewExportCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error without a run ID")
		}
	})
}

// TestRunExportCmd tests writing an archived run as CSV.
func TestRunExportCmd(t *testing.T) {
	t.Parallel()

	t.Run("writes to standard output", func(t *testing.T) {
		t.Parallel()

		crawlReport := newTestCrawlReport()
		dbDir := seedDB(t, crawlReport)

		var out bytes.Buffer
		cmd := NewExportCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"--db-dir", dbDir, crawlReport.RunID.String()[:shortIDLen]})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, err := csv.NewReader(&out).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d records", len(records))
		}
		if !slices.Equal(records[0], report.CSVHeader) {
			t.Errorf("unexpected header %q", records[0])
		}
		if !slices.Equal(records[1], report.Record(crawlReport.Rows[0])) {
			t.Errorf("expected first row %q, got %q", report.Record(crawlReport.Rows[0]), records[1])
		}
		if records[2][1] != model.TitleNotFound || records[2][2] != model.NotAvailable {
			t.Errorf("expected sentinel row, got %q", records[2])
		}
	})

	t.Run("writes to a file", func(t *testing.T) {
		t.Parallel()

		crawlReport := newTestCrawlReport()
		dbDir := seedDB(t, crawlReport)
		outputPath := filepath.Join(t.TempDir(), "exports", "run.csv")

		cmd := NewExportCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--db-dir", dbDir, "-o", outputPath, crawlReport.RunID.String()})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if records := readCSVFile(t, outputPath); len(records) != 3 {
			t.Errorf("expected header and 2 rows, got %d records", len(records))
		}
	})

	t.Run("file output replaces an earlier file", func(t *testing.T) {
		t.Parallel()

		crawlReport := newTestCrawlReport()
		dbDir := seedDB(t, crawlReport)
		outputPath := filepath.Join(t.TempDir(), "run.csv")
		if err := os.WriteFile(outputPath, []byte("old,content\n"), 0600); err != nil {
			t.Fatalf("failed to seed output file: %v", err)
		}

		cmd := NewExportCmd()
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--db-dir", dbDir, "-o", outputPath, crawlReport.RunID.String()})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records := readCSVFile(t, outputPath)
		if !slices.Equal(records[0], report.CSVHeader) || len(records) != 3 {
			t.Errorf("expected a fresh file, got %q", records)
		}
	})

	t.Run("append keeps one header", func(t *testing.T) {
		t.Parallel()

		crawlReport := newTestCrawlReport()
		dbDir := seedDB(t, crawlReport)
		outputPath := filepath.Join(t.TempDir(), "all_recipes.csv")

		for range 2 {
			cmd := NewExportCmd()
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"--db-dir", dbDir, "-o", outputPath, "--append", crawlReport.RunID.String()})
			if err := cmd.Execute(); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		if records := readCSVFile(t, outputPath); len(records) != 5 {
			t.Errorf("expected header and 4 rows, got %d records", len(records))
		}
	})

	t.Run("append without output is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewExportCmd()
		cmd.SetArgs([]string{"--db-dir", t.TempDir(), "--append", "1234"})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for --append without --output")
		}
	})

	t.Run("unknown run is not found", func(t *testing.T) {
		t.Parallel()

		dbDir := seedDB(t, newTestCrawlReport())

		cmd := NewExportCmd()
		cmd.SetArgs([]string{"--db-dir", dbDir, "ffffffff"})
		if err := cmd.Execute(); !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("missing database is not found", func(t *testing.T) {
		t.Parallel()

		cmd := NewExportCmd()
		cmd.SetArgs([]string{"--db-dir", filepath.Join(t.TempDir(), "none"), "1234"})
		if err := cmd.Execute(); !errors.Is(err, database.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}
