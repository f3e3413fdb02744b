package database

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/recipescan/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *CrawlDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// testReport creates a finished crawl with one skipped category.
func testReport(started time.Time) *model.CrawlReport {
	report := model.NewCrawlReport("https://www.example.com/recipes")
	report.StartedAt = started
	report.FinishedAt = started.Add(2 * time.Minute)

	soup := model.RecipeRow{
		URL:         "https://www.example.com/tomato-soup",
		Title:       "Tomato Soup",
		Ingredients: model.Found([]string{"2 tomatoes", "1 cup broth"}),
		CookingTime: model.Found("30 mins"),
		NutritionFacts: model.Found(model.NutritionFacts{
			{Name: "Calories", Value: "120"},
			{Name: "Fat", Value: "3g"},
		}),
		PublishDate: model.Found("Updated May 1, 2024"),
		Timestamp:   started.Add(10 * time.Second),
		Category:    "Soup Recipes",
	}
	untitled := model.RecipeRow{
		URL:       "https://www.example.com/mystery",
		Title:     model.TitleNotFound,
		Timestamp: started.Add(20 * time.Second),
		Category:  "Soup Recipes",
	}

	report.Categories = []model.CategoryResult{
		{
			Ref:   model.CategoryRef{Name: "Soup Recipes", URL: "https://www.example.com/soup"},
			Items: []model.ItemRef{{URL: soup.URL}, {URL: untitled.URL}, {URL: soup.URL}},
			Rows:  3,
		},
		{
			Ref: model.CategoryRef{Name: "Bread Recipes", URL: "https://www.example.com/bread"},
			Err: errors.New("first item card: timed out"),
		},
	}
	report.Rows = []model.RecipeRow{soup, untitled}
	report.DuplicatesRemoved = 1

	return report
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		dbPath := filepath.Join(dbDir, "recipescan.db")
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("expected path %q, got %q", dbPath, db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")

		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created when CreateIfNotExists=false")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		report := testReport(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
		if err := db1.SaveRun(t.Context(), report); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		_ = db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database with CreateIfNotExists=false: %v", err)
		}
		defer db2.Close()

		if _, err := db2.FindRun(t.Context(), report.RunID.String()); err != nil {
			t.Errorf("expected run to persist: %v", err)
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists {
		t.Error("expected CreateIfNotExists to be true by default")
	}
	if !opts.EnableWAL {
		t.Error("expected EnableWAL to be true by default")
	}
}

// TestSaveRun tests storing and reading back a crawl.
func TestSaveRun(t *testing.T) {
	t.Parallel()

	t.Run("rows round trip with missing fields", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := testReport(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
		if err := db.SaveRun(t.Context(), report); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		rows, err := db.GetRunRows(t.Context(), report.RunID)
		if err != nil {
			t.Fatalf("failed to get rows: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}

		soup := rows[0]
		if lines, ok := soup.Ingredients.Get(); !ok || !slices.Equal(lines, []string{"2 tomatoes", "1 cup broth"}) {
			t.Errorf("unexpected ingredients %v (found=%v)", lines, ok)
		}
		if facts, ok := soup.NutritionFacts.Get(); !ok || facts.String() != "Calories: 120; Fat: 3g" {
			t.Errorf("unexpected nutrition facts %v (found=%v)", facts, ok)
		}
		if v := soup.CookingTime.OrElse(""); v != "30 mins" {
			t.Errorf("unexpected cooking time %q", v)
		}
		if !soup.Timestamp.Equal(report.Rows[0].Timestamp) {
			t.Errorf("expected timestamp %v, got %v", report.Rows[0].Timestamp, soup.Timestamp)
		}

		untitled := rows[1]
		if untitled.Title != model.TitleNotFound {
			t.Errorf("expected title sentinel, got %q", untitled.Title)
		}
		if untitled.Ingredients.IsFound() || untitled.NutritionFacts.IsFound() ||
			untitled.CookingTime.IsFound() || untitled.PublishDate.IsFound() {
			t.Errorf("expected every detail field missing, got %+v", untitled)
		}
	})

	t.Run("empty found ingredient list stays found", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := testReport(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
		report.Rows = []model.RecipeRow{{
			URL:         "https://www.example.com/water",
			Title:       "Water",
			Ingredients: model.Found([]string{}),
			Timestamp:   report.StartedAt,
			Category:    "Drinks",
		}}
		if err := db.SaveRun(t.Context(), report); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		rows, err := db.GetRunRows(t.Context(), report.RunID)
		if err != nil {
			t.Fatalf("failed to get rows: %v", err)
		}
		if !rows[0].Ingredients.IsFound() {
			t.Error("expected ingredients to stay found")
		}
	})

	t.Run("saving the same run twice fails and keeps the first", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := testReport(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
		if err := db.SaveRun(t.Context(), report); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
		if err := db.SaveRun(t.Context(), report); err == nil {
			t.Fatal("expected duplicate run ID to fail")
		}

		rows, err := db.GetRunRows(t.Context(), report.RunID)
		if err != nil {
			t.Fatalf("failed to get rows: %v", err)
		}
		if len(rows) != 2 {
			t.Errorf("expected the first run's 2 rows, got %d", len(rows))
		}
	})
}

// TestListRuns tests listing stored runs.
func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	older := testReport(base)
	newer := testReport(base.Add(time.Hour + 500*time.Millisecond))
	failed := testReport(base.Add(30 * time.Minute))
	failed.Error = errors.New("discover categories: not found")
	failed.Categories = nil
	failed.Rows = nil

	for _, r := range []*model.CrawlReport{older, newer, failed} {
		if err := db.SaveRun(t.Context(), r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	t.Run("newest first with counts", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(t.Context(), 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(runs))
		}

		got := []uuid.UUID{runs[0].ID, runs[1].ID, runs[2].ID}
		want := []uuid.UUID{newer.RunID, failed.RunID, older.RunID}
		if !slices.Equal(got, want) {
			t.Errorf("expected order %v, got %v", want, got)
		}

		first := runs[0]
		if first.Categories != 2 || first.SkippedCategories != 1 {
			t.Errorf("unexpected category counts %+v", first)
		}
		if first.Items != 3 || first.Rows != 2 || first.DuplicatesRemoved != 1 {
			t.Errorf("unexpected item counts %+v", first)
		}
		if !first.StartedAt.Equal(newer.StartedAt) {
			t.Errorf("expected start %v, got %v", newer.StartedAt, first.StartedAt)
		}
		if runs[1].Error != "discover categories: not found" {
			t.Errorf("expected stored error, got %q", runs[1].Error)
		}
	})

	t.Run("limit caps the result", func(t *testing.T) {
		t.Parallel()

		runs, err := db.ListRuns(t.Context(), 1)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].ID != newer.RunID {
			t.Errorf("expected only the newest run, got %+v", runs)
		}
	})
}

// TestFindRun tests lookup by full ID and prefix.
func TestFindRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	first := testReport(base)
	first.RunID = uuid.MustParse("aaaa1111-0000-4000-8000-000000000001")
	second := testReport(base.Add(time.Hour))
	second.RunID = uuid.MustParse("aaaa2222-0000-4000-8000-000000000002")
	for _, r := range []*model.CrawlReport{first, second} {
		if err := db.SaveRun(t.Context(), r); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}
	}

	tests := []struct {
		name    string
		query   string
		want    uuid.UUID
		wantErr error
	}{
		{name: "full ID", query: first.RunID.String(), want: first.RunID},
		{name: "unique prefix", query: "aaaa2", want: second.RunID},
		{name: "upper case prefix", query: "AAAA1", want: first.RunID},
		{name: "ambiguous prefix", query: "aaaa", wantErr: ErrAmbiguousRunID},
		{name: "no match", query: "bbbb", wantErr: ErrRunNotFound},
		{name: "empty query", query: " ", wantErr: ErrRunNotFound},
		{name: "wildcard is literal", query: "%", wantErr: ErrRunNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			run, err := db.FindRun(t.Context(), tt.query)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if run.ID != tt.want {
				t.Errorf("expected %v, got %v", tt.want, run.ID)
			}
		})
	}
}

// TestDeleteRun tests removing a run.
func TestDeleteRun(t *testing.T) {
	t.Parallel()

	t.Run("removes the run and its rows", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		report := testReport(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
		if err := db.SaveRun(t.Context(), report); err != nil {
			t.Fatalf("failed to save run: %v", err)
		}

		if err := db.DeleteRun(t.Context(), report.RunID); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		if _, err := db.FindRun(t.Context(), report.RunID.String()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		rows, err := db.GetRunRows(t.Context(), report.RunID)
		if err != nil {
			t.Fatalf("failed to get rows: %v", err)
		}
		if len(rows) != 0 {
			t.Errorf("expected no rows, got %d", len(rows))
		}
	})

	t.Run("unknown run is not found", func(t *testing.T) {
		t.Parallel()

		db := setupTestDB(t)
		if err := db.DeleteRun(t.Context(), uuid.New()); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}

// TestParseTimestamp tests parsing of stored timestamps.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "stored layout", input: formatTimestamp(want), want: want},
		{name: "RFC3339", input: "2024-05-01T10:00:00Z", want: want},
		{name: "SQLite datetime", input: "2024-05-01 10:00:00", want: want},
		{name: "garbage", input: "yesterday", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestFormatTimestampSortsAsText tests that the stored layout orders
// chronologically as text.
func TestFormatTimestampSortsAsText(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	earlier := formatTimestamp(base)
	later := formatTimestamp(base.Add(500 * time.Millisecond))
	if earlier >= later {
		t.Errorf("expected %q < %q", earlier, later)
	}
}
