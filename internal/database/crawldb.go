package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/recipescan/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "recipescan.db"

var (
	// ErrRunNotFound is returned when no stored run matches an ID.
	ErrRunNotFound = errors.New("crawl run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("crawl run ID prefix is ambiguous")
)

// CrawlDB provides SQLite-based storage for finished crawls.
// It is an archive: a crawl writes its run once and never reads earlier
// runs back.
//
// Design decision: We use a single database file for every run rather
// than one file per run, so runs can be listed and compared with plain
// queries.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw prevents creating a new file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id TEXT PRIMARY KEY,
		landing_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		items INTEGER NOT NULL DEFAULT 0,
		duplicates_removed INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Categories in discovery order
	CREATE TABLE IF NOT EXISTS crawl_categories (
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		item_count INTEGER NOT NULL DEFAULT 0,
		row_count INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		PRIMARY KEY (run_id, position)
	);

	-- Final rows in output order; NULL marks a missing field
	CREATE TABLE IF NOT EXISTS recipes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL,
		ingredients TEXT,
		cooking_time TEXT,
		nutrition_facts TEXT,
		publish_date TEXT,
		timestamp TEXT NOT NULL,
		category TEXT NOT NULL,
		UNIQUE(run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_recipes_run ON recipes(run_id);
	CREATE INDEX IF NOT EXISTS idx_recipes_url ON recipes(url);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary describes one stored crawl.
type RunSummary struct {
	ID                uuid.UUID
	LandingURL        string
	StartedAt         time.Time
	FinishedAt        time.Time
	Categories        int
	SkippedCategories int
	Items             int
	Rows              int
	DuplicatesRemoved int
	Error             string
}

// SaveRun stores a finished crawl with its categories and final rows in
// one transaction.
func (cdb *CrawlDB) SaveRun(ctx context.Context, report *model.CrawlReport) (err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var runErr sql.NullString
	if report.Error != nil {
		runErr = sql.NullString{String: report.Error.Error(), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (id, landing_url, started_at, finished_at, items, duplicates_removed, error)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID.String(),
		report.LandingURL,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.ItemCount(),
		report.DuplicatesRemoved,
		runErr,
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	for i, c := range report.Categories {
		var catErr sql.NullString
		if c.Err != nil {
			catErr = sql.NullString{String: c.Err.Error(), Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO crawl_categories (run_id, position, name, url, item_count, row_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, report.RunID.String(), i, c.Ref.Name, c.Ref.URL, len(c.Items), c.Rows, catErr)
		if err != nil {
			return fmt.Errorf("failed to save category %q: %w", c.Ref.Name, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO recipes (run_id, position, url, title, ingredients, cooking_time, nutrition_facts, publish_date, timestamp, category)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare recipe insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range report.Rows {
		ingredients, err := jsonColumn(row.Ingredients)
		if err != nil {
			return fmt.Errorf("failed to serialize ingredients: %w", err)
		}
		nutrition, err := jsonColumn(row.NutritionFacts)
		if err != nil {
			return fmt.Errorf("failed to serialize nutrition facts: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			report.RunID.String(),
			i,
			row.URL,
			row.Title,
			ingredients,
			textColumn(row.CookingTime),
			nutrition,
			textColumn(row.PublishDate),
			formatTimestamp(row.Timestamp),
			row.Category,
		)
		if err != nil {
			return fmt.Errorf("failed to save recipe %q: %w", row.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return nil
}

// runSummaryQuery selects RunSummary columns; callers append WHERE/ORDER.
const runSummaryQuery = `
	SELECT r.id, r.landing_url, r.started_at, r.finished_at, r.items, r.duplicates_removed, r.error,
		(SELECT COUNT(*) FROM crawl_categories c WHERE c.run_id = r.id),
		(SELECT COUNT(*) FROM crawl_categories c WHERE c.run_id = r.id AND c.error IS NOT NULL),
		(SELECT COUNT(*) FROM recipes p WHERE p.run_id = r.id)
	FROM crawl_runs r
	`

// ListRuns returns stored runs, newest first. A limit of zero or less
// returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := runSummaryQuery + ` ORDER BY r.started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRunSummary(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// FindRun returns the run whose ID equals or starts with idOrPrefix.
// It returns ErrRunNotFound when nothing matches and ErrAmbiguousRunID
// when a prefix matches several runs.
func (cdb *CrawlDB) FindRun(ctx context.Context, idOrPrefix string) (*RunSummary, error) {
	prefix := strings.ToLower(strings.TrimSpace(idOrPrefix))
	if prefix == "" {
		return nil, ErrRunNotFound
	}

	rows, err := cdb.db.QueryContext(ctx,
		runSummaryQuery+` WHERE r.id LIKE ? ESCAPE '\' ORDER BY r.started_at DESC LIMIT 2`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find crawl run: %w", err)
	}
	defer rows.Close()

	var found []RunSummary
	for rows.Next() {
		run, err := scanRunSummary(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find crawl run: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case len(found) > 1:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, idOrPrefix)
	default:
		return &found[0], nil
	}
}

// GetRunRows returns the stored rows of a run in output order.
func (cdb *CrawlDB) GetRunRows(ctx context.Context, runID uuid.UUID) ([]model.RecipeRow, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT url, title, ingredients, cooking_time, nutrition_facts, publish_date, timestamp, category
	FROM recipes
	WHERE run_id = ?
	ORDER BY position
	`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get recipes: %w", err)
	}
	defer rows.Close()

	var result []model.RecipeRow
	for rows.Next() {
		var (
			row                                          model.RecipeRow
			ingredients, cooking, nutrition, publishDate sql.NullString
			timestamp                                    string
		)
		if err := rows.Scan(&row.URL, &row.Title, &ingredients, &cooking, &nutrition, &publishDate, &timestamp, &row.Category); err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}

		if row.Ingredients, err = jsonField[[]string](ingredients); err != nil {
			return nil, fmt.Errorf("failed to parse ingredients of %s: %w", row.URL, err)
		}
		if row.NutritionFacts, err = jsonField[model.NutritionFacts](nutrition); err != nil {
			return nil, fmt.Errorf("failed to parse nutrition facts of %s: %w", row.URL, err)
		}
		row.CookingTime = textField(cooking)
		row.PublishDate = textField(publishDate)
		row.Timestamp = parseTimestamp(timestamp)

		result = append(result, row)
	}

	return result, rows.Err()
}

// DeleteRun removes a run with its categories and rows.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, runID uuid.UUID) (err error) {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	id := runID.String()
	for _, q := range []string{
		`DELETE FROM recipes WHERE run_id = ?`,
		`DELETE FROM crawl_categories WHERE run_id = ?`,
	} {
		if _, err = tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete crawl run: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete crawl run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete crawl run: %w", err)
	}
	if n == 0 {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, id)
		return err
	}

	return tx.Commit()
}

// rowScanner is the Scan method shared by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunSummary(s rowScanner) (RunSummary, error) {
	var (
		run               RunSummary
		id                string
		started, finished string
		runErr            sql.NullString
	)
	if err := s.Scan(
		&id, &run.LandingURL, &started, &finished, &run.Items, &run.DuplicatesRemoved, &runErr,
		&run.Categories, &run.SkippedCategories, &run.Rows,
	); err != nil {
		return RunSummary{}, fmt.Errorf("failed to scan crawl run: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return RunSummary{}, fmt.Errorf("invalid run ID %q: %w", id, err)
	}
	run.ID = parsed
	run.StartedAt = parseTimestamp(started)
	run.FinishedAt = parseTimestamp(finished)
	run.Error = runErr.String

	return run, nil
}

// jsonColumn encodes a found field as JSON and a missing one as NULL.
func jsonColumn[T any](f model.Field[T]) (sql.NullString, error) {
	v, ok := f.Get()
	if !ok {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// jsonField is the inverse of jsonColumn.
func jsonField[T any](s sql.NullString) (model.Field[T], error) {
	if !s.Valid {
		return model.Missing[T](), nil
	}
	var v T
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return model.Missing[T](), err
	}
	return model.Found(v), nil
}

func textColumn(f model.Field[string]) sql.NullString {
	v, ok := f.Get()
	return sql.NullString{String: v, Valid: ok}
}

func textField(s sql.NullString) model.Field[string] {
	if !s.Valid {
		return model.Missing[string]()
	}
	return model.Found(s.String)
}

// escapeLike escapes LIKE wildcards in s.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// storedTimeLayout is fixed width so stored timestamps sort as text.
const storedTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",  // SQLite default datetime format
	"2006-01-02T15:04:05Z", // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",  // ISO 8601 without timezone
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
