package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/recipescan/internal/browser/browsertest"
	"github.com/nao1215/recipescan/internal/config"
	"github.com/nao1215/recipescan/internal/database"
	"github.com/nao1215/recipescan/internal/report"
)

const (
	testLanding = "https://www.example.com/recipes"
	testSoups   = "https://www.example.com/soup-recipes-101"
	testPies    = "https://www.example.com/pie-recipes-102"
)

const testLandingPage = `<html><body><nav id="taxonomysc_1-0">
<a href="/soup-recipes-101">Soups</a>
<a href="/pie-recipes-102">Pies</a>
</nav></body></html>`

const testSoupListing = `<html><body>
<a class="mntl-card-list-items" href="/tomato-soup"><span class="card__title-text">Tomato Soup</span></a>
</body></html>`

const testPieListing = `<html><body>
<a class="mntl-card-list-items" href="/apple-pie"><span class="card__title-text">Apple Pie</span></a>
<a class="mntl-card-list-items" href="/apple-pie-2"><span class="card__title-text">APPLE PIE</span></a>
</body></html>`

const testDetailPage = `<html><body>
<div class="mntl-attribution__item-date">Published May 1, 2024</div>
<ul class="structured-ingredients__list"><li class="structured-ingredients__list-item">water</li></ul>
<button class="nutrition-info__toggle">Nutrition</button>
<div class="nutritional-guidelines-block"><table>
<tr class="nutrition-info__table--row"><td>90</td><td>Calories</td></tr>
</table></div>
</body></html>`

func testSite() map[string]string {
	return map[string]string{
		testLanding:                           testLandingPage,
		testSoups:                             testSoupListing,
		testPies:                              testPieListing,
		"https://www.example.com/tomato-soup": testDetailPage,
		"https://www.example.com/apple-pie":   testDetailPage,
		"https://www.example.com/apple-pie-2": testDetailPage,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a configuration that writes every output under dir.
func testConfig(dir string) *config.Config {
	cfg := config.NewConfig()
	cfg.LandingURL = testLanding
	cfg.ListingWait = time.Second
	cfg.DetailWait = time.Second
	cfg.ScrollSettle = 0
	cfg.MaxScrolls = 5
	cfg.OutputFile = filepath.Join(dir, "all_recipes.csv")
	cfg.MarkdownFile = filepath.Join(dir, "report.md")
	cfg.DBDir = filepath.Join(dir, "db")
	return cfg
}

// writeConfigFile writes content to a .recipescan file under dir.
func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, ".recipescan")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func readCSVFile(t *testing.T, path string) [][]string {
	t.Helper()

	data, err := os.ReadFile(path) //nolint:gosec // test file
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV in %s: %v", path, err)
	}
	return records
}

// TestNewCrawlCmd tests the crawl command creation.
func TestNewCrawlCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCrawlCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "crawl" {
			t.Errorf("expected use 'crawl', got %q", cmd.Use)
		}
	})

	t.Run("has flags with defaults", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name      string
			shorthand string
			defValue  string
		}{
			{name: "url", shorthand: "u", defValue: config.DefaultLandingURL},
			{name: "limit", shorthand: "l", defValue: "0"},
			{name: "concurrency", shorthand: "n", defValue: "3"},
			{name: "listing-wait", defValue: "10s"},
			{name: "detail-wait", defValue: "20s"},
			{name: "settle", defValue: "3s"},
			{name: "max-scrolls", defValue: "50"},
			{name: "delay", defValue: "0s"},
			{name: "headless", defValue: "true"},
			{name: "config", shorthand: "c", defValue: ""},
			{name: "output", shorthand: "o", defValue: config.DefaultOutputFile},
			{name: "markdown", shorthand: "m", defValue: ""},
			{name: "json", shorthand: "j", defValue: "false"},
			{name: "no-db", defValue: "false"},
		}

		for _, tt := range tests {
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Errorf("expected %s flag", tt.name)
				continue
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("%s: expected shorthand %q, got %q", tt.name, tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("%s: expected default %q, got %q", tt.name, tt.defValue, flag.DefValue)
			}
		}
	})

	t.Run("rejects positional arguments", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		cmd.SetArgs([]string{"https://www.example.com"})
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)
		if err := cmd.Execute(); err == nil {
			t.Error("expected error for positional argument")
		}
	})

	t.Run("invalid flags fail before the browser starts", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, t.TempDir(), "")
		cmd := NewCrawlCmd()
		cmd.SetArgs([]string{"-c", configPath, "--concurrency", "0"})
		cmd.SetOut(io.Discard)
		cmd.SetErr(io.Discard)

		err := cmd.Execute()
		if err == nil {
			t.Fatal("expected configuration error")
		}
		if !strings.Contains(err.Error(), "configuration error") {
			t.Errorf("expected configuration error, got %v", err)
		}
	})
}

// TestBuildConfig tests building the configuration from flags.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags are applied", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		configPath := writeConfigFile(t, dir, "")

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{
			"-c", configPath,
			"-u", testLanding,
			"-l", "2",
			"-n", "5",
			"--listing-wait", "4s",
			"--detail-wait", "6s",
			"--settle", "1s",
			"--max-scrolls", "0",
			"--delay", "250ms",
			"--headless=false",
			"--user-agent", "test-agent",
			"-o", filepath.Join(dir, "out.csv"),
			"-m", filepath.Join(dir, "out.md"),
			"--no-db",
			"--db-dir", dir,
		}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.LandingURL != testLanding {
			t.Errorf("expected landing URL %q, got %q", testLanding, cfg.LandingURL)
		}
		if cfg.CategoryLimit != 2 || cfg.Concurrency != 5 {
			t.Errorf("unexpected limit/concurrency %d/%d", cfg.CategoryLimit, cfg.Concurrency)
		}
		if cfg.ListingWait != 4*time.Second || cfg.DetailWait != 6*time.Second {
			t.Errorf("unexpected waits %s/%s", cfg.ListingWait, cfg.DetailWait)
		}
		if cfg.ScrollSettle != time.Second || cfg.MaxScrolls != 0 {
			t.Errorf("unexpected scroll settings %s/%d", cfg.ScrollSettle, cfg.MaxScrolls)
		}
		if cfg.DetailDelay != 250*time.Millisecond {
			t.Errorf("expected delay 250ms, got %s", cfg.DetailDelay)
		}
		if cfg.Headless {
			t.Error("expected headless to be disabled")
		}
		if cfg.UserAgent != "test-agent" {
			t.Errorf("expected user agent, got %q", cfg.UserAgent)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-db to disable the database")
		}
		if cfg.DBDir != dir {
			t.Errorf("expected db dir %q, got %q", dir, cfg.DBDir)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected valid config, got %v", err)
		}
	})

	t.Run("category flags are repeatable", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, t.TempDir(), "")

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", configPath, "--category", testSoups, "--category", testPies}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(cfg.CategoryURLs, []string{testSoups, testPies}) {
			t.Errorf("unexpected category URLs %v", cfg.CategoryURLs)
		}
	})

	t.Run("config file supplies site settings", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, t.TempDir(), `
sites:
  www.example.com:
    cookie: "session=abc123"
    categoryURLs:
      - https://www.example.com/pie-recipes-102
    selectors:
      card: "div.card a"
`)

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", configPath, "-u", testLanding}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(cfg.CategoryURLs, []string{testPies}) {
			t.Errorf("expected category URLs from config file, got %v", cfg.CategoryURLs)
		}

		site := cfg.Site()
		if site.Cookie != "session=abc123" {
			t.Errorf("expected cookie from config file, got %q", site.Cookie)
		}
		if site.Selectors.Listing().Card != "div.card a" {
			t.Errorf("expected card selector override, got %q", site.Selectors.Listing().Card)
		}
	})

	t.Run("category flags win over the config file", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, t.TempDir(), `
defaults:
  categoryURLs:
    - https://www.example.com/pie-recipes-102
`)

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", configPath, "--category", testSoups}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(cfg.CategoryURLs, []string{testSoups}) {
			t.Errorf("expected flag category URLs, got %v", cfg.CategoryURLs)
		}
	})

	t.Run("explicit missing config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		_, err := buildConfig(cmd)
		if err == nil || !strings.Contains(err.Error(), "configuration file not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("malformed config file is an error", func(t *testing.T) {
		t.Parallel()

		configPath := writeConfigFile(t, t.TempDir(), "sites: [unclosed")

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"-c", configPath}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}

		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for malformed config file")
		}
	})
}

// TestSiteSecrets tests which configured values are hidden from logs.
func TestSiteSecrets(t *testing.T) {
	t.Parallel()

	site := config.SiteConfig{
		Cookie:  "session=abc123; theme=dark",
		Headers: map[string]string{"X-Api-Key": "key-98765"},
	}

	secrets := siteSecrets(site)
	for _, want := range []string{"session=abc123; theme=dark", "abc123", "key-98765"} {
		if !slices.Contains(secrets, want) {
			t.Errorf("expected %q among secrets %v", want, secrets)
		}
	}

	if got := siteSecrets(config.SiteConfig{}); len(got) != 0 {
		t.Errorf("expected no secrets for empty site, got %v", got)
	}
}

// TestBrowserOptions tests mapping configuration to browser options.
func TestBrowserOptions(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	base := browserOptions(cfg, config.SiteConfig{}, discardLogger())
	if len(base) != 4 {
		t.Errorf("expected 4 base options, got %d", len(base))
	}

	cfg.ChromePath = "/usr/bin/chromium"
	site := config.SiteConfig{
		Cookie:  "session=abc123",
		Headers: map[string]string{"Accept-Language": "en-US"},
	}
	if got := browserOptions(cfg, site, discardLogger()); len(got) != 7 {
		t.Errorf("expected 7 options, got %d", len(got))
	}
}

// TestRunCrawl tests a whole crawl against a scripted site.
func TestRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("writes CSV, Markdown and database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testConfig(dir)
		opener := &browsertest.Opener{Site: testSite()}

		var out bytes.Buffer
		if err := runCrawl(context.Background(), opener, cfg, cfg.Site(), discardLogger(), &out, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records := readCSVFile(t, cfg.OutputFile)
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d records: %q", len(records), records)
		}
		if !slices.Equal(records[0], report.CSVHeader) {
			t.Errorf("unexpected header %q", records[0])
		}
		if records[1][1] != "Tomato Soup" || records[2][1] != "Apple Pie" {
			t.Errorf("expected rows in category order, got %q and %q", records[1][1], records[2][1])
		}
		if records[1][7] != "Soups" {
			t.Errorf("expected category 'Soups', got %q", records[1][7])
		}
		if records[1][2] != "water" || records[1][4] != "Calories: 90" {
			t.Errorf("expected detail fields, got %q", records[1])
		}

		md, err := os.ReadFile(cfg.MarkdownFile)
		if err != nil {
			t.Fatalf("failed to read markdown: %v", err)
		}
		if !strings.Contains(string(md), "Recipe Crawl Report") {
			t.Errorf("expected markdown report, got:\n%s", md)
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("expected 1 archived run, got %d", len(runs))
		}
		if runs[0].Rows != 2 || runs[0].DuplicatesRemoved != 1 || runs[0].Categories != 2 {
			t.Errorf("unexpected archived run %+v", runs[0])
		}

		output := out.String()
		for _, want := range []string{"Crawling " + testLanding, "Appended 2 recipes", "RECIPE CRAWL SUMMARY"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, output)
			}
		}
		if opener.OpenCount() != 0 {
			t.Errorf("expected all pages closed, %d open", opener.OpenCount())
		}
	})

	t.Run("a second crawl appends without a second header", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		cfg := testConfig(dir)
		cfg.MarkdownFile = ""
		cfg.SaveToDB = false

		for range 2 {
			opener := &browsertest.Opener{Site: testSite()}
			if err := runCrawl(context.Background(), opener, cfg, cfg.Site(), discardLogger(), io.Discard, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		records := readCSVFile(t, cfg.OutputFile)
		if len(records) != 5 {
			t.Fatalf("expected header and 4 rows, got %d records", len(records))
		}
		if slices.Equal(records[3], report.CSVHeader) {
			t.Error("expected no header in the middle of the file")
		}
	})

	t.Run("JSON summary is valid JSON", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t.TempDir())
		cfg.SaveToDB = false
		opener := &browsertest.Opener{Site: testSite()}

		var out bytes.Buffer
		if err := runCrawl(context.Background(), opener, cfg, cfg.Site(), discardLogger(), &out, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc report.JSONReport
		if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
			t.Fatalf("expected only JSON on output, got error %v:\n%s", err, out.String())
		}
		if len(doc.Rows) != 2 || len(doc.Categories) != 2 {
			t.Errorf("unexpected JSON document %+v", doc)
		}
		if doc.RunID == "" {
			t.Error("expected run ID in JSON document")
		}
	})

	t.Run("explicit categories skip discovery", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t.TempDir())
		cfg.LandingURL = "https://www.example.com/not-served"
		cfg.CategoryURLs = []string{testPies}
		cfg.SaveToDB = false
		opener := &browsertest.Opener{Site: testSite()}

		if err := runCrawl(context.Background(), opener, cfg, cfg.Site(), discardLogger(), io.Discard, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records := readCSVFile(t, cfg.OutputFile)
		if len(records) != 2 || records[1][1] != "Apple Pie" {
			t.Errorf("expected only the pie row, got %q", records)
		}
	})

	t.Run("failed discovery is archived and reported", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t.TempDir())
		cfg.LandingURL = "https://www.example.com/not-served"
		opener := &browsertest.Opener{Site: testSite()}

		err := runCrawl(context.Background(), opener, cfg, cfg.Site(), discardLogger(), io.Discard, false)
		if err == nil {
			t.Fatal("expected crawl error")
		}
		if !strings.Contains(err.Error(), "crawl failed") {
			t.Errorf("expected crawl failure, got %v", err)
		}

		if records := readCSVFile(t, cfg.OutputFile); len(records) != 1 {
			t.Errorf("expected only the header, got %q", records)
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 1 || runs[0].Error == "" {
			t.Errorf("expected archived run with error, got %+v", runs)
		}
	})

	t.Run("site selectors reach the pipeline", func(t *testing.T) {
		t.Parallel()

		cfg := testConfig(t.TempDir())
		cfg.SaveToDB = false
		cfg.MarkdownFile = ""
		cfg.CategoryURLs = []string{"https://www.example.com/custom-103"}
		site := config.SiteConfig{Selectors: config.Selectors{Card: "li.recipe a", CardTitle: "b"}}

		pages := testSite()
		pages["https://www.example.com/custom-103"] = `<html><body><ul>
<li class="recipe"><a href="/tomato-soup"><b>Custom Soup</b></a></li>
</ul></body></html>`
		opener := &browsertest.Opener{Site: pages}

		if err := runCrawl(context.Background(), opener, cfg, site, discardLogger(), io.Discard, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records := readCSVFile(t, cfg.OutputFile)
		if len(records) != 2 || records[1][1] != "Custom Soup" {
			t.Errorf("expected row from custom selectors, got %q", records)
		}
	})
}

// TestWriteMarkdownFile tests writing the Markdown summary to disk.
func TestWriteMarkdownFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reports", "nested", "crawl.md")
	crawlReport := newTestCrawlReport()

	if err := writeMarkdownFile(path, crawlReport); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected mode 0600, got %o", info.Mode().Perm())
	}
}
