package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nao1215/recipescan/internal/browser"
	"github.com/nao1215/recipescan/internal/config"
	"github.com/nao1215/recipescan/internal/database"
	"github.com/nao1215/recipescan/internal/log"
	"github.com/nao1215/recipescan/internal/model"
	"github.com/nao1215/recipescan/internal/pipeline"
	"github.com/nao1215/recipescan/internal/report"
	"github.com/spf13/cobra"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a recipe site and append the recipes to a CSV file",
		Long: `Crawl discovers the recipe categories linked from a landing page, scrolls
each category listing until every recipe card is loaded, then opens every
recipe page in parallel and extracts:
- Ingredients
- Cooking time
- Nutrition facts
- Publish date

Rows are deduplicated by case-insensitive title and appended to the CSV
output. A field that could not be read is written as N/A.

Examples:
  # Crawl the default site with 3 parallel recipe pages
  recipescan crawl

  # Crawl only the first two categories with 5 parallel pages
  recipescan crawl --limit 2 --concurrency 5

  # Crawl explicit category pages and skip discovery
  recipescan crawl --category https://www.simplyrecipes.com/soup-recipes-5091541

  # Also write a Markdown summary
  recipescan crawl -o recipes.csv -m report.md

  # Print the summary as JSON
  recipescan crawl --json

Configuration file (.recipescan) example:
  sites:
    www.simplyrecipes.com:
      cookie: "session_id=abc123"
      headers:
        Accept-Language: "en-US"
      selectors:
        card: "a.mntl-card-list-items"`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	// Site flags
	cmd.Flags().StringP("url", "u", config.DefaultLandingURL,
		"Landing page whose navigation lists the recipe categories")
	cmd.Flags().StringSlice("category", nil,
		"Category listing URL to crawl instead of discovering categories (repeatable)")
	cmd.Flags().IntP("limit", "l", 0,
		"Maximum number of discovered categories to crawl (0 = all)")

	// Crawl behavior flags
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of recipe pages extracted at once")
	cmd.Flags().Duration("listing-wait", config.DefaultListingWait,
		"Timeout for elements on landing and listing pages")
	cmd.Flags().Duration("detail-wait", config.DefaultDetailWait,
		"Timeout for each element on a recipe page")
	cmd.Flags().Duration("settle", config.DefaultScrollSettle,
		"Pause after each listing scroll while more cards load")
	cmd.Flags().Int("max-scrolls", config.DefaultMaxScrolls,
		"Maximum number of scrolls per listing page (0 = no limit)")
	cmd.Flags().Duration("delay", config.DefaultDetailDelay,
		"Minimum spacing between recipe page starts")

	// Browser flags
	cmd.Flags().Bool("headless", true,
		"Run the browser without a window")
	cmd.Flags().String("chrome", "",
		"Path to the Chrome executable (default: autodetect)")
	cmd.Flags().String("user-agent", "",
		"User-Agent sent by the browser")
	cmd.Flags().Duration("startup-timeout", config.DefaultStartupTimeout,
		"Timeout for the browser to start")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .recipescan in the current directory, config.yaml in the XDG config directory, or .recipescan in the home directory)")

	// Output flags
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile,
		"CSV file the recipes are appended to")
	cmd.Flags().StringP("markdown", "m", "",
		"Write a Markdown crawl summary to the specified file")
	cmd.Flags().BoolP("json", "j", false,
		"Print the crawl summary as JSON")
	cmd.Flags().Bool("no-db", false,
		"Do not archive the crawl in the results database")
	cmd.Flags().String("db-dir", "",
		"Directory of the results database (default: XDG data directory)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}

	site := cfg.Site()
	logger := log.NewSecureLogger(os.Stderr, cfg.Verbose, siteSecrets(site)...)
	slog.SetDefault(logger)

	// Interrupts cancel the crawl; rows finished so far are still written.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := browser.New(ctx, browserOptions(cfg, site, logger)...)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	return runCrawl(ctx, b, cfg, site, logger, cmd.OutOrStdout(), jsonOutput)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags and the config file.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	cfg.LandingURL, err = flags.GetString("url")
	if err != nil {
		return nil, err
	}

	cfg.CategoryURLs, err = flags.GetStringSlice("category")
	if err != nil {
		return nil, err
	}

	cfg.CategoryLimit, err = flags.GetInt("limit")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = flags.GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.ListingWait, err = flags.GetDuration("listing-wait")
	if err != nil {
		return nil, err
	}

	cfg.DetailWait, err = flags.GetDuration("detail-wait")
	if err != nil {
		return nil, err
	}

	cfg.ScrollSettle, err = flags.GetDuration("settle")
	if err != nil {
		return nil, err
	}

	cfg.MaxScrolls, err = flags.GetInt("max-scrolls")
	if err != nil {
		return nil, err
	}

	cfg.DetailDelay, err = flags.GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.Headless, err = flags.GetBool("headless")
	if err != nil {
		return nil, err
	}

	cfg.ChromePath, err = flags.GetString("chrome")
	if err != nil {
		return nil, err
	}

	cfg.UserAgent, err = flags.GetString("user-agent")
	if err != nil {
		return nil, err
	}

	cfg.StartupTimeout, err = flags.GetDuration("startup-timeout")
	if err != nil {
		return nil, err
	}

	cfg.OutputFile, err = flags.GetString("output")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownFile, err = flags.GetString("markdown")
	if err != nil {
		return nil, err
	}

	noDB, err := flags.GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return nil, err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	cfg.Verbose = getVerboseFlag(cmd)

	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// Load site-specific configurations from config file
	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use empty config if no file found.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.SiteConfigs = &config.File{
			Sites: make(map[string]config.SiteConfig),
		}
	}

	// Category URLs from the command line win over the config file.
	if len(cfg.CategoryURLs) == 0 {
		cfg.CategoryURLs = cfg.Site().CategoryURLs
	}

	return cfg, nil
}

// siteSecrets returns the configured values that must never be logged.
func siteSecrets(site config.SiteConfig) []string {
	secrets := log.CookieSecrets(site.Cookie)
	for _, v := range site.Headers {
		secrets = append(secrets, v)
	}
	return secrets
}

// browserOptions maps the configuration to browser options.
func browserOptions(cfg *config.Config, site config.SiteConfig, logger *slog.Logger) []browser.Option {
	opts := []browser.Option{
		browser.WithHeadless(cfg.Headless),
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithStartupTimeout(cfg.StartupTimeout),
		browser.WithLogger(logger),
	}

	if cfg.ChromePath != "" {
		opts = append(opts, browser.WithExecPath(cfg.ChromePath))
	}
	if site.Cookie != "" {
		opts = append(opts, browser.WithCookie(site.Cookie))
	}
	if len(site.Headers) > 0 {
		opts = append(opts, browser.WithHeaders(site.Headers))
	}

	return opts
}

// createPipeline creates the crawl pipeline for the given configuration.
func createPipeline(opener browser.Opener, logger *slog.Logger, cfg *config.Config, site config.SiteConfig) *pipeline.Pipeline {
	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
	}

	sel := site.Selectors
	configOpts := []pipeline.DefaultPipelineOption{
		pipeline.WithPipelineCategoryURLs(cfg.CategoryURLs),
		pipeline.WithPipelineCategoryLimit(cfg.CategoryLimit),
		pipeline.WithPipelineConcurrency(cfg.Concurrency),
		pipeline.WithPipelineDetailDelay(cfg.DetailDelay),
		pipeline.WithPipelineWaits(cfg.ListingWait, cfg.DetailWait),
		pipeline.WithPipelineScroll(cfg.ScrollSettle, cfg.MaxScrolls),
		pipeline.WithPipelineNavSelectors(sel.Nav, sel.CategoryLink),
		pipeline.WithPipelineListingSelectors(sel.Listing()),
		pipeline.WithPipelineDetailSelectors(sel.Detail()),
	}

	return pipeline.DefaultPipeline(opener, pipelineOpts, configOpts...)
}

// runCrawl executes one crawl with pages from opener and writes every
// configured output. Outputs are written even when the crawl fails or is
// interrupted, so rows extracted before the failure are kept.
func runCrawl(ctx context.Context, opener browser.Opener, cfg *config.Config, site config.SiteConfig, logger *slog.Logger, out io.Writer, jsonOutput bool) error {
	crawlReport := model.NewCrawlReport(cfg.LandingURL)

	logger.Info("starting crawl",
		"run_id", crawlReport.RunID,
		"landing_url", cfg.LandingURL,
		"categories", len(cfg.CategoryURLs),
		"concurrency", cfg.Concurrency,
		"saveToDB", cfg.SaveToDB,
	)

	if !jsonOutput {
		fmt.Fprintf(out, "Crawling %s...\n", crawlTarget(cfg))
	}

	startTime := time.Now()
	execErr := createPipeline(opener, logger, cfg, site).Execute(ctx, crawlReport)
	if execErr != nil {
		execErr = fmt.Errorf("crawl failed: %w", execErr)
	}

	if !jsonOutput {
		fmt.Fprintf(out, "Crawl finished in %s\n\n", time.Since(startTime).Round(time.Millisecond))
	}

	errs := []error{execErr}

	if cfg.OutputFile != "" {
		n, err := report.AppendCSV(cfg.OutputFile, crawlReport.Rows)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to write CSV: %w", err))
		} else if !jsonOutput {
			fmt.Fprintf(out, "Appended %d recipes to %s\n", n, cfg.OutputFile)
		}
	}

	if cfg.MarkdownFile != "" {
		if err := writeMarkdownFile(cfg.MarkdownFile, crawlReport); err != nil {
			errs = append(errs, fmt.Errorf("failed to write Markdown report: %w", err))
		} else if !jsonOutput {
			fmt.Fprintf(out, "Wrote Markdown report to %s\n", cfg.MarkdownFile)
		}
	}

	if cfg.SaveToDB {
		// The archive is written even after an interrupt.
		if err := saveCrawlReport(context.WithoutCancel(ctx), cfg.DBDir, crawlReport, logger); err != nil {
			errs = append(errs, err)
		}
	}

	if err := writeSummary(out, crawlReport, cfg.Verbose, jsonOutput); err != nil {
		errs = append(errs, fmt.Errorf("failed to write summary: %w", err))
	}

	return errors.Join(errs...)
}

// crawlTarget describes what is crawled for the progress line.
func crawlTarget(cfg *config.Config) string {
	if len(cfg.CategoryURLs) > 0 {
		return fmt.Sprintf("%d categories", len(cfg.CategoryURLs))
	}
	return cfg.LandingURL
}

// writeSummary prints the crawl summary in the requested format.
func writeSummary(out io.Writer, crawlReport *model.CrawlReport, verbose, jsonOutput bool) error {
	var w report.Writer
	if jsonOutput {
		w = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	} else {
		w = report.NewSimpleWriter(out, report.WithVerbose(verbose))
	}
	_, err := w.Write(crawlReport)
	return err
}

// writeMarkdownFile writes the Markdown summary to path, replacing any
// earlier file.
func writeMarkdownFile(path string, crawlReport *model.CrawlReport) (err error) {
	// Create directories if they don't exist
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = report.NewMarkdownWriter(f).Write(crawlReport)
	return err
}

// saveCrawlReport archives the crawl in the database under dbDir.
func saveCrawlReport(ctx context.Context, dbDir string, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.SaveRun(ctx, crawlReport); err != nil {
		return fmt.Errorf("failed to save crawl run: %w", err)
	}

	logger.Info("crawl run saved to database",
		"run_id", crawlReport.RunID,
		"path", db.Path(),
	)
	return nil
}
