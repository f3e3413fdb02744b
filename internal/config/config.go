package config

import (
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These values follow the pacing the target site tolerates without
// triggering its anti-scraping defenses.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "recipescan"

	// DefaultLandingURL is the recipe index whose navigation lists the
	// categories to crawl.
	DefaultLandingURL = "https://www.simplyrecipes.com/recipes-5090746"

	// DefaultConcurrency of 3 detail pages at once keeps throughput reasonable.
	// Higher values get sessions blocked.
	DefaultConcurrency = 3

	// DefaultListingWait bounds the wait for the first card on a listing
	// page and for the category navigation on the landing page.
	DefaultListingWait = 10 * time.Second

	// DefaultDetailWait bounds each element wait on a detail page. Detail
	// pages load more scripts than listings, so this is the longer of the two.
	DefaultDetailWait = 20 * time.Second

	// DefaultScrollSettle is the pause after each scroll so lazily loaded
	// cards can render before the page height is read again.
	DefaultScrollSettle = 3 * time.Second

	// DefaultMaxScrolls caps the scroll loop on a listing page. A page that
	// keeps growing forever stops here.
	DefaultMaxScrolls = 50

	// DefaultDetailDelay is the minimum spacing between detail session
	// starts. Zero disables pacing.
	DefaultDetailDelay = time.Duration(0)

	// DefaultOutputFile is the CSV file rows are appended to.
	DefaultOutputFile = "all_recipes.csv"

	// DefaultStartupTimeout bounds the launch of the browser process.
	DefaultStartupTimeout = 30 * time.Second

	// DBFileName is the name of the results database inside DBDir.
	DBFileName = "recipescan.db"
)

// Config holds all configuration options for recipescan.
// It is populated from the config file and CLI flags, then passed down
// explicitly rather than kept in global state.
//
// Design decision: A single flat struct, as the number of options is small.
// Site-specific values (selectors, headers) live in SiteConfigs.
type Config struct {
	// LandingURL is the page whose navigation lists the categories.
	LandingURL string

	// CategoryURLs, when set, are crawled directly and discovery is skipped.
	CategoryURLs []string

	// CategoryLimit caps the number of discovered categories. Zero means
	// every category found.
	CategoryLimit int

	// Concurrency is the number of detail pages extracted at once.
	Concurrency int

	// ListingWait bounds element waits on landing and listing pages.
	ListingWait time.Duration

	// DetailWait bounds element waits on detail pages.
	DetailWait time.Duration

	// ScrollSettle is the pause after each listing scroll.
	ScrollSettle time.Duration

	// MaxScrolls caps the number of scrolls per listing page. Zero removes
	// the cap.
	MaxScrolls int

	// DetailDelay spaces detail session starts. Zero disables pacing.
	DetailDelay time.Duration

	// Headless runs the browser without a window.
	Headless bool

	// ChromePath overrides the browser executable. Empty means autodetect.
	ChromePath string

	// UserAgent overrides the browser's User-Agent header.
	UserAgent string

	// StartupTimeout bounds the browser launch.
	StartupTimeout time.Duration

	// OutputFile is the CSV file rows are appended to.
	OutputFile string

	// MarkdownFile, when set, receives a Markdown summary of the crawl.
	MarkdownFile string

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .recipescan is searched in the current directory and then
	// in the user's home directory.
	ConfigFilePath string

	// SiteConfigs holds site-specific settings loaded from the config file.
	SiteConfigs *File

	// DBDir is the directory holding the results database.
	// Defaults to the XDG data directory (~/.local/share/recipescan on Linux).
	DBDir string

	// SaveToDB indicates whether crawl results are archived in the database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		LandingURL:     DefaultLandingURL,
		Concurrency:    DefaultConcurrency,
		ListingWait:    DefaultListingWait,
		DetailWait:     DefaultDetailWait,
		ScrollSettle:   DefaultScrollSettle,
		MaxScrolls:     DefaultMaxScrolls,
		DetailDelay:    DefaultDetailDelay,
		Headless:       true,
		StartupTimeout: DefaultStartupTimeout,
		OutputFile:     DefaultOutputFile,
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
	}
}

// XDGDataDir returns the XDG data directory for recipescan.
// On Linux: ~/.local/share/recipescan
// On macOS: ~/Library/Application Support/recipescan
// On Windows: %LOCALAPPDATA%\recipescan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for recipescan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Site returns the merged site configuration for the landing page's host.
// Without a config file it returns the zero SiteConfig.
func (c *Config) Site() SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	u, err := url.Parse(c.LandingURL)
	if err != nil {
		return c.SiteConfigs.Defaults
	}
	return c.SiteConfigs.GetSiteConfig(u.Hostname())
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate once after flag parsing, before the browser
// starts, so a bad flag never costs a browser launch.
func (c *Config) Validate() error {
	if c.LandingURL == "" && len(c.CategoryURLs) == 0 {
		return ErrNoLandingURL
	}

	if c.LandingURL != "" && !isHTTPURL(c.LandingURL) {
		return ErrInvalidLandingURL
	}

	for _, u := range c.CategoryURLs {
		if !isHTTPURL(u) {
			return ErrInvalidCategoryURL
		}
	}

	if c.CategoryLimit < 0 {
		return ErrInvalidCategoryLimit
	}

	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}

	if c.ListingWait <= 0 || c.DetailWait <= 0 {
		return ErrInvalidWait
	}

	if c.ScrollSettle < 0 {
		return ErrInvalidScrollSettle
	}

	if c.MaxScrolls < 0 {
		return ErrInvalidMaxScrolls
	}

	if c.DetailDelay < 0 {
		return ErrInvalidDetailDelay
	}

	if c.OutputFile == "" && c.MarkdownFile == "" && !c.SaveToDB {
		return ErrNoOutput
	}

	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
