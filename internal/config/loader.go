package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name looked up in the current
// and home directories.
const DefaultConfigFile = ".recipescan"

// XDGConfigFile is the configuration file name looked up in XDGConfigDir.
const XDGConfigFile = "config.yaml"

var (
	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFile is returned when a configuration file exists but
	// its contents cannot be used.
	ErrInvalidConfigFile = errors.New("invalid configuration file")
)

// LoadConfigFile loads site configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound; callers decide
// whether that matters based on whether the path was given explicitly.
//
// Unknown keys are rejected, so a misspelt selector name fails instead of
// silently falling back to the built-in selector. Site keys are host names
// and are lowercased. Category URLs must be absolute http(s) URLs. An empty
// file is an empty configuration.
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	defer f.Close()

	var cf File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}

	if err := cf.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfigFile, path, err)
	}
	return &cf, nil
}

// normalize lowercases site keys and checks category URLs.
func (cf *File) normalize() error {
	if err := checkCategoryURLs(cf.Defaults.CategoryURLs); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for host, site := range cf.Sites {
		key := strings.ToLower(strings.TrimSpace(host))
		if key == "" || strings.ContainsAny(key, "/:") {
			return fmt.Errorf("site key %q must be a host name such as www.example.com", host)
		}
		if _, dup := sites[key]; dup {
			return fmt.Errorf("site %q is configured more than once", key)
		}
		if err := checkCategoryURLs(site.CategoryURLs); err != nil {
			return fmt.Errorf("site %s: %w", key, err)
		}
		sites[key] = site
	}
	cf.Sites = sites
	return nil
}

func checkCategoryURLs(urls []string) error {
	for _, u := range urls {
		if !isHTTPURL(u) {
			return fmt.Errorf("%w: %q", ErrInvalidCategoryURL, u)
		}
	}
	return nil
}

// FindConfigFile returns the configuration file to load, or "" if none
// exists. An explicit configPath is used as is. Otherwise the first file
// found wins, in this order:
//  1. .recipescan in the current directory
//  2. config.yaml in XDGConfigDir
//  3. .recipescan in the user's home directory
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if isFile(configPath) {
			return configPath
		}
		return ""
	}

	for _, candidate := range searchPaths() {
		if isFile(candidate) {
			return candidate
		}
	}
	return ""
}

// searchPaths lists the implicit configuration locations in lookup order.
func searchPaths() []string {
	paths := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	paths = append(paths, filepath.Join(XDGConfigDir(), XDGConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
