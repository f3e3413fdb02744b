// Package config provides configuration structures and utilities for
// recipescan. It defines crawl pacing, browser settings, output targets and
// the per-site YAML file holding selectors, headers and category lists.
package config
