// Package main provides the entry point for the recipescan CLI.
//
// recipescan crawls a recipe site with a headless browser. It discovers the
// recipe categories, expands every category listing, extracts ingredients,
// cooking time, nutrition facts and publish date from each recipe page, and
// appends the deduplicated rows to a CSV file.
//
// Usage:
//
//	recipescan crawl
//	recipescan crawl --limit 2 --concurrency 5 -o recipes.csv
//	recipescan runs
//
// See --help for all available options.
package main

// main is the entry point for recipescan.
func main() {
	Execute()
}
