// Package model defines the core data structures used throughout recipescan.
//
// This package contains the following main types:
//   - Field: A value that was either found on a page or is missing
//   - CategoryRef and ItemRef: Listing-phase references to pages
//   - RecipeRow: One output row, built from an ItemRef and its DetailFields
//   - CrawlReport: The result of one crawl, filled in by the pipeline steps
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (crawler, extract, pipeline, report,
// database) need to use these types, so centralizing them prevents import
// cycles.
//
// Missing values are kept as Field values rather than placeholder strings;
// writers decide how to render them.
package model
