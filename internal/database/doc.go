// Package database provides SQLite-based storage for recipescan.
//
// This package implements the CrawlDB, which archives:
//   - One record per crawl run, keyed by its UUID
//   - The categories of each run, in discovery order, with their errors
//   - The final recipe rows of each run, with missing fields stored as NULL
//
// The archive is written once at the end of a crawl and read only by the
// runs and export commands.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. Sufficient performance for our use case
package database
