// Package pipeline runs a crawl as a sequence of steps.
//
// A crawl has three steps, each receiving the model.CrawlReport filled in
// by the steps before it:
//
//   - ListingStep: discovers categories on the landing page and expands
//     each listing on one coordinator page
//   - DetailStep: extracts detail fields for every item through a Scheduler
//   - DedupeStep: drops rows whose title repeats an earlier title; it is a
//     final step and runs even when the crawl is cancelled or fails
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
// 1. It provides consistent error handling and logging across steps
// 2. It supports cancellation via context between steps
// 3. Each step can be tested against a hand-built report
//
// # Concurrency
//
// Only the Scheduler runs work in parallel. It uses errgroup with a fixed
// limit; every detail extraction opens its own browser page, so workers
// share nothing. The coordinator page used by ListingStep is never handed
// to a worker.
package pipeline
