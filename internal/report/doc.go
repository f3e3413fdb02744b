// Package report writes crawl results.
//
// This package contains writers for different output formats:
//   - CSVWriter and AppendCSV: the recipe rows, one line per recipe
//   - SimpleWriter: human-readable summary for terminal display
//   - MarkdownWriter: shareable summary with tables and a chart
//   - JSONWriter: the full crawl as structured JSON for tool integration
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
