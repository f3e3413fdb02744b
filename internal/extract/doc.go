// Package extract reads the detail fields of recipe pages.
//
// An Extractor opens one browser page per recipe, loads it, reads the
// ingredients, publish date, cooking time and nutrition facts, and closes the
// page on every path. Each field is read independently and comes back as a
// model.Field; a field that cannot be read is missing rather than an error,
// and nothing read from one field depends on another.
//
// # Nutrition facts
//
// Nutrition is behind a panel opened by a trigger control. The extractor
// scrolls the trigger into view, clicks it through script, waits for the
// panel to become visible, and parses the panel's tables from the rendered
// HTML with goquery. The panel is closed afterwards on a best-effort basis.
//
// # Usage
//
//	ex := extract.NewExtractor(browser, extract.WithWait(20*time.Second))
//	fields := ex.Extract(ctx, "https://www.example.com/soup-recipe")
package extract
