package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/recipescan/internal/browser"
	"github.com/nao1215/recipescan/internal/model"
)

// parseNutrition reads nutrient rows from the nutrition panel in html.
//
// Two row shapes are understood:
//   - summary rows with exactly two cells, value first and name second
//   - label rows whose th is the name and whose remaining text is the value
//
// Rows are read in document order, summary rows first; a later row with the
// same name replaces the earlier value.
func parseNutrition(html string, s Selectors) (model.NutritionFacts, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: nutrition panel: %v", browser.ErrParse, err)
	}

	panel := doc.Find(s.NutritionPanel).First()
	if panel.Length() == 0 {
		return nil, fmt.Errorf("%w: nutrition panel %q", browser.ErrNotFound, s.NutritionPanel)
	}

	var facts model.NutritionFacts

	panel.Find(s.NutritionSummaryRow).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() != 2 {
			return
		}
		name := cleanText(cells.Eq(1).Text())
		value := cleanText(cells.Eq(0).Text())
		if name != "" && value != "" {
			facts.Set(name, value)
		}
	})

	panel.Find(s.NutritionLabelRow).Each(func(_ int, row *goquery.Selection) {
		th := row.Find("th").First()
		if th.Length() == 0 {
			return
		}
		name := cleanText(th.Text())
		if name == "" {
			return
		}

		var parts []string
		row.Find("td").Each(func(_ int, td *goquery.Selection) {
			if t := cleanText(td.Text()); t != "" {
				parts = append(parts, t)
			}
		})
		value := strings.Join(parts, " ")
		if value == "" {
			value = cleanText(strings.Replace(row.Text(), th.Text(), "", 1))
		}
		if value != "" {
			facts.Set(name, value)
		}
	})

	return facts, nil
}
