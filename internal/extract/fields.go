package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/nao1215/recipescan/internal/browser"
	"github.com/nao1215/recipescan/internal/model"
)

// reader reads fields from one loaded detail page. Every method returns a
// missing field instead of an error.
type reader struct {
	page      browser.Page
	selectors Selectors
	wait      time.Duration
	logger    *slog.Logger
}

// ingredients waits for the ingredient list and reads each line.
// A list that never appears and a list without text are both missing.
func (r *reader) ingredients(ctx context.Context) model.Field[[]string] {
	if _, err := r.page.WaitFor(ctx, r.selectors.IngredientList, r.wait); err != nil {
		r.logger.Debug("ingredients not found", "error", err)
		return model.Missing[[]string]()
	}

	items, err := r.page.FindAll(ctx, r.selectors.IngredientItem)
	if err != nil {
		r.logger.Debug("ingredient items unreadable", "error", err)
		return model.Missing[[]string]()
	}

	lines := make([]string, 0, len(items))
	for _, item := range items {
		text, err := r.page.Text(ctx, item)
		if err != nil {
			r.logger.Debug("ingredient text unreadable", "error", err)
			return model.Missing[[]string]()
		}
		if text = cleanText(text); text != "" {
			lines = append(lines, text)
		}
	}

	if len(lines) == 0 {
		return model.Missing[[]string]()
	}
	return model.Found(lines)
}

// publishDate returns the text of the first date element that has any.
func (r *reader) publishDate(ctx context.Context) model.Field[string] {
	return r.firstText(ctx, "publish date", r.selectors.PublishDate)
}

// cookingTime returns the total time shown on the detail page.
func (r *reader) cookingTime(ctx context.Context) model.Field[string] {
	return r.firstText(ctx, "cooking time", r.selectors.CookingTime)
}

func (r *reader) firstText(ctx context.Context, field, selector string) model.Field[string] {
	elements, err := r.page.FindAll(ctx, selector)
	if err != nil {
		r.logger.Debug(field+" unreadable", "error", err)
		return model.Missing[string]()
	}

	for _, el := range elements {
		text, err := r.page.Text(ctx, el)
		if err != nil {
			r.logger.Debug(field+" unreadable", "error", err)
			return model.Missing[string]()
		}
		if text = cleanText(text); text != "" {
			return model.Found(text)
		}
	}
	return model.Missing[string]()
}

// nutritionFacts opens the nutrition panel and reads its tables.
//
// The trigger is activated through script because overlays often cover it.
// Closing the panel afterwards is best effort.
func (r *reader) nutritionFacts(ctx context.Context) model.Field[model.NutritionFacts] {
	missing := model.Missing[model.NutritionFacts]()

	trigger, err := r.page.WaitFor(ctx, r.selectors.NutritionTrigger, r.wait)
	if err != nil {
		r.logger.Debug("nutrition trigger not found", "error", err)
		return missing
	}
	if err := r.page.ScrollIntoView(ctx, trigger); err != nil {
		r.logger.Debug("nutrition trigger not scrollable", "error", err)
		return missing
	}
	if err := r.page.Click(ctx, trigger); err != nil {
		r.logger.Debug("nutrition trigger click failed", "error", err)
		return missing
	}

	if _, err := r.page.WaitVisible(ctx, r.selectors.NutritionPanel, r.wait); err != nil {
		r.logger.Debug("nutrition panel not visible", "error", err)
		return missing
	}
	defer r.closePanel(ctx)

	html, err := r.page.HTML(ctx)
	if err != nil {
		r.logger.Debug("nutrition panel unreadable", "error", err)
		return missing
	}

	facts, err := parseNutrition(html, r.selectors)
	if err != nil {
		r.logger.Debug("nutrition table malformed", "error", err)
		return missing
	}
	if len(facts) == 0 {
		return missing
	}
	return model.Found(facts)
}

func (r *reader) closePanel(ctx context.Context) {
	buttons, err := r.page.FindAll(ctx, r.selectors.NutritionClose)
	if err != nil || len(buttons) == 0 {
		return
	}
	if err := r.page.Click(ctx, buttons[0]); err != nil {
		r.logger.Debug("closing nutrition panel failed", "error", err)
	}
}

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
