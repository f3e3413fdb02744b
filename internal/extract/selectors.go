package extract

// Selectors locate detail fields on a recipe page.
type Selectors struct {
	// IngredientList is the container waited for before reading items.
	IngredientList string

	// IngredientItem matches one ingredient line.
	IngredientItem string

	// PublishDate matches the publish or update date. The first match with
	// text wins.
	PublishDate string

	// CookingTime matches the total cooking time.
	CookingTime string

	// NutritionTrigger opens the nutrition panel.
	NutritionTrigger string

	// NutritionPanel is the panel that becomes visible after the trigger.
	NutritionPanel string

	// NutritionSummaryRow matches two-cell rows holding value then name.
	NutritionSummaryRow string

	// NutritionLabelRow matches rows whose th holds the nutrient name.
	NutritionLabelRow string

	// NutritionClose closes the panel.
	NutritionClose string
}

// DefaultSelectors returns the selectors for the default site.
func DefaultSelectors() Selectors {
	return Selectors{
		IngredientList:      ".structured-ingredients__list",
		IngredientItem:      ".structured-ingredients__list-item",
		PublishDate:         ".mntl-attribution__item-date",
		CookingTime:         "span.meta-text__text",
		NutritionTrigger:    ".nutrition-info__toggle",
		NutritionPanel:      ".nutritional-guidelines-block",
		NutritionSummaryRow: ".nutrition-info__table--row",
		NutritionLabelRow:   ".nutrition-label tr",
		NutritionClose:      ".nutrition-modal__close",
	}
}

// merge returns s with every non-empty field of o applied.
func (s Selectors) merge(o Selectors) Selectors {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&s.IngredientList, o.IngredientList)
	set(&s.IngredientItem, o.IngredientItem)
	set(&s.PublishDate, o.PublishDate)
	set(&s.CookingTime, o.CookingTime)
	set(&s.NutritionTrigger, o.NutritionTrigger)
	set(&s.NutritionPanel, o.NutritionPanel)
	set(&s.NutritionSummaryRow, o.NutritionSummaryRow)
	set(&s.NutritionLabelRow, o.NutritionLabelRow)
	set(&s.NutritionClose, o.NutritionClose)
	return s
}
