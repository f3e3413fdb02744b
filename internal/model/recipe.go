package model

import (
	"strings"
	"time"
)

// Placeholder texts used by the listing phase when a card lacks a value.
const (
	// TitleNotFound is stored as the title of a card without title text.
	TitleNotFound = "title not found"
)

// TimestampLayout is the layout used when a row timestamp is written out.
const TimestampLayout = "2006-01-02 15:04:05"

// CategoryRef is one category listing page to crawl.
type CategoryRef struct {
	// Name is the anchor text of the category link.
	Name string `json:"name"`

	// URL is the absolute URL of the listing page.
	URL string `json:"url"`
}

// ItemRef is one item card found on a listing page.
// It is created once by the listing phase and passed by value afterwards.
type ItemRef struct {
	// URL is the absolute URL of the detail page.
	URL string

	// Title is the card title, or TitleNotFound.
	Title string

	// CookingTimeHint is the cooking time printed on the card, if any.
	CookingTimeHint Field[string]

	// Category is the category the card was listed under.
	Category string

	// DiscoveredAt is when the card was read from the listing page.
	DiscoveredAt time.Time
}

// Nutrient is a single row of a nutrition table.
type Nutrient struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NutritionFacts maps nutrient names to values, keeping table order.
type NutritionFacts []Nutrient

// Set stores value under name. An existing entry with the same name is
// overwritten in place.
func (n *NutritionFacts) Set(name, value string) {
	for i := range *n {
		if (*n)[i].Name == name {
			(*n)[i].Value = value
			return
		}
	}
	*n = append(*n, Nutrient{Name: name, Value: value})
}

// Get returns the value stored under name.
func (n NutritionFacts) Get(name string) (string, bool) {
	for _, nt := range n {
		if nt.Name == name {
			return nt.Value, true
		}
	}
	return "", false
}

// String renders the facts as "name: value" pairs separated by "; ".
func (n NutritionFacts) String() string {
	parts := make([]string, 0, len(n))
	for _, nt := range n {
		parts = append(parts, nt.Name+": "+nt.Value)
	}
	return strings.Join(parts, "; ")
}

// DetailFields holds everything read from one detail page.
// Each field is independent: a failure reading one never affects another.
type DetailFields struct {
	Ingredients    Field[[]string]
	PublishDate    Field[string]
	NutritionFacts Field[NutritionFacts]

	// CookingTime is the cooking time shown on the detail page. It is used
	// when the listing card did not carry one.
	CookingTime Field[string]
}

// MissingDetails returns DetailFields with every field missing.
func MissingDetails() DetailFields {
	return DetailFields{}
}

// RecipeRow is one row of the final dataset.
type RecipeRow struct {
	URL            string
	Title          string
	Ingredients    Field[[]string]
	CookingTime    Field[string]
	NutritionFacts Field[NutritionFacts]
	PublishDate    Field[string]
	Timestamp      time.Time
	Category       string
}

// NewRecipeRow joins an item card with the details read from its page.
func NewRecipeRow(item ItemRef, details DetailFields) RecipeRow {
	return RecipeRow{
		URL:            item.URL,
		Title:          item.Title,
		Ingredients:    details.Ingredients,
		CookingTime:    item.CookingTimeHint.Or(details.CookingTime),
		NutritionFacts: details.NutritionFacts,
		PublishDate:    details.PublishDate,
		Timestamp:      item.DiscoveredAt,
		Category:       item.Category,
	}
}
