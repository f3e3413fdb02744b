package config

import (
	"maps"
	"strings"

	"github.com/nao1215/recipescan/internal/crawler"
	"github.com/nao1215/recipescan/internal/extract"
)

// SiteConfig holds site-specific configuration for one recipe site.
// This allows the crawler to follow a site's markup without code changes.
type SiteConfig struct {
	// Cookie is sent with every browser request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every browser request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// CategoryURLs, when set, replace category discovery for this site.
	CategoryURLs []string `yaml:"categoryURLs,omitempty"`

	// Selectors override the built-in CSS selectors. Empty fields keep
	// the default.
	Selectors Selectors `yaml:"selectors,omitempty"`
}

// Selectors are the CSS selectors used on landing, listing and detail pages.
type Selectors struct {
	Nav          string `yaml:"nav,omitempty"`
	CategoryLink string `yaml:"categoryLink,omitempty"`

	Card            string `yaml:"card,omitempty"`
	CardTitle       string `yaml:"cardTitle,omitempty"`
	CardCookingTime string `yaml:"cardCookingTime,omitempty"`
	CardTag         string `yaml:"cardTag,omitempty"`

	IngredientList      string `yaml:"ingredientList,omitempty"`
	IngredientItem      string `yaml:"ingredientItem,omitempty"`
	PublishDate         string `yaml:"publishDate,omitempty"`
	CookingTime         string `yaml:"cookingTime,omitempty"`
	NutritionTrigger    string `yaml:"nutritionTrigger,omitempty"`
	NutritionPanel      string `yaml:"nutritionPanel,omitempty"`
	NutritionSummaryRow string `yaml:"nutritionSummaryRow,omitempty"`
	NutritionLabelRow   string `yaml:"nutritionLabelRow,omitempty"`
	NutritionClose      string `yaml:"nutritionClose,omitempty"`
}

// DefaultSelectors returns the built-in selectors for the default site.
func DefaultSelectors() Selectors {
	l := crawler.DefaultListingSelectors()
	d := extract.DefaultSelectors()
	return Selectors{
		Nav:                 crawler.DefaultNavSelector,
		CategoryLink:        crawler.DefaultCategoryLinkSelector,
		Card:                l.Card,
		CardTitle:           l.Title,
		CardCookingTime:     l.CookingTime,
		CardTag:             l.Tag,
		IngredientList:      d.IngredientList,
		IngredientItem:      d.IngredientItem,
		PublishDate:         d.PublishDate,
		CookingTime:         d.CookingTime,
		NutritionTrigger:    d.NutritionTrigger,
		NutritionPanel:      d.NutritionPanel,
		NutritionSummaryRow: d.NutritionSummaryRow,
		NutritionLabelRow:   d.NutritionLabelRow,
		NutritionClose:      d.NutritionClose,
	}
}

// Listing returns the card selectors with defaults for empty fields.
func (s Selectors) Listing() crawler.ListingSelectors {
	l := crawler.DefaultListingSelectors()
	setIf(&l.Card, s.Card)
	setIf(&l.Title, s.CardTitle)
	setIf(&l.CookingTime, s.CardCookingTime)
	setIf(&l.Tag, s.CardTag)
	return l
}

// Detail returns the detail page selectors. Empty fields are left empty;
// the extractor fills them with its defaults.
func (s Selectors) Detail() extract.Selectors {
	return extract.Selectors{
		IngredientList:      s.IngredientList,
		IngredientItem:      s.IngredientItem,
		PublishDate:         s.PublishDate,
		CookingTime:         s.CookingTime,
		NutritionTrigger:    s.NutritionTrigger,
		NutritionPanel:      s.NutritionPanel,
		NutritionSummaryRow: s.NutritionSummaryRow,
		NutritionLabelRow:   s.NutritionLabelRow,
		NutritionClose:      s.NutritionClose,
	}
}

// merge returns s with every non-empty field of o applied.
func (s Selectors) merge(o Selectors) Selectors {
	setIf(&s.Nav, o.Nav)
	setIf(&s.CategoryLink, o.CategoryLink)
	setIf(&s.Card, o.Card)
	setIf(&s.CardTitle, o.CardTitle)
	setIf(&s.CardCookingTime, o.CardCookingTime)
	setIf(&s.CardTag, o.CardTag)
	setIf(&s.IngredientList, o.IngredientList)
	setIf(&s.IngredientItem, o.IngredientItem)
	setIf(&s.PublishDate, o.PublishDate)
	setIf(&s.CookingTime, o.CookingTime)
	setIf(&s.NutritionTrigger, o.NutritionTrigger)
	setIf(&s.NutritionPanel, o.NutritionPanel)
	setIf(&s.NutritionSummaryRow, o.NutritionSummaryRow)
	setIf(&s.NutritionLabelRow, o.NutritionLabelRow)
	setIf(&s.NutritionClose, o.NutritionClose)
	return s
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// File represents the structure of the .recipescan configuration file.
type File struct {
	// Sites maps host names (e.g. "www.simplyrecipes.com") to their
	// site-specific configurations.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains configuration applied to all sites unless
	// overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, matched without
// regard to case. It merges the site-specific configuration with defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if cf.Defaults.Headers != nil {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	siteConfig, ok := cf.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(siteConfig.Headers))
		}
		maps.Copy(result.Headers, siteConfig.Headers)
	}
	if len(siteConfig.CategoryURLs) > 0 {
		result.CategoryURLs = siteConfig.CategoryURLs
	}
	result.Selectors = result.Selectors.merge(siteConfig.Selectors)

	return result
}
