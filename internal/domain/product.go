// Package domain contains the core business entities and value objects.
// These structs are framework-agnostic and represent the heart of the application.
package domain

import (
	"math"
)

// Product is a product record scraped by the browser extension.
// The enrichment core only reads it.
type Product struct {
	// ID is the retailer identifier (e.g. an Amazon ASIN).
	ID string `json:"id" yaml:"id"`

	// Title is the full product title as shown on the product page.
	Title string `json:"title" yaml:"title" binding:"required"`

	// Description is free text, usually the feature bullet block.
	Description string `json:"description" yaml:"description"`

	// Details maps a detail label (brand, material, weight, origin...) to its value.
	Details map[string]string `json:"details" yaml:"details"`

	// About holds the "about this item" feature bullets.
	About []string `json:"about,omitempty" yaml:"about"`

	// Link is the product page URL. Optional.
	Link string `json:"link,omitempty" yaml:"link"`
}

// EnrichmentResult is a validated LLM estimate for a product.
type EnrichmentResult struct {
	// CO2Value is the full-lifecycle footprint estimate in kilograms.
	CO2Value float64 `json:"co2Value"`

	// ConciseTitle targets 50 characters; only non-emptiness is enforced.
	ConciseTitle string `json:"conciseTitle"`

	// ConciseDescription targets 100 characters; only non-emptiness is enforced.
	ConciseDescription string `json:"conciseDescription"`

	// ModelUsed identifies the candidate model that produced the estimate.
	ModelUsed string `json:"model"`
}

// NewEnrichmentResult builds a result, refusing values that break its invariants.
func NewEnrichmentResult(co2Value float64, title, description, model string) (EnrichmentResult, error) {
	if math.IsNaN(co2Value) || math.IsInf(co2Value, 0) || co2Value <= 0 {
		return EnrichmentResult{}, NewParsingError("invalid or missing co2Value in response", nil)
	}
	if title == "" {
		return EnrichmentResult{}, NewParsingError("invalid or missing conciseTitle in response", nil)
	}
	if description == "" {
		return EnrichmentResult{}, NewParsingError("invalid or missing conciseDescription in response", nil)
	}
	return EnrichmentResult{
		CO2Value:           co2Value,
		ConciseTitle:       title,
		ConciseDescription: description,
		ModelUsed:          model,
	}, nil
}

// WithModel returns a copy of the result tagged with the given model.
func (r EnrichmentResult) WithModel(model string) EnrichmentResult {
	r.ModelUsed = model
	return r
}
