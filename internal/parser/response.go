// Package parser turns raw model output into a validated EnrichmentResult.
package parser

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```$")

	validate = newValidator()
)

// payload is the exact object the prompt asks the model to return.
type payload struct {
	CO2Value           *float64 `json:"co2Value" validate:"required,gt=0"`
	ConciseTitle       string   `json:"conciseTitle" validate:"required"`
	ConciseDescription string   `json:"conciseDescription" validate:"required"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// StripFences removes surrounding whitespace and a single markdown code fence, if present.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = leadingFence.ReplaceAllString(s, "")
	s = trailingFence.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Parse validates raw model text and returns the estimate it carries.
// Any violation yields a response_parsing error; partial results are never returned.
func Parse(raw string) (domain.EnrichmentResult, error) {
	text := StripFences(raw)
	if !strings.HasPrefix(text, "{") {
		return domain.EnrichmentResult{}, domain.NewParsingError("response is not a valid JSON object", nil)
	}

	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return domain.EnrichmentResult{}, domain.NewParsingError("JSON parsing error", err)
	}

	if err := validate.Struct(p); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return domain.EnrichmentResult{}, domain.NewParsingError(
				"invalid or missing "+fieldErrs[0].Field()+" in response", nil)
		}
		return domain.EnrichmentResult{}, domain.NewParsingError("response validation failed", err)
	}

	return domain.NewEnrichmentResult(*p.CO2Value, p.ConciseTitle, p.ConciseDescription, "")
}
