// Package prompt turns a product record into the instruction sent to the model.
package prompt

import (
	"sort"
	"strings"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

const preamble = `You are an expert in environmental impact assessment and product analysis. Analyze the following product details and provide a response in strict JSON format without any markdown formatting or code blocks.`

const task = `Task:
1. Calculate the estimated CO2 footprint (in kg) for the product's full lifecycle:
   - Consider manufacturing, transportation, usage, and disposal
   - Use industry standards and averages when specific data is missing
   - Base calculations on similar products in the same category
   - Factor in available details like materials, weight, dimensions, and origin
   - If energy consumption is provided, prioritize it in usage phase calculations

2. Create a concise, descriptive title (max 50 characters)
3. Write a clear, informative description (max 100 characters)

IMPORTANT: Return ONLY a valid JSON object in this exact format, with no additional text, markdown, or code blocks:
{
  "co2Value": number,
  "conciseTitle": "string",
  "conciseDescription": "string"
}

Note: Ensure the CO2 calculation is as accurate as possible based on available information. Use industry benchmarks and similar product data when specific details are missing.`

// placeholders are detail values the scraper emits when it found nothing.
var placeholders = map[string]struct{}{
	"":              {},
	"Not specified": {},
	"Unknown":       {},
}

// Build renders the enrichment prompt for p. The output is deterministic for equal input.
func Build(p domain.Product) string {
	var b strings.Builder

	b.WriteString(preamble)
	b.WriteString("\n\nProduct Information:\n")
	b.WriteString("Title: ")
	b.WriteString(p.Title)
	b.WriteString("\nDescription: ")
	b.WriteString(p.Description)
	b.WriteString("\n")

	if details := DetailLines(p.Details); len(details) > 0 {
		b.WriteString("\nAvailable Product Details:\n")
		b.WriteString(strings.Join(details, "\n"))
		b.WriteString("\n")
	}

	if features := featureLines(p.About); len(features) > 0 {
		b.WriteString("\nKey Features:\n")
		b.WriteString(strings.Join(features, "\n"))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(task)
	return b.String()
}

// DetailLines returns "label: value" lines for informative details, sorted by label.
func DetailLines(details map[string]string) []string {
	labels := make([]string, 0, len(details))
	for label, value := range details {
		if IsPlaceholder(value) {
			continue
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)

	lines := make([]string, 0, len(labels))
	for _, label := range labels {
		lines = append(lines, label+": "+strings.TrimSpace(details[label]))
	}
	return lines
}

// IsPlaceholder reports whether a detail value carries no information.
func IsPlaceholder(value string) bool {
	_, ok := placeholders[strings.TrimSpace(value)]
	return ok
}

func featureLines(about []string) []string {
	lines := make([]string, 0, len(about))
	for _, item := range about {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, "- "+item)
		}
	}
	return lines
}
