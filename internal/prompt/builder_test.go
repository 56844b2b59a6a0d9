package prompt

import (
	"strings"
	"testing"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

func TestBuild_FiltersPlaceholderDetails(t *testing.T) {
	p := domain.Product{
		ID:    "B0TOOTH01",
		Title: "Bamboo Toothbrush",
		Details: map[string]string{
			"material": "Bamboo handle, Nylon bristles",
			"weight":   "Not specified",
		},
	}

	got := Build(p)

	if !strings.Contains(got, "material: Bamboo handle, Nylon bristles") {
		t.Errorf("prompt is missing the material line:\n%s", got)
	}
	if strings.Contains(got, "weight:") || strings.Contains(got, "Not specified") {
		t.Errorf("prompt should not mention the placeholder weight:\n%s", got)
	}
	if !strings.Contains(got, "Title: Bamboo Toothbrush") {
		t.Errorf("prompt is missing the title:\n%s", got)
	}
}

func TestBuild_OmitsDetailSectionWhenNothingInformative(t *testing.T) {
	p := domain.Product{
		Title:       "Mystery Box",
		Description: "A box",
		Details: map[string]string{
			"brand":  "Unknown",
			"origin": "   ",
			"weight": "",
		},
	}

	got := Build(p)
	if strings.Contains(got, "Available Product Details") {
		t.Errorf("detail header should be omitted:\n%s", got)
	}
}

func TestBuild_RequestsStrictJSON(t *testing.T) {
	got := Build(domain.Product{Title: "Kettle"})

	for _, want := range []string{`"co2Value": number`, `"conciseTitle": "string"`, `"conciseDescription": "string"`, "no additional text, markdown, or code blocks", "manufacturing, transportation, usage, and disposal"} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
}

func TestBuild_IsDeterministic(t *testing.T) {
	p := domain.Product{
		Title: "Desk Lamp",
		Details: map[string]string{
			"brand":              "Lumo",
			"material":           "Aluminium",
			"energy consumption": "9 W",
			"origin":             "Vietnam",
			"dimensions":         "40 x 12 x 12 cm",
		},
		About: []string{"Dimmable", "", "  USB-C powered "},
	}

	first := Build(p)
	for i := 0; i < 20; i++ {
		if Build(p) != first {
			t.Fatal("Build() is not deterministic across calls")
		}
	}

	brand := strings.Index(first, "brand: Lumo")
	origin := strings.Index(first, "origin: Vietnam")
	if brand < 0 || origin < 0 || brand > origin {
		t.Errorf("details should be sorted by label:\n%s", first)
	}
	if !strings.Contains(first, "- USB-C powered\n") || strings.Contains(first, "- \n") {
		t.Errorf("feature bullets not rendered as expected:\n%s", first)
	}
}

func TestIsPlaceholder(t *testing.T) {
	tests := map[string]bool{
		"":              true,
		"  ":            true,
		"Not specified": true,
		"Unknown":       true,
		"unknown brand": false,
		"0.5 kg":        false,
	}
	for value, want := range tests {
		if got := IsPlaceholder(value); got != want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", value, got, want)
		}
	}
}
