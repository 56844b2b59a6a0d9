package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestEnrichError_IsMatchesByKind(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"transport matches transport", NewTransportError("dial tcp", nil), ErrTransport, true},
		{"rate limit matches rate limit", NewRateLimitError("", nil), ErrRateLimited, true},
		{"parsing does not match transport", NewParsingError("bad json", nil), ErrTransport, false},
		{"wrapped rate limit", fmt.Errorf("model x: %w", NewRateLimitError("429", nil)), ErrRateLimited, true},
		{"exhausted wraps last cause", NewExhaustedError(3, NewTransportError("503", nil)), ErrTransport, true},
		{"exhausted matches exhausted", NewExhaustedError(3, nil), ErrExhausted, true},
		{"plain error", errors.New("boom"), ErrTransport, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(NewExhaustedError(2, NewParsingError("x", nil))); got != KindExhausted {
		t.Errorf("KindOf(exhausted) = %q, want %q", got, KindExhausted)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestIsRateLimit(t *testing.T) {
	if !IsRateLimit(NewRateLimitError("quota", nil)) {
		t.Error("IsRateLimit(rate limit) = false")
	}
	if IsRateLimit(NewTransportError("500", nil)) {
		t.Error("IsRateLimit(transport) = true")
	}
	if IsRateLimit(nil) {
		t.Error("IsRateLimit(nil) = true")
	}
}

func TestClassify(t *testing.T) {
	plain := errors.New("connection reset")
	classified := Classify(plain, "gemini-1.5-pro")
	if KindOf(classified) != KindTransport {
		t.Errorf("KindOf(Classify(plain)) = %q, want transport", KindOf(classified))
	}
	if !errors.Is(classified, plain) {
		t.Error("Classify should keep the original error in the chain")
	}
	if !strings.Contains(classified.Error(), "gemini-1.5-pro") {
		t.Errorf("Error() = %q, want model name", classified.Error())
	}

	// Sentinels must never be mutated when tagged.
	tagged := Classify(ErrRateLimited, "gemini-1.5-flash")
	if ErrRateLimited.Model != "" {
		t.Errorf("sentinel was mutated: Model = %q", ErrRateLimited.Model)
	}
	if !IsRateLimit(tagged) {
		t.Error("tagged sentinel lost its kind")
	}

	if Classify(nil, "m") != nil {
		t.Error("Classify(nil) should be nil")
	}
}

func TestNewEnrichmentResult(t *testing.T) {
	tests := []struct {
		name    string
		co2     float64
		title   string
		desc    string
		wantErr string
	}{
		{name: "valid", co2: 0.8, title: "Bamboo Toothbrush", desc: "Biodegradable toothbrush"},
		{name: "zero co2", co2: 0, title: "t", desc: "d", wantErr: "co2Value"},
		{name: "negative co2", co2: -1, title: "t", desc: "d", wantErr: "co2Value"},
		{name: "nan co2", co2: math.NaN(), title: "t", desc: "d", wantErr: "co2Value"},
		{name: "inf co2", co2: math.Inf(1), title: "t", desc: "d", wantErr: "co2Value"},
		{name: "empty title", co2: 1, title: "", desc: "d", wantErr: "conciseTitle"},
		{name: "empty description", co2: 1, title: "t", desc: "", wantErr: "conciseDescription"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewEnrichmentResult(tt.co2, tt.title, tt.desc, "gemini-1.5-flash")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if res.ModelUsed != "gemini-1.5-flash" {
					t.Errorf("ModelUsed = %q", res.ModelUsed)
				}
				return
			}
			if !errors.Is(err, ErrResponseParsing) {
				t.Fatalf("error = %v, want a response parsing error", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want mention of %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefaultModelCandidatesIsACopy(t *testing.T) {
	models := DefaultModelCandidates()
	if len(models) != 6 || models[0] != "gemini-2.0-flash-exp" {
		t.Fatalf("unexpected roster: %v", models)
	}
	models[0] = "changed"
	if DefaultModelCandidates()[0] != "gemini-2.0-flash-exp" {
		t.Error("DefaultModelCandidates() exposed its backing array")
	}
}
