package domain

// GenerationConfig holds the sampling parameters sent with every generation request.
type GenerationConfig struct {
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// DefaultGenerationConfig is the fixed tuning used for every enrichment call.
var DefaultGenerationConfig = GenerationConfig{
	Temperature:     1.0,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 8192,
}

// defaultModelCandidates is the fallback chain, most capable and most recent first.
var defaultModelCandidates = []string{
	"gemini-2.0-flash-exp",
	"gemini-2.0-flash-thinking-exp-01-21",
	"gemini-1.5-flash",
	"gemini-1.5-pro",
	"gemini-1.5-flash-8b",
	"gemini-exp-1206",
}

// DefaultModelCandidates returns a copy of the built-in fallback chain.
func DefaultModelCandidates() []string {
	out := make([]string, len(defaultModelCandidates))
	copy(out, defaultModelCandidates)
	return out
}
