package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

const (
	// DefaultGeminiBaseURL is the default Gemini API endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	apiKeyHeader       = "x-goog-api-key"
	statusExhausted    = "RESOURCE_EXHAUSTED"
	maxErrorBodyLength = 512
)

// GeminiAdapter implements ModelInvoker for the Google Gemini generateContent API.
type GeminiAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GeminiAdapterOption is a functional option for configuring GeminiAdapter.
type GeminiAdapterOption func(*GeminiAdapter)

// WithBaseURL sets a custom base URL for the Gemini API.
func WithBaseURL(url string) GeminiAdapterOption {
	return func(g *GeminiAdapter) {
		if url != "" {
			g.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) GeminiAdapterOption {
	return func(g *GeminiAdapter) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithTimeout sets the HTTP client timeout. The client is copied first, so a
// client passed through WithHTTPClient is left untouched.
func WithTimeout(timeout time.Duration) GeminiAdapterOption {
	return func(g *GeminiAdapter) {
		if timeout > 0 {
			client := *g.httpClient
			client.Timeout = timeout
			g.httpClient = &client
		}
	}
}

// NewGeminiAdapter creates a new GeminiAdapter authenticated with apiKey.
func NewGeminiAdapter(apiKey string, opts ...GeminiAdapterOption) *GeminiAdapter {
	g := &GeminiAdapter{
		apiKey:  apiKey,
		baseURL: DefaultGeminiBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Name returns the provider identifier.
func (g *GeminiAdapter) Name() string {
	return "gemini"
}

// Generate performs a single generateContent call and returns the candidate text.
func (g *GeminiAdapter) Generate(ctx context.Context, model, prompt string, cfg domain.GenerationConfig) (string, error) {
	body, err := json.Marshal(g.buildRequest(prompt, cfg))
	if err != nil {
		return "", domain.NewTransportError("failed to marshal gemini request", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", domain.NewTransportError("failed to create http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", domain.NewTransportError("failed to execute gemini request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.NewTransportError("failed to read gemini response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, respBody)
	}

	var geminiResp GeminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", domain.NewTransportError("failed to unmarshal gemini response", err)
	}

	return candidateText(geminiResp)
}

// buildRequest maps a prompt and the fixed generation settings to a Gemini request.
func (g *GeminiAdapter) buildRequest(prompt string, cfg domain.GenerationConfig) GeminiRequest {
	temperature := cfg.Temperature
	topP := cfg.TopP
	topK := cfg.TopK
	maxTokens := cfg.MaxOutputTokens

	return GeminiRequest{
		Contents: []GeminiContent{
			{
				Role:  "user",
				Parts: []GeminiPart{{Text: prompt}},
			},
		},
		GenerationConfig: GeminiGenerationConfig{
			Temperature:     &temperature,
			TopP:            &topP,
			TopK:            &topK,
			MaxOutputTokens: &maxTokens,
		},
	}
}

// classifyStatus turns a non-200 response into a rate-limit or transport error.
func classifyStatus(status int, body []byte) error {
	var geminiErr GeminiErrorResponse
	message := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &geminiErr); err == nil && geminiErr.Error.Message != "" {
		message = geminiErr.Error.Message
	}
	if len(message) > maxErrorBodyLength {
		message = message[:maxErrorBodyLength] + "..."
	}

	detail := fmt.Sprintf("gemini API error [%d]: %s", status, message)
	if status == http.StatusTooManyRequests || geminiErr.Error.Status == statusExhausted {
		return domain.NewRateLimitError(detail, nil)
	}
	return domain.NewTransportError(detail, nil)
}

// candidateText joins the text parts of the first candidate.
func candidateText(resp GeminiResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", domain.NewTransportError("gemini blocked the prompt: "+resp.PromptFeedback.BlockReason, nil)
		}
		return "", domain.NewTransportError("gemini returned no candidates", nil)
	}

	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", domain.NewTransportError(
			fmt.Sprintf("gemini returned an empty candidate (finishReason=%s)", candidate.FinishReason), nil)
	}
	return text.String(), nil
}

// ============================================================================
// Gemini API Types
// ============================================================================

// GeminiRequest represents a Gemini generateContent request.
type GeminiRequest struct {
	Contents         []GeminiContent        `json:"contents"`
	GenerationConfig GeminiGenerationConfig `json:"generationConfig,omitempty"`
}

// GeminiContent represents a content block in Gemini format.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart represents a part of a content block.
type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

// GeminiGenerationConfig contains generation parameters.
type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *int     `json:"topK,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

// GeminiResponse represents a Gemini generateContent response.
type GeminiResponse struct {
	Candidates     []GeminiCandidate     `json:"candidates"`
	PromptFeedback *GeminiPromptFeedback `json:"promptFeedback,omitempty"`
	UsageMetadata  *GeminiUsageMetadata  `json:"usageMetadata,omitempty"`
}

// GeminiCandidate represents a single generated candidate.
type GeminiCandidate struct {
	Content      GeminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
	Index        int           `json:"index"`
}

// GeminiPromptFeedback explains why a prompt produced no candidates.
type GeminiPromptFeedback struct {
	BlockReason string `json:"blockReason"`
}

// GeminiUsageMetadata contains token usage information.
type GeminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GeminiErrorResponse represents an error response from Gemini API.
type GeminiErrorResponse struct {
	Error GeminiErrorDetail `json:"error"`
}

// GeminiErrorDetail contains error details.
type GeminiErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
