package domain

import (
	"errors"
	"fmt"
)

// ErrorKind tags an enrichment failure with how callers should react to it.
type ErrorKind string

const (
	// KindTransport covers network failures, non-2xx responses and provider-side errors.
	// Retried per candidate, then the next candidate is tried.
	KindTransport ErrorKind = "transport"

	// KindRateLimit means the provider throttled us. Never retried, aborts the fallback chain.
	KindRateLimit ErrorKind = "rate_limit"

	// KindParsing means the model answered but the text was not a valid estimate.
	// Retried, since a new generation may be well formed.
	KindParsing ErrorKind = "response_parsing"

	// KindExhausted means every candidate model failed.
	KindExhausted ErrorKind = "orchestration_exhausted"
)

// ErrMissingAPIKey is returned when no Gemini API key is configured for a request.
var ErrMissingAPIKey = errors.New("gemini api key is not configured")

// EnrichError is the single error type surfaced by the enrichment core.
type EnrichError struct {
	Kind    ErrorKind
	Model   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *EnrichError) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Model != "" {
		msg = fmt.Sprintf("%s: %s [model=%s]", e.Kind, e.Message, e.Model)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *EnrichError) Unwrap() error {
	return e.Err
}

// Is matches another *EnrichError of the same kind, so the sentinels below work with errors.Is.
func (e *EnrichError) Is(target error) bool {
	t, ok := target.(*EnrichError)
	if !ok || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrTransport       = &EnrichError{Kind: KindTransport, Message: "transport failure"}
	ErrRateLimited     = &EnrichError{Kind: KindRateLimit, Message: "API rate limit exceeded"}
	ErrResponseParsing = &EnrichError{Kind: KindParsing, Message: "invalid model response"}
	ErrExhausted       = &EnrichError{Kind: KindExhausted, Message: "all models failed"}
)

// NewTransportError wraps a network or provider failure.
func NewTransportError(message string, err error) *EnrichError {
	return &EnrichError{Kind: KindTransport, Message: message, Err: err}
}

// NewRateLimitError reports provider throttling.
func NewRateLimitError(message string, err error) *EnrichError {
	if message == "" {
		message = "API rate limit exceeded"
	}
	return &EnrichError{Kind: KindRateLimit, Message: message, Err: err}
}

// NewParsingError reports a malformed or invalid model response.
func NewParsingError(message string, err error) *EnrichError {
	return &EnrichError{Kind: KindParsing, Message: message, Err: err}
}

// NewExhaustedError reports that the whole candidate list failed. last may be nil.
func NewExhaustedError(tried int, last error) *EnrichError {
	if last == nil {
		return &EnrichError{
			Kind:    KindExhausted,
			Message: "failed to process product with all available models",
		}
	}
	return &EnrichError{
		Kind:    KindExhausted,
		Message: fmt.Sprintf("all %d models failed", tried),
		Err:     last,
	}
}

// KindOf returns the kind of the outermost *EnrichError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var ee *EnrichError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return ""
}

// IsRateLimit reports whether err is (or wraps) a rate-limit failure.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// Classify makes sure err carries a kind. Untyped errors are treated as transport failures.
func Classify(err error, model string) error {
	if err == nil {
		return nil
	}
	var ee *EnrichError
	if errors.As(err, &ee) {
		if ee.Model == "" && error(ee) == err {
			tagged := *ee
			tagged.Model = model
			return &tagged
		}
		return err
	}
	return &EnrichError{Kind: KindTransport, Model: model, Message: "model invocation failed", Err: err}
}
