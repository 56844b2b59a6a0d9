// Package ui provides styled console output for the CO2 enricher.
// Colors are dropped automatically when output is not a terminal.
package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/hpn/hpn-co2-enricher/internal/domain"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

var (
	successBadge = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warningBadge = color.New(color.FgYellow, color.Bold)
	errorBadge   = color.New(color.BgRed, color.FgWhite, color.Bold)
	infoBadge    = color.New(color.FgCyan, color.Bold)
	debugBadge   = color.New(color.FgMagenta)

	successText = color.New(color.FgGreen, color.Bold)
	warningText = color.New(color.FgYellow)
	errorText   = color.New(color.FgRed)
	infoText    = color.New(color.FgCyan)
	mutedText   = color.New(color.FgHiBlack)
	accentText  = color.New(color.FgMagenta, color.Bold)

	leafGreen = color.New(color.FgHiGreen, color.Bold)
	neonBlue  = color.New(color.FgHiCyan, color.Bold)

	methodPOST   = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	methodGET    = color.New(color.BgHiCyan, color.FgBlack, color.Bold)
	methodPUT    = color.New(color.BgHiYellow, color.FgBlack, color.Bold)
	methodDELETE = color.New(color.BgHiRed, color.FgBlack, color.Bold)
)

// Console writes styled progress lines. It satisfies enricher.Observer.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole writes to out, or to color.Output when out is nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = color.Output
	}
	return &Console{out: out}
}

// ══════════════════════════════════════════════════════════════════════════════
// ENRICHMENT EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// OnCacheHit prints: ⚡ CACHE HIT | fp:xxxx...xxxx | 2.50 kg
func (c *Console) OnCacheHit(fingerprint string, result domain.EnrichmentResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	neonBlue.Fprint(c.out, "⚡ CACHE HIT ")
	fmt.Fprint(c.out, "| fp:")
	mutedText.Fprint(c.out, maskShort(fingerprint))
	fmt.Fprint(c.out, " | ")
	leafGreen.Fprintf(c.out, "%.2f kg\n", result.CO2Value)
}

// OnModelFailed prints: ⚠️ [FALLBACK] model → next (kind)
func (c *Console) OnModelFailed(model string, err error, next string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprint(c.out, "⚠️  ")
	if next == "" {
		errorBadge.Fprint(c.out, " EXHAUSTED ")
		fmt.Fprint(c.out, " ")
		errorText.Fprint(c.out, model)
	} else {
		warningBadge.Fprint(c.out, "[FALLBACK]")
		fmt.Fprint(c.out, " ")
		mutedText.Fprint(c.out, model)
		warningText.Fprint(c.out, " → ")
		accentText.Fprint(c.out, next)
	}
	mutedText.Fprintf(c.out, " (%s)\n", kindLabel(err))
}

// OnSuccess prints: 🌱 [200 OK] 2.50 kg CO2 | model | 812ms
func (c *Console) OnSuccess(model string, result domain.EnrichmentResult, latency time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprint(c.out, "🌱 ")
	successBadge.Fprint(c.out, " ESTIMATED ")
	fmt.Fprint(c.out, " ")
	leafGreen.Fprintf(c.out, "%.2f kg CO2", result.CO2Value)
	fmt.Fprint(c.out, " | ")
	infoText.Fprint(c.out, model)
	fmt.Fprint(c.out, " | ")
	c.printLatency(latency)
	fmt.Fprintln(c.out)
}

// PrintKeyThrottled logs that a server-side key was put on cooldown.
func (c *Console) PrintKeyThrottled(key string, cooldown time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprint(c.out, "🧊 ")
	errorBadge.Fprint(c.out, " THROTTLED ")
	fmt.Fprint(c.out, " ")
	errorText.Fprint(c.out, maskShort(key))
	mutedText.Fprintf(c.out, " cooling down for %s\n", cooldown)
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// PrintRequest logs a request with styled output.
// Color-codes status, method, and latency for quick visual parsing.
func (c *Console) PrintRequest(method, path string, status int, latency time.Duration, requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mutedText.Fprintf(c.out, "%s ", time.Now().Format("15:04:05"))
	c.printMethodBadge(method)
	fmt.Fprint(c.out, " ")
	fmt.Fprintf(c.out, "%-30s ", truncatePath(path, 30))
	c.printStatusBadge(status)
	fmt.Fprint(c.out, " ")
	c.printLatency(latency)
	if requestID != "" {
		mutedText.Fprintf(c.out, " req:%s", shortID(requestID))
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printMethodBadge(method string) {
	switch method {
	case "POST":
		methodPOST.Fprintf(c.out, " %s ", method)
	case "GET":
		methodGET.Fprintf(c.out, " %s ", method)
	case "PUT":
		methodPUT.Fprintf(c.out, " %s ", method)
	case "DELETE":
		methodDELETE.Fprintf(c.out, " %s ", method)
	default:
		debugBadge.Fprintf(c.out, " %s ", method)
	}
}

func (c *Console) printStatusBadge(status int) {
	switch {
	case status >= 200 && status < 300:
		successBadge.Fprintf(c.out, " %d ", status)
	case status >= 300 && status < 400:
		infoBadge.Fprintf(c.out, " %d ", status)
	case status >= 400 && status < 500:
		warningBadge.Fprintf(c.out, " %d ", status)
	default:
		errorBadge.Fprintf(c.out, " %d ", status)
	}
}

// printLatency colors by model-call scale. Green: < 2s, Yellow: < 10s, Red: slower
func (c *Console) printLatency(latency time.Duration) {
	ms := latency.Milliseconds()
	s := fmt.Sprintf("%5dms", ms)

	switch {
	case latency < 2*time.Second:
		successText.Fprint(c.out, s)
	case latency < 10*time.Second:
		warningText.Fprint(c.out, s)
	default:
		errorText.Fprint(c.out, s)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// UTILITY FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// maskShort returns xxxx...xxxx for keys and fingerprints.
func maskShort(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return path[:maxLen-3] + "..."
}

func kindLabel(err error) string {
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	if err != nil {
		return "error"
	}
	return "unknown"
}
