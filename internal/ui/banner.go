package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// PrintBanner displays the startup banner.
func PrintBanner(out io.Writer) {
	if out == nil {
		out = color.Output
	}

	green := color.New(color.FgGreen, color.Bold)
	hiGreen := color.New(color.FgHiGreen)
	cyan := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintln(out)
	green.Fprintln(out, "╔══════════════════════════════════════════════════════════╗")
	green.Fprint(out, "║ ")
	hiGreen.Fprint(out, "   ██████╗ ██████╗ ██████╗     ")
	cyan.Fprint(out, "HPN CO2 ENRICHER         ")
	green.Fprintln(out, " ║")
	green.Fprint(out, "║ ")
	hiGreen.Fprint(out, "  ██╔════╝██╔═══██╗╚════██╗    ")
	dim.Fprint(out, "product footprints,      ")
	green.Fprintln(out, " ║")
	green.Fprint(out, "║ ")
	hiGreen.Fprint(out, "  ██║     ██║   ██║ █████╔╝    ")
	dim.Fprint(out, "estimated by Gemini      ")
	green.Fprintln(out, " ║")
	green.Fprint(out, "║ ")
	hiGreen.Fprint(out, "  ╚██████╗╚██████╔╝███████╗    ")
	dim.Fprint(out, "                         ")
	green.Fprintln(out, " ║")
	green.Fprintln(out, "╚══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(out)
}

// StartupInfo describes the running server for PrintStartupInfo.
type StartupInfo struct {
	Addr        string
	Models      []string
	ServerKeys  int
	StoredKey   bool
	StorePath   string
	MinInterval time.Duration
}

// PrintStartupInfo prints the address, the model chain and key sources.
func (c *Console) PrintStartupInfo(info StartupInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	infoBadge.Fprint(c.out, "[ENRICHER]")
	fmt.Fprint(c.out, " Server starting on ")
	neonBlue.Fprintf(c.out, "http://%s\n", info.Addr)

	infoBadge.Fprint(c.out, "[ENRICHER]")
	fmt.Fprint(c.out, " Model chain: ")
	for i, m := range info.Models {
		if i > 0 {
			mutedText.Fprint(c.out, " → ")
		}
		accentText.Fprint(c.out, m)
	}
	fmt.Fprintln(c.out)

	infoBadge.Fprint(c.out, "[ENRICHER]")
	fmt.Fprint(c.out, " Server keys: ")
	if info.ServerKeys > 0 || info.StoredKey {
		successText.Fprintf(c.out, "%d", info.ServerKeys)
	} else {
		errorText.Fprintf(c.out, "%d (requests must bring their own key)", info.ServerKeys)
	}
	fmt.Fprint(c.out, " | Stored key: ")
	if info.StoredKey {
		successText.Fprint(c.out, "yes")
	} else {
		mutedText.Fprint(c.out, "no")
	}
	fmt.Fprint(c.out, " | Spacing: ")
	accentText.Fprintln(c.out, info.MinInterval)

	infoBadge.Fprint(c.out, "[ENRICHER]")
	fmt.Fprint(c.out, " History: ")
	mutedText.Fprintln(c.out, info.StorePath)

	fmt.Fprintln(c.out)
	c.printEndpoints()
}

func (c *Console) printEndpoints() {
	endpoints := []struct{ method, path, desc string }{
		{"POST", "/v1/enrich", "Estimate CO2 for a product"},
		{"POST", "/v1/products", "Estimate and save to history"},
		{"GET", "/v1/products", "List saved history"},
		{"GET", "/v1/products/:id", "One saved product"},
		{"GET", "/v1/products/export", "Export history as CSV"},
		{"PUT", "/v1/settings/api-key", "Store the Gemini API key"},
		{"GET", "/v1/models", "Candidate model chain"},
		{"GET", "/health", "Health check"},
	}

	mutedText.Fprintln(c.out, "  ┌──────────────────────────────────────────────────────────────┐")
	for _, e := range endpoints {
		mutedText.Fprint(c.out, "  │ ")
		c.printMethodBadge(e.method)
		fmt.Fprintf(c.out, "%s %-22s ", strings.Repeat(" ", 4-len(e.method)), e.path)
		mutedText.Fprintf(c.out, "%-29s", e.desc)
		mutedText.Fprintln(c.out, " │")
	}
	mutedText.Fprintln(c.out, "  └──────────────────────────────────────────────────────────────┘")
	fmt.Fprintln(c.out)
}

// PrintShutdown prints a styled shutdown message.
func (c *Console) PrintShutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.out)
	warningBadge.Fprint(c.out, "[SHUTDOWN]")
	warningText.Fprintln(c.out, " Graceful shutdown initiated...")
}

// PrintGoodbye prints a styled goodbye message.
func (c *Console) PrintGoodbye() {
	c.mu.Lock()
	defer c.mu.Unlock()

	successBadge.Fprint(c.out, " OK ")
	fmt.Fprint(c.out, " ")
	successText.Fprintln(c.out, "Server stopped. Goodbye! 👋")
}
