// Package report renders saved enrichment history for terminals and spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/hpn/hpn-co2-enricher/internal/store"
)

// CSVHeader lists the export columns in order.
var CSVHeader = []string{"id", "title", "concise_title", "concise_description", "co2_kg", "model", "link", "saved_at"}

// Table writes a rounded table of the history with a total CO2 footer.
func Table(w io.Writer, items []store.SavedProduct) error {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "ID", "Product", "CO2 (kg)", "Model", "Saved"})

	total := 0.0
	for i, it := range items {
		total += it.Result.CO2Value
		tw.AppendRow(table.Row{
			i + 1,
			it.Product.ID,
			it.Result.ConciseTitle,
			formatKg(it.Result.CO2Value),
			it.Result.ModelUsed,
			it.SavedAt.Local().Format(time.DateTime),
		})
	}
	tw.AppendFooter(table.Row{"", "", "Total", formatKg(total), "", fmt.Sprintf("%d items", len(items))})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 3, WidthMax: 50},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	if _, err := io.WriteString(w, tw.Render()+"\n"); err != nil {
		return fmt.Errorf("write history table: %w", err)
	}
	return nil
}

// CSV writes the history as RFC 4180 comma-separated values with a header row.
func CSV(w io.Writer, items []store.SavedProduct) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("write history csv: %w", err)
	}

	for _, it := range items {
		record := []string{
			it.Product.ID,
			it.Product.Title,
			it.Result.ConciseTitle,
			it.Result.ConciseDescription,
			strconv.FormatFloat(it.Result.CO2Value, 'f', -1, 64),
			it.Result.ModelUsed,
			it.Product.Link,
			it.SavedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write history csv: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write history csv: %w", err)
	}
	return nil
}

func formatKg(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
