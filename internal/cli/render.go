package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	json "github.com/goccy/go-json"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rshade/kvcache/pkg/kvcache"
)

const (
	reportBoxWidth     = 48
	reportLabelWidth   = 18
	reportTitlePadding = 4
)

// reportRow is one label/value line of a report.
type reportRow struct {
	label string
	value string
	warn  bool
}

// writeJSON writes v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// renderReport writes rows in a bordered box when styled, or as aligned
// plain text otherwise.
func renderReport(w io.Writer, title string, rows []reportRow, styled bool) error {
	if styled {
		return renderStyledReport(w, title, rows)
	}
	return renderPlainReport(w, title, rows)
}

func renderPlainReport(w io.Writer, title string, rows []reportRow) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("=", len(title))); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(w, "%-*s %s\n", reportLabelWidth, r.label+":", r.value); err != nil {
			return err
		}
	}
	return nil
}

func renderStyledReport(w io.Writer, title string, rows []reportRow) error {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("39"))
	labelStyle := lipgloss.NewStyle().
		Bold(true).
		Width(reportLabelWidth)
	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("208"))
	borderStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1).
		Width(reportBoxWidth)

	var content strings.Builder
	content.WriteString(titleStyle.Render(title))
	content.WriteString("\n")
	content.WriteString(strings.Repeat("─", reportBoxWidth-reportTitlePadding))
	for _, r := range rows {
		value := r.value
		if r.warn {
			value = warnStyle.Render(value)
		}
		content.WriteString("\n")
		content.WriteString(labelStyle.Render(r.label))
		content.WriteString(value)
	}

	_, err := fmt.Fprintln(w, borderStyle.Render(content.String()))
	return err
}

func sweepRows(r kvcache.SweepResult) []reportRow {
	p := message.NewPrinter(language.English)
	return []reportRow{
		{label: "Memory evicted", value: p.Sprintf("%d", r.MemoryEvicted)},
		{label: "Files scanned", value: p.Sprintf("%d", r.FilesScanned)},
		{label: "Files removed", value: p.Sprintf("%d", r.FilesRemoved)},
		{label: "Temp files", value: p.Sprintf("%d", r.TempRemoved)},
		{label: "Corrupt", value: p.Sprintf("%d", r.Corrupt), warn: r.Corrupt > 0},
		{label: "Duration", value: r.Duration.Round(time.Millisecond).String()},
	}
}

func statsRows(s kvcache.Stats) []reportRow {
	p := message.NewPrinter(language.English)
	return []reportRow{
		{label: "Store", value: s.Store},
		{label: "Memory entries", value: p.Sprintf("%d", s.MemoryEntries)},
		{label: "Disk entries", value: p.Sprintf("%d", s.DiskEntries)},
		{label: "Disk size", value: formatBytes(p, s.DiskBytes)},
		{label: "Expired", value: p.Sprintf("%d", s.Expired), warn: s.Expired > 0},
		{label: "Corrupt", value: p.Sprintf("%d", s.Corrupt), warn: s.Corrupt > 0},
	}
}

// formatBytes renders n with a binary unit suffix.
func formatBytes(p *message.Printer, n int64) string {
	const unit = 1024
	if n < unit {
		return p.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return p.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// formatProgress renders one sweep --progress status line.
func formatProgress(s kvcache.SweepProgress) string {
	p := message.NewPrinter(language.English)
	return p.Sprintf("swept %d/%d files (%.0f%%, %.0f files/s)", s.Processed, s.Total, s.Percent, s.Rate)
}
