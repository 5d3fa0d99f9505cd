package benchmark

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// FormatValue renders a metric for humans: millions and thousands get an
// M/K suffix, fractions in (0,1) four decimals, other numbers two.
func FormatValue(v Value) string {
	f, ok := v.Float()
	if !ok {
		return v.String()
	}
	switch {
	case f >= 1_000_000:
		return fmt.Sprintf("%.2fM", f/1_000_000)
	case f >= 1_000:
		return fmt.Sprintf("%.2fK", f/1_000)
	case f > 0 && f < 1:
		return fmt.Sprintf("%.4f", f)
	default:
		return fmt.Sprintf("%.2f", f)
	}
}

// formatMetric renders a metric or "-" when absent
func formatMetric(m *Metrics, name string) string {
	v, ok := m.Get(name)
	if !ok {
		return "-"
	}
	return FormatValue(v)
}

var summaryColumns = []struct {
	header string
	metric string
}{
	{"Avg (ms)", MetricDurationMs},
	{"p50 (ms)", MetricLatencyP50Ms},
	{"p95 (ms)", MetricLatencyP95Ms},
	{"p99 (ms)", MetricLatencyP99Ms},
	{"Ops/s", MetricOpsPerSecond},
	{"Bytes/s", MetricBytesPerSecond},
	{"Iterations", MetricIterations},
}

// GenerateSummary renders results as a markdown report: an overview table
// followed by every metric per target.
func GenerateSummary(results []*Result) string {
	var b strings.Builder
	b.WriteString("# Benchmark Summary\n\n")
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if len(results) == 0 {
		b.WriteString("No benchmark results.\n")
		return b.String()
	}

	b.WriteString("| Target |")
	for _, c := range summaryColumns {
		fmt.Fprintf(&b, " %s |", c.header)
	}
	b.WriteString("\n|---|")
	for range summaryColumns {
		b.WriteString("---:|")
	}
	b.WriteString("\n")
	for _, res := range results {
		fmt.Fprintf(&b, "| %s |", res.TargetID)
		for _, c := range summaryColumns {
			fmt.Fprintf(&b, " %s |", formatMetric(res.Metrics, c.metric))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Details\n")
	for _, res := range results {
		fmt.Fprintf(&b, "\n### %s\n\n", res.TargetID)
		fmt.Fprintf(&b, "Timestamp: %s\n\n", res.Timestamp.UTC().Format(time.RFC3339))
		for _, name := range res.Metrics.Names() {
			v, _ := res.Metrics.Get(name)
			fmt.Fprintf(&b, "- `%s`: %s\n", name, FormatValue(v))
		}
	}
	fmt.Fprintf(&b, "\nTotal: %d result(s)\n", len(results))
	return b.String()
}

// PrintResults writes results as plain text, every metric on its own line
func PrintResults(w io.Writer, results []*Result) error {
	rule := strings.Repeat("=", 60)
	if _, err := fmt.Fprintf(w, "\n%s\nBENCHMARK RESULTS\n%s\n\n", rule, rule); err != nil {
		return err
	}
	for _, res := range results {
		fmt.Fprintf(w, "Target: %s\n", res.TargetID)
		fmt.Fprintf(w, "Timestamp: %s\n", res.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
		fmt.Fprintln(w, "Metrics:")
		for _, name := range res.Metrics.Names() {
			v, _ := res.Metrics.Get(name)
			fmt.Fprintf(w, "  %s: %s\n", name, FormatValue(v))
		}
		if _, err := fmt.Fprintln(w, strings.Repeat("-", 40)); err != nil {
			return err
		}
	}
	return nil
}

var (
	tableBorder = lipgloss.NewStyle().Foreground(lipgloss.Color("#16858E"))
	tableHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7")).Padding(0, 1)
	tableCell   = lipgloss.NewStyle().Padding(0, 1)
	tableNumber = tableCell.Align(lipgloss.Right)
)

// RenderTable writes the overview table. With detailed set, every custom
// metric follows the table, grouped per target.
func RenderTable(w io.Writer, results []*Result, detailed bool) error {
	headers := []string{"Target"}
	for _, c := range summaryColumns {
		headers = append(headers, c.header)
	}

	rows := make([][]string, 0, len(results))
	for _, res := range results {
		row := []string{res.TargetID}
		for _, c := range summaryColumns {
			row = append(row, formatMetric(res.Metrics, c.metric))
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(tableBorder).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeader
			case col == 0:
				return tableCell
			default:
				return tableNumber
			}
		})
	if _, err := fmt.Fprintln(w, t.String()); err != nil {
		return err
	}

	if detailed {
		for _, res := range results {
			if len(res.Metrics.Custom) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s\n", tableHeader.Render(res.TargetID))
			for _, name := range res.Metrics.Names() {
				if IsWellKnownMetric(name) {
					continue
				}
				v, _ := res.Metrics.Get(name)
				fmt.Fprintf(w, "  %s: %s\n", name, FormatValue(v))
			}
		}
	}
	return nil
}
