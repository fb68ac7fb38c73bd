package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#A78BFA")).MarginBottom(1)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#60A5FA"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF")).Width(34)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	barStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

const barWidth = 40

// Render writes a terminal report of the summary.
func Render(w io.Writer, s Summary) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Doubling up") + "\n")
	row(&b, "Households in extract", humanize.Comma(int64(s.Households)))
	row(&b, "Households doubling up", humanize.Comma(int64(s.DoublingUp)))
	row(&b, "US households (millions)", humanize.CommafWithDigits(s.WeightedHouseholds, 2))
	row(&b, "Doubling up (millions)", humanize.CommafWithDigits(s.WeightedDoublingUp, 2))
	share := percent(s.ShareDoublingUp)
	if s.ShareDoublingUpSE > 0 {
		share += " ± " + percent(s.ShareDoublingUpSE)
	}
	row(&b, "Share doubling up", share)

	b.WriteString("\n" + headingStyle.Render("Share doubling up by poverty level") + "\n")
	for _, bin := range s.Bins {
		label := fmt.Sprintf("%4.0f%% - %4.0f%%", bin.Low, bin.High)
		b.WriteString(labelStyle.Render(label) + bar(bin.Share) + " " + percent(bin.Share) + "\n")
	}

	b.WriteString("\n" + headingStyle.Render("Resources that could not be split") + "\n")
	row(&b, "Ambiguous households", fmt.Sprintf("%s of %s (%s)",
		humanize.Comma(int64(s.Ambiguous)), humanize.Comma(int64(s.DoublingUp)), percent(s.ShareAmbiguous)))
	for _, rc := range s.Ambiguity {
		if rc.Households == 0 {
			continue
		}
		row(&b, string(rc.Resource), warnStyle.Render(humanize.Comma(int64(rc.Households)))+" "+rc.Label)
	}

	b.WriteString("\n" + headingStyle.Render("Poverty excluding SNAP and medical expenses") + "\n")
	row(&b, "Households split cleanly", humanize.Comma(int64(s.Impact.Households)))
	row(&b, "Subunits", humanize.Comma(int64(s.Impact.Subunits)))
	row(&b, "Doubled-up households in poverty", percent(s.Impact.HouseholdsInPoverty))
	row(&b, "Subunits in poverty living apart", percent(s.Impact.SubunitsInPoverty))

	renderDemographics(&b, s.Demographics)

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func renderDemographics(b *strings.Builder, d Demographics) {
	b.WriteString("\n" + headingStyle.Render("Who is poor") + "\n")
	share := percent(d.SharePoor)
	if d.SharePoorSE > 0 {
		share += " ± " + percent(d.SharePoorSE)
	}
	row(b, "Persons below the poverty line", fmt.Sprintf("%s million (%s)",
		humanize.CommafWithDigits(d.WeightedPoor, 1), share))
	for _, seg := range d.Segments {
		if seg.Persons > 0 {
			row(b, "  "+seg.Name, percent(seg.Share))
		}
	}

	b.WriteString("\n" + headingStyle.Render("Time worked by the working poor") + "\n")
	for _, seg := range d.WorkPatterns {
		row(b, seg.Name, percent(seg.Share))
	}
	row(b, "Median income, full year full time", "$"+humanize.Comma(int64(math.Round(d.MedianIncome))))

	if len(d.Industries) == 0 {
		return
	}
	b.WriteString("\n" + headingStyle.Render("Industry of the working poor") + "\n")
	for _, seg := range d.Industries {
		if seg.Persons == 0 {
			continue
		}
		b.WriteString(labelStyle.Render(truncate(seg.Name, 32)) + bar(seg.Share) + " " + percent(seg.Share) + "\n")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// WriteYAML writes the summary as YAML.
func WriteYAML(w io.Writer, s Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(labelStyle.Render(label) + value + "\n")
}

func percent(v float64) string {
	return humanize.FtoaWithDigits(v, 2) + "%"
}

func bar(share float64) string {
	n := int(share / 100 * barWidth)
	if n < 0 {
		n = 0
	}
	if n > barWidth {
		n = barWidth
	}
	return barStyle.Render(strings.Repeat("█", n)) + strings.Repeat(" ", barWidth-n)
}
