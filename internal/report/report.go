// Package report renders aggregated yield buckets into a Telegram
// MarkdownV2 message. It escapes user-visible text and keeps links raw,
// per the MarkdownV2 rules.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourorg/yield-radar/internal/history"
	"github.com/yourorg/yield-radar/internal/model"
)

// AverageFunc resolves a pool identity to its trailing-window average APY.
// The bool is false when not enough snapshots have accumulated.
type AverageFunc func(identity string) (float64, bool)

// Formatter renders buckets into messages.
type Formatter struct {
	// Title is the bold message header.
	Title string

	// Average supplies trailing 7-day APY averages, optional.
	Average AverageFunc
}

// NewFormatter creates a Formatter with the given header title.
func NewFormatter(title string) *Formatter {
	return &Formatter{Title: title}
}

// WithAverages attaches a trailing-average lookup to the formatter.
func (f *Formatter) WithAverages(avg AverageFunc) *Formatter {
	f.Average = avg
	return f
}

var categoryHeadings = map[model.Category]string{
	model.CategoryPrimary:   "🪙 Kava Assets",
	model.CategoryStable:    "💵 Stablecoins",
	model.CategorySecondary: "🟠 BTC Assets",
}

// Format renders the full report for one run.
func (f *Formatter) Format(buckets model.Buckets, now time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 *%s*\n", escapeMarkdownV2(f.Title)))
	b.WriteString(fmt.Sprintf("📅 %s\n\n", escapeMarkdownV2(now.UTC().Format("2006-01-02 15:04 UTC"))))

	for _, cat := range model.Categories() {
		records := buckets.PerCategory[cat]
		if len(records) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("*%s*\n", escapeMarkdownV2(categoryHeadings[cat])))
		for _, rec := range records {
			b.WriteString(f.formatRecord(rec))
		}
		b.WriteString("\n")
	}

	if len(buckets.RiskFlagged) > 0 {
		b.WriteString("*⚠️ Higher Risk Pairs*\n")
		for _, rec := range buckets.RiskFlagged {
			b.WriteString(f.formatRecord(rec))
		}
		b.WriteString("\n")
	}

	if len(buckets.TopByAPY) > 0 {
		b.WriteString("*🏆 Top Yields*\n")
		for i, rec := range buckets.TopByAPY {
			b.WriteString(fmt.Sprintf("%d\\. %s \\| %s\n",
				i+1,
				f.recordTitle(rec),
				escapeMarkdownV2(fmt.Sprintf("%.2f%%", rec.APYTotal))))
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// formatRecord renders one bullet line for a record.
func (f *Formatter) formatRecord(rec model.YieldRecord) string {
	var b strings.Builder

	apy := escapeMarkdownV2(fmt.Sprintf("%.2f%%", rec.APYTotal))
	tvl := escapeMarkdownV2(formatTVL(rec.TVL, rec.TVLIsProxy))

	b.WriteString(fmt.Sprintf("• %s: *%s* \\(%s\\)", f.recordTitle(rec), apy, tvl))

	if f.Average != nil {
		if avg, ok := f.Average(history.IdentityFor(rec)); ok {
			b.WriteString(fmt.Sprintf(" \\| 7d avg %s",
				escapeMarkdownV2(fmt.Sprintf("%.2f%%", avg))))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// recordTitle renders the asset plus source, hyperlinked when possible.
func (f *Formatter) recordTitle(rec model.YieldRecord) string {
	name := rec.AssetSymbol
	if rec.PoolLabel != "" {
		name += " " + rec.PoolLabel
	}
	title := fmt.Sprintf("%s @ %s", name, rec.SourceName)
	escaped := escapeMarkdownV2(title)
	if rec.SourceLink == "" {
		return escaped
	}
	return fmt.Sprintf("[%s](%s)", escaped, rec.SourceLink)
}

// formatTVL renders a compact USD figure. Proxy values get a tilde since
// they approximate token counts rather than a real USD valuation.
func formatTVL(tvl float64, proxy bool) string {
	prefix := "$"
	if proxy {
		prefix = "~$"
	}
	switch {
	case tvl >= 1_000_000_000:
		return fmt.Sprintf("%s%.1fB", prefix, tvl/1_000_000_000)
	case tvl >= 1_000_000:
		return fmt.Sprintf("%s%.1fM", prefix, tvl/1_000_000)
	case tvl >= 1_000:
		return fmt.Sprintf("%s%.1fK", prefix, tvl/1_000)
	default:
		return fmt.Sprintf("%s%.0f", prefix, tvl)
	}
}

// escapeMarkdownV2 escapes the characters Telegram treats specially in
// MarkdownV2 text: _ * [ ] ( ) ~ ` > # + - = | { } . !
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
