package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"FxSentinel/internal/model"
	"FxSentinel/internal/recorder"
)

// telegramLimit is the maximum message length accepted by sendMessage.
const telegramLimit = 4096

// FormatReport renders an analysis report as a Telegram HTML message.
func FormatReport(rep *model.AnalysisReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>FxSentinel report</b> | %s UTC\n", rep.GeneratedAt.UTC().Format("2006-01-02 15:04")))
	counts := rep.CountByStatus()
	b.WriteString(fmt.Sprintf("fetched %d/%d", counts[model.FetchSuccess], len(rep.Instruments)))
	if n := counts[model.FetchSkippedQuota]; n > 0 {
		b.WriteString(fmt.Sprintf(" | skipped (quota) %d", n))
	}
	if n := counts[model.FetchTransientFailure] + counts[model.FetchPermanentFailure]; n > 0 {
		b.WriteString(fmt.Sprintf(" | failed %d", n))
	}
	b.WriteString("\n\n")

	b.WriteString("📈 <b>Trends</b>\n")
	for _, inst := range rep.Instruments {
		b.WriteString(formatTrend(rep.Trends[inst]))
	}

	if pairs := rep.Pairs(); len(pairs) > 0 {
		b.WriteString(fmt.Sprintf("\n🔗 <b>Correlation with %s</b>\n", esc(string(rep.Reference))))
		for _, p := range pairs {
			b.WriteString(formatCorrelation(rep.Correlations[p]))
		}
	}

	b.WriteString("\n🔺 <b>Triangular arbitrage</b>\n")
	if len(rep.Opportunities) == 0 {
		b.WriteString("  none above threshold\n")
	}
	for _, o := range rep.Opportunities {
		b.WriteString(formatOpportunity(o, rep.GeneratedAt))
	}
	return b.String()
}

func formatTrend(t model.TrendSummary) string {
	name := esc(string(t.Instrument))
	if t.Status != model.StatusOK {
		return fmt.Sprintf("  %s: %s\n", name, statusText(t.Status))
	}
	line := fmt.Sprintf("  %s %s %s (%+.2f%%) vol %.2f%%",
		trendIcon(t.Label), name, price(t.LastPrice), t.Change*100, t.AnnualizedVol*100)
	if t.MaxDrawdown < 0 {
		line += fmt.Sprintf(" DD %.1f%%", t.MaxDrawdown*100)
	}
	if t.Sharpe != nil {
		line += fmt.Sprintf(" SR %.2f", *t.Sharpe)
	}
	if t.RSI != nil {
		line += fmt.Sprintf(" RSI %.0f", *t.RSI)
	}
	return line + "\n"
}

// FormatHistory renders persisted trend rows of one instrument, newest first.
func FormatHistory(inst model.Instrument, points []recorder.TrendPoint) string {
	name := esc(string(inst))
	if len(points) == 0 {
		return fmt.Sprintf("No history for %s yet.", name)
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📜 <b>%s</b> last %d runs\n", name, len(points)))
	for _, p := range points {
		at := time.Unix(p.GeneratedAt, 0).UTC().Format("2006-01-02 15:04")
		if p.Status != string(model.StatusOK) {
			b.WriteString(fmt.Sprintf("  %s %s\n", at, statusText(model.AnalysisStatus(p.Status))))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s %s %s (%+.2f%%) vol %.2f%%\n",
			at, trendIcon(model.TrendLabel(p.Label)), price(p.LastPrice), p.Change*100, p.AnnualizedVol*100))
	}
	return b.String()
}

func formatCorrelation(c model.CorrelationSummary) string {
	name := esc(string(c.Pair))
	if c.Current.Status != model.StatusOK {
		return fmt.Sprintf("  %s: %s\n", name, statusText(c.Current.Status))
	}
	line := fmt.Sprintf("  %s: %+.2f", name, c.Current.Value)
	if c.Average.Status == model.StatusOK {
		line += fmt.Sprintf(" (avg %+.2f)", c.Average.Value)
	}
	if c.Trend.Status == model.StatusOK {
		line += " " + string(c.Trend.Label)
	}
	return line + "\n"
}

func formatOpportunity(o model.ArbitrageOpportunity, now time.Time) string {
	return fmt.Sprintf("  %s %s: implied %.5f, deviation %.2f%%, quoted %s\n",
		esc(o.Cycle.ID()), o.Direction, o.ImpliedRate, o.Deviation*100,
		humanize.RelTime(o.QuotedAt, now, "ago", "ahead"))
}

// price keeps FX precision for small rates and groups digits for large ones.
func price(v float64) string {
	if v >= 1000 {
		return humanize.CommafWithDigits(v, 2)
	}
	return fmt.Sprintf("%.5f", v)
}

func trendIcon(l model.TrendLabel) string {
	switch l {
	case model.TrendUp:
		return "🟢"
	case model.TrendDown:
		return "🔴"
	default:
		return "⚪"
	}
}

func statusText(s model.AnalysisStatus) string {
	switch s {
	case model.StatusInsufficientData:
		return "not enough history"
	case model.StatusUndefined:
		return "undefined (flat prices)"
	case model.StatusExcluded:
		return "excluded (fetch failed)"
	default:
		return string(s)
	}
}

func esc(s string) string { return html.EscapeString(s) }

// Split breaks text into chunks under the Telegram limit, on line boundaries where possible.
func Split(text string) []string {
	if len(text) <= telegramLimit {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > telegramLimit {
			if cur.Len() > 0 {
				chunks = append(chunks, cur.String())
				cur.Reset()
			}
			chunks = append(chunks, line[:telegramLimit])
			line = line[telegramLimit:]
		}
		if cur.Len()+len(line) > telegramLimit {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
