package stratos

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stratosbot/stratos/pkg/signal"
	"github.com/stratosbot/stratos/pkg/track"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

func (b *Bot) formatRelay(sig *signal.Signal, entry decimal.Decimal) string {
	stop := entry.Mul(decimal.NewFromFloat(1 - b.cfg.InitialStopPct))
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "🔍 %s 🔍\n\n", b.cfg.Branding)
	fmt.Fprintf(sb, "Token: `%s`\n", sig.TokenID)
	fmt.Fprintf(sb, "Signal ID: `%s`\n", sig.Fingerprint)
	fmt.Fprintf(sb, "Entry Price: %s\n", entry)
	fmt.Fprintf(sb, "Initial Stop-Loss: %s\n", stop)
	fmt.Fprintf(sb, "SL Distance: -%s%%\n", pct(b.cfg.InitialStopPct))
	fmt.Fprintf(sb, "Trailing Stop: %s%%", pct(b.cfg.TrailingPct))
	return sb.String()
}

func (b *Bot) formatStopRaised(e track.Event) string {
	p := e.Position
	change := e.Price.Div(p.EntryPrice).Sub(one).Mul(hundred)
	sb := &strings.Builder{}
	sb.WriteString("🔄 TRAILING STOP-LOSS UPDATE 🔄\n\n")
	fmt.Fprintf(sb, "Token: `%s`\n", p.TokenID)
	fmt.Fprintf(sb, "New Stop-Loss: %s\n", p.StopPrice)
	fmt.Fprintf(sb, "Current Price: %s\n", e.Price)
	fmt.Fprintf(sb, "Highest Price: %s\n", p.HighWaterMark)
	fmt.Fprintf(sb, "Price Change: %s%%", change.StringFixed(2))
	return sb.String()
}

func (b *Bot) formatTriggered(e track.Event) string {
	p := e.Position
	profit := p.ExitPrice.Div(p.EntryPrice).Sub(one).Mul(hundred)
	max := p.HighWaterMark.Div(p.EntryPrice).Sub(one).Mul(hundred)
	sb := &strings.Builder{}
	sb.WriteString("⚠️ STOP-LOSS TRIGGERED ⚠️\n\n")
	fmt.Fprintf(sb, "Token: `%s`\n", p.TokenID)
	fmt.Fprintf(sb, "Exit Price: %s\n", p.ExitPrice)
	fmt.Fprintf(sb, "Entry Price: %s\n", p.EntryPrice)
	fmt.Fprintf(sb, "P/L: %s%%\n", profit.StringFixed(2))
	fmt.Fprintf(sb, "Highest Price Reached: %s\n", p.HighWaterMark)
	fmt.Fprintf(sb, "Max P/L: %s%%\n", max.StringFixed(2))
	fmt.Fprintf(sb, "Time Held: %s", formatElapsed(p.Elapsed()))
	return sb.String()
}

func pct(fraction float64) string {
	return strconv.FormatFloat(fraction*100, 'f', -1, 64)
}

func shorten(tokenID string) string {
	if len(tokenID) <= 16 {
		return tokenID
	}
	return fmt.Sprintf("%s...%s", tokenID[:8], tokenID[len(tokenID)-6:])
}

func formatElapsed(d time.Duration) string {
	s := d.Seconds()
	switch {
	case s < 60:
		return fmt.Sprintf("%.1f seconds", s)
	case s < 3600:
		return fmt.Sprintf("%.1f minutes", s/60)
	case s < 86400:
		return fmt.Sprintf("%.1f hours", s/3600)
	default:
		return fmt.Sprintf("%.1f days", s/86400)
	}
}
