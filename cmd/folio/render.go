package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vadiminshakov/folio/internal/domain"
	"github.com/vadiminshakov/folio/internal/services/valuation"
	"github.com/vadiminshakov/folio/internal/storage/journal"
)

var (
	labelStyle    = lipgloss.NewStyle().Bold(true)
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#73F59F"})
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#FF6B6B"})
	rejectedStyle = lossStyle.Bold(true)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func formatPercent(p domain.Money) string {
	s := p.ToDisplayString(domain.CurrencyPlaces) + "%"
	switch {
	case p.IsPositive():
		return gainStyle.Render("+" + s)
	case p.IsNegative():
		return lossStyle.Render(s)
	default:
		return s
	}
}

func renderValuation(w io.Writer, v domain.PortfolioValuation, currency string) {
	if len(v.Assets) > 0 {
		t := newTable("ASSET", "QUANTITY", "AVG COST", "PRICE", "VALUE", "PERF")
		for _, a := range v.Assets {
			t.Row(
				a.AssetID,
				a.Quantity.String(),
				a.AverageCost.Format(currency),
				a.Price.Format(currency),
				a.MarketValue.Format(currency),
				formatPercent(a.PerformancePercent),
			)
		}
		fmt.Fprintln(w, t.String())
	}

	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Holdings:"), v.HoldingsValue.Format(currency))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Cash:    "), v.Cash.Format(currency))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Total:   "), v.TotalValue.Format(currency))
}

func renderLots(w io.Writer, lots []domain.AssetLot, currency string) {
	if len(lots) == 0 {
		fmt.Fprintln(w, "no lots held")
		return
	}
	t := newTable("ASSET", "QUANTITY", "AVG COST", "COST BASIS")
	for _, lot := range lots {
		t.Row(lot.AssetID, lot.Quantity.String(), lot.AverageCost.Format(currency), lot.CostBasis().Format(currency))
	}
	fmt.Fprintln(w, t.String())
}

func renderOutcome(w io.Writer, o domain.TradeOutcome, currency string) {
	if o.Status != domain.StatusCommitted {
		reason := o.Reason
		if reason == "" {
			reason = "trade was not executed"
		}
		line := fmt.Sprintf("%s: %s", o.Status, reason)
		if o.Code != "" {
			line += fmt.Sprintf(" (%s)", o.Code)
		}
		fmt.Fprintln(w, rejectedStyle.Render(line))
		return
	}

	fmt.Fprintf(w, "%s %s %s @ %s = %s\n",
		o.Side, o.Quantity, o.AssetID, o.Price.Format(currency), o.Notional.Format(currency))
	if o.Lot != nil {
		fmt.Fprintf(w, "%s %s avg cost %s\n", labelStyle.Render("Lot: "), o.Lot.Quantity, o.Lot.AverageCost.Format(currency))
	} else {
		fmt.Fprintf(w, "%s closed\n", labelStyle.Render("Lot: "))
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Cash:"), o.Cash.Format(currency))
}

func renderTrades(w io.Writer, records []journal.Record, currency string) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no trades")
		return
	}
	t := newTable("TIME", "ID", "SIDE", "ASSET", "QUANTITY", "PRICE", "NOTIONAL", "STATUS")
	for _, r := range records {
		status := string(r.Status)
		if r.Status == journal.StatusFailed && r.Code != "" {
			status += " (" + string(r.Code) + ")"
		}
		t.Row(
			r.Time.Format("2006-01-02 15:04:05"),
			shortID(r.ID),
			string(r.Side),
			r.AssetID,
			r.Quantity,
			r.Price.Format(currency),
			r.Notional.Format(currency),
			status,
		)
	}
	fmt.Fprintln(w, t.String())
}

func formatAssetUpdate(u valuation.AssetUpdate, currency string) string {
	switch {
	case u.Err != nil:
		return fmt.Sprintf("#%d %s error: %v", u.Seq, u.AssetID, u.Err)
	case u.Valuation == nil:
		return fmt.Sprintf("#%d %s not held or unpriced", u.Seq, u.AssetID)
	default:
		a := u.Valuation
		return fmt.Sprintf("#%d %s %s @ %s = %s %s",
			u.Seq, a.AssetID, a.Quantity, a.Price.Format(currency), a.MarketValue.Format(currency),
			formatPercent(a.PerformancePercent))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
