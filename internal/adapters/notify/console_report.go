package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/pariwager/internal/domain"
)

// SettlementRow es una apuesta propia ya liquidada.
type SettlementRow struct {
	Bet    domain.Bet
	Won    bool
	Payout decimal.Decimal
}

// PrintBetHistory imprime las apuestas registradas en el journal local.
func (c *Console) PrintBetHistory(event domain.Event, bets []domain.Bet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n── MY BETS (%d) ──\n", len(bets))
	if len(bets) == 0 {
		fmt.Fprintln(c.out, "  (none)")
		return
	}
	total := decimal.Zero
	fmt.Fprintf(c.out, "  %-12s %-20s %10s  %s\n", "BET", "OUTCOME", "STAKE", "PLACED")
	for _, b := range bets {
		total = total.Add(b.Amount)
		fmt.Fprintf(c.out, "  %-12s %-20s %10s  %s\n",
			truncate(b.ID, 12), truncate(event.Label(b.Key), 20), b.Amount.StringFixed(2),
			b.PlacedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(c.out, "  Total staked: %s\n", total.StringFixed(2))
}

// PrintSettlement imprime el resultado de las apuestas propias en un evento resuelto.
func (c *Console) PrintSettlement(event domain.Event, rows []SettlementRow) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n╔══════════════════════════════════════════════════════════════╗\n")
	fmt.Fprintf(c.out, "║                        SETTLEMENT                            ║\n")
	fmt.Fprintf(c.out, "╚══════════════════════════════════════════════════════════════╝\n\n")
	fmt.Fprintf(c.out, "  Event:  %s\n", truncate(event.Title, 60))
	fmt.Fprintf(c.out, "  Winner: %s\n", event.Label(event.Winner))

	if len(rows) == 0 {
		fmt.Fprintln(c.out, "\n  (no bets recorded for this event)")
		return
	}

	staked, paid := decimal.Zero, decimal.Zero
	fmt.Fprintf(c.out, "\n  %-12s %-20s %10s %10s\n", "BET", "OUTCOME", "STAKE", "PAYOUT")
	for _, r := range rows {
		staked = staked.Add(r.Bet.Amount)
		paid = paid.Add(r.Payout)
		mark := "lost"
		if r.Won {
			mark = "won"
		}
		fmt.Fprintf(c.out, "  %-12s %-20s %10s %10s  %s\n",
			truncate(r.Bet.ID, 12), truncate(event.Label(r.Bet.Key), 20),
			r.Bet.Amount.StringFixed(2), r.Payout.StringFixed(2), mark)
	}

	fmt.Fprintf(c.out, "\n── SUMMARY ──\n")
	fmt.Fprintf(c.out, "  Staked: %s\n", staked.StringFixed(2))
	fmt.Fprintf(c.out, "  Paid:   %s\n", paid.StringFixed(2))
	fmt.Fprintf(c.out, "  Net:    %s\n", paid.Sub(staked).StringFixed(2))
}

// PrintPoolMoves imprime los últimos cambios de pools guardados, más
// recientes primero, con el porcentaje de cada outcome en ese momento.
func (c *Console) PrintPoolMoves(event domain.Event, calc *domain.Calculator, points []domain.PoolPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n── POOL MOVES (%d) ──\n", len(points))
	if len(points) == 0 {
		fmt.Fprintln(c.out, "  (no pool changes recorded)")
		return
	}
	// los puntos históricos se calculan desde sus pools, no con los odds finales
	live := event
	live.Final = nil
	for _, p := range points {
		snap := calc.Compute(live, p.Ledger)
		parts := make([]string, 0, len(snap.Outcomes))
		for _, o := range snap.Outcomes {
			parts = append(parts, fmt.Sprintf("%s %d%%", event.Label(o.Key), o.Percent))
		}
		fmt.Fprintf(c.out, "  %s  total %10s  %s\n",
			p.At.Format("2006-01-02 15:04:05"), p.Ledger.TotalPool().StringFixed(2), strings.Join(parts, " · "))
	}
}
