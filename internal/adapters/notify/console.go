package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.SignalSink e imprime boards de odds, previews y el hilo de gossip.
type Console struct {
	out io.Writer
	mu  sync.Mutex
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Emit imprime una línea por signal.
func (c *Console) Emit(_ context.Context, s domain.Signal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := s.At.Format("15:04:05")
	switch s.Kind {
	case domain.SignalOddsDelta:
		fmt.Fprintf(c.out, "[%s] %s %s %+d%%\n", ts, s.EventID, s.Key, s.Delta)
	case domain.SignalNotableSwing:
		fmt.Fprintf(c.out, "[%s] SWING %s %s %+d%%\n", ts, s.EventID, s.Key, s.Delta)
	case domain.SignalClosingSoon:
		fmt.Fprintf(c.out, "[%s] CLOSING SOON %s: %d min left\n", ts, s.EventID, s.MinutesLeft)
	case domain.SignalGossipState:
		fmt.Fprintf(c.out, "[%s] gossip %s → %s\n", ts, shortID(s.LocalID), s.State)
	default:
		fmt.Fprintf(c.out, "[%s] %s %s\n", ts, s.Kind, s.EventID)
	}
	return nil
}

// PrintBoard imprime la tabla de odds del evento. deltas marca los cambios recientes.
func (c *Console) PrintBoard(event domain.Event, snap domain.OddsSnapshot, ledger domain.PoolLedger, deltas []domain.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := event.Title
	if title == "" {
		title = event.ID
	}
	fmt.Fprintf(c.out, "\n[%s] %s (%s)", snap.ComputedAt.Format("15:04:05"), truncate(title, 50), event.Status)
	if left := event.TimeToClose(snap.ComputedAt); left > 0 {
		fmt.Fprintf(c.out, " closes in %s", left.Truncate(time.Minute))
	}
	fmt.Fprintln(c.out)

	byKey := make(map[string]int, len(deltas))
	for _, d := range deltas {
		byKey[d.Key] += d.Delta
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Outcome", "Pool", "%", "Odds", "Δ", "Source")
	for _, o := range snap.Outcomes {
		delta := ""
		if d, ok := byKey[o.Key]; ok && d != 0 {
			delta = fmt.Sprintf("%+d", d)
		}
		table.Append(
			event.Label(o.Key),
			ledger.Bucket(o.Key).StringFixed(2),
			fmt.Sprintf("%d", o.Percent),
			domain.OddsDisplay(o.Odds),
			delta,
			sourceLabel(o.Source, snap.Final),
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "  Total pool: %s\n", snap.Total.StringFixed(2))
}

// PrintPreview imprime la proyección de una apuesta.
func (c *Console) PrintPreview(event domain.Event, p domain.Preview) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n  Stake %s on %s\n", p.Stake.StringFixed(2), event.Label(p.Key))
	fmt.Fprintf(c.out, "  Pool after:  side %s / total %s\n", p.NewSideTotal.StringFixed(2), p.NewGrandTotal.StringFixed(2))
	fmt.Fprintf(c.out, "  Your share:  %s%%\n", p.YourShare.Shift(2).StringFixed(1))
	fmt.Fprintf(c.out, "  Payout:      %s (profit %s)\n", p.Payout.StringFixed(2), p.Profit.StringFixed(2))
	fmt.Fprintf(c.out, "  Odds:        %sx\n", domain.OddsDisplay(p.EffectiveOdds))
	if p.LowLiquidity {
		fmt.Fprintln(c.out, "  ⚠ low liquidity: payout can move a lot with the next bet")
	}
}

// PrintThread imprime el hilo de gossip ya mergeado.
func (c *Console) PrintThread(entries []domain.ThreadEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) == 0 {
		fmt.Fprintln(c.out, "  (no gossip yet)")
		return
	}
	for _, e := range entries {
		m := e.Message
		name := m.Author.Name
		if name == "" {
			name = m.Author.ID
		}
		state := ""
		if m.State != domain.DeliverySent {
			state = " [" + string(m.State) + "]"
		}
		fmt.Fprintf(c.out, "  %s %s%s: %s", m.CreatedAt.Format("15:04"), name, state, m.Body)
		if e.ReplyLabel != "" {
			fmt.Fprintf(c.out, "  (%s)", e.ReplyLabel)
		}
		fmt.Fprintln(c.out)
	}
}

// PrintActivity imprime el feed de apuestas del evento.
func (c *Console) PrintActivity(event domain.Event, bets []domain.ActivityEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(bets) == 0 {
		fmt.Fprintln(c.out, "  (no bets yet)")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Time", "Bettor", "Outcome", "Amount")
	for _, b := range bets {
		table.Append(
			b.PlacedAt.Format("01-02 15:04"),
			truncate(b.Bettor, 20),
			event.Label(b.Key),
			b.Amount.StringFixed(2),
		)
	}
	table.Render()
}

func sourceLabel(src domain.OddsSource, final bool) string {
	if final {
		return "final"
	}
	switch src.(type) {
	case domain.LiveSource:
		return "pool"
	case domain.StaticSource:
		return "seed"
	default:
		return "-"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
