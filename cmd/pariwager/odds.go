package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/pariwager/internal/application/livesync"
)

// board imprime el estado actual de los eventos una sola vez.
func (a *app) board(ctx context.Context) error {
	if len(a.events) > 1 {
		snaps := a.sync.RefreshMany(ctx, a.events, true, 0)
		for _, id := range a.events {
			snap, ok := snaps[id]
			if !ok {
				slog.Warn("event unavailable", "event", id)
				continue
			}
			a.console.PrintBoard(snap.Event, snap.Odds, snap.Ledger, a.sync.ActiveDeltas(id))
		}
		return nil
	}

	snap, err := a.sync.Refresh(ctx, a.eventID, true)
	if err != nil {
		return fmt.Errorf("board: %w", err)
	}
	a.printBoard(snap)
	return nil
}

// watch sigue las odds del evento hasta Ctrl+C. Las señales (deltas, swings,
// closing soon) llegan por los sinks; el board se reimprime en cada refresh.
func (a *app) watch(ctx context.Context) error {
	slog.Info("watching event", "event", a.eventID, "interval", a.cfg.SyncInterval())

	h := a.sync.Start(ctx, a.eventID, a.printBoard)
	<-ctx.Done()
	h.Stop()

	slog.Info("watch stopped", "event", a.eventID)
	return nil
}

func (a *app) printBoard(snap livesync.Snapshot) {
	if snap.Stale {
		slog.Warn("showing cached odds", "event", a.eventID, "fetched_at", snap.FetchedAt)
	}
	a.console.PrintBoard(snap.Event, snap.Odds, snap.Ledger, a.sync.ActiveDeltas(a.eventID))
}

// activity imprime el feed público de apuestas.
func (a *app) activity(ctx context.Context) error {
	snap, err := a.sync.Refresh(ctx, a.eventID, false)
	if err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	bets, err := a.client.FetchEventActivity(ctx, a.eventID)
	if err != nil {
		return fmt.Errorf("activity: %w", err)
	}
	a.console.PrintActivity(snap.Event, bets)
	return nil
}
