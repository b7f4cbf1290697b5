package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alejandrodnm/pariwager/internal/adapters/notify"
	"github.com/alejandrodnm/pariwager/internal/application/betting"
	"github.com/alejandrodnm/pariwager/internal/domain"
)

// parseBet interpreta "KEY:AMOUNT". yes/no se normalizan a YES/NO.
func parseBet(s string) (string, float64, error) {
	key, amount, ok := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", 0, fmt.Errorf("bet %q: expected KEY:AMOUNT", s)
	}
	if strings.EqualFold(key, domain.SideYes) || strings.EqualFold(key, domain.SideNo) {
		key = strings.ToUpper(key)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(amount), 64)
	if err != nil {
		return "", 0, fmt.Errorf("bet %q: amount: %w", s, err)
	}
	return key, v, nil
}

func (a *app) request(arg string) (betting.BetRequest, error) {
	key, amount, err := parseBet(arg)
	if err != nil {
		return betting.BetRequest{}, err
	}
	return betting.BetRequest{
		EventID: a.eventID,
		Key:     key,
		Amount:  amount,
		Bettor:  a.cfg.Betting.Bettor,
	}, nil
}

func (a *app) previewBet(ctx context.Context, arg string) error {
	req, err := a.request(arg)
	if err != nil {
		return err
	}
	p, err := a.executor.Preview(ctx, req)
	if err != nil {
		return err
	}
	snap, _ := a.sync.Snapshot(a.eventID)
	a.console.PrintPreview(snap.Event, p)
	return nil
}

func (a *app) placeBet(ctx context.Context, arg string) error {
	req, err := a.request(arg)
	if err != nil {
		return err
	}

	receipt, err := a.executor.Place(ctx, req)
	if err != nil {
		var rejected *domain.RemoteRejectedError
		switch {
		case errors.As(err, &rejected):
			// el mensaje del servidor se muestra tal cual
			fmt.Printf("\n  Bet rejected: %s\n", rejected.Message)
		case domain.IsRetryable(err):
			fmt.Println("\n  Network error while placing the bet. Nothing was charged locally; check your bets and try again.")
		}
		return err
	}

	snap, _ := a.sync.Snapshot(a.eventID)
	a.console.PrintPreview(snap.Event, receipt.Preview)
	fmt.Printf("\n  Bet %s placed at %s\n", receipt.Bet.ID, receipt.Bet.PlacedAt.Format("15:04:05"))
	return nil
}

// historyMoves es cuántos cambios de pools muestra -history.
const historyMoves = 5

func (a *app) history(ctx context.Context) error {
	bets, err := a.journal.BetsForEvent(ctx, a.eventID)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	snap, err := a.sync.Refresh(ctx, a.eventID, false)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	a.console.PrintBetHistory(snap.Event, bets)

	moves, err := a.pools.PoolHistory(ctx, a.eventID, historyMoves)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	a.console.PrintPoolMoves(snap.Event, a.calc, moves)
	return nil
}

func (a *app) settle(ctx context.Context) error {
	results, err := a.executor.Settle(ctx, a.eventID)
	if err != nil {
		return err
	}
	rows := make([]notify.SettlementRow, 0, len(results))
	for _, r := range results {
		rows = append(rows, notify.SettlementRow{Bet: r.Bet, Won: r.Won, Payout: r.Payout})
	}
	snap, _ := a.sync.Snapshot(a.eventID)
	a.console.PrintSettlement(snap.Event, rows)
	return nil
}
