package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alejandrodnm/pariwager/internal/application/gossip"
	"github.com/alejandrodnm/pariwager/internal/domain"
)

// gossip carga el hilo, publica text si no está vacío e imprime el resultado.
func (a *app) gossip(ctx context.Context, text string, replyTo int64) error {
	me := domain.Author{ID: a.cfg.Betting.Bettor, Name: a.cfg.Betting.Bettor}
	rec := gossip.New(a.client, a.sinks, a.eventID, me)

	if err := rec.Load(ctx); err != nil {
		return fmt.Errorf("gossip: %w", err)
	}

	if text != "" {
		var parent *int64
		if replyTo > 0 {
			parent = &replyTo
		}
		msg, err := rec.Send(ctx, text, parent)
		if err != nil {
			// el mensaje queda en el hilo como failed
			slog.Warn("gossip not delivered", "event", a.eventID, "err", err)
			a.console.PrintThread(rec.Thread())
			if err := retryPrompt(ctx, rec, msg.LocalID, bufio.NewReader(os.Stdin), os.Stdout); err != nil {
				return err
			}
		}
	}

	a.console.PrintThread(rec.Thread())
	return nil
}

// retryPrompt pregunta si reintentar un mensaje failed hasta que se entrega o
// el usuario dice que no. Antes de cada intento recarga el hilo: si el
// servidor ya lo tiene, no se vuelve a publicar.
func retryPrompt(ctx context.Context, rec *gossip.Reconciler, localID string, in *bufio.Reader, out io.Writer) error {
	for {
		fmt.Fprint(out, "  Message not delivered. Retry? [y/N]: ")
		line, err := in.ReadString('\n')
		if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
			fmt.Fprintln(out)
			return fmt.Errorf("gossip: message %s left as failed", localID)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("gossip: read answer: %w", err)
		}

		if lerr := rec.Load(ctx); lerr != nil {
			slog.Warn("gossip reload before retry failed", "err", lerr)
		}
		if !isFailed(rec, localID) {
			fmt.Fprintln(out, "  Message was already on the server.")
			return nil
		}

		if _, err := rec.Retry(ctx, localID); err != nil {
			slog.Warn("gossip retry failed", "local_id", localID, "err", err)
			continue
		}
		fmt.Fprintln(out, "  Delivered.")
		return nil
	}
}

func isFailed(rec *gossip.Reconciler, localID string) bool {
	for _, m := range rec.Failed() {
		if m.LocalID == localID {
			return true
		}
	}
	return false
}
