package livesync

// concurrent.go: refresco en paralelo de varios eventos con un worker pool.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// RefreshMany refresca varios eventos en paralelo y devuelve los snapshots
// obtenidos por evento. Los eventos que fallan sin caché se omiten y se loguean.
//
// Si workers <= 0 usa runtime.NumCPU().
func (s *Sync) RefreshMany(ctx context.Context, eventIDs []string, force bool, workers int) map[string]Snapshot {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(eventIDs))

	type result struct {
		id   string
		snap Snapshot
	}

	workCh := make(chan string, len(eventIDs))
	resultCh := make(chan result, len(eventIDs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range workCh {
				snap, err := s.Refresh(ctx, id, force)
				if err != nil {
					slog.Debug("refresh failed", "event", id, "err", err)
					continue
				}
				resultCh <- result{id: id, snap: snap}
			}
		}()
	}

	queued := 0
	seen := make(map[string]bool, len(eventIDs))
	for _, id := range eventIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		workCh <- id
		queued++
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make(map[string]Snapshot, queued)
	for r := range resultCh {
		out[r.id] = r.snap
	}

	slog.Debug("concurrent refresh complete",
		"events_queued", queued,
		"refreshed", len(out),
		"workers", workers,
	)
	return out
}
