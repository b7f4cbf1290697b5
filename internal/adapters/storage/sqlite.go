package storage

// sqlite.go: journal de apuestas propias + último snapshot de pools por evento.
//
// Estrategia:
//   - `bets`: una fila por apuesta confirmada desde este cliente (inmutable).
//   - `odds_snapshots`: UNA fila por evento (UPSERT) con el último ledger del servidor.
//   - `snapshot_history`: solo se escribe cuando el total del pool cambió (lo lee
//     -history para mostrar los últimos movimientos). Cache
//     en memoria del último total por evento; con polling cada 5s la mayoría de
//     ciclos no cambian nada y no tocan disco.
//   - Prune al arrancar: history > 7d.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/pariwager/internal/domain"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS bets (
    id         TEXT PRIMARY KEY,
    event_id   TEXT    NOT NULL,
    outcome    TEXT    NOT NULL,
    amount     TEXT    NOT NULL,
    bettor     TEXT    NOT NULL DEFAULT '',
    placed_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS odds_snapshots (
    event_id   TEXT PRIMARY KEY,
    pools      TEXT    NOT NULL,
    total      TEXT    NOT NULL,
    fetched_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    event_id   TEXT    NOT NULL,
    pools      TEXT    NOT NULL,
    total      TEXT    NOT NULL,
    fetched_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bets_event    ON bets(event_id, placed_at DESC);
CREATE INDEX IF NOT EXISTS idx_history_event ON snapshot_history(event_id, fetched_at DESC);
`

const retentionHistory = 7 * 24 * time.Hour

// SQLiteStorage implementa ports.BetJournal y ports.SnapshotStore (pure Go, sin CGo).
type SQLiteStorage struct {
	db         *sql.DB
	lastTotals map[string]string // eventID → total guardado en history
	mu         sync.Mutex
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db, lastTotals: make(map[string]string)}
	s.pruneOld(context.Background())
	return s, nil
}

// RecordBet guarda una apuesta confirmada. Re-grabar el mismo ID no hace nada.
func (s *SQLiteStorage) RecordBet(ctx context.Context, bet domain.Bet) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO bets (id, event_id, outcome, amount, bettor, placed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		bet.ID, bet.EventID, bet.Key, bet.Amount.String(), bet.Bettor, bet.PlacedAt.UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("storage.RecordBet: insert %s: %w", bet.ID, err)
	}
	return nil
}

// BetsForEvent devuelve las apuestas del evento, más recientes primero.
func (s *SQLiteStorage) BetsForEvent(ctx context.Context, eventID string) ([]domain.Bet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, outcome, amount, bettor, placed_at
		FROM bets
		WHERE event_id = ?
		ORDER BY placed_at DESC, id DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("storage.BetsForEvent: query: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		var b domain.Bet
		var amount string
		var placedAt int64
		if err := rows.Scan(&b.ID, &b.EventID, &b.Key, &amount, &b.Bettor, &placedAt); err != nil {
			return nil, fmt.Errorf("storage.BetsForEvent: scan row: %w", err)
		}
		b.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("storage.BetsForEvent: amount %q: %w", amount, err)
		}
		b.PlacedAt = time.UnixMilli(placedAt).UTC()
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// SaveSnapshot hace upsert del último ledger y añade a history si el total cambió.
func (s *SQLiteStorage) SaveSnapshot(ctx context.Context, eventID string, ledger domain.PoolLedger, fetchedAt time.Time) error {
	pools, err := json.Marshal(ledger.Pools())
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: marshal pools: %w", err)
	}
	total := ledger.TotalPool().String()
	at := fetchedAt.UTC().UnixMilli()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveSnapshot: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO odds_snapshots (event_id, pools, total, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			pools      = excluded.pools,
			total      = excluded.total,
			fetched_at = excluded.fetched_at
	`, eventID, string(pools), total, at); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: upsert %s: %w", eventID, err)
	}

	if s.totalChanged(eventID, total) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO snapshot_history (event_id, pools, total, fetched_at) VALUES (?, ?, ?, ?)`,
			eventID, string(pools), total, at,
		); err != nil {
			return fmt.Errorf("storage.SaveSnapshot: history %s: %w", eventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveSnapshot: commit: %w", err)
	}
	return nil
}

// LoadSnapshot devuelve el último ledger guardado del evento.
func (s *SQLiteStorage) LoadSnapshot(ctx context.Context, eventID string) (domain.PoolLedger, time.Time, bool, error) {
	var pools string
	var at int64
	err := s.db.QueryRowContext(ctx,
		`SELECT pools, fetched_at FROM odds_snapshots WHERE event_id = ?`, eventID,
	).Scan(&pools, &at)
	if err == sql.ErrNoRows {
		return domain.PoolLedger{}, time.Time{}, false, nil
	}
	if err != nil {
		return domain.PoolLedger{}, time.Time{}, false, fmt.Errorf("storage.LoadSnapshot: query %s: %w", eventID, err)
	}

	var m map[string]decimal.Decimal
	if err := json.Unmarshal([]byte(pools), &m); err != nil {
		return domain.PoolLedger{}, time.Time{}, false, fmt.Errorf("storage.LoadSnapshot: decode pools: %w", err)
	}
	return domain.NewPoolLedger(m), time.UnixMilli(at).UTC(), true, nil
}

// PoolHistory devuelve hasta limit puntos de history del evento, más
// recientes primero.
func (s *SQLiteStorage) PoolHistory(ctx context.Context, eventID string, limit int) ([]domain.PoolPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pools, fetched_at
		FROM snapshot_history
		WHERE event_id = ?
		ORDER BY fetched_at DESC, id DESC
		LIMIT ?
	`, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.PoolHistory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PoolPoint
	for rows.Next() {
		var pools string
		var at int64
		if err := rows.Scan(&pools, &at); err != nil {
			return nil, fmt.Errorf("storage.PoolHistory: scan row: %w", err)
		}
		var m map[string]decimal.Decimal
		if err := json.Unmarshal([]byte(pools), &m); err != nil {
			return nil, fmt.Errorf("storage.PoolHistory: decode pools: %w", err)
		}
		out = append(out, domain.PoolPoint{Ledger: domain.NewPoolLedger(m), At: time.UnixMilli(at).UTC()})
	}
	return out, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// totalChanged compara con la cache y la actualiza.
func (s *SQLiteStorage) totalChanged(eventID, total string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.lastTotals[eventID]; ok && prev == total {
		return false
	}
	s.lastTotals[eventID] = total
	return true
}

// pruneOld elimina history antiguo para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionHistory).UnixMilli()
	s.db.ExecContext(ctx, `DELETE FROM snapshot_history WHERE fetched_at < ?`, cutoff)
}
