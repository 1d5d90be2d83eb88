package store

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	// DefaultFlushInterval is how often the background timer drains the queue.
	DefaultFlushInterval = 500 * time.Millisecond
	// DefaultBulkThreshold triggers an immediate flush when the queue reaches it.
	DefaultBulkThreshold = 200
)

type queuedRow struct {
	table   string
	columns []string
	values  []any
}

// Flusher is an in-memory queue for non-critical, append-only inserts
// (agent intents, resolved-action log rows). Per-row inserts for these
// high-volume tables would serialize with the critical stat-mutation path;
// instead rows accumulate here and flush in batches on a timer or when the
// queue reaches the bulk threshold. Rows are never read back during the
// same run, so losing them on an ungraceful crash is an accepted risk —
// critical data never goes through this buffer.
type Flusher struct {
	db        *sqlx.DB
	interval  time.Duration
	threshold int

	mu    sync.Mutex
	queue []queuedRow
	stmts map[string]*sqlx.Stmt // prepared statements keyed by table|columns signature

	done     chan struct{}
	stopOnce sync.Once
}

// NewFlusher creates a Flusher bound to the store's database and starts its
// background flush timer. Zero values select the defaults. One process-wide
// instance is shared by all sessions; flushing carries no cross-session
// state.
func NewFlusher(s *Store, interval time.Duration, threshold int) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	if threshold <= 0 {
		threshold = DefaultBulkThreshold
	}
	f := &Flusher{
		db:        s.db,
		interval:  interval,
		threshold: threshold,
		stmts:     make(map[string]*sqlx.Stmt),
		done:      make(chan struct{}),
	}
	go f.loop()
	return f
}

func (f *Flusher) loop() {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := f.Flush(); err != nil {
				slog.Error("deferred flush failed", "error", err)
			}
		case <-f.done:
			return
		}
	}
}

// Enqueue appends a row for deferred insertion. Columns name the insert
// order; values must match. Reaching the bulk threshold flushes immediately.
func (f *Flusher) Enqueue(table string, columns []string, values ...any) {
	f.mu.Lock()
	f.queue = append(f.queue, queuedRow{table: table, columns: columns, values: values})
	full := len(f.queue) >= f.threshold
	f.mu.Unlock()

	if full {
		if err := f.Flush(); err != nil {
			slog.Error("threshold flush failed", "error", err)
		}
	}
}

// Pending reports the number of queued rows.
func (f *Flusher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Flush drains the queue: rows are grouped by (table, column signature) and
// each group is inserted through a cached prepared statement, all inside a
// single transaction.
func (f *Flusher) Flush() error {
	f.mu.Lock()
	batch := f.queue
	f.queue = nil
	f.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	type group struct {
		table   string
		columns []string
		rows    [][]any
	}
	groups := make(map[string]*group)
	var order []string
	for _, r := range batch {
		key := r.table + "|" + strings.Join(r.columns, ",")
		g, ok := groups[key]
		if !ok {
			g = &group{table: r.table, columns: r.columns}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, r.values)
	}

	tx, err := f.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin flush tx: %w", err)
	}
	defer tx.Rollback()

	for _, key := range order {
		g := groups[key]
		stmt, err := f.stmt(key, g.table, g.columns)
		if err != nil {
			return err
		}
		txStmt := tx.Stmtx(stmt)
		for _, row := range g.rows {
			if _, err := txStmt.Exec(row...); err != nil {
				return fmt.Errorf("flush insert into %s: %w", g.table, err)
			}
		}
	}
	return tx.Commit()
}

func (f *Flusher) stmt(key, table string, columns []string) (*sqlx.Stmt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stmt, ok := f.stmts[key]; ok {
		return stmt, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), placeholders)
	stmt, err := f.db.Preparex(query)
	if err != nil {
		return nil, fmt.Errorf("prepare %s: %w", query, err)
	}
	f.stmts[key] = stmt
	return stmt, nil
}

// Stop cancels the flush timer and performs one final synchronous flush so
// nothing queued is lost on graceful shutdown.
func (f *Flusher) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
	})
	if err := f.Flush(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
}
