package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultTable is the table SQLStore reads and writes
const DefaultTable = "rate_limit_windows"

// SQLStore is a Store backed by a shared relational table, for deployments
// where several instances must enforce one quota. Works against postgres
// (lib/pq) in production and sqlite for local single-node runs.
//
// The default increment is read-then-write and is NOT atomic across
// instances: two concurrent requests on different instances can both read
// count=N and both write N+1, under-counting by up to instance-count-1 per
// window. WithAtomicIncrement switches to a single upsert-and-return
// statement that closes that gap; new deployments should enable it.
type SQLStore struct {
	db     *sql.DB
	table  string
	atomic bool

	// now is swappable for tests
	now func() time.Time
}

// NewSQLStore creates a table-backed store
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:    db,
		table: DefaultTable,
		now:   time.Now,
	}
}

// WithTable overrides the backing table name
func (s *SQLStore) WithTable(table string) *SQLStore {
	s.table = table
	return s
}

// WithAtomicIncrement switches Increment to a single
// INSERT .. ON CONFLICT .. DO UPDATE .. RETURNING statement, making the
// counter safe against concurrent writers from different instances
func (s *SQLStore) WithAtomicIncrement() *SQLStore {
	s.atomic = true
	return s
}

// Name identifies the backend in metrics and logs
func (s *SQLStore) Name() string { return "sql" }

// EnsureSchema creates the backing table when it does not exist
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		rl_key        TEXT PRIMARY KEY,
		attempt_count BIGINT NOT NULL,
		window_start  TIMESTAMP NOT NULL,
		reset_at      TIMESTAMP NOT NULL
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create rate limit table: %w", err)
	}
	return nil
}

// Increment records one request against key
func (s *SQLStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	if s.atomic {
		return s.incrementAtomic(ctx, key, window)
	}
	return s.incrementReadWrite(ctx, key, window)
}

// incrementReadWrite performs the legacy read-current-row, write-back
// sequence. The SELECT and the UPDATE are separate statements, so two
// writers can interleave and lose an increment (see type comment).
func (s *SQLStore) incrementReadWrite(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now().UTC()

	var count int64
	var resetAt time.Time
	query := fmt.Sprintf(`SELECT attempt_count, reset_at FROM %s WHERE rl_key = $1`, s.table)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&count, &resetAt)
	if err != nil && err != sql.ErrNoRows {
		return 0, time.Time{}, fmt.Errorf("failed to read rate limit window: %w", err)
	}

	if err == sql.ErrNoRows || now.After(resetAt) {
		freshReset := now.Add(window)
		upsert := fmt.Sprintf(`INSERT INTO %s (rl_key, attempt_count, window_start, reset_at)
			VALUES ($1, 1, $2, $3)
			ON CONFLICT (rl_key) DO UPDATE SET attempt_count = 1, window_start = $2, reset_at = $3`, s.table)
		if _, err := s.db.ExecContext(ctx, upsert, key, now, freshReset); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to start rate limit window: %w", err)
		}
		return 1, freshReset, nil
	}

	count++
	update := fmt.Sprintf(`UPDATE %s SET attempt_count = $2 WHERE rl_key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, update, key, count); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to update rate limit window: %w", err)
	}
	return count, resetAt, nil
}

// incrementAtomic performs the whole start-or-increment decision in one
// statement so concurrent writers serialize at the storage layer
func (s *SQLStore) incrementAtomic(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	now := s.now().UTC()
	freshReset := now.Add(window)

	query := fmt.Sprintf(`INSERT INTO %s (rl_key, attempt_count, window_start, reset_at)
		VALUES ($1, 1, $2, $3)
		ON CONFLICT (rl_key) DO UPDATE SET
			attempt_count = CASE WHEN %s.reset_at <= $2 THEN 1 ELSE %s.attempt_count + 1 END,
			window_start  = CASE WHEN %s.reset_at <= $2 THEN $2 ELSE %s.window_start END,
			reset_at      = CASE WHEN %s.reset_at <= $2 THEN $3 ELSE %s.reset_at END
		RETURNING attempt_count, reset_at`,
		s.table, s.table, s.table, s.table, s.table, s.table, s.table)

	var count int64
	var resetAt time.Time
	if err := s.db.QueryRowContext(ctx, query, key, now, freshReset).Scan(&count, &resetAt); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment rate limit window: %w", err)
	}
	return count, resetAt, nil
}

// Reset discards the window for key
func (s *SQLStore) Reset(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE rl_key = $1`, s.table)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to reset rate limit window: %w", err)
	}
	return nil
}

// Cleanup deletes expired windows
func (s *SQLStore) Cleanup(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE reset_at <= $1`, s.table)
	if _, err := s.db.ExecContext(ctx, query, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to sweep rate limit windows: %w", err)
	}
	return nil
}
