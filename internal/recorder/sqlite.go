package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"FxSentinel/internal/model"
)

// SQLiteRecorder persists analysis reports to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log zerolog.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL lets dashboards read while a run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log.With().Str("component", "recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.log.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id        TEXT PRIMARY KEY,
			generated_at  INTEGER NOT NULL,
			reference     TEXT,
			instruments   INTEGER,
			opportunities INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(generated_at)`,

		`CREATE TABLE IF NOT EXISTS fetch_outcomes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL,
			instrument TEXT NOT NULL,
			status     TEXT,
			attempts   INTEGER,
			points     INTEGER,
			reason     TEXT,
			fetched_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_run ON fetch_outcomes(run_id)`,

		`CREATE TABLE IF NOT EXISTS trends (
			id             INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id         TEXT NOT NULL,
			generated_at   INTEGER NOT NULL,
			instrument     TEXT NOT NULL,
			status         TEXT,
			points         INTEGER,
			last_price     REAL,
			mean           REAL,
			std_dev        REAL,
			change         REAL,
			label          TEXT,
			high           REAL,
			low            REAL,
			mean_return    REAL,
			annualized_vol REAL,
			max_drawdown   REAL,
			sharpe         REAL,
			sma            REAL,
			rsi            REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trends_inst_ts ON trends(instrument, generated_at)`,

		`CREATE TABLE IF NOT EXISTS correlations (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			generated_at    INTEGER NOT NULL,
			pair            TEXT NOT NULL,
			reference       TEXT,
			samples         INTEGER,
			current_status  TEXT,
			current_value   REAL,
			average_status  TEXT,
			average_value   REAL,
			trend_status    TEXT,
			trend_label     TEXT,
			trend_delta     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_corr_pair_ts ON correlations(pair, generated_at)`,

		`CREATE TABLE IF NOT EXISTS opportunities (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL,
			generated_at INTEGER NOT NULL,
			cycle        TEXT NOT NULL,
			implied_rate REAL,
			deviation    REAL,
			direction    TEXT,
			quoted_at    INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_opps_ts ON opportunities(generated_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) Name() string { return "sqlite" }

// Consume writes the whole report in one transaction.
func (r *SQLiteRecorder) Consume(ctx context.Context, rep *model.AnalysisReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	ts := rep.GeneratedAt.Unix()
	if _, err := tx.ExecContext(ctx, `INSERT INTO runs
		(run_id, generated_at, reference, instruments, opportunities)
		VALUES (?,?,?,?,?)`,
		rep.RunID, ts, string(rep.Reference), len(rep.Instruments), len(rep.Opportunities),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, inst := range rep.Instruments {
		if o, ok := rep.Outcomes[inst]; ok {
			if _, err := tx.ExecContext(ctx, `INSERT INTO fetch_outcomes
				(run_id, instrument, status, attempts, points, reason, fetched_at)
				VALUES (?,?,?,?,?,?,?)`,
				rep.RunID, string(inst), string(o.Status), o.Attempts, o.Points, o.Reason, o.FetchedAt.Unix(),
			); err != nil {
				return fmt.Errorf("insert outcome %s: %w", inst, err)
			}
		}

		if tr, ok := rep.Trends[inst]; ok {
			if _, err := tx.ExecContext(ctx, `INSERT INTO trends
				(run_id, generated_at, instrument, status, points, last_price, mean, std_dev,
				 change, label, high, low, mean_return, annualized_vol, max_drawdown, sharpe, sma, rsi)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				rep.RunID, ts, string(inst), string(tr.Status), tr.Points, tr.LastPrice, tr.Mean, tr.StdDev,
				tr.Change, string(tr.Label), tr.High, tr.Low, tr.MeanReturn, tr.AnnualizedVol,
				tr.MaxDrawdown, nullable(tr.Sharpe), nullable(tr.SMA), nullable(tr.RSI),
			); err != nil {
				return fmt.Errorf("insert trend %s: %w", inst, err)
			}
		}

		if c, ok := rep.Correlations[inst]; ok {
			if _, err := tx.ExecContext(ctx, `INSERT INTO correlations
				(run_id, generated_at, pair, reference, samples, current_status, current_value,
				 average_status, average_value, trend_status, trend_label, trend_delta)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
				rep.RunID, ts, string(inst), string(c.Reference), c.Samples,
				string(c.Current.Status), c.Current.Value,
				string(c.Average.Status), c.Average.Value,
				string(c.Trend.Status), string(c.Trend.Label), c.Trend.Delta,
			); err != nil {
				return fmt.Errorf("insert correlation %s: %w", inst, err)
			}
		}
	}

	for _, o := range rep.Opportunities {
		if _, err := tx.ExecContext(ctx, `INSERT INTO opportunities
			(run_id, generated_at, cycle, implied_rate, deviation, direction, quoted_at)
			VALUES (?,?,?,?,?,?,?)`,
			rep.RunID, ts, o.Cycle.ID(), o.ImpliedRate, o.Deviation, string(o.Direction), o.QuotedAt.Unix(),
		); err != nil {
			return fmt.Errorf("insert opportunity %s: %w", o.Cycle.ID(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// TrendHistory returns the most recent trend rows of inst, newest first.
func (r *SQLiteRecorder) TrendHistory(ctx context.Context, inst model.Instrument, limit int) ([]TrendPoint, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT run_id, generated_at, status, last_price, mean, std_dev,
		change, label, annualized_vol, max_drawdown
		FROM trends WHERE instrument = ? ORDER BY generated_at DESC, id DESC LIMIT ?`,
		string(inst), limit)
	if err != nil {
		return nil, fmt.Errorf("query trends: %w", err)
	}
	defer rows.Close()

	var out []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.RunID, &p.GeneratedAt, &p.Status, &p.LastPrice, &p.Mean, &p.StdDev,
			&p.Change, &p.Label, &p.AnnualizedVol, &p.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("scan trend: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountRows returns the number of rows in one of the recorder's tables.
func (r *SQLiteRecorder) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "runs", "fetch_outcomes", "trends", "correlations", "opportunities":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
