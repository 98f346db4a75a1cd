package reward

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/greenforestpath/focuslock/internal/interaction"
)

// Ledger is the durable Bridge: XP awards and interaction outcomes land
// in a local SQLite database. The orchestrator core itself persists
// nothing; the ledger is its downstream collaborator.
type Ledger struct {
	path   string
	conn   *sql.DB
	logger *slog.Logger
}

// DefaultLedgerPath resolves the ledger location, honoring FOCUSLOCK_HOME.
func DefaultLedgerPath() string {
	if home := os.Getenv("FOCUSLOCK_HOME"); home != "" {
		return filepath.Join(home, "data", "ledger.db")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".focuslock", "data", "ledger.db")
	}
	return filepath.Join(homeDir, ".focuslock", "data", "ledger.db")
}

// OpenLedger opens (creating if needed) the ledger at path.
func OpenLedger(path string, logger *slog.Logger) (*Ledger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	clean := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(clean), 0700); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}

	conn, err := sql.Open("sqlite", "file:"+filepath.ToSlash(clean)+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite PRAGMAs are per-connection; keep a single shared connection.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	initErr := func() error {
		if err := conn.Ping(); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		if _, err := conn.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
			return fmt.Errorf("set journal_mode=WAL: %w", err)
		}
		if _, err := conn.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
			return fmt.Errorf("set busy_timeout: %w", err)
		}
		return migrate(conn)
	}()
	if initErr != nil {
		_ = conn.Close()
		return nil, initErr
	}

	return &Ledger{path: clean, conn: conn, logger: logger}, nil
}

func migrate(conn *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS xp_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    awarded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    amount INTEGER NOT NULL,
    source TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS outcome_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    kind TEXT NOT NULL,
    success INTEGER NOT NULL,
    elapsed_ms INTEGER NOT NULL,
    error_count INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_xp_awarded_at ON xp_events(awarded_at);
CREATE INDEX IF NOT EXISTS idx_outcome_recorded_at ON outcome_log(recorded_at);
`
	if _, err := conn.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	if l == nil || l.conn == nil {
		return nil
	}
	return l.conn.Close()
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Award implements Bridge. Persistence failures are logged, not
// surfaced: the orchestrator must never stall on a reward write.
func (l *Ledger) Award(xp int, source Source) {
	_, err := l.conn.Exec(
		`INSERT INTO xp_events(amount, source) VALUES (?, ?)`,
		xp, source.String())
	if err != nil {
		l.logger.Error("ledger award write failed",
			"amount", xp,
			"source", source.String(),
			"error", err)
	}
}

// TrackOutcome implements Bridge.
func (l *Ledger) TrackOutcome(kind interaction.Kind, res interaction.Result) {
	_, err := l.conn.Exec(
		`INSERT INTO outcome_log(kind, success, elapsed_ms, error_count) VALUES (?, ?, ?, ?)`,
		kind.String(), boolToInt(res.Success), res.Elapsed.Milliseconds(), res.ErrorCount)
	if err != nil {
		l.logger.Error("ledger outcome write failed",
			"kind", kind.String(),
			"error", err)
	}
}

// AwardRow is one persisted XP grant.
type AwardRow struct {
	AwardedAt time.Time
	Amount    int
	Source    string
}

// TotalXP sums all awarded XP.
func (l *Ledger) TotalXP() (int, error) {
	var total sql.NullInt64
	if err := l.conn.QueryRow(`SELECT SUM(amount) FROM xp_events`).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum xp: %w", err)
	}
	return int(total.Int64), nil
}

// RecentAwards returns the latest awards, newest first.
func (l *Ledger) RecentAwards(limit int) ([]AwardRow, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := l.conn.Query(
		`SELECT awarded_at, amount, source FROM xp_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query awards: %w", err)
	}
	defer rows.Close()

	var out []AwardRow
	for rows.Next() {
		var r AwardRow
		if err := rows.Scan(&r.AwardedAt, &r.Amount, &r.Source); err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
