package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LeonardoBeccarini/kelpcoins/internal/model/entities"
)

// SQLiteStore keeps harvests and codes in a SQLite database.
// The full record is stored as JSON next to the indexed columns.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at dsn (":memory:" works for tests).
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// una sola connessione: serializza le scritture e tiene viva :memory:
	db.SetMaxOpenConns(1)
	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate sqlite store: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS harvests (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		harvest_id TEXT NOT NULL UNIQUE,
		wallet_address TEXT,
		status TEXT NOT NULL,
		submitted_at TEXT,
		record JSON NOT NULL
	);
	CREATE TABLE IF NOT EXISTS harvest_codes (
		harvest_id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		expires_at TEXT
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

func (s *SQLiteStore) AppendHarvest(ctx context.Context, rec entities.HarvestRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode harvest %s: %w", rec.HarvestID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO harvests (harvest_id, wallet_address, status, submitted_at, record) VALUES (?, ?, ?, ?, ?)`,
		rec.HarvestID, rec.WalletAddress, string(rec.Status), formatTime(rec.SubmittedAt), string(blob),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, rec.HarvestID)
		}
		return fmt.Errorf("failed to insert harvest: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateHarvest(ctx context.Context, rec entities.HarvestRecord) error {
	blob, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode harvest %s: %w", rec.HarvestID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE harvests SET wallet_address = ?, status = ?, submitted_at = ?, record = ? WHERE harvest_id = ?`,
		rec.WalletAddress, string(rec.Status), formatTime(rec.SubmittedAt), string(blob), rec.HarvestID,
	)
	if err != nil {
		return fmt.Errorf("failed to update harvest: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: harvest %s", ErrNotFound, rec.HarvestID)
	}
	return nil
}

func (s *SQLiteStore) ListHarvests(ctx context.Context) ([]entities.HarvestRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM harvests ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []entities.HarvestRecord{}
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var rec entities.HarvestRecord
		if err := json.Unmarshal([]byte(blob), &rec); err != nil {
			return nil, fmt.Errorf("decode harvest row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetHarvest(ctx context.Context, harvestID string) (entities.HarvestRecord, error) {
	var blob string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM harvests WHERE harvest_id = ?`, harvestID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return entities.HarvestRecord{}, fmt.Errorf("%w: harvest %s", ErrNotFound, harvestID)
	}
	if err != nil {
		return entities.HarvestRecord{}, err
	}
	var rec entities.HarvestRecord
	if err := json.Unmarshal([]byte(blob), &rec); err != nil {
		return entities.HarvestRecord{}, fmt.Errorf("decode harvest %s: %w", harvestID, err)
	}
	return rec, nil
}

func (s *SQLiteStore) SaveCode(ctx context.Context, c Code) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harvest_codes (harvest_id, code, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(harvest_id) DO UPDATE SET code = excluded.code, expires_at = excluded.expires_at`,
		c.HarvestID, c.Code, formatTime(c.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save code: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LookupCode(ctx context.Context, harvestID string) (Code, error) {
	var (
		c       Code
		expires sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT harvest_id, code, expires_at FROM harvest_codes WHERE harvest_id = ?`, harvestID,
	).Scan(&c.HarvestID, &c.Code, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Code{}, fmt.Errorf("%w: code for %s", ErrNotFound, harvestID)
	}
	if err != nil {
		return Code{}, err
	}
	if expires.Valid && expires.String != "" {
		t, err := time.Parse(time.RFC3339Nano, expires.String)
		if err != nil {
			return Code{}, fmt.Errorf("decode code expiry: %w", err)
		}
		c.ExpiresAt = t
	}
	return c, nil
}

func (s *SQLiteStore) DeleteCode(ctx context.Context, harvestID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM harvest_codes WHERE harvest_id = ?`, harvestID)
	return err
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
