package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"bursa/internal/session/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	request_id         TEXT PRIMARY KEY,
	application_number INTEGER NOT NULL,
	external_id        TEXT NOT NULL DEFAULT '',
	sex                TEXT NOT NULL DEFAULT '',
	name               TEXT NOT NULL,
	birth_info         TEXT NOT NULL DEFAULT '',
	prior_diploma      TEXT NOT NULL DEFAULT '',
	score              TEXT NOT NULL DEFAULT '',
	note               TEXT NOT NULL DEFAULT '',
	program            TEXT NOT NULL,
	level              TEXT NOT NULL,
	decision           TEXT NOT NULL DEFAULT 'Pending'
);
CREATE INDEX IF NOT EXISTS idx_candidates_bucket ON candidates(level, program);
CREATE INDEX IF NOT EXISTS idx_candidates_external ON candidates(external_id);

CREATE TABLE IF NOT EXISTS quotas (
	level    TEXT NOT NULL,
	program  TEXT NOT NULL,
	capacity INTEGER NOT NULL,
	PRIMARY KEY (level, program)
);
`

const candidateColumns = "request_id, application_number, external_id, sex, name, birth_info, prior_diploma, score, note, program, level, decision"

// levelOrderExpr sorts levels in canonical order inside SQL; unknown levels
// sort last.
var levelOrderExpr = buildLevelOrderExpr()

func buildLevelOrderExpr() string {
	var b strings.Builder
	b.WriteString("CASE level")
	for i, lvl := range models.LevelOrder {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", lvl, i)
	}
	b.WriteString(" ELSE 99 END")
	return b.String()
}

// SQLiteStore is the durable single-file store backing a session.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (and if needed creates) the session database at path.
// The connection pool is pinned to one connection so every Update callback
// runs serialized against a single writer.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) UpsertCandidates(ctx context.Context, records []models.Candidate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candidates (`+candidateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range records {
		if _, err := stmt.ExecContext(ctx,
			c.RequestID, c.ApplicationNumber, c.ExternalID, c.Sex, c.Name,
			c.BirthInfo, c.PriorDiploma, c.Score, c.Note,
			c.Program, string(c.Level), string(c.Decision),
		); err != nil {
			return fmt.Errorf("upsert candidate %s: %w", c.RequestID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) UpsertQuotas(ctx context.Context, capacities map[models.Bucket]int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin quota upsert: %w", err)
	}
	defer tx.Rollback()

	for bucket, capacity := range capacities {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO quotas (level, program, capacity)
			VALUES (?, ?, ?)`,
			string(bucket.Level), bucket.Program, capacity,
		); err != nil {
			return fmt.Errorf("upsert quota %s: %w", bucket, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) AllCandidates(ctx context.Context) ([]models.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+candidateColumns+" FROM candidates ORDER BY "+levelOrderExpr+", program, application_number")
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func (s *SQLiteStore) Quotas(ctx context.Context) (map[models.Bucket]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT level, program, capacity FROM quotas")
	if err != nil {
		return nil, fmt.Errorf("query quotas: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Bucket]int)
	for rows.Next() {
		var level, program string
		var capacity int
		if err := rows.Scan(&level, &program, &capacity); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		out[models.Bucket{Level: models.Level(level), Program: program}] = capacity
	}
	return out, rows.Err()
}

func (s *SQLiteStore) FavorableCounts(ctx context.Context) (map[models.Bucket]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT level, program, COUNT(*)
		FROM candidates WHERE decision = ?
		GROUP BY level, program`, string(models.DecisionFavorable))
	if err != nil {
		return nil, fmt.Errorf("query favorable counts: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Bucket]int)
	for rows.Next() {
		var level, program string
		var n int
		if err := rows.Scan(&level, &program, &n); err != nil {
			return nil, fmt.Errorf("scan favorable count: %w", err)
		}
		out[models.Bucket{Level: models.Level(level), Program: program}] = n
	}
	return out, rows.Err()
}

// Stats runs a single aggregate query so the counts can never tear across
// concurrent decision writes.
func (s *SQLiteStore) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN decision = 'Favorable'   THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decision = 'Unfavorable' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN decision = 'Alternate'   THEN 1 ELSE 0 END), 0)
		FROM candidates`).Scan(&st.Total, &st.Favorable, &st.Unfavorable, &st.Alternate)
	if err != nil {
		return models.Stats{}, fmt.Errorf("query stats: %w", err)
	}
	st.Decided = st.Favorable + st.Unfavorable + st.Alternate
	st.Pending = st.Total - st.Decided
	return st, nil
}

func (s *SQLiteStore) FindExact(ctx context.Context, field SearchField, query string) (*models.Candidate, error) {
	builder := sq.Select(strings.Split(candidateColumns, ", ")...).From("candidates")

	switch field {
	case FieldNumber:
		n, err := strconv.Atoi(strings.TrimSpace(query))
		if err != nil {
			return nil, nil
		}
		builder = builder.Where(sq.Eq{"application_number": n})
	case FieldExternalID:
		builder = builder.Where(sq.Eq{"external_id": query})
	case FieldName:
		builder = builder.Where(sq.Expr("name = ? COLLATE NOCASE", query))
	default:
		return nil, fmt.Errorf("unknown search field %q", field)
	}

	sqlStr, args, err := builder.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build exact query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	defer rows.Close()

	matches, err := scanCandidates(rows)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (s *SQLiteStore) FindFuzzy(ctx context.Context, field SearchField, query string, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = DefaultFuzzyLimit
	}
	pattern := "%" + query + "%"

	builder := sq.Select(strings.Split(candidateColumns, ", ")...).From("candidates")
	switch field {
	case FieldNumber:
		builder = builder.Where(sq.Expr("CAST(application_number AS TEXT) LIKE ?", pattern))
	case FieldExternalID:
		builder = builder.Where(sq.Like{"external_id": pattern})
	case FieldName:
		builder = builder.Where(sq.Expr("name LIKE ? COLLATE NOCASE", pattern))
	default:
		return nil, fmt.Errorf("unknown search field %q", field)
	}

	sqlStr, args, err := builder.OrderBy("application_number").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fuzzy query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup: %w", err)
	}
	defer rows.Close()
	return scanCandidates(rows)
}

func (s *SQLiteStore) SetDecision(ctx context.Context, requestID string, decision models.Decision) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE candidates SET decision = ? WHERE request_id = ?",
		string(decision), requestID)
	if err != nil {
		return fmt.Errorf("set decision: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) CountCandidates(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM candidates").Scan(&n); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) TotalQuota(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(capacity), 0) FROM quotas").Scan(&total); err != nil {
		return 0, fmt.Errorf("total quota: %w", err)
	}
	return total, nil
}

func (s *SQLiteStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, "DELETE FROM candidates"); err != nil {
		return fmt.Errorf("reset candidates: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM quotas"); err != nil {
		return fmt.Errorf("reset quotas: %w", err)
	}
	return tx.Commit()
}

type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTx) Candidate(requestID string) (*models.Candidate, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		"SELECT "+candidateColumns+" FROM candidates WHERE request_id = ?", requestID)
	if err != nil {
		return nil, fmt.Errorf("candidate lookup: %w", err)
	}
	defer rows.Close()

	matches, err := scanCandidates(rows)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	return &matches[0], nil
}

func (t *sqliteTx) Capacity(b models.Bucket) (int, bool, error) {
	var capacity int
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT capacity FROM quotas WHERE level = ? AND program = ?",
		string(b.Level), b.Program).Scan(&capacity)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("capacity lookup: %w", err)
	}
	return capacity, true, nil
}

func (t *sqliteTx) FavorableCount(b models.Bucket) (int, error) {
	var n int
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT COUNT(*) FROM candidates
		WHERE decision = ? AND level = ? AND program = ?`,
		string(models.DecisionFavorable), string(b.Level), b.Program).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("favorable count: %w", err)
	}
	return n, nil
}

func (t *sqliteTx) SetDecision(requestID string, decision models.Decision) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE candidates SET decision = ? WHERE request_id = ?",
		string(decision), requestID)
	if err != nil {
		return fmt.Errorf("set decision: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *sqliteTx) AdjustCapacity(b models.Bucket, delta int) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE quotas SET capacity = capacity + ? WHERE level = ? AND program = ?",
		delta, string(b.Level), b.Program)
	if err != nil {
		return fmt.Errorf("adjust capacity: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanCandidates(rows *sql.Rows) ([]models.Candidate, error) {
	var out []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var level, decision string
		if err := rows.Scan(
			&c.RequestID, &c.ApplicationNumber, &c.ExternalID, &c.Sex, &c.Name,
			&c.BirthInfo, &c.PriorDiploma, &c.Score, &c.Note,
			&c.Program, &level, &decision,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.Level = models.Level(level)
		c.Decision = models.Decision(decision)
		out = append(out, c)
	}
	return out, rows.Err()
}
