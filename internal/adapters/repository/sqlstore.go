package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
	"github.com/okian/devrank/pkg/metrics"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLStore implements Store on SQLite through sqlx.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLStore, error) {
	o := applyOptions(opts)

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(o.connMaxLife)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if o.autoMigrate {
		if err := migrateSQLite(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &SQLStore{db: db, now: o.now}, nil
}

func migrateSQLite(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	// m.Close would also close db, which the store keeps using.
	return source.Close()
}

const upsertDeveloper = `
INSERT INTO developers (
    developer_id, username, mode, rank_value, raw_ratio, raw_percentile, smoothed_score,
    grade, points, metrics, languages, stacks, contribution_degree, updated_at
) VALUES (
    :developer_id, :username, :mode, :rank_value, :raw_ratio, :raw_percentile, :smoothed_score,
    :grade, :points, :metrics, :languages, :stacks, :contribution_degree, :updated_at
)
ON CONFLICT(developer_id) DO UPDATE SET
    username = excluded.username,
    mode = excluded.mode,
    rank_value = excluded.rank_value,
    raw_ratio = excluded.raw_ratio,
    raw_percentile = excluded.raw_percentile,
    smoothed_score = excluded.smoothed_score,
    grade = excluded.grade,
    points = excluded.points,
    metrics = excluded.metrics,
    languages = excluded.languages,
    stacks = excluded.stacks,
    contribution_degree = excluded.contribution_degree,
    updated_at = excluded.updated_at`

// Save implements Store.Save.
func (s *SQLStore) Save(ctx context.Context, rec Record) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	rec, err := prepare(rec, s.now)
	if err != nil {
		metrics.RecordStoreError()
		return false, err
	}
	row, err := toRow(rec)
	if err != nil {
		metrics.RecordStoreError()
		return false, err
	}
	if _, err := s.db.NamedExecContext(ctx, upsertDeveloper, row); err != nil {
		metrics.RecordStoreError()
		return false, fmt.Errorf("upsert developer %s: %w", rec.DeveloperID, err)
	}

	metrics.RecordStoreSave()
	metrics.UpdateStoreRecords(s.Count(ctx))
	return true, nil
}

// Get implements Store.Get.
func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	var row developerRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM developers WHERE developer_id = ?`, NormalizeID(id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get developer %s: %w", id, err)
	}
	return row.record()
}

// Rank implements Store.Rank.
func (s *SQLStore) Rank(ctx context.Context, id string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	var row developerRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM developers WHERE developer_id = ?`, NormalizeID(id))
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}
	if err != nil {
		return types.Entry{}, fmt.Errorf("get developer %s: %w", id, err)
	}

	var above int
	if err := s.db.GetContext(ctx, &above,
		`SELECT COUNT(*) FROM developers WHERE mode = ? AND rank_value > ?`, row.Mode, row.RankValue); err != nil {
		return types.Entry{}, fmt.Errorf("rank developer %s: %w", id, err)
	}
	e := row.entry()
	e.Rank = above + 1
	return e, nil
}

// TopN implements Store.TopN.
func (s *SQLStore) TopN(ctx context.Context, mode scoring.Mode, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	var rows []developerRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM developers WHERE mode = ? ORDER BY rank_value DESC, developer_id ASC LIMIT ?`,
		string(mode), n); err != nil {
		return nil, fmt.Errorf("top %d of %s: %w", n, mode, err)
	}

	out := make([]types.Entry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.entry())
	}
	assignCompetitionRanks(out)
	return out, nil
}

// Count implements Store.Count. Errors count as an empty store.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM developers`); err != nil {
		return 0
	}
	return n
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
