package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
	"github.com/okian/devrank/pkg/metrics"
)

// MySQLConfig locates a MySQL database.
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// DSN renders the go-sql-driver DSN with time parsing enabled.
func (c MySQLConfig) DSN() string {
	cfg := mysqlDriver.Config{
		User:                 c.User,
		Passwd:               c.Password,
		DBName:               c.Database,
		Addr:                 net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Net:                  "tcp",
		ParseTime:            true,
		AllowNativePasswords: true,
		Loc:                  time.UTC,
	}
	return cfg.FormatDSN()
}

// GormStore implements Store on MySQL through gorm.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenMySQL connects to MySQL, sizes the pool and migrates the schema.
func OpenMySQL(ctx context.Context, cfg MySQLConfig, opts ...Option) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open mysql %s: %w", cfg.Host, err)
	}
	return NewGormStore(ctx, db, opts...)
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(ctx context.Context, db *gorm.DB, opts ...Option) (*GormStore, error) {
	o := applyOptions(opts)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(o.maxIdleConns)
	sqlDB.SetConnMaxLifetime(o.connMaxLife)

	if o.autoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&developerRow{}); err != nil {
			return nil, fmt.Errorf("migrate developers: %w", err)
		}
	}
	return &GormStore{db: db, now: o.now}, nil
}

// upsertColumns are overwritten when a developer is saved again.
var upsertColumns = []string{ //nolint:gochecknoglobals // static column list
	"username", "mode", "rank_value", "raw_ratio", "raw_percentile", "smoothed_score",
	"grade", "points", "metrics", "languages", "stacks", "contribution_degree", "updated_at",
}

func upsert(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "developer_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns),
	})
}

// Save implements Store.Save.
func (s *GormStore) Save(ctx context.Context, rec Record) (bool, error) {
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
	if err := upsert(s.db.WithContext(ctx)).Create(&row).Error; err != nil {
		metrics.RecordStoreError()
		return false, fmt.Errorf("upsert developer %s: %w", rec.DeveloperID, err)
	}

	metrics.RecordStoreSave()
	metrics.UpdateStoreRecords(s.Count(ctx))
	return true, nil
}

func (s *GormStore) row(ctx context.Context, id string) (developerRow, error) {
	var row developerRow
	err := s.db.WithContext(ctx).Where("developer_id = ?", NormalizeID(id)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, ErrNotFound
	}
	if err != nil {
		return row, fmt.Errorf("get developer %s: %w", id, err)
	}
	return row, nil
}

// Get implements Store.Get.
func (s *GormStore) Get(ctx context.Context, id string) (Record, error) {
	row, err := s.row(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return row.record()
}

// Rank implements Store.Rank.
func (s *GormStore) Rank(ctx context.Context, id string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	row, err := s.row(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.RecordErrorByComponent("repository", "not_found")
		}
		return types.Entry{}, err
	}

	var above int64
	if err := s.db.WithContext(ctx).Model(&developerRow{}).
		Where("mode = ? AND rank_value > ?", row.Mode, row.RankValue).
		Count(&above).Error; err != nil {
		return types.Entry{}, fmt.Errorf("rank developer %s: %w", id, err)
	}
	e := row.entry()
	e.Rank = int(above) + 1
	return e, nil
}

// TopN implements Store.TopN.
func (s *GormStore) TopN(ctx context.Context, mode scoring.Mode, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	var rows []developerRow
	if err := s.db.WithContext(ctx).
		Where("mode = ?", string(mode)).
		Order("rank_value DESC").Order("developer_id ASC").
		Limit(n).
		Find(&rows).Error; err != nil {
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
func (s *GormStore) Count(ctx context.Context) int {
	var n int64
	if err := s.db.WithContext(ctx).Model(&developerRow{}).Count(&n).Error; err != nil {
		return 0
	}
	return int(n)
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ Store = (*GormStore)(nil)
