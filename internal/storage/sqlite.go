// Package storage owns the SQLite database holding the school dataset.
//
// SQLite allows one writer at a time, so schema creation and bulk inserts
// are serialized on a write mutex. Reads go straight to the pool.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reportbot/internal/apperrors"
	"reportbot/internal/school"
	"strings"
	"sync"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	_ "modernc.org/sqlite"
)

// Dialect is the goqu dialect matching the driver.
const Dialect = "sqlite3"

// SQLite is the storage connector for a single SQLite database.
type SQLite struct {
	cfg    Config
	logger *slog.Logger

	mu sync.Mutex // guards db
	db *sql.DB

	writeMu sync.Mutex
}

// NewSQLite creates an unconnected connector.
func NewSQLite(cfg Config) *SQLite {
	cfg = cfg.withDefaults()
	return &SQLite{
		cfg:    cfg,
		logger: slog.With("component", "storage", "path", cfg.Path),
	}
}

// Connect opens the database and checks it answers. Calling Connect on a
// connected instance is a no-op.
func (s *SQLite) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if !s.cfg.inMemory() {
		if dir := filepath.Dir(s.cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("could not create directory %s for sqlite db: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", s.dsn())
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", s.cfg.Path, err)
	}
	if s.cfg.inMemory() {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping sqlite %s: %w", s.cfg.Path, err)
	}

	s.db = db
	s.logger.Info("Database connected")
	return nil
}

func (s *SQLite) dsn() string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", s.cfg.BusyTimeout.Milliseconds()),
	}
	if !s.cfg.inMemory() {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}
	return s.cfg.Path + "?" + strings.Join(pragmas, "&")
}

// GetConnection returns the open database.
func (s *SQLite) GetConnection() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, apperrors.NotReady("storage", "disconnected")
	}
	return s.db, nil
}

// CreateSchema creates every table and index that does not exist yet.
func (s *SQLite) CreateSchema(ctx context.Context) error {
	db, err := s.GetConnection()
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	for _, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	s.logger.Info("Schema ready", "statements", len(schema))
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("close sqlite %s: %w", s.cfg.Path, err)
	}
	s.logger.Info("Database closed")
	return nil
}

// InsertSchools writes schools and their related rows in one transaction.
// Counties and districts are inserted if missing; schools, financials and
// performance rows are upserted. It returns the number of schools written.
func (s *SQLite) InsertSchools(ctx context.Context, schools []school.School) (int, error) {
	if len(schools) == 0 {
		return 0, nil
	}
	db, err := s.GetConnection()
	if err != nil {
		return 0, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	tx, err := goqu.New(Dialect, db).BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert transaction: %w", err)
	}

	err = tx.Wrap(func() error {
		if err := s.insertCounties(ctx, tx, schools); err != nil {
			return fmt.Errorf("insert counties: %w", err)
		}
		countyIDs, err := countyIDs(ctx, tx)
		if err != nil {
			return fmt.Errorf("load county ids: %w", err)
		}
		if err := s.insertDistricts(ctx, tx, schools, countyIDs); err != nil {
			return fmt.Errorf("insert districts: %w", err)
		}
		if err := s.upsertSchools(ctx, tx, schools, countyIDs); err != nil {
			return fmt.Errorf("insert schools: %w", err)
		}
		if err := s.upsertFinancials(ctx, tx, schools); err != nil {
			return fmt.Errorf("insert financials: %w", err)
		}
		if err := s.upsertPerformance(ctx, tx, schools); err != nil {
			return fmt.Errorf("insert performance: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Insert failed, transaction rolled back", "schools", len(schools), "error", err)
		return 0, err
	}

	s.logger.Info("Schools inserted", "schools", len(schools), "duration", time.Since(start))
	return len(schools), nil
}

func (s *SQLite) insertCounties(ctx context.Context, tx *goqu.TxDatabase, schools []school.School) error {
	seen := make(map[string]bool)
	var rows []any
	for _, sc := range schools {
		name := strings.TrimSpace(sc.County)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		rows = append(rows, goqu.Record{"name": name})
	}
	return s.insertBatches(rows, func(batch []any) error {
		_, err := tx.Insert(countiesTable).
			Rows(batch...).
			OnConflict(goqu.DoNothing()).
			Prepared(true).
			Executor().
			ExecContext(ctx)
		return err
	})
}

type countyRow struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func countyIDs(ctx context.Context, tx *goqu.TxDatabase) (map[string]int64, error) {
	var rows []countyRow
	if err := tx.From(countiesTable).Select("id", "name").ScanStructsContext(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(rows))
	for _, r := range rows {
		ids[r.Name] = r.ID
	}
	return ids, nil
}

func (s *SQLite) insertDistricts(ctx context.Context, tx *goqu.TxDatabase, schools []school.School, counties map[string]int64) error {
	seen := make(map[int]bool)
	var rows []any
	for _, sc := range schools {
		if sc.DistrictID == nil || seen[*sc.DistrictID] {
			continue
		}
		seen[*sc.DistrictID] = true
		rows = append(rows, goqu.Record{
			"id":        *sc.DistrictID,
			"name":      fmt.Sprintf("District %d", *sc.DistrictID),
			"county_id": countyRef(counties, sc.County),
		})
	}
	return s.insertBatches(rows, func(batch []any) error {
		_, err := tx.Insert(districtsTable).
			Rows(batch...).
			OnConflict(goqu.DoNothing()).
			Prepared(true).
			Executor().
			ExecContext(ctx)
		return err
	})
}

func (s *SQLite) upsertSchools(ctx context.Context, tx *goqu.TxDatabase, schools []school.School, counties map[string]int64) error {
	rows := make([]any, 0, len(schools))
	for _, sc := range schools {
		rows = append(rows, goqu.Record{
			"id":          sc.ID,
			"district_id": nullable(sc.DistrictID),
			"name":        sc.Name,
			"county_id":   countyRef(counties, sc.County),
			"grades":      sc.Grades,
			"students":    nullable(sc.Students),
			"teachers":    nullable(sc.Teachers),
			"computers":   nullable(sc.Computers),
		})
	}
	return s.insertBatches(rows, func(batch []any) error {
		_, err := tx.Insert(schoolsTable).
			Rows(batch...).
			OnConflict(goqu.DoUpdate("id", excluded("district_id", "name", "county_id", "grades", "students", "teachers", "computers"))).
			Prepared(true).
			Executor().
			ExecContext(ctx)
		return err
	})
}

func (s *SQLite) upsertFinancials(ctx context.Context, tx *goqu.TxDatabase, schools []school.School) error {
	rows := make([]any, 0, len(schools))
	for _, sc := range schools {
		rows = append(rows, goqu.Record{
			"school_id":   sc.ID,
			"calworks":    nullable(sc.Calworks),
			"lunch":       nullable(sc.Lunch),
			"expenditure": nullable(sc.Expenditure),
			"income":      nullable(sc.Income),
		})
	}
	return s.insertBatches(rows, func(batch []any) error {
		_, err := tx.Insert(financialsTable).
			Rows(batch...).
			OnConflict(goqu.DoUpdate("school_id", excluded("calworks", "lunch", "expenditure", "income"))).
			Prepared(true).
			Executor().
			ExecContext(ctx)
		return err
	})
}

func (s *SQLite) upsertPerformance(ctx context.Context, tx *goqu.TxDatabase, schools []school.School) error {
	rows := make([]any, 0, len(schools))
	for _, sc := range schools {
		rows = append(rows, goqu.Record{
			"school_id":        sc.ID,
			"english_learners": nullable(sc.English),
			"read_score":       nullable(sc.ReadScore),
			"math_score":       nullable(sc.MathScore),
		})
	}
	return s.insertBatches(rows, func(batch []any) error {
		_, err := tx.Insert(performanceTable).
			Rows(batch...).
			OnConflict(goqu.DoUpdate("school_id", excluded("english_learners", "read_score", "math_score"))).
			Prepared(true).
			Executor().
			ExecContext(ctx)
		return err
	})
}

// insertBatches splits rows to stay under SQLite's bound parameter limit.
func (s *SQLite) insertBatches(rows []any, insert func(batch []any) error) error {
	for start := 0; start < len(rows); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(rows))
		if err := insert(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

// excluded builds the SET clause of an upsert that takes every column from
// the conflicting row.
func excluded(columns ...string) goqu.Record {
	rec := make(goqu.Record, len(columns))
	for _, c := range columns {
		rec[c] = goqu.L("excluded." + c)
	}
	return rec
}

func countyRef(counties map[string]int64, name string) any {
	id, ok := counties[strings.TrimSpace(name)]
	if !ok {
		return nil
	}
	return id
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
