package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"keylock/internal/schedule"
	logx "keylock/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore keeps one row per schedule using the same flat record columns
// as the JSON document. Save replaces the whole table in one transaction.
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	cfg Config
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, cfg: cfg}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) ([]schedule.Schedule, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, action, time_type, start_time, days, duration, enabled
		 FROM schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", schedule.ErrPersistence, err)
	}
	defer rows.Close()

	var (
		out     []schedule.Schedule
		skipped []error
	)
	for rows.Next() {
		var (
			r        schedule.Record
			start    string
			days     sql.NullString
			duration sql.NullInt64
			enabled  int
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Action, &r.TimeType, &start, &days, &duration, &enabled); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", schedule.ErrPersistence, err)
		}
		r.StartTime, _ = json.Marshal(start)
		if days.Valid && days.String != "" {
			if err := json.Unmarshal([]byte(days.String), &r.Days); err != nil {
				skipped = append(skipped, fmt.Errorf("record %q: %w: days: %v", r.ID, schedule.ErrInvalidSchedule, err))
				continue
			}
		}
		if duration.Valid {
			d := int(duration.Int64)
			r.Duration = &d
		}
		on := enabled != 0
		r.Enabled = &on

		sc, err := schedule.FromRecord(r, s.cfg.Location)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("record %q: %w", r.ID, err))
			continue
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", schedule.ErrPersistence, err)
	}
	warnSkipped(s.log, skipped)
	return out, nil
}

func (s *sqliteStore) Save(ctx context.Context, ss []schedule.Schedule) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", schedule.ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules`); err != nil {
		return fmt.Errorf("%w: clear: %v", schedule.ErrPersistence, err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO schedules(id, name, action, time_type, start_time, days, duration, enabled)
		 VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", schedule.ErrPersistence, err)
	}
	defer stmt.Close()

	for _, sc := range ss {
		sc = sc.In(s.cfg.Location)
		var days any
		if sc.Kind == schedule.KindWeekly && len(sc.Days) > 0 {
			b, _ := json.Marshal(sc.Days)
			days = string(b)
		}
		var duration any
		if sc.Duration > 0 {
			duration = int64(sc.Duration.Seconds())
		}
		if _, err := stmt.ExecContext(ctx,
			sc.ID, sc.Name, string(sc.Action), string(sc.Kind),
			schedule.FormatAnchor(sc.Anchor), days, duration, boolInt(sc.Enabled),
		); err != nil {
			return fmt.Errorf("%w: insert %s: %v", schedule.ErrPersistence, sc.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", schedule.ErrPersistence, err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
