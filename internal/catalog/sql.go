package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/mattn/go-sqlite3"    // registers "sqlite3"

	"github.com/zynqcloud/go-assets/internal/asset"
)

// Supported database/sql driver names.
const (
	DriverSQLite = "sqlite3"
	DriverPgx    = "pgx"
)

const assetsTable = "assets"

var recordColumns = []string{
	"id", "name", "format", "storage_location", "size_bytes",
	"sha256", "content_type", "created_at", "updated_at",
}

// SQL is a Catalog backed by database/sql. SQLite is the default substrate;
// Postgres is reached through pgx's stdlib driver.
type SQL struct {
	db     *sql.DB
	qb     sq.StatementBuilderType
	logger *slog.Logger
	now    func() time.Time
}

// Open migrates the schema and returns a ready catalog.
func Open(ctx context.Context, driver, dsn string, logger *slog.Logger) (*SQL, error) {
	placeholders, err := placeholderFormat(driver)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		if err := ensureSQLiteDir(dsn); err != nil {
			return nil, err
		}
		dsn = sqliteDSN(dsn)
	}

	if err := Migrate(driver, dsn, logger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One writer at a time; concurrent creates queue here instead of
		// failing with SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	logger.Info("catalog ready", "driver", driver)
	return &SQL{
		db:     db,
		qb:     sq.StatementBuilder.PlaceholderFormat(placeholders),
		logger: logger,
		now:    time.Now,
	}, nil
}

// placeholderFormat picks the bind-parameter style of driver: ? for SQLite,
// $n for Postgres.
func placeholderFormat(driver string) (sq.PlaceholderFormat, error) {
	switch driver {
	case DriverSQLite:
		return sq.Question, nil
	case DriverPgx:
		return sq.Dollar, nil
	default:
		return nil, fmt.Errorf("catalog: unsupported driver %q", driver)
	}
}

// sqliteDSN adds WAL journaling and a busy timeout unless the caller set options.
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn
	}
	return dsn + "?_journal_mode=WAL&_busy_timeout=5000"
}

// IsSQLiteMemory reports whether dsn names an in-memory SQLite database.
// Migrate runs on its own connection, so such a database would never see
// the schema.
func IsSQLiteMemory(dsn string) bool {
	path, opts, _ := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")
	return path == ":memory:" || strings.Contains(opts, "mode=memory")
}

func ensureSQLiteDir(dsn string) error {
	if IsSQLiteMemory(dsn) {
		return errors.New("catalog: in-memory sqlite databases are not supported")
	}
	path := strings.TrimPrefix(strings.SplitN(dsn, "?", 2)[0], "file:")
	if path == "" {
		return errors.New("catalog: empty sqlite path")
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "/" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	return nil
}

func (s *SQL) logQuery(op, query string, start time.Time, err error) {
	if err != nil {
		s.logger.Warn("catalog query failed", "op", op, "sql", query,
			"duration_ms", time.Since(start).Milliseconds(), "err", err)
		return
	}
	s.logger.Debug("catalog query", "op", op, "sql", query,
		"duration_ms", time.Since(start).Milliseconds())
}

func (s *SQL) Create(ctx context.Context, d asset.Draft) (asset.Record, error) {
	if err := checkDraft(d); err != nil {
		return asset.Record{}, err
	}
	// Microsecond precision round-trips through both SQLite text and TIMESTAMPTZ.
	now := s.now().UTC().Truncate(time.Microsecond)
	r := asset.Record{
		ID:              uuid.NewString(),
		Name:            d.Name,
		Format:          d.Format,
		StorageLocation: d.StorageLocation,
		SizeBytes:       d.SizeBytes,
		SHA256:          d.SHA256,
		ContentType:     d.ContentType,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	query, args, err := s.qb.Insert(assetsTable).
		Columns(recordColumns...).
		Values(r.ID, r.Name, string(r.Format), r.StorageLocation, r.SizeBytes,
			r.SHA256, r.ContentType, r.CreatedAt, r.UpdatedAt).
		ToSql()
	if err != nil {
		return asset.Record{}, fmt.Errorf("build insert: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx, query, args...)
	s.logQuery("create", query, start, err)
	if err != nil {
		return asset.Record{}, fmt.Errorf("catalog create: %w", err)
	}
	return r, nil
}

func (s *SQL) Fetch(ctx context.Context, id string) (asset.Record, error) {
	return s.fetchWhere(ctx, "fetch", sq.Eq{"id": id})
}

func (s *SQL) FetchByLocation(ctx context.Context, location string) (asset.Record, error) {
	return s.fetchWhere(ctx, "fetch_by_location", sq.Eq{"storage_location": location})
}

func (s *SQL) fetchWhere(ctx context.Context, op string, pred sq.Eq) (asset.Record, error) {
	query, args, err := s.qb.Select(recordColumns...).
		From(assetsTable).
		Where(pred).
		ToSql()
	if err != nil {
		return asset.Record{}, fmt.Errorf("build select: %w", err)
	}

	start := time.Now()
	r, err := scanRecord(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		s.logQuery(op, query, start, nil)
		return asset.Record{}, ErrNotFound
	}
	s.logQuery(op, query, start, err)
	if err != nil {
		return asset.Record{}, fmt.Errorf("catalog %s: %w", op, err)
	}
	return r, nil
}

func (s *SQL) List(ctx context.Context, f Filter) ([]asset.Record, error) {
	sb := s.qb.Select(recordColumns...).
		From(assetsTable).
		OrderBy("created_at DESC", "id ASC").
		Limit(uint64(f.limit())).
		Offset(uint64(f.offset()))
	if f.Format != "" {
		sb = sb.Where(sq.Eq{"format": string(f.Format)})
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logQuery("list", query, start, err)
		return nil, fmt.Errorf("catalog list: %w", err)
	}
	defer rows.Close()

	out := []asset.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog list scan: %w", err)
		}
		out = append(out, r)
	}
	err = rows.Err()
	s.logQuery("list", query, start, err)
	if err != nil {
		return nil, fmt.Errorf("catalog list: %w", err)
	}
	return out, nil
}

func (s *SQL) Rename(ctx context.Context, id, name string) (asset.Record, error) {
	query, args, err := s.qb.Update(assetsTable).
		SetMap(map[string]any{
			"name":       name,
			"updated_at": s.now().UTC().Truncate(time.Microsecond),
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return asset.Record{}, fmt.Errorf("build update: %w", err)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	s.logQuery("rename", query, start, err)
	if err != nil {
		return asset.Record{}, fmt.Errorf("catalog rename: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return asset.Record{}, ErrNotFound
	}
	return s.Fetch(ctx, id)
}

func (s *SQL) Delete(ctx context.Context, id string) error {
	query, args, err := s.qb.Delete(assetsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	s.logQuery("delete", query, start, err)
	if err != nil {
		return fmt.Errorf("catalog delete: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQL) Close() error { return s.db.Close() }

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (asset.Record, error) {
	var (
		r      asset.Record
		format string
	)
	err := row.Scan(&r.ID, &r.Name, &format, &r.StorageLocation, &r.SizeBytes,
		&r.SHA256, &r.ContentType, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return asset.Record{}, err
	}
	r.Format = asset.Format(format)
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}
