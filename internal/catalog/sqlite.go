package catalog

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// SQLiteStore is the default Store implementation backed by SQLite.
type SQLiteStore struct {
	conn *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the catalog database at path and runs
// pending migrations.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) migrate() error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.Up(s.conn, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const itemColumns = `id, kind, title, contributor, isbn, series_name, series_num,
	match_expression, use_regex, reject_words, accepted_formats, library_root,
	workpage_url, download_id, client_name, status, updated_at`

// FindWantedItems returns items of the given kind in the given status.
func (s *SQLiteStore) FindWantedItems(ctx context.Context, kind ItemKind, status Status) ([]*WantedItem, error) {
	query := `SELECT ` + itemColumns + ` FROM wanted_items WHERE status = ?`
	args := []any{string(status)}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY title`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query wanted items: %w", err)
	}
	defer rows.Close()

	var items []*WantedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MatchOne returns the single item matching the criteria, or ErrNotFound.
func (s *SQLiteStore) MatchOne(ctx context.Context, criteria MatchCriteria) (*WantedItem, error) {
	var row *sql.Row
	switch {
	case criteria.ID != "":
		row = s.conn.QueryRowContext(ctx,
			`SELECT `+itemColumns+` FROM wanted_items WHERE id = ?`, criteria.ID)
	case criteria.ISBN != "":
		row = s.conn.QueryRowContext(ctx,
			`SELECT `+itemColumns+` FROM wanted_items WHERE isbn = ?`, criteria.ISBN)
	default:
		return nil, ErrNotFound
	}

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return item, err
}

// UpsertStatus transitions an item's status, optionally guarded by the
// expected current status.
func (s *SQLiteStore) UpsertStatus(ctx context.Context, itemID string, expect, newStatus Status, fields StatusFields) error {
	query := `UPDATE wanted_items
		SET status = ?, download_id = ?, client_name = ?, library_path = ?, message = ?, updated_at = ?
		WHERE id = ?`
	args := []any{
		string(newStatus), fields.DownloadID, fields.ClientName,
		fields.LibraryPath, fields.Message, time.Now().UTC(), itemID,
	}
	if expect != "" {
		query += ` AND status = ?`
		args = append(args, string(expect))
	}

	res, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if expect == "" {
			return ErrNotFound
		}
		// Distinguish a missing item from a lost status race.
		var exists int
		err := s.conn.QueryRowContext(ctx,
			`SELECT 1 FROM wanted_items WHERE id = ?`, itemID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrStaleStatus
	}
	return nil
}

// AddItem inserts a wanted item. Used by operators and tests; the pipeline
// itself never creates items.
func (s *SQLiteStore) AddItem(ctx context.Context, item *WantedItem) error {
	rejectWords, err := json.Marshal(item.RejectWords)
	if err != nil {
		return err
	}
	formats, err := json.Marshal(item.AcceptedFormats)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx, `INSERT INTO wanted_items
		(id, kind, title, contributor, isbn, series_name, series_num,
		 match_expression, use_regex, reject_words, accepted_formats,
		 library_root, workpage_url, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, string(item.Kind), item.Title, item.Contributor, item.ISBN,
		item.SeriesName, item.SeriesNum, item.MatchExpression, item.Regex,
		string(rejectWords), string(formats), item.LibraryRoot,
		item.WorkpageURL, string(item.Status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanItem(row scannable) (*WantedItem, error) {
	var (
		item                 WantedItem
		kind, status         string
		rejectWords, formats sql.NullString
		isbn, series, expr   sql.NullString
		contributor, libRoot sql.NullString
		workpage             sql.NullString
		downloadID, clientNm sql.NullString
		seriesNum            sql.NullFloat64
		useRegex             bool
		updatedAt            sql.NullTime
	)
	err := row.Scan(&item.ID, &kind, &item.Title, &contributor, &isbn, &series,
		&seriesNum, &expr, &useRegex, &rejectWords, &formats, &libRoot,
		&workpage, &downloadID, &clientNm, &status, &updatedAt)
	if err != nil {
		return nil, err
	}

	item.Kind = ItemKind(kind)
	item.Status = Status(status)
	item.Contributor = contributor.String
	item.ISBN = isbn.String
	item.SeriesName = series.String
	item.SeriesNum = seriesNum.Float64
	item.MatchExpression = expr.String
	item.Regex = useRegex
	item.LibraryRoot = libRoot.String
	item.WorkpageURL = workpage.String
	item.DownloadID = downloadID.String
	item.ClientName = clientNm.String
	if updatedAt.Valid {
		item.UpdatedAt = updatedAt.Time
	}
	if rejectWords.Valid && rejectWords.String != "" {
		if err := json.Unmarshal([]byte(rejectWords.String), &item.RejectWords); err != nil {
			return nil, fmt.Errorf("bad reject_words for item %s: %w", item.ID, err)
		}
	}
	if formats.Valid && formats.String != "" {
		if err := json.Unmarshal([]byte(formats.String), &item.AcceptedFormats); err != nil {
			return nil, fmt.Errorf("bad accepted_formats for item %s: %w", item.ID, err)
		}
	}
	return &item, nil
}
