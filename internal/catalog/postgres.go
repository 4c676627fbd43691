package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/kpauljoseph/pagedesk/pkg/models"
)

const (
	postgresTableName        = "pagedesk_documents"
	postgresOperationTimeout = 5 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// PostgresStore keeps the catalog in a Postgres table created on first use.
type PostgresStore struct {
	dsn       string
	tableName string
	openDB    sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: postgres catalog needs a dsn", ErrInvalidInput)
	}
	return &PostgresStore{
		dsn:       dsn,
		tableName: postgresTableName,
		openDB:    sql.Open,
	}, nil
}

const postgresColumns = `id, title, file_path, file_name, file_size, page_count, date_created,
	correspondent, document_type, storage_path, tags, notes, checksum, created_at, updated_at`

func (s *PostgresStore) Save(ctx context.Context, rec models.DocumentRecord) (models.DocumentRecord, error) {
	if err := validate(rec); err != nil {
		return models.DocumentRecord{}, err
	}
	if err := s.ensureReady(); err != nil {
		return models.DocumentRecord{}, err
	}
	rec = normalize(rec)
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (title, file_path, file_name, file_size, page_count, date_created,
			correspondent, document_type, storage_path, tags, notes, checksum, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
		ON CONFLICT (file_path) DO UPDATE SET
			title = EXCLUDED.title,
			file_name = EXCLUDED.file_name,
			file_size = EXCLUDED.file_size,
			page_count = EXCLUDED.page_count,
			date_created = EXCLUDED.date_created,
			correspondent = EXCLUDED.correspondent,
			document_type = EXCLUDED.document_type,
			storage_path = EXCLUDED.storage_path,
			tags = EXCLUDED.tags,
			notes = EXCLUDED.notes,
			checksum = EXCLUDED.checksum,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`, pq.QuoteIdentifier(s.tableName))

	err := s.db.QueryRowContext(ctx, query,
		rec.Title, rec.FilePath, rec.FileName, rec.FileSize, rec.PageCount, rec.DateCreated,
		rec.Correspondent, rec.DocumentType, rec.StoragePath, pq.Array(rec.Tags), rec.Notes, rec.Checksum,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return models.DocumentRecord{}, fmt.Errorf("failed to save document: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (models.DocumentRecord, error) {
	return s.getBy(ctx, "id", id)
}

func (s *PostgresStore) GetByPath(ctx context.Context, path string) (models.DocumentRecord, error) {
	return s.getBy(ctx, "file_path", path)
}

func (s *PostgresStore) getBy(ctx context.Context, column string, value interface{}) (models.DocumentRecord, error) {
	if err := s.ensureReady(); err != nil {
		return models.DocumentRecord{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1", postgresColumns, pq.QuoteIdentifier(s.tableName), column)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return models.DocumentRecord{}, ErrNotFound
	}
	if err != nil {
		return models.DocumentRecord{}, fmt.Errorf("failed to load document: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.DocumentFilter) ([]models.DocumentRecord, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query, args := listQuery(s.tableName, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	out := []models.DocumentRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read document: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	return out, nil
}

func listQuery(table string, filter models.DocumentFilter) (string, []interface{}) {
	var b strings.Builder
	var args []interface{}
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE 1=1", postgresColumns, pq.QuoteIdentifier(table))
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		n := len(args)
		fmt.Fprintf(&b, " AND (title ILIKE $%d OR file_name ILIKE $%d OR array_to_string(tags, ' ') ILIKE $%d)", n, n, n)
	}
	if filter.DocumentType != "" {
		args = append(args, filter.DocumentType)
		fmt.Fprintf(&b, " AND document_type = $%d", len(args))
	}
	b.WriteString(" ORDER BY updated_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pq.QuoteIdentifier(s.tableName))
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (models.CatalogStats, error) {
	if err := s.ensureReady(); err != nil {
		return models.CatalogStats{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT COUNT(*), COALESCE(SUM(page_count), 0), COALESCE(SUM(file_size), 0) FROM %s",
		pq.QuoteIdentifier(s.tableName))
	var st models.CatalogStats
	if err := s.db.QueryRowContext(ctx, query).Scan(&st.TotalDocuments, &st.TotalPages, &st.TotalSize); err != nil {
		return models.CatalogStats{}, fmt.Errorf("failed to get stats: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				title TEXT NOT NULL,
				file_path TEXT NOT NULL UNIQUE,
				file_name TEXT NOT NULL,
				file_size BIGINT NOT NULL DEFAULT 0,
				page_count INTEGER NOT NULL DEFAULT 0,
				date_created TEXT NOT NULL DEFAULT '',
				correspondent TEXT NOT NULL DEFAULT '',
				document_type TEXT NOT NULL DEFAULT '',
				storage_path TEXT NOT NULL DEFAULT 'Default',
				tags TEXT[] NOT NULL DEFAULT '{}',
				notes TEXT NOT NULL DEFAULT '',
				checksum TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, pq.QuoteIdentifier(s.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			s.initErr = fmt.Errorf("failed to prepare catalog table: %w", err)
			return
		}
		s.db = db
	})
	return s.initErr
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (models.DocumentRecord, error) {
	var rec models.DocumentRecord
	var tags []string
	err := row.Scan(
		&rec.ID, &rec.Title, &rec.FilePath, &rec.FileName, &rec.FileSize, &rec.PageCount, &rec.DateCreated,
		&rec.Correspondent, &rec.DocumentType, &rec.StoragePath, pq.Array(&tags), &rec.Notes, &rec.Checksum,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if tags == nil {
		tags = []string{}
	}
	rec.Tags = tags
	return rec, err
}
