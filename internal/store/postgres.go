package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/insightdelivered/statement-categorizer/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS statements (
	id           UUID PRIMARY KEY,
	file_name    TEXT NOT NULL,
	page_count   INTEGER NOT NULL DEFAULT 0,
	parsed_at    TIMESTAMPTZ NOT NULL,
	strategy     TEXT NOT NULL DEFAULT '',
	record_count INTEGER NOT NULL,
	total_out    NUMERIC(16,2) NOT NULL,
	total_in     NUMERIC(16,2) NOT NULL,
	net          NUMERIC(16,2) NOT NULL,
	records      JSONB NOT NULL,
	breakdown    JSONB NOT NULL DEFAULT '[]',
	warnings     JSONB NOT NULL DEFAULT '[]',
	metadata     JSONB NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS statements_file_name_idx ON statements (file_name);
CREATE INDEX IF NOT EXISTS statements_parsed_at_idx ON statements (parsed_at DESC);
`

const resultColumns = `id, file_name, page_count, parsed_at, strategy, record_count,
	total_out, total_in, net, records, breakdown, warnings, metadata`

const headerColumns = `id, file_name, page_count, parsed_at, record_count, total_out, total_in, net`

// searchFilter matches the escaped ILIKE pattern in $1.
const searchFilter = `file_name ILIKE $1 OR records::text ILIKE $1 OR metadata::text ILIKE $1`

// Postgres is a ResultStore backed by PostgreSQL through the pgx driver.
type Postgres struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenPostgres connects to url and creates the schema if needed.
func OpenPostgres(ctx context.Context, url string, log zerolog.Logger) (*Postgres, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("could not open db connection: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to the database: %w", err)
	}
	p := NewPostgres(db, log)
	if err := p.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB, log zerolog.Logger) *Postgres {
	return &Postgres{db: db, log: log}
}

// Migrate creates the statements table and its indexes.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	return nil
}

func (p *Postgres) Save(ctx context.Context, r *models.StatementResult) error {
	if r.ID == "" {
		return fmt.Errorf("statement ID is required")
	}
	records, breakdown, err := encodeRecords(r)
	if err != nil {
		return err
	}
	warnings, err := json.Marshal(nonNil(r.Warnings))
	if err != nil {
		return fmt.Errorf("encoding warnings: %w", err)
	}
	metadata, err := json.Marshal(nonNilMap(r.Metadata))
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO statements (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			file_name = EXCLUDED.file_name, page_count = EXCLUDED.page_count,
			parsed_at = EXCLUDED.parsed_at, strategy = EXCLUDED.strategy,
			record_count = EXCLUDED.record_count, total_out = EXCLUDED.total_out,
			total_in = EXCLUDED.total_in, net = EXCLUDED.net, records = EXCLUDED.records,
			breakdown = EXCLUDED.breakdown, warnings = EXCLUDED.warnings,
			metadata = EXCLUDED.metadata`,
		r.ID, r.FileName, r.PageCount, r.ParsedAt, r.Strategy, r.Summary.Count,
		r.Summary.TotalOut, r.Summary.TotalIn, r.Summary.Net,
		records, breakdown, warnings, metadata,
	)
	if err != nil {
		return fmt.Errorf("saving statement %s: %w", r.ID, err)
	}
	p.log.Debug().Str("statement_id", r.ID).Msg("statement saved")
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*models.StatementResult, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM statements WHERE id::text = $1`, id)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

func (p *Postgres) GetByName(ctx context.Context, fileName string) (*models.StatementResult, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM statements
		WHERE file_name = $1 ORDER BY parsed_at DESC, id LIMIT 1`, fileName)
	r, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileName)
	}
	return r, err
}

func (p *Postgres) List(ctx context.Context, page Page) (Listing, error) {
	return p.list(ctx, "", nil, page)
}

func (p *Postgres) Search(ctx context.Context, query string, page Page) (Listing, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return p.list(ctx, "", nil, page)
	}
	return p.list(ctx, searchFilter, []any{likePattern(query)}, page)
}

func (p *Postgres) list(ctx context.Context, where string, args []any, page Page) (Listing, error) {
	page = page.Normalize()
	l := Listing{Page: page.Number, Size: page.Size, Items: []models.StatementHeader{}}

	filter := ""
	if where != "" {
		filter = " WHERE " + where
	}
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM statements`+filter, args...).Scan(&l.Total); err != nil {
		return Listing{}, fmt.Errorf("counting statements: %w", err)
	}

	n := len(args)
	rows, err := p.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM statements%s ORDER BY parsed_at DESC, id LIMIT $%d OFFSET $%d`,
			headerColumns, filter, n+1, n+2),
		append(args, page.Size, page.Offset())...)
	if err != nil {
		return Listing{}, fmt.Errorf("listing statements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h models.StatementHeader
		if err := rows.Scan(&h.ID, &h.FileName, &h.PageCount, &h.ParsedAt, &h.Summary.Count,
			&h.Summary.TotalOut, &h.Summary.TotalIn, &h.Summary.Net); err != nil {
			return Listing{}, err
		}
		h.ParsedAt = h.ParsedAt.UTC()
		l.Items = append(l.Items, h)
	}
	return l, rows.Err()
}

func (p *Postgres) UpdateRecords(ctx context.Context, r *models.StatementResult) error {
	records, breakdown, err := encodeRecords(r)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `
		UPDATE statements SET records = $2, breakdown = $3, record_count = $4,
			total_out = $5, total_in = $6, net = $7
		WHERE id::text = $1`,
		r.ID, records, breakdown, r.Summary.Count, r.Summary.TotalOut, r.Summary.TotalIn, r.Summary.Net)
	if err != nil {
		return fmt.Errorf("updating statement %s: %w", r.ID, err)
	}
	return expectOne(res, r.ID)
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM statements WHERE id::text = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting statement %s: %w", id, err)
	}
	return expectOne(res, id)
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) Close() error {
	p.log.Info().Msg("closing database connection")
	return p.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(row scanner) (*models.StatementResult, error) {
	var (
		r                                       models.StatementResult
		records, breakdown, warnings, metadata []byte
	)
	err := row.Scan(&r.ID, &r.FileName, &r.PageCount, &r.ParsedAt, &r.Strategy, &r.Summary.Count,
		&r.Summary.TotalOut, &r.Summary.TotalIn, &r.Summary.Net,
		&records, &breakdown, &warnings, &metadata)
	if err != nil {
		return nil, err
	}
	r.ParsedAt = r.ParsedAt.UTC()
	for _, f := range []struct {
		name string
		data []byte
		dst  any
	}{
		{"records", records, &r.Records},
		{"breakdown", breakdown, &r.Breakdown},
		{"warnings", warnings, &r.Warnings},
		{"metadata", metadata, &r.Metadata},
	} {
		if err := json.Unmarshal(f.data, f.dst); err != nil {
			return nil, fmt.Errorf("decoding %s of statement %s: %w", f.name, r.ID, err)
		}
	}
	if len(r.Warnings) == 0 {
		r.Warnings = nil
	}
	if len(r.Metadata) == 0 {
		r.Metadata = nil
	}
	return &r, nil
}

func encodeRecords(r *models.StatementResult) (records, breakdown []byte, err error) {
	if records, err = json.Marshal(nonNil(r.Records)); err != nil {
		return nil, nil, fmt.Errorf("encoding records: %w", err)
	}
	if breakdown, err = json.Marshal(nonNil(r.Breakdown)); err != nil {
		return nil, nil, fmt.Errorf("encoding breakdown: %w", err)
	}
	return records, breakdown, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// likePattern escapes ILIKE wildcards in q and wraps it in %.
func likePattern(q string) string {
	q = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
	return "%" + q + "%"
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

var _ ResultStore = (*Postgres)(nil)
