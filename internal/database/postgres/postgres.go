// Package postgres is the PostgreSQL backend: one pgx connection per session,
// switched to read-only right after it is opened.
package postgres

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/koustreak/schemalens/internal/config"
	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/identifier"
)

const (
	applicationName   = "schemalens"
	readOnlyStatement = "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY"
)

// Backend dials PostgreSQL sessions. It holds no connection itself.
type Backend struct {
	cfg config.Postgres
}

// New returns a Backend for cfg.
func New(cfg config.Postgres) *Backend {
	return &Backend{cfg: cfg}
}

var _ database.Backend = (*Backend)(nil)

func (b *Backend) Kind() database.Kind { return database.KindPostgres }

func (b *Backend) Capabilities() database.Capabilities {
	return database.Capabilities{
		ReadOnly:          database.ReadOnlySessionDirective,
		ReadOnlyStatement: readOnlyStatement,
		NamespacePurpose:  identifier.PurposeSchema,
	}
}

func (b *Backend) Catalog() *database.Catalog {
	return catalog
}

// Dial opens a single connection (not a pool: each session is owned by one
// request and closed when it ends).
func (b *Backend) Dial(ctx context.Context) (database.Session, error) {
	connCfg, err := pgx.ParseConfig(buildDSN(b.cfg))
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	if b.cfg.ConnectTimeout > 0 {
		connCfg.ConnectTimeout = b.cfg.ConnectTimeout
	}

	conn, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, err
	}
	return &session{conn: conn}, nil
}

// buildDSN constructs the postgres connection URL. Credentials are escaped by
// url.UserPassword, so passwords may contain any character.
func buildDSN(cfg config.Postgres) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}

	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// session adapts *pgx.Conn to database.Session.
type session struct {
	conn *pgx.Conn
}

func (s *session) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (s *session) Exec(ctx context.Context, sql string) error {
	_, err := s.conn.Exec(ctx, sql)
	return err
}

func (s *session) IsOpen() bool {
	return !s.conn.IsClosed()
}

func (s *session) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

// --- pgRows wraps pgx.Rows ---

type pgRows struct{ rows pgx.Rows }

func (r *pgRows) Next() bool             { return r.rows.Next() }
func (r *pgRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *pgRows) Close()                 { r.rows.Close() }
func (r *pgRows) Err() error             { return r.rows.Err() }
