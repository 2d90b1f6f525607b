// Package mysql is the MySQL backend. A session is one *sql.Conn pinned from
// a single-connection *sql.DB, so the read-only directive and every catalog
// query share the same server session.
package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/schemalens/internal/config"
	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/identifier"
)

const (
	defaultPort       = 3306
	readOnlyStatement = "SET SESSION TRANSACTION READ ONLY"
)

// Backend dials MySQL sessions.
type Backend struct {
	cfg config.MySQL
}

// New returns a Backend for cfg.
func New(cfg config.MySQL) *Backend {
	return &Backend{cfg: cfg}
}

var _ database.Backend = (*Backend)(nil)

func (b *Backend) Kind() database.Kind { return database.KindMySQL }

func (b *Backend) Capabilities() database.Capabilities {
	return database.Capabilities{
		ReadOnly:          database.ReadOnlySessionDirective,
		ReadOnlyStatement: readOnlyStatement,
		NamespacePurpose:  identifier.PurposeDatabase,
	}
}

func (b *Backend) Catalog() *database.Catalog {
	return catalog
}

func (b *Backend) Dial(ctx context.Context) (database.Session, error) {
	connector, err := gomysql.NewConnector(driverConfig(b.cfg))
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}
	return &session{db: db, conn: conn}, nil
}

// driverConfig builds the driver settings. Multi-statement mode stays off:
// only single catalog statements are ever sent.
func driverConfig(cfg config.MySQL) *gomysql.Config {
	port := cfg.Port
	if port == 0 {
		port = defaultPort
	}

	c := gomysql.NewConfig()
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.DBName = cfg.Database
	c.Timeout = cfg.ConnectTimeout
	c.MultiStatements = false
	c.InterpolateParams = false
	return c
}

// session adapts a pinned *sql.Conn to database.Session.
type session struct {
	db     *sql.DB
	conn   *sql.Conn
	broken bool
	closed bool
}

func (s *session) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		s.observe(err)
		return nil, err
	}
	return &mysqlRows{rows: rows, s: s}, nil
}

func (s *session) Exec(ctx context.Context, stmt string) error {
	_, err := s.conn.ExecContext(ctx, stmt)
	s.observe(err)
	return err
}

func (s *session) IsOpen() bool {
	return !s.closed && !s.broken
}

func (s *session) Close(_ context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Join(s.conn.Close(), s.db.Close())
}

// observe marks the session unusable after a connection-level failure.
func (s *session) observe(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, gomysql.ErrInvalidConn) {
		s.broken = true
	}
}

// --- mysqlRows wraps *sql.Rows ---

type mysqlRows struct {
	rows *sql.Rows
	s    *session
}

func (r *mysqlRows) Next() bool             { return r.rows.Next() }
func (r *mysqlRows) Scan(dest ...any) error { return r.rows.Scan(dest...) }
func (r *mysqlRows) Close()                 { r.rows.Close() }

func (r *mysqlRows) Err() error {
	err := r.rows.Err()
	r.s.observe(err)
	return err
}
