// Package scylla is the Cassandra/ScyllaDB backend, built on gocql.
//
// CQL has no session-level read-only switch. Sessions stay read-only because
// the catalog only ever issues SELECTs against system_schema.
package scylla

import (
	"context"
	"errors"

	"github.com/gocql/gocql"

	"github.com/koustreak/schemalens/internal/config"
	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/identifier"
)

// probeCQL verifies a fresh session can actually serve reads.
const probeCQL = "SELECT release_version FROM system.local"

var errExecUnsupported = errors.New("scylla: statements other than catalog queries are not issued")

// Backend dials ScyllaDB sessions.
type Backend struct {
	cfg config.Scylla
}

// New returns a Backend for cfg. cfg.Consistency must already be valid (see
// config.Source.Scylla).
func New(cfg config.Scylla) *Backend {
	return &Backend{cfg: cfg}
}

var _ database.Backend = (*Backend)(nil)

func (b *Backend) Kind() database.Kind { return database.KindScylla }

func (b *Backend) Capabilities() database.Capabilities {
	return database.Capabilities{
		ReadOnly:         database.ReadOnlyStructural,
		NamespacePurpose: identifier.PurposeKeyspace,
	}
}

func (b *Backend) Catalog() *database.Catalog {
	return catalog
}

// newCluster builds the gocql cluster configuration.
func newCluster(cfg config.Scylla) (*gocql.ClusterConfig, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}

	consistency := cfg.Consistency
	if consistency == "" {
		consistency = "LOCAL_ONE"
	}
	c, err := gocql.ParseConsistencyWrapper(consistency)
	if err != nil {
		return nil, err
	}
	cluster.Consistency = c

	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
		cluster.ConnectTimeout = cfg.Timeout
	}
	if cfg.Authenticated() {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.User,
			Password: cfg.Password,
		}
	}
	if cfg.LocalDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(
			gocql.DCAwareRoundRobinPolicy(cfg.LocalDC),
		)
	}
	return cluster, nil
}

func (b *Backend) Dial(ctx context.Context) (database.Session, error) {
	cluster, err := newCluster(b.cfg)
	if err != nil {
		return nil, err
	}

	// CreateSession takes no context; it is bounded by ConnectTimeout, and a
	// session that arrives after ctx is done is closed in the background.
	type result struct {
		s   *gocql.Session
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := cluster.CreateSession()
		ch <- result{s: s, err: err}
	}()

	var gs *gocql.Session
	select {
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.s != nil {
				r.s.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		gs = r.s
	}

	var version string
	if err := gs.Query(probeCQL).WithContext(ctx).Scan(&version); err != nil {
		gs.Close()
		return nil, err
	}
	return &session{s: gs}, nil
}

// session adapts *gocql.Session to database.Session.
type session struct {
	s *gocql.Session
}

func (s *session) Query(ctx context.Context, stmt string, args ...any) (database.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	iter := s.s.Query(stmt, args...).WithContext(ctx).Iter()
	return &cqlRows{iter: iter, scanner: iter.Scanner()}, nil
}

func (s *session) Exec(context.Context, string) error {
	return errExecUnsupported
}

func (s *session) IsOpen() bool {
	return !s.s.Closed()
}

func (s *session) Close(context.Context) error {
	s.s.Close()
	return nil
}

// --- cqlRows wraps a gocql iterator ---

type cqlRows struct {
	iter    *gocql.Iter
	scanner gocql.Scanner
}

func (r *cqlRows) Next() bool             { return r.scanner.Next() }
func (r *cqlRows) Scan(dest ...any) error { return r.scanner.Scan(dest...) }
func (r *cqlRows) Close()                 { _ = r.iter.Close() }
func (r *cqlRows) Err() error             { return r.scanner.Err() }
