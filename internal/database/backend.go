package database

import "context"

// Kind identifies the database engine behind a Backend.
type Kind string

const (
	KindPostgres Kind = "postgres"
	KindMySQL    Kind = "mysql"
	KindScylla   Kind = "scylla"
)

// ReadOnlyMode says how a backend keeps its session read-only.
type ReadOnlyMode int

const (
	// ReadOnlySessionDirective means the manager runs
	// Capabilities.ReadOnlyStatement once, right after dialing.
	ReadOnlySessionDirective ReadOnlyMode = iota

	// ReadOnlyStructural means the backend has no session-level switch;
	// read-only access holds because only catalog SELECTs are ever issued.
	ReadOnlyStructural
)

func (m ReadOnlyMode) String() string {
	if m == ReadOnlyStructural {
		return "structural"
	}
	return "session_directive"
}

// Capabilities is the static description of a backend, consulted by the
// Manager instead of branching on Kind.
type Capabilities struct {
	ReadOnly          ReadOnlyMode
	ReadOnlyStatement string // required for ReadOnlySessionDirective

	// NamespacePurpose labels the top-level identifier in validation errors
	// ("schema name", "keyspace name", ...).
	NamespacePurpose string
}

// Backend is the strategy value injected into a Manager. Implementations live
// in the postgres, mysql and scylla subpackages.
type Backend interface {
	Kind() Kind
	Capabilities() Capabilities
	Catalog() *Catalog

	// Dial opens one new session. It must honour ctx cancellation.
	Dial(ctx context.Context) (Session, error)
}

// Session is a single open connection owned by exactly one Manager.
type Session interface {
	// Query runs a catalog query with bound parameters.
	Query(ctx context.Context, query string, args ...any) (Rows, error)

	// Exec runs a statement that returns no rows. The Manager only uses it for
	// the read-only directive.
	Exec(ctx context.Context, stmt string) error

	// IsOpen reports whether the underlying connection is still usable.
	IsOpen() bool

	Close(ctx context.Context) error
}

// Rows is an abstraction over a result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}
