package database

import (
	"context"
	"fmt"
	"slices"

	"github.com/koustreak/schemalens/internal/errs"
	"github.com/koustreak/schemalens/internal/identifier"
)

// Introspector is the read-only capability set every backend offers.
// Results are fresh slices in the backend's natural order; an empty catalog
// yields an empty, non-nil slice.
type Introspector interface {
	// ListNamespaces returns non-system schemas (or keyspaces), alphabetically.
	ListNamespaces(ctx context.Context) ([]string, error)

	// ListTables returns the base tables of namespace, alphabetically.
	ListTables(ctx context.Context, namespace string) ([]string, error)

	// DescribeTable returns the columns of namespace.table in ordinal order.
	DescribeTable(ctx context.Context, namespace, table string) ([]Column, error)

	// ListIndexes returns the indexes of namespace.table by name.
	ListIndexes(ctx context.Context, namespace, table string) ([]Index, error)

	// ListSecondary returns constraints of namespace.table, or the
	// materialized views of a keyspace, by name.
	ListSecondary(ctx context.Context, namespace, table string) ([]SchemaObject, error)
}

var _ Introspector = (*Manager)(nil)

func (m *Manager) ListNamespaces(ctx context.Context) ([]string, error) {
	return run(ctx, m, m.catalog.Namespaces, "", "")
}

func (m *Manager) ListTables(ctx context.Context, namespace string) ([]string, error) {
	if _, err := identifier.Validate(namespace, m.caps.NamespacePurpose); err != nil {
		return nil, m.rejected(m.catalog.Tables.Op, err)
	}
	return run(ctx, m, m.catalog.Tables, namespace, "")
}

func (m *Manager) DescribeTable(ctx context.Context, namespace, table string) ([]Column, error) {
	if err := m.validatePair(m.catalog.Columns.Op, namespace, table); err != nil {
		return nil, err
	}
	return run(ctx, m, m.catalog.Columns, namespace, table)
}

func (m *Manager) ListIndexes(ctx context.Context, namespace, table string) ([]Index, error) {
	if err := m.validatePair(m.catalog.Indexes.Op, namespace, table); err != nil {
		return nil, err
	}
	return run(ctx, m, m.catalog.Indexes, namespace, table)
}

func (m *Manager) ListSecondary(ctx context.Context, namespace, table string) ([]SchemaObject, error) {
	q := m.catalog.Secondary
	if q.Arity > 1 || table != "" {
		if err := m.validatePair(q.Op, namespace, table); err != nil {
			return nil, err
		}
	} else if _, err := identifier.Validate(namespace, m.caps.NamespacePurpose); err != nil {
		return nil, m.rejected(q.Op, err)
	}

	objects, err := run(ctx, m, q, namespace, table)
	if err != nil || q.Arity > 1 || table == "" {
		return objects, err
	}

	filtered := make([]SchemaObject, 0, len(objects))
	for _, o := range objects {
		if o.BaseTable == table {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

func (m *Manager) validatePair(op, namespace, table string) error {
	if _, err := identifier.Validate(namespace, m.caps.NamespacePurpose); err != nil {
		return m.rejected(op, err)
	}
	if _, err := identifier.Validate(table, identifier.PurposeTable); err != nil {
		return m.rejected(op, err)
	}
	return nil
}

func (m *Manager) rejected(op string, err error) error {
	m.log.WarnWith("identifier rejected", err, map[string]interface{}{"op": op})
	return err
}

// run executes q on the manager's session and maps every row. Any failure
// after the session is up is reported as errs.ErrKindQueryFailed; partial
// results are never returned.
func run[T any](ctx context.Context, m *Manager, q Query[T], namespace, table string) ([]T, error) {
	session, err := m.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	args := []any{namespace, table}[:q.Arity]
	fail := func(stage string, err error) error {
		fields := map[string]interface{}{"op": q.Op, "stage": stage}
		if namespace != "" {
			fields["namespace"] = namespace
		}
		if table != "" {
			fields["table"] = table
		}
		m.log.ErrorWith("catalog query failed", err, fields)
		return errs.Wrap(errs.ErrKindQueryFailed, fmt.Sprintf("%s failed", q.Op), err)
	}

	rows, err := session.Query(ctx, q.Text, args...)
	if err != nil {
		return nil, fail("query", err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := q.Scan(rows)
		if err != nil {
			return nil, fail("scan", err)
		}
		if q.Keep != nil && !q.Keep(v) {
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("iterate", err)
	}

	if q.Compare != nil {
		slices.SortStableFunc(out, q.Compare)
	}
	return out, nil
}
