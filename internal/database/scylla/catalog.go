package scylla

import (
	"cmp"
	"sort"
	"strings"

	"github.com/koustreak/schemalens/internal/database"
)

// CQL cannot exclude rows with NOT IN or ORDER BY outside the partition key,
// so keyspace filtering and all ordering happen client-side.
const (
	listKeyspacesCQL = `SELECT keyspace_name FROM system_schema.keyspaces`

	listTablesCQL = `SELECT table_name FROM system_schema.tables WHERE keyspace_name = ?`

	describeTableCQL = `
		SELECT column_name, type, kind, position
		FROM system_schema.columns
		WHERE keyspace_name = ? AND table_name = ?`

	listIndexesCQL = `
		SELECT index_name, kind, options
		FROM system_schema.indexes
		WHERE keyspace_name = ? AND table_name = ?`

	listViewsCQL = `
		SELECT view_name, base_table_name
		FROM system_schema.views
		WHERE keyspace_name = ?`
)

// Column kinds as stored in system_schema.columns.
const (
	KindPartitionKey = "partition_key"
	KindClustering   = "clustering"
	KindStatic       = "static"
	KindRegular      = "regular"
)

var systemKeyspaces = map[string]bool{
	"system":             true,
	"system_schema":      true,
	"system_auth":        true,
	"system_distributed": true,
	"system_traces":      true,
}

// userKeyspace drops the built-in keyspaces, including the system_* variants
// newer Scylla releases add.
func userKeyspace(name string) bool {
	return !systemKeyspaces[name] && !strings.HasPrefix(name, "system_")
}

func kindRank(kind string) int {
	switch kind {
	case KindPartitionKey:
		return 0
	case KindClustering:
		return 1
	case KindStatic:
		return 2
	default:
		return 3
	}
}

func compareColumns(a, b database.Column) int {
	if c := cmp.Compare(kindRank(a.Kind), kindRank(b.Kind)); c != 0 {
		return c
	}
	return cmp.Compare(a.Position, b.Position)
}

func scanColumn(r database.Rows) (database.Column, error) {
	var c database.Column
	if err := r.Scan(&c.Name, &c.Type, &c.Kind, &c.Position); err != nil {
		return c, err
	}
	c.Nullable = c.Kind != KindPartitionKey && c.Kind != KindClustering
	return c, nil
}

func scanIndex(r database.Rows) (database.Index, error) {
	var (
		idx     database.Index
		options map[string]string
	)
	if err := r.Scan(&idx.Name, &idx.Kind, &options); err != nil {
		return idx, err
	}
	idx.Definition = formatOptions(options)
	return idx, nil
}

// formatOptions renders index options as "k1=v1, k2=v2" in key order.
func formatOptions(options map[string]string) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + options[k]
	}
	return strings.Join(parts, ", ")
}

var catalog = &database.Catalog{
	Namespaces: database.Query[string]{
		Op:      "list_keyspaces",
		Text:    listKeyspacesCQL,
		Scan:    database.ScanString,
		Keep:    userKeyspace,
		Compare: strings.Compare,
	},
	Tables: database.Query[string]{
		Op:      "list_tables",
		Text:    listTablesCQL,
		Arity:   1,
		Scan:    database.ScanString,
		Compare: strings.Compare,
	},
	Columns: database.Query[database.Column]{
		Op:      "describe_table",
		Text:    describeTableCQL,
		Arity:   2,
		Scan:    scanColumn,
		Compare: compareColumns,
	},
	Indexes: database.Query[database.Index]{
		Op:    "get_table_indexes",
		Text:  listIndexesCQL,
		Arity: 2,
		Scan:  scanIndex,
		Compare: func(a, b database.Index) int {
			return strings.Compare(a.Name, b.Name)
		},
	},
	Secondary: database.Query[database.SchemaObject]{
		Op:    "get_materialized_views",
		Text:  listViewsCQL,
		Arity: 1,
		Scan: func(r database.Rows) (database.SchemaObject, error) {
			var v database.SchemaObject
			err := r.Scan(&v.Name, &v.BaseTable)
			return v, err
		},
		Compare: func(a, b database.SchemaObject) int {
			return strings.Compare(a.Name, b.Name)
		},
	},
}
