package mysql

import "github.com/koustreak/schemalens/internal/database"

const (
	listDatabasesSQL = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
		ORDER BY schema_name`

	listTablesSQL = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	describeTableSQL = `
		SELECT column_name,
		       column_type,
		       is_nullable = 'YES',
		       column_default,
		       ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ?
		  AND table_name   = ?
		ORDER BY ordinal_position`

	// One row per index, rendered like SHOW CREATE TABLE would.
	listIndexesSQL = `
		SELECT index_name,
		       CONCAT(
		           IF(MAX(non_unique) = 0, 'UNIQUE ', ''),
		           'INDEX ', index_name,
		           ' USING ', MAX(index_type),
		           ' (', GROUP_CONCAT(COALESCE(column_name, expression) ORDER BY seq_in_index SEPARATOR ', '), ')'
		       )
		FROM information_schema.statistics
		WHERE table_schema = ?
		  AND table_name   = ?
		GROUP BY index_name
		ORDER BY index_name`

	listConstraintsSQL = `
		SELECT tc.constraint_name,
		       COALESCE(
		           CASE tc.constraint_type
		               WHEN 'CHECK' THEN CONCAT('CHECK ', MAX(cc.check_clause))
		               WHEN 'FOREIGN KEY' THEN CONCAT(
		                   'FOREIGN KEY (',
		                   GROUP_CONCAT(kcu.column_name ORDER BY kcu.ordinal_position SEPARATOR ', '),
		                   ') REFERENCES ', MAX(kcu.referenced_table_name), ' (',
		                   GROUP_CONCAT(kcu.referenced_column_name ORDER BY kcu.ordinal_position SEPARATOR ', '),
		                   ')')
		               ELSE CONCAT(
		                   tc.constraint_type, ' (',
		                   GROUP_CONCAT(kcu.column_name ORDER BY kcu.ordinal_position SEPARATOR ', '),
		                   ')')
		           END,
		           tc.constraint_type)
		FROM information_schema.table_constraints tc
		LEFT JOIN information_schema.key_column_usage kcu
		       ON kcu.constraint_schema = tc.constraint_schema
		      AND kcu.constraint_name   = tc.constraint_name
		      AND kcu.table_name        = tc.table_name
		LEFT JOIN information_schema.check_constraints cc
		       ON cc.constraint_schema = tc.constraint_schema
		      AND cc.constraint_name   = tc.constraint_name
		WHERE tc.table_schema = ?
		  AND tc.table_name   = ?
		GROUP BY tc.constraint_name, tc.constraint_type
		ORDER BY tc.constraint_name`
)

var catalog = &database.Catalog{
	Namespaces: database.Query[string]{
		Op:   "list_schemas",
		Text: listDatabasesSQL,
		Scan: database.ScanString,
	},
	Tables: database.Query[string]{
		Op:    "list_tables",
		Text:  listTablesSQL,
		Arity: 1,
		Scan:  database.ScanString,
	},
	Columns: database.Query[database.Column]{
		Op:    "describe_table",
		Text:  describeTableSQL,
		Arity: 2,
		Scan: func(r database.Rows) (database.Column, error) {
			var c database.Column
			err := r.Scan(&c.Name, &c.Type, &c.Nullable, &c.Default, &c.Position)
			return c, err
		},
	},
	Indexes: database.Query[database.Index]{
		Op:    "get_table_indexes",
		Text:  listIndexesSQL,
		Arity: 2,
		Scan: func(r database.Rows) (database.Index, error) {
			var idx database.Index
			err := r.Scan(&idx.Name, &idx.Definition)
			return idx, err
		},
	},
	Secondary: database.Query[database.SchemaObject]{
		Op:    "get_table_constraints",
		Text:  listConstraintsSQL,
		Arity: 2,
		Scan: func(r database.Rows) (database.SchemaObject, error) {
			var c database.SchemaObject
			err := r.Scan(&c.Name, &c.Definition)
			return c, err
		},
	},
}
