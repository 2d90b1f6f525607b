package postgres

import "github.com/koustreak/schemalens/internal/database"

// information_schema columns are domain types; the ::text / ::int casts keep
// scanning independent of how pgx maps them.
const (
	listSchemasSQL = `
		SELECT schema_name::text
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'pg_catalog')
		  AND schema_name NOT LIKE 'pg_toast%'
		  AND schema_name NOT LIKE 'pg_temp%'
		ORDER BY schema_name`

	listTablesSQL = `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type   = 'BASE TABLE'
		ORDER BY table_name`

	describeTableSQL = `
		SELECT column_name::text,
		       data_type::text,
		       is_nullable = 'YES',
		       column_default::text,
		       ordinal_position::int
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name   = $2
		ORDER BY ordinal_position`

	listIndexesSQL = `
		SELECT indexname::text, indexdef
		FROM pg_indexes
		WHERE schemaname = $1
		  AND tablename  = $2
		ORDER BY indexname`

	listConstraintsSQL = `
		SELECT c.conname::text, pg_get_constraintdef(c.oid)
		FROM pg_constraint c
		JOIN pg_namespace n ON n.oid = c.connamespace
		JOIN pg_class t     ON t.oid = c.conrelid
		WHERE n.nspname = $1
		  AND t.relname = $2
		ORDER BY c.conname`
)

var catalog = &database.Catalog{
	Namespaces: database.Query[string]{
		Op:   "list_schemas",
		Text: listSchemasSQL,
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
		Scan:  scanColumn,
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

func scanColumn(r database.Rows) (database.Column, error) {
	var c database.Column
	err := r.Scan(&c.Name, &c.Type, &c.Nullable, &c.Default, &c.Position)
	return c, err
}
