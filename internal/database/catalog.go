package database

// Query is one catalog query together with the code that turns its rows into
// result values.
type Query[T any] struct {
	// Op is the tool-facing operation name, used in logs and errors.
	Op string

	// Text is the SQL/CQL statement. Identifiers are never spliced into it;
	// they are bound as the first Arity parameters (namespace, then table).
	Text  string
	Arity int

	Scan func(Rows) (T, error)

	// Keep filters rows the backend cannot exclude server-side. nil keeps all.
	Keep func(T) bool

	// Compare sorts results the backend cannot order server-side. nil keeps
	// row order.
	Compare func(a, b T) int
}

// Catalog is the per-backend set of introspection queries.
type Catalog struct {
	Namespaces Query[string]
	Tables     Query[string]
	Columns    Query[Column]
	Indexes    Query[Index]

	// Secondary lists constraints (relational) or materialized views
	// (wide-column). With Arity 1 the table argument is optional and, when
	// given, matched against SchemaObject.BaseTable.
	Secondary Query[SchemaObject]
}

// ScanString reads a single text column. Most namespace and table queries use it.
func ScanString(r Rows) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}
