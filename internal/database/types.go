package database

// Column describes a single column in a table
type Column struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	Default  *string `json:"default"` // nil if no default
	Position int     `json:"position"`

	// Kind is the wide-column key role: partition_key, clustering, static or
	// regular. Empty for relational backends.
	Kind string `json:"kind,omitempty"`
}

// Index describes an index on a table
type Index struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
	Kind       string `json:"kind,omitempty"`
}

// SchemaObject is a table-dependent object that is not an index: a
// constraint on relational backends, a materialized view on Scylla.
type SchemaObject struct {
	Name       string `json:"name"`
	Definition string `json:"definition,omitempty"`
	BaseTable  string `json:"base_table,omitempty"`
}
