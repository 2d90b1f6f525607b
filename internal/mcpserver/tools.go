package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/errs"
	"github.com/koustreak/schemalens/internal/mcpserver/metrics"
)

// --- relational inputs ---

type ListSchemasInput struct{}

type SchemaInput struct {
	Schema string `json:"schema" jsonschema:"schema (PostgreSQL) or database (MySQL) name"`
}

type TableInput struct {
	Schema string `json:"schema" jsonschema:"schema (PostgreSQL) or database (MySQL) name"`
	Table  string `json:"table" jsonschema:"table name"`
}

// --- wide-column inputs ---

type ListKeyspacesInput struct{}

type KeyspaceInput struct {
	Keyspace string `json:"keyspace" jsonschema:"keyspace name"`
}

type KeyspaceTableInput struct {
	Keyspace string `json:"keyspace" jsonschema:"keyspace name"`
	Table    string `json:"table" jsonschema:"table name"`
}

type ViewsInput struct {
	Keyspace string `json:"keyspace" jsonschema:"keyspace name"`
	Table    string `json:"table,omitempty" jsonschema:"only return views of this base table"`
}

// --- outputs ---

type SchemasOutput struct {
	Schemas []string `json:"schemas"`
}

type KeyspacesOutput struct {
	Keyspaces []string `json:"keyspaces"`
}

type TablesOutput struct {
	Tables []string `json:"tables"`
}

type ColumnsOutput struct {
	Columns []database.Column `json:"columns"`
}

type IndexesOutput struct {
	Indexes []database.Index `json:"indexes"`
}

type ConstraintsOutput struct {
	Constraints []database.SchemaObject `json:"constraints"`
}

type ViewsOutput struct {
	MaterializedViews []database.SchemaObject `json:"materialized_views"`
}

// toolFunc runs one tool against an Introspector scoped to the call.
type toolFunc[In, Out any] func(ctx context.Context, in database.Introspector, req In) (Out, error)

// addTool registers a tool whose every call gets a fresh connection manager,
// closed before the result is returned.
func addTool[In, Out any](s *Server, name, description string, run toolFunc[In, Out]) error {
	inSchema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("failed to create %s input schema: %w", name, err)
	}
	outSchema, err := jsonschema.For[Out](nil)
	if err != nil {
		return fmt.Errorf("failed to create %s output schema: %w", name, err)
	}

	backend := string(s.cfg.Backend.Kind())
	log := s.log.With().Str("tool", name).Logger()

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:         name,
		Description:  description,
		InputSchema:  inSchema,
		OutputSchema: outSchema,
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req In) (*mcp.CallToolResult, Out, error) {
		start := time.Now()
		log.DebugWith("mcp/tool: handling call", map[string]interface{}{"args": req})

		out, err := database.With(ctx, s.cfg.Backend, log, func(in database.Introspector) (Out, error) {
			return run(ctx, in, req)
		})
		metrics.ToolCallDuration.WithLabelValues(name, backend).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(name, backend, errs.KindOf(err).String()).Inc()
			var zero Out
			return nil, zero, err
		}
		metrics.ToolCallsTotal.WithLabelValues(name, backend, "success").Inc()
		return nil, out, nil
	})
	return nil
}

func (s *Server) registerTools() error {
	if s.cfg.Backend.Kind() == database.KindScylla {
		return s.registerWideColumnTools()
	}
	return s.registerRelationalTools()
}

func (s *Server) registerRelationalTools() error {
	if err := addTool(s, "list_schemas",
		"List all non-system schemas (PostgreSQL) or databases (MySQL), alphabetically.",
		func(ctx context.Context, in database.Introspector, _ ListSchemasInput) (SchemasOutput, error) {
			v, err := in.ListNamespaces(ctx)
			return SchemasOutput{Schemas: v}, err
		}); err != nil {
		return err
	}

	if err := addTool(s, "list_tables",
		"List the base tables in a schema, alphabetically.",
		func(ctx context.Context, in database.Introspector, req SchemaInput) (TablesOutput, error) {
			v, err := in.ListTables(ctx, req.Schema)
			return TablesOutput{Tables: v}, err
		}); err != nil {
		return err
	}

	if err := addTool(s, "describe_table",
		"Describe the columns of a table in ordinal order: name, type, nullability, default and position.",
		func(ctx context.Context, in database.Introspector, req TableInput) (ColumnsOutput, error) {
			v, err := in.DescribeTable(ctx, req.Schema, req.Table)
			return ColumnsOutput{Columns: v}, err
		}); err != nil {
		return err
	}

	if err := addTool(s, "get_table_indexes",
		"List the indexes of a table with their definitions, by name.",
		func(ctx context.Context, in database.Introspector, req TableInput) (IndexesOutput, error) {
			v, err := in.ListIndexes(ctx, req.Schema, req.Table)
			return IndexesOutput{Indexes: v}, err
		}); err != nil {
		return err
	}

	return addTool(s, "get_table_constraints",
		"List the constraints of a table (primary key, unique, foreign key, check) with their definitions, by name.",
		func(ctx context.Context, in database.Introspector, req TableInput) (ConstraintsOutput, error) {
			v, err := in.ListSecondary(ctx, req.Schema, req.Table)
			return ConstraintsOutput{Constraints: v}, err
		})
}

func (s *Server) registerWideColumnTools() error {
	if err := addTool(s, "list_keyspaces",
		"List all non-system keyspaces, alphabetically.",
		func(ctx context.Context, in database.Introspector, _ ListKeyspacesInput) (KeyspacesOutput, error) {
			v, err := in.ListNamespaces(ctx)
			return KeyspacesOutput{Keyspaces: v}, err
		}); err != nil {
		return err
	}

	if err := addTool(s, "list_tables",
		"List the tables in a keyspace, alphabetically.",
		func(ctx context.Context, in database.Introspector, req KeyspaceInput) (TablesOutput, error) {
			v, err := in.ListTables(ctx, req.Keyspace)
			return TablesOutput{Tables: v}, err
		}); err != nil {
		return err
	}

	if err := addTool(s, "describe_table",
		"Describe the columns of a table: partition key columns first, then clustering, static and regular columns.",
		func(ctx context.Context, in database.Introspector, req KeyspaceTableInput) (ColumnsOutput, error) {
			v, err := in.DescribeTable(ctx, req.Keyspace, req.Table)
			return ColumnsOutput{Columns: v}, err
		}); err != nil {
		return err
	}

	if err := addTool(s, "get_table_indexes",
		"List the secondary indexes of a table with their kind and options, by name.",
		func(ctx context.Context, in database.Introspector, req KeyspaceTableInput) (IndexesOutput, error) {
			v, err := in.ListIndexes(ctx, req.Keyspace, req.Table)
			return IndexesOutput{Indexes: v}, err
		}); err != nil {
		return err
	}

	return addTool(s, "get_materialized_views",
		"List the materialized views of a keyspace with their base tables, by name. Pass table to restrict to one base table.",
		func(ctx context.Context, in database.Introspector, req ViewsInput) (ViewsOutput, error) {
			v, err := in.ListSecondary(ctx, req.Keyspace, req.Table)
			return ViewsOutput{MaterializedViews: v}, err
		})
}
