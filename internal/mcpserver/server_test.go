package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/database/databasetest"
	"github.com/koustreak/schemalens/internal/errs"
	"github.com/koustreak/schemalens/internal/identifier"
)

const (
	qNamespaces = "namespaces"
	qTables     = "tables"
	qColumns    = "columns"
	qIndexes    = "indexes"
	qSecondary  = "secondary"
)

func testCatalog(secondaryArity int) *database.Catalog {
	return &database.Catalog{
		Namespaces: database.Query[string]{Op: "namespaces", Text: qNamespaces, Scan: database.ScanString},
		Tables:     database.Query[string]{Op: "tables", Text: qTables, Arity: 1, Scan: database.ScanString},
		Columns: database.Query[database.Column]{
			Op: "columns", Text: qColumns, Arity: 2,
			Scan: func(r database.Rows) (database.Column, error) {
				var c database.Column
				err := r.Scan(&c.Name, &c.Type, &c.Nullable, &c.Default, &c.Position)
				return c, err
			},
		},
		Indexes: database.Query[database.Index]{
			Op: "indexes", Text: qIndexes, Arity: 2,
			Scan: func(r database.Rows) (database.Index, error) {
				var i database.Index
				err := r.Scan(&i.Name, &i.Definition)
				return i, err
			},
		},
		Secondary: database.Query[database.SchemaObject]{
			Op: "secondary", Text: qSecondary, Arity: secondaryArity,
			Scan: func(r database.Rows) (database.SchemaObject, error) {
				var o database.SchemaObject
				err := r.Scan(&o.Name, &o.Definition, &o.BaseTable)
				return o, err
			},
		},
	}
}

func relationalFake() *databasetest.Backend {
	return databasetest.New(database.KindPostgres, database.Capabilities{
		ReadOnly:          database.ReadOnlySessionDirective,
		ReadOnlyStatement: "SET READ ONLY",
		NamespacePurpose:  identifier.PurposeSchema,
	}, testCatalog(2))
}

func scyllaFake() *databasetest.Backend {
	return databasetest.New(database.KindScylla, database.Capabilities{
		ReadOnly:         database.ReadOnlyStructural,
		NamespacePurpose: identifier.PurposeKeyspace,
	}, testCatalog(1))
}

// connect starts s on an in-memory transport and returns a client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	ss, err := s.mcp.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func newServer(t *testing.T, b database.Backend) *Server {
	t.Helper()
	s, err := New(Config{Backend: b, Version: "test"})
	require.NoError(t, err)
	return s
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return tc.Text
}

func decode[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, res.IsError, "tool error: %s", text(t, res))
	var out T
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	return out
}

func toolNames(t *testing.T, cs *mcp.ClientSession) []string {
	t.Helper()
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)
	names := make([]string, 0, len(res.Tools))
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)
	return names
}

func TestConfig_Validate(t *testing.T) {
	var cfg Config
	err := cfg.Validate()
	assert.True(t, errs.IsConfiguration(err))

	cfg = Config{Backend: relationalFake()}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.Equal(t, defaultListenAddr, cfg.ListenAddr)
	assert.NotNil(t, cfg.Logger)

	cfg = Config{Backend: relationalFake(), Transport: "sse"}
	assert.True(t, errs.IsConfiguration(cfg.Validate()))
}

func TestServer_RelationalTools(t *testing.T) {
	cs := connect(t, newServer(t, relationalFake()))
	assert.Equal(t, []string{
		"describe_table", "get_table_constraints", "get_table_indexes", "list_schemas", "list_tables",
	}, toolNames(t, cs))
}

func TestServer_WideColumnTools(t *testing.T) {
	cs := connect(t, newServer(t, scyllaFake()))
	assert.Equal(t, []string{
		"describe_table", "get_materialized_views", "get_table_indexes", "list_keyspaces", "list_tables",
	}, toolNames(t, cs))
}

func TestServer_DescribeTable(t *testing.T) {
	fake := relationalFake().On(qColumns,
		[]any{"id", "integer", false, nil, 1},
		[]any{"email", "text", true, nil, 2},
	)
	cs := connect(t, newServer(t, fake))

	res := call(t, cs, "describe_table", map[string]any{"schema": "app", "table": "users"})
	out := decode[ColumnsOutput](t, res)
	assert.Equal(t, []database.Column{
		{Name: "id", Type: "integer", Nullable: false, Position: 1},
		{Name: "email", Type: "text", Nullable: true, Position: 2},
	}, out.Columns)

	sessions := fake.Sessions()
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Closed(), "each call must release its session")
	assert.Equal(t, []string{"SET READ ONLY"}, sessions[0].Execs())
}

func TestServer_EmptyListIsArray(t *testing.T) {
	cs := connect(t, newServer(t, relationalFake().On(qTables)))

	res := call(t, cs, "list_tables", map[string]any{"schema": "empty"})
	assert.JSONEq(t, `{"tables":[]}`, text(t, res))
}

func TestServer_EachCallGetsItsOwnSession(t *testing.T) {
	fake := relationalFake().On(qNamespaces, []any{"app"}, []any{"public"})
	cs := connect(t, newServer(t, fake))

	first := decode[SchemasOutput](t, call(t, cs, "list_schemas", map[string]any{}))
	second := decode[SchemasOutput](t, call(t, cs, "list_schemas", map[string]any{}))
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"app", "public"}, first.Schemas)

	assert.Equal(t, 2, fake.Dials())
	for _, s := range fake.Sessions() {
		assert.True(t, s.Closed())
	}
}

func TestServer_Errors(t *testing.T) {
	t.Run("validation", func(t *testing.T) {
		fake := relationalFake()
		cs := connect(t, newServer(t, fake))

		res := call(t, cs, "get_table_indexes", map[string]any{"schema": "app", "table": "users; DROP TABLE users"})
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), `invalid table name: "users; DROP TABLE users"`)
		assert.Equal(t, 0, fake.Dials())
	})

	t.Run("connection", func(t *testing.T) {
		fake := relationalFake()
		fake.DialErr = errors.New("password authentication failed for user \"reader\"")
		cs := connect(t, newServer(t, fake))

		res := call(t, cs, "list_schemas", map[string]any{})
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "connection_failed")
		assert.Contains(t, text(t, res), "password authentication failed")
	})

	t.Run("query", func(t *testing.T) {
		fake := relationalFake().Fail(qSecondary, errors.New("permission denied for table pg_constraint"))
		cs := connect(t, newServer(t, fake))

		res := call(t, cs, "get_table_constraints", map[string]any{"schema": "app", "table": "users"})
		assert.True(t, res.IsError)
		assert.Contains(t, text(t, res), "query_failed")
		assert.True(t, fake.Sessions()[0].Closed())
	})
}

func TestServer_MaterializedViews(t *testing.T) {
	fake := scyllaFake().On(qSecondary,
		[]any{"orders_by_customer", "", "orders"},
		[]any{"users_by_email", "", "users"},
	)
	cs := connect(t, newServer(t, fake))

	all := decode[ViewsOutput](t, call(t, cs, "get_materialized_views", map[string]any{"keyspace": "shop"}))
	assert.Len(t, all.MaterializedViews, 2)

	users := decode[ViewsOutput](t, call(t, cs, "get_materialized_views", map[string]any{"keyspace": "shop", "table": "users"}))
	assert.Equal(t, []database.SchemaObject{{Name: "users_by_email", BaseTable: "users"}}, users.MaterializedViews)
}

func TestServer_HTTP(t *testing.T) {
	fake := scyllaFake().On(qNamespaces, []any{"shop"})
	s := newServer(t, fake)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	ctx := context.Background()
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: ts.URL + "/mcp"}, nil)
	require.NoError(t, err)
	defer cs.Close()

	out := decode[KeyspacesOutput](t, call(t, cs, "list_keyspaces", map[string]any{}))
	assert.Equal(t, []string{"shop"}, out.Keyspaces)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "schemalens_tool_calls_total")
	assert.Contains(t, string(body), "schemalens_http_requests_total")
}
