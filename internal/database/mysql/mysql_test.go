package mysql

import (
	"context"
	"database/sql/driver"
	"fmt"
	"testing"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemalens/internal/config"
	"github.com/koustreak/schemalens/internal/database"
	"github.com/koustreak/schemalens/internal/database/databasetest"
	"github.com/koustreak/schemalens/internal/errs"
)

func TestDriverConfig(t *testing.T) {
	c := driverConfig(config.MySQL{
		Host:           "db.internal",
		User:           "reader",
		Password:       "p@ss;w=rd",
		Database:       "shop",
		ConnectTimeout: 3 * time.Second,
	})

	assert.Equal(t, "tcp", c.Net)
	assert.Equal(t, "db.internal:3306", c.Addr)
	assert.Equal(t, "shop", c.DBName)
	assert.Equal(t, 3*time.Second, c.Timeout)
	assert.False(t, c.MultiStatements)

	dsn := c.FormatDSN()
	assert.NotContains(t, dsn, "multiStatements")

	parsed, err := gomysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "p@ss;w=rd", parsed.Passwd)
	assert.Equal(t, "reader", parsed.User)
}

func TestDriverConfig_NoDatabase(t *testing.T) {
	c := driverConfig(config.MySQL{Host: "localhost", Port: 3307, User: "u", Password: "p"})
	assert.Equal(t, "localhost:3307", c.Addr)
	assert.Empty(t, c.DBName)
}

func TestBackend_Capabilities(t *testing.T) {
	b := New(config.MySQL{})
	caps := b.Capabilities()

	assert.Equal(t, database.KindMySQL, b.Kind())
	assert.Equal(t, database.ReadOnlySessionDirective, caps.ReadOnly)
	assert.Equal(t, "SET SESSION TRANSACTION READ ONLY", caps.ReadOnlyStatement)
	assert.Equal(t, "database name", caps.NamespacePurpose)
}

func TestBackend_DialUnreachable(t *testing.T) {
	b := New(config.MySQL{
		Host:           "127.0.0.1",
		Port:           1,
		User:           "u",
		Password:       "p",
		ConnectTimeout: 2 * time.Second,
	})

	_, err := database.With(context.Background(), b, nil, func(in database.Introspector) ([]string, error) {
		return in.ListNamespaces(context.Background())
	})
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestSession_ObserveMarksBroken(t *testing.T) {
	tests := []struct {
		err    error
		broken bool
	}{
		{err: nil, broken: false},
		{err: fmt.Errorf("query: %w", driver.ErrBadConn), broken: true},
		{err: gomysql.ErrInvalidConn, broken: true},
		{err: &gomysql.MySQLError{Number: 1146, Message: "Table 'shop.nope' doesn't exist"}, broken: false},
	}

	for _, tt := range tests {
		s := &session{}
		s.observe(tt.err)
		assert.Equal(t, !tt.broken, s.IsOpen(), "err=%v", tt.err)
	}
}

func TestCatalog_ThroughManager(t *testing.T) {
	b := New(config.MySQL{})
	fake := databasetest.New(b.Kind(), b.Capabilities(), b.Catalog()).
		On(listDatabasesSQL, []any{"inventory"}, []any{"shop"}).
		On(describeTableSQL,
			[]any{"id", "int unsigned", false, nil, 1},
			[]any{"status", "varchar(16)", true, "new", 2},
		).
		On(listIndexesSQL, []any{"PRIMARY", "UNIQUE INDEX PRIMARY USING BTREE (id)"}).
		On(listConstraintsSQL)

	ctx := context.Background()
	err := database.Use(ctx, fake, nil, func(in database.Introspector) error {
		dbs, err := in.ListNamespaces(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"inventory", "shop"}, dbs)

		cols, err := in.DescribeTable(ctx, "shop", "orders")
		require.NoError(t, err)
		require.Len(t, cols, 2)
		assert.Equal(t, "int unsigned", cols[0].Type)
		require.NotNil(t, cols[1].Default)
		assert.Equal(t, "new", *cols[1].Default)

		idx, err := in.ListIndexes(ctx, "shop", "orders")
		require.NoError(t, err)
		assert.Equal(t, []database.Index{{Name: "PRIMARY", Definition: "UNIQUE INDEX PRIMARY USING BTREE (id)"}}, idx)

		cons, err := in.ListSecondary(ctx, "shop", "orders")
		require.NoError(t, err)
		assert.Equal(t, []database.SchemaObject{}, cons)

		_, err = in.ListTables(ctx, "shop`; DROP DATABASE shop; --")
		assert.True(t, errs.IsValidation(err))
		return nil
	})
	require.NoError(t, err)

	s := fake.Sessions()[0]
	assert.Equal(t, []string{readOnlyStatement}, s.Execs())
	assert.Len(t, s.Calls(), 4)
	assert.True(t, s.Closed())
}

func TestCatalog_UsesPlaceholders(t *testing.T) {
	for _, text := range []string{listTablesSQL, describeTableSQL, listIndexesSQL, listConstraintsSQL} {
		assert.Contains(t, text, "?")
		assert.NotContains(t, text, "$1")
	}
	assert.Contains(t, listDatabasesSQL, "'performance_schema'")
}
