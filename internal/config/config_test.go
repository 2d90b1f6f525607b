package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/schemalens/internal/errs"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestPostgres_Defaults(t *testing.T) {
	src, err := NewSource("", env(map[string]string{
		"POSTGRES_USER":     "reader",
		"POSTGRES_PASSWORD": "secret",
		"POSTGRES_DATABASE": "app",
	}))
	require.NoError(t, err)

	cfg, err := src.Postgres()
	require.NoError(t, err)
	assert.Equal(t, Postgres{
		Host:           "localhost",
		Port:           5432,
		User:           "reader",
		Password:       "secret",
		Database:       "app",
		SSLMode:        "prefer",
		ConnectTimeout: 10 * time.Second,
	}, cfg)
}

func TestPostgres_MissingRequiredListsAll(t *testing.T) {
	src, err := NewSource("", env(map[string]string{"POSTGRES_USER": ""}))
	require.NoError(t, err)

	_, err = src.Postgres()
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Contains(t, err.Error(), "POSTGRES_DATABASE, POSTGRES_PASSWORD, POSTGRES_USER")
}

func TestPostgres_InvalidValues(t *testing.T) {
	src, err := NewSource("", env(map[string]string{
		"POSTGRES_USER":            "u",
		"POSTGRES_PASSWORD":        "p",
		"POSTGRES_DATABASE":        "d",
		"POSTGRES_PORT":            "fivefourthreetwo",
		"POSTGRES_CONNECT_TIMEOUT": "-3s",
	}))
	require.NoError(t, err)

	_, err = src.Postgres()
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
	assert.Contains(t, err.Error(), "POSTGRES_PORT")
	assert.Contains(t, err.Error(), "POSTGRES_CONNECT_TIMEOUT")
}

func TestDuration_BareSeconds(t *testing.T) {
	src, err := NewSource("", env(map[string]string{
		"MYSQL_USER":            "u",
		"MYSQL_PASSWORD":        "p",
		"MYSQL_CONNECT_TIMEOUT": "3",
	}))
	require.NoError(t, err)

	cfg, err := src.MySQL()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3306, cfg.Port)
	assert.Empty(t, cfg.Database)
}

func TestScylla(t *testing.T) {
	tests := []struct {
		name     string
		vars     map[string]string
		wantErr  bool
		wantAuth bool
		check    func(t *testing.T, cfg Scylla)
	}{
		{
			name: "defaults",
			vars: map[string]string{},
			check: func(t *testing.T, cfg Scylla) {
				assert.Equal(t, []string{"localhost"}, cfg.Hosts)
				assert.Equal(t, 9042, cfg.Port)
				assert.Equal(t, "LOCAL_ONE", cfg.Consistency)
				assert.Equal(t, 10*time.Second, cfg.Timeout)
			},
		},
		{
			name: "contact points",
			vars: map[string]string{"SCYLLA_HOST": "10.0.0.1, 10.0.0.2,,"},
			check: func(t *testing.T, cfg Scylla) {
				assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Hosts)
			},
		},
		{
			name:     "user and password",
			vars:     map[string]string{"SCYLLA_USER": "cassandra", "SCYLLA_PASSWORD": "cassandra"},
			wantAuth: true,
		},
		{
			name: "user without password",
			vars: map[string]string{"SCYLLA_USER": "cassandra"},
		},
		{
			name: "lower-case consistency",
			vars: map[string]string{"SCYLLA_CONSISTENCY": "quorum"},
			check: func(t *testing.T, cfg Scylla) {
				assert.Equal(t, "QUORUM", cfg.Consistency)
			},
		},
		{
			name:    "unknown consistency",
			vars:    map[string]string{"SCYLLA_CONSISTENCY": "MOST"},
			wantErr: true,
		},
		{
			name:    "only separators",
			vars:    map[string]string{"SCYLLA_HOST": " , "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewSource("", env(tt.vars))
			require.NoError(t, err)

			cfg, err := src.Scylla()
			if tt.wantErr {
				assert.True(t, errs.IsConfiguration(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAuth, cfg.Authenticated())
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestSource_YAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemalens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres:
  host: db.internal
  port: 6432
  user: yaml-user
  password: yaml-pass
  database: app
log:
  level: debug
server:
  transport: http
`), 0o600))

	src, err := NewSource(path, env(map[string]string{"POSTGRES_USER": "env-user"}))
	require.NoError(t, err)

	cfg, err := src.Postgres()
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6432, cfg.Port)
	assert.Equal(t, "env-user", cfg.User)
	assert.Equal(t, "yaml-pass", cfg.Password)

	assert.Equal(t, Log{Level: "debug", Format: "json"}, src.Log())
	assert.Equal(t, Server{Transport: "http", Listen: "127.0.0.1:8080"}, src.Server())
}

func TestSource_FileErrors(t *testing.T) {
	_, err := NewSource(filepath.Join(t.TempDir(), "missing.yaml"), env(nil))
	assert.True(t, errs.IsConfiguration(err))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("postgres: [unterminated"), 0o600))
	_, err = NewSource(bad, env(nil))
	assert.True(t, errs.IsConfiguration(err))
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCHEMALENS_TEST_DOTENV=from-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("SCHEMALENS_TEST_DOTENV") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("SCHEMALENS_TEST_DOTENV"))

	err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env"))
	assert.True(t, errs.IsConfiguration(err))
}
