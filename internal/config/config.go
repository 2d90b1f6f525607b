// Package config loads backend connection settings.
//
// Every setting has an environment variable name of the form SECTION_KEY
// (POSTGRES_HOST, SCYLLA_CONSISTENCY, ...). A value is taken from the
// environment first, then from the optional YAML file (section "postgres",
// key "host"), then from the built-in default. Settings are read once; the
// returned structs are immutable values.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/schemalens/internal/errs"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Postgres holds PostgreSQL connection settings.
type Postgres struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	ConnectTimeout time.Duration
}

// MySQL holds MySQL connection settings. Database is optional; it only
// selects the default database of the session.
type MySQL struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	ConnectTimeout time.Duration
}

// Scylla holds Cassandra/ScyllaDB cluster settings.
type Scylla struct {
	Hosts       []string
	Port        int
	User        string
	Password    string
	Consistency string
	LocalDC     string
	Timeout     time.Duration
}

// Authenticated reports whether credentials should be sent. Both user and
// password must be set; one without the other is ignored.
func (s Scylla) Authenticated() bool {
	return s.User != "" && s.Password != ""
}

// Log holds logger settings.
type Log struct {
	Level  string
	Format string
}

// Server holds MCP transport settings.
type Server struct {
	Transport string
	Listen    string
}

// Source resolves settings from the environment and an optional YAML file.
type Source struct {
	lookup LookupFunc
	file   map[string]map[string]string
}

// NewSource reads the YAML file at path, if path is non-empty. A nil lookup
// means os.LookupEnv.
func NewSource(path string, lookup LookupFunc) (*Source, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	s := &Source{lookup: lookup, file: map[string]map[string]string{}}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "read config file", err)
	}
	if err := yaml.Unmarshal(data, &s.file); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("parse config file %s", path), err)
	}
	return s, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. Variables already set are left untouched.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("load env file %s", path), err)
	}
	return nil
}

// Postgres resolves the POSTGRES_* settings.
func (s *Source) Postgres() (Postgres, error) {
	r := s.reader("postgres")
	cfg := Postgres{
		Host:           r.str("host", "localhost"),
		Port:           r.port("port", 5432),
		User:           r.required("user"),
		Password:       r.required("password"),
		Database:       r.required("database"),
		SSLMode:        r.str("sslmode", "prefer"),
		ConnectTimeout: r.duration("connect_timeout", 10*time.Second),
	}
	return cfg, r.err()
}

// MySQL resolves the MYSQL_* settings.
func (s *Source) MySQL() (MySQL, error) {
	r := s.reader("mysql")
	cfg := MySQL{
		Host:           r.str("host", "localhost"),
		Port:           r.port("port", 3306),
		User:           r.required("user"),
		Password:       r.required("password"),
		Database:       r.str("database", ""),
		ConnectTimeout: r.duration("connect_timeout", 10*time.Second),
	}
	return cfg, r.err()
}

// Scylla resolves the SCYLLA_* settings.
func (s *Source) Scylla() (Scylla, error) {
	r := s.reader("scylla")
	cfg := Scylla{
		Hosts:       splitHosts(r.str("host", "localhost")),
		Port:        r.port("port", 9042),
		User:        r.str("user", ""),
		Password:    r.str("password", ""),
		Consistency: strings.ToUpper(r.str("consistency", "LOCAL_ONE")),
		LocalDC:     r.str("local_dc", ""),
		Timeout:     r.duration("timeout", 10*time.Second),
	}
	if len(cfg.Hosts) == 0 {
		r.missing = append(r.missing, r.env("host"))
	}
	if _, err := gocql.ParseConsistencyWrapper(cfg.Consistency); err != nil {
		r.invalid = append(r.invalid, fmt.Sprintf("%s: unknown consistency %q", r.env("consistency"), cfg.Consistency))
	}
	return cfg, r.err()
}

// Log resolves LOG_LEVEL and LOG_FORMAT.
func (s *Source) Log() Log {
	r := s.reader("log")
	return Log{
		Level:  r.str("level", "info"),
		Format: r.str("format", "json"),
	}
}

// Server resolves SERVER_TRANSPORT and SERVER_LISTEN.
func (s *Source) Server() Server {
	r := s.reader("server")
	return Server{
		Transport: r.str("transport", "stdio"),
		Listen:    r.str("listen", "127.0.0.1:8080"),
	}
}

// reader resolves the keys of one section and collects every problem so a
// single error can name all of them.
type reader struct {
	src     *Source
	section string
	missing []string
	invalid []string
}

func (s *Source) reader(section string) *reader {
	return &reader{src: s, section: section}
}

func (r *reader) env(key string) string {
	return strings.ToUpper(r.section + "_" + key)
}

func (r *reader) value(key string) (string, bool) {
	if v, ok := r.src.lookup(r.env(key)); ok && v != "" {
		return v, true
	}
	if v, ok := r.src.file[r.section][key]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (r *reader) str(key, def string) string {
	if v, ok := r.value(key); ok {
		return v
	}
	return def
}

func (r *reader) required(key string) string {
	v, ok := r.value(key)
	if !ok {
		r.missing = append(r.missing, r.env(key))
	}
	return v
}

func (r *reader) port(key string, def int) int {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	p, err := strconv.Atoi(v)
	if err != nil || p < 1 || p > 65535 {
		r.invalid = append(r.invalid, fmt.Sprintf("%s: invalid port %q", r.env(key), v))
		return def
	}
	return p
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.value(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare numbers are seconds
		secs, aerr := strconv.Atoi(v)
		if aerr != nil || secs <= 0 {
			r.invalid = append(r.invalid, fmt.Sprintf("%s: invalid duration %q", r.env(key), v))
			return def
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		r.invalid = append(r.invalid, fmt.Sprintf("%s: duration must be positive", r.env(key)))
		return def
	}
	return d
}

func (r *reader) err() error {
	if len(r.missing) == 0 && len(r.invalid) == 0 {
		return nil
	}
	var parts []string
	if len(r.missing) > 0 {
		sort.Strings(r.missing)
		parts = append(parts, "missing required settings: "+strings.Join(r.missing, ", "))
	}
	parts = append(parts, r.invalid...)
	return errs.New(errs.ErrKindConfiguration, strings.Join(parts, "; "))
}

func splitHosts(s string) []string {
	hosts := make([]string, 0, 1)
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}
