// Package databasetest provides an in-memory database.Backend for tests that
// exercise the Manager and the MCP tool layer without a live server.
package databasetest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/koustreak/schemalens/internal/database"
)

// Call records one Query issued against a fake session.
type Call struct {
	Text string
	Args []any
}

// Backend is a scripted database.Backend. Rows are keyed by query text so a
// test can point them at the real catalog of the backend under test.
type Backend struct {
	KindValue database.Kind
	Caps      database.Capabilities
	Cat       *database.Catalog

	// DialErr, when set, fails every Dial.
	DialErr error
	// ExecErr, when set, fails the read-only directive.
	ExecErr error
	// CloseErr is returned from Session.Close.
	CloseErr error

	mu       sync.Mutex
	rows     map[string][][]any
	errs     map[string]error
	iterErrs map[string]error
	dials    int
	sessions []*Session
}

// New returns a fake with the given catalog, reporting itself as kind.
func New(kind database.Kind, caps database.Capabilities, cat *database.Catalog) *Backend {
	return &Backend{
		KindValue: kind,
		Caps:      caps,
		Cat:       cat,
		rows:      make(map[string][][]any),
		errs:      make(map[string]error),
		iterErrs:  make(map[string]error),
	}
}

// On scripts the rows returned for query text.
func (b *Backend) On(text string, rows ...[]any) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rows[text] = rows
	return b
}

// Fail makes query text fail at Query time.
func (b *Backend) Fail(text string, err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs[text] = err
	return b
}

// FailIteration makes query text return its rows and then err from Rows.Err.
func (b *Backend) FailIteration(text string, err error) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.iterErrs[text] = err
	return b
}

func (b *Backend) Kind() database.Kind                 { return b.KindValue }
func (b *Backend) Capabilities() database.Capabilities { return b.Caps }
func (b *Backend) Catalog() *database.Catalog          { return b.Cat }

func (b *Backend) Dial(ctx context.Context) (database.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.DialErr != nil {
		return nil, b.DialErr
	}
	s := &Session{backend: b, open: true}
	b.sessions = append(b.sessions, s)
	return s, nil
}

// Dials reports how many times Dial was called.
func (b *Backend) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Sessions returns every session dialed so far, oldest first.
func (b *Backend) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Session(nil), b.sessions...)
}

// Session is a fake database.Session.
type Session struct {
	backend *Backend

	mu     sync.Mutex
	open   bool
	closed bool
	execs  []string
	calls  []Call
}

func (s *Session) Query(ctx context.Context, text string, args ...any) (database.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Text: text, Args: args})
	s.mu.Unlock()

	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.errs[text]; ok {
		return nil, err
	}
	rows, ok := b.rows[text]
	if !ok {
		return nil, fmt.Errorf("databasetest: unscripted query %q", text)
	}
	return &Rows{data: rows, pos: -1, err: b.iterErrs[text]}, nil
}

func (s *Session) Exec(ctx context.Context, stmt string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.execs = append(s.execs, stmt)
	s.mu.Unlock()
	return s.backend.ExecErr
}

func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && !s.closed
}

func (s *Session) Close(context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.backend.CloseErr
}

// Drop simulates the server dropping the connection.
func (s *Session) Drop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Execs returns the statements passed to Exec.
func (s *Session) Execs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.execs...)
}

// Calls returns the queries issued on this session.
func (s *Session) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Rows iterates scripted values. Scan assigns by reflection, so dest types
// must be assignable from the scripted values (or pointers to them).
type Rows struct {
	data   [][]any
	pos    int
	err    error
	closed bool
}

func (r *Rows) Next() bool {
	if r.closed || r.pos+1 >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.data) {
		return errors.New("databasetest: scan outside of row")
	}
	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("databasetest: scan %d values into %d destinations", len(row), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return fmt.Errorf("databasetest: column %d: %w", i, err)
		}
	}
	return nil
}

func (r *Rows) Close() { r.closed = true }

func (r *Rows) Err() error { return r.err }

func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a non-nil pointer", dest)
	}
	target := dv.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(target.Type()):
		target.Set(v)
	case target.Kind() == reflect.Pointer && v.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(v)
		target.Set(p)
	case v.Type().ConvertibleTo(target.Type()) && v.Kind() == target.Kind():
		target.Set(v.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, target.Type())
	}
	return nil
}
