package database

import (
	"context"
	"fmt"
	"time"

	"github.com/koustreak/schemalens/internal/errs"
	"github.com/koustreak/schemalens/internal/logger"
)

// closeTimeout bounds Close when the caller's context is already cancelled.
const closeTimeout = 5 * time.Second

// State is the lifecycle state of a Manager.
type State int

const (
	StateUnconnected State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unconnected"
	}
}

// Manager owns one lazily established, read-only Session.
//
// A Manager is not safe for concurrent use: each caller builds its own (see
// Use and With). Operations on one Manager run sequentially over the same
// session.
type Manager struct {
	backend Backend
	caps    Capabilities
	catalog *Catalog
	log     *logger.Logger

	state   State
	session Session
}

// NewManager returns an unconnected Manager for backend. A nil log discards output.
func NewManager(backend Backend, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		backend: backend,
		caps:    backend.Capabilities(),
		catalog: backend.Catalog(),
		log:     log.With().Str("backend", string(backend.Kind())).Logger(),
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	return m.state
}

// Connect establishes the session if there is no open one. It is called
// implicitly by every operation; calling it again while connected is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	_, err := m.ensureSession(ctx)
	return err
}

func (m *Manager) ensureSession(ctx context.Context) (Session, error) {
	switch m.state {
	case StateClosed:
		return nil, errs.New(errs.ErrKindConnectionFailed, "connection manager is closed")
	case StateConnected:
		if m.session.IsOpen() {
			return m.session, nil
		}
		m.log.Warn("session dropped, reconnecting")
		m.discard(ctx)
	}

	session, err := m.backend.Dial(ctx)
	if err != nil {
		return nil, m.connectFailed(fmt.Sprintf("connect to %s", m.backend.Kind()), err)
	}

	if m.caps.ReadOnly == ReadOnlySessionDirective {
		if err := session.Exec(ctx, m.caps.ReadOnlyStatement); err != nil {
			_ = session.Close(context.WithoutCancel(ctx))
			return nil, m.connectFailed("enforce read-only session", err)
		}
	}

	m.session = session
	m.state = StateConnected
	m.log.InfoWith("session established", map[string]interface{}{
		"read_only": m.caps.ReadOnly.String(),
	})
	return session, nil
}

// Close releases the session. Closing a never-connected or already closed
// Manager is a no-op. After Close every operation fails.
func (m *Manager) Close(ctx context.Context) error {
	if m.state == StateClosed {
		return nil
	}
	m.state = StateClosed
	if m.session == nil {
		return nil
	}

	session := m.session
	m.session = nil
	if err := session.Close(ctx); err != nil {
		m.log.WarnWith("session close failed", err, nil)
		return errs.Wrap(errs.ErrKindConnectionFailed, "close session", err)
	}
	m.log.Debug("session closed")
	return nil
}

// discard drops a session that is no longer open.
func (m *Manager) discard(ctx context.Context) {
	if m.session != nil {
		_ = m.session.Close(ctx)
	}
	m.session = nil
	m.state = StateUnconnected
}

func (m *Manager) connectFailed(msg string, err error) error {
	m.log.ErrorWith(msg, err, nil)
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}

// Use runs fn with a fresh Manager and closes it on every exit path, panics
// included. Close runs detached from ctx cancellation so a cancelled call
// still releases its session.
func Use(ctx context.Context, backend Backend, log *logger.Logger, fn func(Introspector) error) error {
	m := NewManager(backend, log)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = m.Close(closeCtx)
	}()
	return fn(m)
}

// With is Use for functions that produce a value.
func With[T any](ctx context.Context, backend Backend, log *logger.Logger, fn func(Introspector) (T, error)) (T, error) {
	var out T
	err := Use(ctx, backend, log, func(in Introspector) error {
		var err error
		out, err = fn(in)
		return err
	})
	return out, err
}
