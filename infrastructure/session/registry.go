// Package session owns the device session of every worker. A session is
// created on first use, checked for liveness before each send and rebuilt
// when the probe fails; it is never shared between workers.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/ports"
)

// Session is one worker's connection to the device. Device traffic is
// serialized per session; state reads never wait for it.
type Session struct {
	transport         ports.Transport
	saveConfigOnApply bool
	metrics           *Metrics
	logger            zerolog.Logger

	io sync.Mutex

	mu          sync.RWMutex
	state       entities.SessionState
	initialized bool
}

func (s *Session) Kind() entities.TransportKind { return s.transport.Kind() }

func (s *Session) State() entities.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// SaveConfigOnApply reports whether configuration changes are copied to
// startup-config after every apply
func (s *Session) SaveConfigOnApply() bool { return s.saveConfigOnApply }

// IsAlive reports the transport's liveness without reconnecting
func (s *Session) IsAlive() bool {
	s.io.Lock()
	defer s.io.Unlock()
	return s.alive()
}

func (s *Session) alive() bool {
	return s.State() == entities.StateReady && s.transport.IsAlive()
}

func (s *Session) setState(state entities.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics.transition(s.state, state)
	s.state = state
	if state == entities.StateReady {
		s.initialized = true
	}
}

func (s *Session) markInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
}

// open connects a session that never connected or whose last connect failed
func (s *Session) open(ctx context.Context) error {
	s.io.Lock()
	defer s.io.Unlock()
	switch s.State() {
	case entities.StateUninitialized, entities.StateFailed:
	default:
		return nil
	}
	if err := s.transport.Connect(ctx); err != nil {
		s.setState(entities.StateFailed)
		return err
	}
	s.setState(entities.StateReady)
	return nil
}

// Send runs commands, re-establishing the connection first when the
// liveness probe fails
func (s *Session) Send(ctx context.Context, commands []string, mode entities.Mode) ([]any, error) {
	s.io.Lock()
	defer s.io.Unlock()
	if !s.alive() {
		if err := s.reconnect(ctx); err != nil {
			return nil, err
		}
	}
	out, err := s.transport.Send(ctx, commands, mode)
	s.metrics.command(s.transport.Kind(), err)
	return out, err
}

// Reconnect closes the transport and connects it again
func (s *Session) Reconnect(ctx context.Context) error {
	s.io.Lock()
	defer s.io.Unlock()
	return s.reconnect(ctx)
}

func (s *Session) reconnect(ctx context.Context) error {
	s.setState(entities.StateReconnecting)
	s.logger.Info().Msg("session is not alive, reconnecting")
	_ = s.transport.Close()
	err := s.transport.Connect(ctx)
	s.metrics.reconnect(s.transport.Kind(), err)
	if err != nil {
		s.setState(entities.StateFailed)
		return err
	}
	s.setState(entities.StateReady)
	return nil
}

func (s *Session) close() error {
	s.io.Lock()
	defer s.io.Unlock()
	return s.transport.Close()
}

// Registry maps workers to their sessions. The map lock is never held
// across device I/O.
type Registry struct {
	mu       sync.Mutex
	sessions map[entities.WorkerID]*Session
	spec     entities.ConnectionSpec
	factory  ports.TransportFactory
	metrics  *Metrics
}

// NewRegistry creates an empty registry; metrics may be nil
func NewRegistry(spec entities.ConnectionSpec, factory ports.TransportFactory, metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Registry{
		sessions: make(map[entities.WorkerID]*Session),
		spec:     spec,
		factory:  factory,
		metrics:  metrics,
	}
}

// GetOrCreate returns the worker's session, connecting it on first use. A
// session whose last connect failed is retried here.
func (r *Registry) GetOrCreate(ctx context.Context, worker entities.WorkerID) (*Session, error) {
	s, err := r.entry(worker)
	if err != nil {
		return nil, err
	}
	return s, s.open(ctx)
}

func (r *Registry) entry(worker entities.WorkerID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[worker]; ok {
		return s, nil
	}
	transport, err := r.factory(r.spec)
	if err != nil {
		return nil, err
	}
	s := &Session{
		transport:         transport,
		saveConfigOnApply: r.spec.SaveConfig,
		state:             entities.StateUninitialized,
		metrics:           r.metrics,
		logger:            log.With().Str("component", "session").Str("worker", string(worker)).Str("host", r.spec.Endpoint()).Logger(),
	}
	r.sessions[worker] = s
	return s, nil
}

func (r *Registry) lookup(worker entities.WorkerID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[worker]
	return s, ok
}

// MarkInitialized records that the worker finished its startup sequence
func (r *Registry) MarkInitialized(worker entities.WorkerID) {
	if s, ok := r.lookup(worker); ok {
		s.markInitialized()
	}
}

// IsInitialized answers health checks before any command was sent
func (r *Registry) IsInitialized(worker entities.WorkerID) bool {
	s, ok := r.lookup(worker)
	return ok && s.Initialized()
}

// State reports the worker's session state
func (r *Registry) State(worker entities.WorkerID) entities.SessionState {
	if s, ok := r.lookup(worker); ok {
		return s.State()
	}
	return entities.StateUninitialized
}

// Workers lists the workers holding a session
func (r *Registry) Workers() []entities.WorkerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entities.WorkerID, 0, len(r.sessions))
	for w := range r.sessions {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close closes every transport. Entries stay registered and reconnect on
// their next send.
func (r *Registry) Close() error {
	var first error
	for _, worker := range r.Workers() {
		s, _ := r.lookup(worker)
		if err := s.close(); err != nil {
			s.logger.Warn().Err(err).Msg("closing session failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// WorkerSessions binds the registry to one worker
type WorkerSessions struct {
	registry *Registry
	worker   entities.WorkerID
}

// ForWorker returns the session provider of one worker
func (r *Registry) ForWorker(worker entities.WorkerID) WorkerSessions {
	return WorkerSessions{registry: r, worker: worker}
}

// Session connects the worker's session on first use
func (w WorkerSessions) Session(ctx context.Context) (ports.Session, error) {
	s, err := w.registry.GetOrCreate(ctx, w.worker)
	if err != nil {
		return nil, err
	}
	return s, nil
}

var (
	_ ports.SessionProvider = WorkerSessions{}
	_ ports.Session         = (*Session)(nil)
)
