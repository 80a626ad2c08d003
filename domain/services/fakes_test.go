package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/ports"
	"github.com/carlosrabelo/nxproxy/platform/nxos"
)

type sentBatch struct {
	line string
	mode entities.Mode
}

// mockSession answers batches from scripted replies keyed by the joined
// command line. Replies are consumed in order; the last one repeats.
type mockSession struct {
	kind         entities.TransportKind
	alive        bool
	reconnectErr error
	reconnects   int
	save         bool
	sent         []sentBatch
	replies      map[string][][]any
	errs         map[string]error
}

func newMockSession(kind entities.TransportKind) *mockSession {
	return &mockSession{
		kind:    kind,
		alive:   true,
		replies: map[string][][]any{},
		errs:    map[string]error{},
	}
}

func (m *mockSession) reply(line string, out ...any) *mockSession {
	m.replies[line] = append(m.replies[line], out)
	return m
}

func (m *mockSession) Kind() entities.TransportKind { return m.kind }

func (m *mockSession) Send(_ context.Context, commands []string, mode entities.Mode) ([]any, error) {
	line := entities.JoinBatch(commands)
	m.sent = append(m.sent, sentBatch{line: line, mode: mode})
	if err, ok := m.errs[line]; ok {
		return nil, err
	}
	queue := m.replies[line]
	switch len(queue) {
	case 0:
		return []any{""}, nil
	case 1:
		return queue[0], nil
	}
	m.replies[line] = queue[1:]
	return queue[0], nil
}

func (m *mockSession) IsAlive() bool { return m.alive }

func (m *mockSession) Reconnect(context.Context) error {
	m.reconnects++
	if m.reconnectErr != nil {
		return m.reconnectErr
	}
	m.alive = true
	return nil
}

func (m *mockSession) SaveConfigOnApply() bool { return m.save }

func (m *mockSession) lines() []string {
	out := make([]string, 0, len(m.sent))
	for _, b := range m.sent {
		out = append(out, b.line)
	}
	return out
}

type mockProvider struct {
	session ports.Session
	err     error
}

func (p *mockProvider) Session(context.Context) (ports.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.session, nil
}

func newTestDispatcher(s *mockSession) *Dispatcher {
	return NewDispatcher(&mockProvider{session: s}, nxos.New(), s.kind)
}

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}
