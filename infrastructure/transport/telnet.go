package transport

import (
	"context"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/ziutek/telnet"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
)

const (
	PromptLogin    = `(?i)(login|username):\s*$`
	PromptPassword = `(?i)password:\s*$`
)

// HintFeatureTelnet is logged when a Telnet session cannot be opened
const HintFeatureTelnet = `Verify that "feature telnet" is enabled on your NX-OS device`

// TelnetDialFunc opens a telnet connection; tests replace it
type TelnetDialFunc func(network, addr string, timeout time.Duration) (*telnet.Conn, error)

// TelnetTransport runs CLI commands over a Telnet session
type TelnetTransport struct {
	spec         entities.ConnectionSpec
	conn         *telnet.Conn
	term         *terminal
	authSequence []entities.AuthPrompt
	dial         TelnetDialFunc
	logger       zerolog.Logger
}

// NewTelnetTransport creates an unconnected Telnet transport
func NewTelnetTransport(spec entities.ConnectionSpec) *TelnetTransport {
	return &TelnetTransport{
		spec: spec,
		dial: telnet.DialTimeout,
		authSequence: []entities.AuthPrompt{
			{WaitFor: PromptLogin, SendCmd: spec.Username},
			{WaitFor: PromptPassword, SendCmd: spec.Password, Secret: true},
		},
		logger: log.With().Str("component", "telnet").Str("host", spec.Host).Logger(),
	}
}

// SetAuthSequence replaces the default login/password exchange
func (tt *TelnetTransport) SetAuthSequence(prompts []entities.AuthPrompt) {
	tt.authSequence = prompts
}

func (tt *TelnetTransport) Kind() entities.TransportKind { return entities.TransportTelnet }

// Connect logs in, waits for the prompt and disables paging
func (tt *TelnetTransport) Connect(ctx context.Context) error {
	if tt.term != nil {
		return nil
	}
	addr := net.JoinHostPort(tt.spec.Host, strconv.Itoa(tt.spec.TelnetPort))
	var conn *telnet.Conn
	err := retry.Do(
		func() error {
			c, err := tt.dial("tcp", addr, DefaultDialTimeout)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(tt.spec.ConnectRetries)),
		retry.Delay(RetryDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return tt.connectError(err)
	}
	conn.SetUnixWriteMode(true)

	term, err := newTerminal(conn, conn, tt.spec, tt.logger)
	if err != nil {
		conn.Close()
		return err
	}
	for _, p := range tt.authSequence {
		re, err := regexp.Compile(p.WaitFor)
		if err != nil {
			conn.Close()
			return errors.Wrapf(err, "invalid auth prompt %q", p.WaitFor)
		}
		if output, err := term.expect(re); err != nil {
			conn.Close()
			return tt.connectError(errors.Wrapf(err, "failed to wait for %s, output: %s", p.WaitFor, strings.TrimSpace(output)))
		}
		if p.SendCmd == "" {
			continue
		}
		if err := term.write(p.SendCmd + "\n"); err != nil {
			conn.Close()
			return tt.connectError(err)
		}
		if !p.Secret {
			tt.logger.Debug().Str("sent", p.SendCmd).Str("prompt", p.WaitFor).Msg("answered login prompt")
		}
	}
	if err := term.prime(); err != nil {
		conn.Close()
		return tt.connectError(err)
	}

	tt.conn = conn
	tt.term = term
	tt.logger.Debug().Msg("connected")
	return nil
}

// Send runs the batch as one CLI line and returns its framed payload
func (tt *TelnetTransport) Send(_ context.Context, commands []string, _ entities.Mode) ([]any, error) {
	if tt.term == nil {
		return nil, errors.New("telnet session is not connected")
	}
	payload, err := tt.term.run(commands)
	if err != nil {
		return nil, err
	}
	return []any{payload}, nil
}

// IsAlive reports whether the session has seen no I/O failure
func (tt *TelnetTransport) IsAlive() bool {
	return tt.conn != nil && tt.term != nil && !tt.term.failed
}

func (tt *TelnetTransport) Close() error {
	tt.term = nil
	if tt.conn == nil {
		return nil
	}
	err := tt.conn.Close()
	tt.conn = nil
	return err
}

func (tt *TelnetTransport) connectError(err error) error {
	tt.logger.Error().Err(err).Str("hint", HintFeatureTelnet).Msg("could not connect to NX-OS device over telnet")
	return &nxerrors.ConnectError{Host: tt.spec.Host, Transport: string(entities.TransportTelnet), Hints: []string{HintFeatureTelnet}, Err: err}
}
