package transport

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
)

const (
	DefaultDialTimeout = 30 * time.Second
	RetryDelay         = time.Second
	ptyWidth           = 511
	ptyHeight          = 40
)

// HintFeatureSSH is logged when an SSH session cannot be opened
const HintFeatureSSH = `Verify that "feature ssh" is enabled on your NX-OS device`

// DialFunc opens the raw connection underneath a terminal session
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// sshOptions are the subset of ssh(1) flags honored from ssh_args
type sshOptions struct {
	port           int
	user           string
	ciphers        []string
	kex            []string
	connectTimeout time.Duration
}

// SSHTransport runs CLI commands through an interactive SSH shell
type SSHTransport struct {
	spec    entities.ConnectionSpec
	opts    sshOptions
	dial    DialFunc
	client  *ssh.Client
	session *ssh.Session
	term    *terminal
	logger  zerolog.Logger
}

// NewSSHTransport creates an unconnected SSH transport
func NewSSHTransport(spec entities.ConnectionSpec) (*SSHTransport, error) {
	opts, err := parseSSHArgs(spec.SSHArgs)
	if err != nil {
		return nil, err
	}
	if opts.port == 0 {
		opts.port = spec.SSHPort
	}
	if opts.user == "" {
		opts.user = spec.Username
	}
	var d net.Dialer
	return &SSHTransport{
		spec:   spec,
		opts:   opts,
		dial:   d.DialContext,
		logger: log.With().Str("component", "ssh").Str("host", spec.Host).Logger(),
	}, nil
}

func (st *SSHTransport) Kind() entities.TransportKind { return entities.TransportSSH }

// Connect opens the session, waits for the prompt and disables paging
func (st *SSHTransport) Connect(ctx context.Context) error {
	if st.term != nil {
		return nil
	}
	hostKey, err := st.hostKeyCallback()
	if err != nil {
		return st.connectError(err)
	}
	cfg := &ssh.ClientConfig{
		User: st.opts.user,
		Auth: []ssh.AuthMethod{
			ssh.Password(st.spec.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = st.spec.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKey,
		Timeout:         st.opts.connectTimeout,
	}
	cfg.Ciphers = st.opts.ciphers
	cfg.KeyExchanges = st.opts.kex

	addr := net.JoinHostPort(st.spec.Host, strconv.Itoa(st.opts.port))
	var client *ssh.Client
	err = retry.Do(
		func() error {
			dialCtx, cancel := context.WithTimeout(ctx, st.opts.connectTimeout)
			defer cancel()
			rawConn, err := st.dial(dialCtx, "tcp", addr)
			if err != nil {
				return err
			}
			clientConn, chans, reqs, err := ssh.NewClientConn(rawConn, addr, cfg)
			if err != nil {
				rawConn.Close()
				return err
			}
			client = ssh.NewClient(clientConn, chans, reqs)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(st.spec.ConnectRetries)),
		retry.Delay(RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			st.logger.Debug().Uint("attempt", n+1).Err(err).Msg("ssh dial failed, retrying")
		}),
	)
	if err != nil {
		return st.connectError(err)
	}

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return st.connectError(errors.Wrap(err, "failed to create SSH session"))
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 9600,
		ssh.TTY_OP_OSPEED: 9600,
	}
	if err := session.RequestPty("vt100", ptyHeight, ptyWidth, modes); err != nil {
		session.Close()
		client.Close()
		return st.connectError(errors.Wrap(err, "failed to request PTY"))
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		client.Close()
		return st.connectError(errors.Wrap(err, "failed to get stdin pipe"))
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		client.Close()
		return st.connectError(errors.Wrap(err, "failed to get stdout pipe"))
	}
	if err := session.Shell(); err != nil {
		session.Close()
		client.Close()
		return st.connectError(errors.Wrap(err, "failed to start shell"))
	}

	term, err := newTerminal(stdin, bufio.NewReader(stdout), st.spec, st.logger)
	if err != nil {
		session.Close()
		client.Close()
		return err
	}
	if err := term.prime(); err != nil {
		session.Close()
		client.Close()
		return st.connectError(err)
	}

	st.client = client
	st.session = session
	st.term = term
	st.logger.Debug().Msg("connected")
	return nil
}

// Send runs the batch as one CLI line and returns its framed payload
func (st *SSHTransport) Send(_ context.Context, commands []string, _ entities.Mode) ([]any, error) {
	if st.term == nil {
		return nil, errors.New("ssh session is not connected")
	}
	payload, err := st.term.run(commands)
	if err != nil {
		return nil, err
	}
	return []any{payload}, nil
}

// IsAlive probes the connection with a keepalive global request
func (st *SSHTransport) IsAlive() bool {
	if st.client == nil || st.term == nil || st.term.failed {
		return false
	}
	_, _, err := st.client.SendRequest("keepalive@openssh.com", true, nil)
	return err == nil
}

// Close tears the session down; it is only used to reconnect
func (st *SSHTransport) Close() error {
	if st.session != nil {
		st.session.Close()
		st.session = nil
	}
	var err error
	if st.client != nil {
		err = st.client.Close()
		st.client = nil
	}
	st.term = nil
	return err
}

func (st *SSHTransport) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if st.spec.KeyAccept {
		st.logger.Warn().Msg("key_accept is set, host key verification is disabled")
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec
	}
	path := st.spec.KnownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "cannot locate known_hosts")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load known_hosts %s", path)
	}
	return cb, nil
}

func (st *SSHTransport) connectError(err error) error {
	st.logger.Error().Err(err).Str("hint", HintFeatureSSH).Msg("could not connect to NX-OS device over ssh")
	return &nxerrors.ConnectError{Host: st.spec.Host, Transport: string(entities.TransportSSH), Hints: []string{HintFeatureSSH}, Err: err}
}

func parseSSHArgs(args string) (sshOptions, error) {
	opts := sshOptions{connectTimeout: DefaultDialTimeout}
	fields := strings.Fields(args)
	for i := 0; i < len(fields); i++ {
		flag := fields[i]
		switch flag {
		case "-p", "-l", "-o":
			if i+1 >= len(fields) {
				return opts, errors.Errorf("ssh_args: %s needs a value", flag)
			}
			i++
		default:
			log.Debug().Str("arg", flag).Msg("ignoring unsupported ssh argument")
			continue
		}
		value := fields[i]
		switch flag {
		case "-p":
			port, err := strconv.Atoi(value)
			if err != nil {
				return opts, errors.Wrapf(err, "ssh_args: bad port %q", value)
			}
			opts.port = port
		case "-l":
			opts.user = value
		case "-o":
			if err := opts.setOption(value); err != nil {
				return opts, err
			}
		}
	}
	return opts, nil
}

func (o *sshOptions) setOption(kv string) error {
	key, value, ok := strings.Cut(kv, "=")
	if !ok {
		return errors.Errorf("ssh_args: option %q is not key=value", kv)
	}
	switch strings.ToLower(key) {
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "ssh_args: bad port %q", value)
		}
		o.port = port
	case "user":
		o.user = value
	case "ciphers":
		o.ciphers = strings.Split(value, ",")
	case "kexalgorithms":
		o.kex = strings.Split(value, ",")
	case "connecttimeout":
		secs, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "ssh_args: bad ConnectTimeout %q", value)
		}
		o.connectTimeout = time.Duration(secs) * time.Second
	default:
		log.Debug().Str("option", key).Msg("ignoring unsupported ssh option")
	}
	return nil
}
