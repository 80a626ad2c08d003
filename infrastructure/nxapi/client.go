package nxapi

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
)

// Client posts NX-API requests for one device
type Client struct {
	spec       entities.ConnectionSpec
	http       *resty.Client
	socketPath string
	baseURL    string
	logger     zerolog.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithSocketPath overrides the device-local unix socket
func WithSocketPath(path string) Option {
	return func(c *Client) { c.socketPath = path }
}

// WithBaseURL sends remote requests to baseURL instead of scheme://host:port
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// NewClient creates an NX-API client for spec
func NewClient(spec entities.ConnectionSpec, opts ...Option) (*Client, error) {
	c := &Client{
		spec:       spec,
		socketPath: SocketPath,
		logger:     log.With().Str("component", "nxapi").Str("host", spec.Endpoint()).Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	rc := resty.New().SetTimeout(spec.Timeout)
	if spec.ConnectOverUDS {
		socket := c.socketPath
		rc.SetTransport(&http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socket)
			},
		})
	} else {
		rc.SetBasicAuth(spec.Username, spec.Password)
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: !spec.VerifyTLS}) //nolint:gosec
		if spec.CABundle != "" {
			if _, err := os.Stat(spec.CABundle); err != nil {
				return nil, errors.Wrapf(err, "CA bundle %s", spec.CABundle)
			}
			rc.SetRootCertificate(spec.CABundle)
		}
	}
	c.http = rc
	return c, nil
}

// SocketAvailable reports whether the device-local socket exists
func (c *Client) SocketAvailable() bool {
	info, err := os.Stat(c.socketPath)
	return err == nil && info.Mode()&os.ModeSocket != 0
}

// Request runs commands in mode and returns one body per command
func (c *Client) Request(ctx context.Context, commands []string, mode entities.Mode) ([]any, error) {
	req, err := BuildRequest(commands, mode, c.spec)
	if err != nil {
		return nil, err
	}
	if c.baseURL != "" && !c.spec.ConnectOverUDS {
		req.URL = c.baseURL + RemotePath
	}

	c.logger.Debug().Str("url", req.URL).Str("type", string(mode)).Strs("commands", commands).Msg("sending nxapi request")
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetBody(req.Payload).
		Post(req.URL)
	if err != nil {
		return nil, errors.Wrapf(err, "nxapi request to %s", c.spec.Endpoint())
	}

	// the device reports rejected commands with a 500 that still carries
	// the per-command records, so prefer those when present
	bodies, perr := ParseResponse(resp.Body(), commands)
	if resp.IsSuccess() {
		return bodies, perr
	}
	if perr != nil && !errors.Is(perr, nxerrors.ErrUnexpectedShape) {
		return nil, perr
	}
	return nil, nxerrors.Status(resp.StatusCode(), resp.String())
}
