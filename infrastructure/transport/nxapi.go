package transport

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
	"github.com/carlosrabelo/nxproxy/infrastructure/nxapi"
)

// Remediation hints logged when the NX-API probe fails
const (
	HintFeatureNXAPI  = `Verify that "feature nxapi" is enabled on your NX-OS device`
	HintNXAPISettings = "Verify that nxapi settings on the NX-OS device and proxy configuration match"
)

// ProbeCommand is run once at connect time to prove the API answers
const ProbeCommand = "show clock"

// NxapiTransport sends batches through NX-API. Requests are stateless, so
// liveness is the outcome of the connect probe.
type NxapiTransport struct {
	spec   entities.ConnectionSpec
	opts   []nxapi.Option
	client *nxapi.Client
	up     bool
	logger zerolog.Logger
}

// NewNxapiTransport creates an NX-API transport; opts reach the HTTP client
func NewNxapiTransport(spec entities.ConnectionSpec, opts ...nxapi.Option) *NxapiTransport {
	return &NxapiTransport{
		spec:   spec,
		opts:   opts,
		logger: log.With().Str("component", "nxapi").Str("host", spec.Endpoint()).Logger(),
	}
}

func (nt *NxapiTransport) Kind() entities.TransportKind { return entities.TransportNXAPI }

// Connect builds the client and runs the probe command
func (nt *NxapiTransport) Connect(ctx context.Context) error {
	if nt.client == nil {
		client, err := nxapi.NewClient(nt.spec, nt.opts...)
		if err != nil {
			return nt.connectError(err)
		}
		nt.client = client
	}
	if nt.spec.ConnectOverUDS && !nt.client.SocketAvailable() {
		return nt.connectError(errors.New("nxapi unix socket is not available"))
	}
	if _, err := nt.client.Request(ctx, []string{ProbeCommand}, entities.ModeShowASCII); err != nil {
		return nt.connectError(err)
	}
	nt.up = true
	nt.logger.Debug().Msg("nxapi probe succeeded")
	return nil
}

func (nt *NxapiTransport) Send(ctx context.Context, commands []string, mode entities.Mode) ([]any, error) {
	if nt.client == nil {
		return nil, errors.New("nxapi transport is not connected")
	}
	return nt.client.Request(ctx, commands, mode)
}

func (nt *NxapiTransport) IsAlive() bool { return nt.up }

func (nt *NxapiTransport) Close() error {
	nt.up = false
	return nil
}

func (nt *NxapiTransport) connectError(err error) error {
	hints := []string{HintFeatureNXAPI, HintNXAPISettings}
	nt.logger.Error().Err(err).Strs("hints", hints).Msg("could not reach NX-API")
	return &nxerrors.ConnectError{Host: nt.spec.Endpoint(), Transport: string(entities.TransportNXAPI), Hints: hints, Err: err}
}
