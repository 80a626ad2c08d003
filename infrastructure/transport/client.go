package transport

import (
	"fmt"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/ports"
)

// New builds an unconnected transport for the spec's transport kind
func New(spec entities.ConnectionSpec) (ports.Transport, error) {
	switch spec.Kind {
	case entities.TransportNXAPI:
		return NewNxapiTransport(spec), nil
	case entities.TransportTelnet:
		return NewTelnetTransport(spec), nil
	case entities.TransportSSH, "":
		return NewSSHTransport(spec)
	}
	return nil, fmt.Errorf("transport %s is invalid, must be 'ssh', 'nxapi' or 'telnet'", spec.Kind)
}

var _ ports.TransportFactory = New

var (
	_ ports.Transport = (*SSHTransport)(nil)
	_ ports.Transport = (*TelnetTransport)(nil)
	_ ports.Transport = (*NxapiTransport)(nil)
)
