package nxapi

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
)

type capturedRequest struct {
	path    string
	cookie  string
	user    string
	pass    string
	payload map[string]map[string]string
}

func fakeDevice(t *testing.T, status int, reply []byte, seen *capturedRequest) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		seen.path = r.URL.Path
		seen.cookie = r.Header.Get("Cookie")
		seen.user, seen.pass, _ = r.BasicAuth()
		assert.NoError(t, json.Unmarshal(body, &seen.payload))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(reply)
	})
}

func TestClient_RequestRemote(t *testing.T) {
	var seen capturedRequest
	srv := httptest.NewServer(fakeDevice(t, http.StatusOK, response(t, record("200", "Success", showVersionBody)), &seen))
	defer srv.Close()

	spec := remoteSpec()
	spec.Scheme = "http"
	client, err := NewClient(spec, WithBaseURL(srv.URL))
	require.NoError(t, err)

	bodies, err := client.Request(context.Background(), []string{"show version"}, entities.ModeShowASCII)
	require.NoError(t, err)
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "NXOS: version 9.2(1)")

	assert.Equal(t, "/ins", seen.path)
	assert.Equal(t, "admin", seen.user)
	assert.Equal(t, "secret", seen.pass)
	assert.Equal(t, "show version", seen.payload["ins_api"]["input"])
	assert.Equal(t, "cli_show_ascii", seen.payload["ins_api"]["type"])
}

func TestClient_RejectedCommandOnServerError(t *testing.T) {
	var seen capturedRequest
	reply := response(t, record("400", "Input CLI command error", nil))
	srv := httptest.NewServer(fakeDevice(t, http.StatusInternalServerError, reply, &seen))
	defer srv.Close()

	client, err := NewClient(remoteSpec(), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = client.Request(context.Background(), []string{"show bogus"}, entities.ModeShowASCII)
	assert.ErrorIs(t, err, nxerrors.ErrCommandRejected)
}

func TestClient_HTTPStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, sentinel: nxerrors.ErrRequestNotSupported},
		{name: "bad gateway", status: http.StatusBadGateway, sentinel: nxerrors.ErrProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer srv.Close()

			client, err := NewClient(remoteSpec(), WithBaseURL(srv.URL))
			require.NoError(t, err)

			_, err = client.Request(context.Background(), []string{"show clock"}, entities.ModeShowASCII)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestClient_RequestOverUnixSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "nxapi")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	socket := filepath.Join(dir, "nxapi.sock")

	listener, err := net.Listen("unix", socket)
	require.NoError(t, err)

	var seen capturedRequest
	srv := &http.Server{Handler: fakeDevice(t, http.StatusOK, response(t, record("200", "Success", "12:00:00.000 UTC")), &seen)}
	go func() { _ = srv.Serve(listener) }()
	defer srv.Close()

	client, err := NewClient(udsSpec(), WithSocketPath(socket))
	require.NoError(t, err)
	assert.True(t, client.SocketAvailable())

	bodies, err := client.Request(context.Background(), []string{"show clock"}, entities.ModeShowASCII)
	require.NoError(t, err)
	assert.Equal(t, []any{"12:00:00.000 UTC"}, bodies)
	assert.Equal(t, "/ins_local", seen.path)
	assert.Equal(t, "nxapi_auth=admin:local", seen.cookie)
}

func TestClient_MissingCABundle(t *testing.T) {
	spec := remoteSpec()
	spec.VerifyTLS = true
	spec.CABundle = filepath.Join(t.TempDir(), "missing.pem")

	_, err := NewClient(spec)
	assert.Error(t, err)
}

func TestClient_SocketAvailable(t *testing.T) {
	client, err := NewClient(udsSpec(), WithSocketPath(filepath.Join(t.TempDir(), "absent.sock")))
	require.NoError(t, err)
	assert.False(t, client.SocketAvailable())
}
