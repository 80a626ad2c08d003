package transport

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
)

// startTelnetDevice accepts one connection, runs the NX-OS login exchange
// and then hands the stream to cli.
func startTelnetDevice(t *testing.T, cli *fakeCLI, password string) (port int, creds chan []string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	creds = make(chan []string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		readLine := func() string {
			line, _ := reader.ReadString('\n')
			return strings.TrimRight(line, "\r\n")
		}

		_, _ = io.WriteString(conn, "\r\nUser Access Verification\r\nlogin: ")
		user := readLine()
		_, _ = io.WriteString(conn, "Password: ")
		pass := readLine()
		creds <- []string{user, pass}
		if pass != password {
			_, _ = io.WriteString(conn, "\r\nLogin incorrect\r\n")
			return
		}
		_, _ = io.WriteString(conn, "\r\n")
		cli.serve(reader, conn)
	}()
	return ln.Addr().(*net.TCPAddr).Port, creds
}

func telnetSpec(port int) entities.ConnectionSpec {
	return entities.ConnectionSpec{
		Kind:       entities.TransportTelnet,
		Host:       "127.0.0.1",
		Username:   "admin",
		Password:   "secret",
		TelnetPort: port,
	}.WithDefaults()
}

func TestTelnetTransport_ConnectAndSend(t *testing.T) {
	cli := newFakeCLI(map[string]string{"show hostname": "n9k-device"})
	port, creds := startTelnetDevice(t, cli, "secret")

	tr := NewTelnetTransport(telnetSpec(port))
	require.NoError(t, tr.Connect(context.Background()))
	assert.Equal(t, []string{"admin", "secret"}, <-creds)
	assert.True(t, tr.IsAlive())

	out, err := tr.Send(context.Background(), []string{"show hostname"}, entities.ModeShowASCII)
	require.NoError(t, err)
	assert.Equal(t, []any{"n9k-device"}, out)
	assert.Equal(t, []string{TerminalLengthCmd, "show hostname"}, cli.lines())

	require.NoError(t, tr.Close())
	assert.False(t, tr.IsAlive())
}

func TestTelnetTransport_LoginRejected(t *testing.T) {
	port, _ := startTelnetDevice(t, newFakeCLI(nil), "other")

	tr := NewTelnetTransport(telnetSpec(port))
	err := tr.Connect(context.Background())
	require.Error(t, err)

	var connectErr *nxerrors.ConnectError
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, []string{HintFeatureTelnet}, connectErr.Hints)
	assert.False(t, tr.IsAlive())
}

func TestTelnetTransport_CustomAuthSequence(t *testing.T) {
	cli := newFakeCLI(nil)
	port, creds := startTelnetDevice(t, cli, "s3cr3t")

	tr := NewTelnetTransport(telnetSpec(port))
	tr.SetAuthSequence([]entities.AuthPrompt{
		{WaitFor: `login:\s*$`, SendCmd: "netops"},
		{WaitFor: `Password:\s*$`, SendCmd: "s3cr3t", Secret: true},
	})
	require.NoError(t, tr.Connect(context.Background()))
	assert.Equal(t, []string{"netops", "s3cr3t"}, <-creds)
}
