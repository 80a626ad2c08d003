package nxerrors

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		sentinel error
	}{
		{name: "server error", status: 500, sentinel: ErrProtocol},
		{name: "gateway error", status: 503, sentinel: ErrProtocol},
		{name: "unauthorized", status: 401, sentinel: ErrRequestNotSupported},
		{name: "not found", status: 404, sentinel: ErrRequestNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Status(tt.status, "boom")
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestPayloadTooLargeMatchesRequestNotSupported(t *testing.T) {
	err := &PayloadTooLargeError{Message: "Request too large"}
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.ErrorIs(t, err, ErrRequestNotSupported)
	assert.NotErrorIs(t, err, ErrProtocol)
}

func TestRejectedWithCode(t *testing.T) {
	rejected := &CommandRejectedError{Command: "no feature bgp", Code: "400", Message: "CLI execution error"}
	wrapped := pkgerrors.Wrap(rejected, "delete config")

	assert.True(t, RejectedWithCode(wrapped, "400"))
	assert.False(t, RejectedWithCode(wrapped, "413"))
	assert.False(t, RejectedWithCode(errors.New("other"), "400"))
	assert.ErrorIs(t, fmt.Errorf("apply: %w", rejected), ErrCommandRejected)
}

func TestConnectError(t *testing.T) {
	err := &ConnectError{Host: "n9k", Transport: "ssh", Hints: []string{`Verify that "feature ssh" is enabled`}, Err: errors.New("refused")}
	assert.ErrorIs(t, err, ErrConnect)
	assert.Contains(t, err.Error(), "feature ssh")
	assert.Contains(t, err.Error(), "refused")
}

func TestConfigSourceNotFoundError(t *testing.T) {
	err := &ConfigSourceNotFoundError{Source: "salt://nxos/ospf.cfg"}
	assert.Equal(t, "Source file salt://nxos/ospf.cfg not found", err.Error())
	assert.ErrorIs(t, err, ErrConfigSourceNotFound)
}
