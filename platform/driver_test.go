package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "lowercase", input: "nxos", expected: "nxos"},
		{name: "uppercase", input: "NXOS", expected: "nxos"},
		{name: "mixed case", input: "NxOs", expected: "nxos"},
		{name: "with spaces", input: "  nxos  ", expected: "nxos"},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeName(tt.input))
		})
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name        string
		platform    string
		expectError bool
	}{
		{name: "nxos platform", platform: "nxos"},
		{name: "empty selects default", platform: ""},
		{name: "invalid platform", platform: "ios", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, err := Get(tt.platform)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "nxos", driver.Name())
		})
	}
}

func TestIsAuto(t *testing.T) {
	assert.True(t, IsAuto("auto"))
	assert.True(t, IsAuto(" AUTO "))
	assert.False(t, IsAuto(""))
	assert.False(t, IsAuto("nxos"))
}

func TestAvailable(t *testing.T) {
	drivers := Available()
	require.NotEmpty(t, drivers)
	assert.Equal(t, Default, drivers[0].Name())
}

func TestDetect(t *testing.T) {
	driver, err := Detect("Cisco Nexus Operating System (NX-OS) Software\n")
	require.NoError(t, err)
	assert.Equal(t, "nxos", driver.Name())

	driver, err = Detect("Cisco IOS Software, C2960 Software")
	assert.Error(t, err)
	assert.Nil(t, driver)
}
