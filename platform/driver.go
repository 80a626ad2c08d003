package platform

import (
	"fmt"
	"strings"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/platform/nxos"
)

// Driver defines the behaviour required to support a switching platform.
type Driver interface {
	Name() string
	Detect(showVersion string) bool

	// AuthenticationSequence returns the login sequence for terminal transports
	AuthenticationSequence(username, password string) []entities.AuthPrompt

	ParseGrains(showVersion string) entities.Grains

	VersionCommand() string
	RunningConfigCommand() string
	ConfigPrologue() []string
	ConfigEpilogue() []string
	SaveCommands() []string
}

var registry = []Driver{
	nxos.New(),
}

// Default is the driver used when no platform is configured
const Default = "nxos"

// Auto asks for the platform to be detected from the device's show version
const Auto = "auto"

// IsAuto reports whether name requests detection
func IsAuto(name string) bool {
	return normalizeName(name) == Auto
}

// Get returns a driver by normalized platform name; an empty name selects the default.
func Get(name string) (Driver, error) {
	normalized := normalizeName(name)
	if normalized == "" {
		normalized = Default
	}
	for _, driver := range registry {
		if driver.Name() == normalized {
			return driver, nil
		}
	}
	return nil, fmt.Errorf("unknown switch platform: %s", name)
}

// Available returns all registered drivers.
func Available() []Driver {
	out := make([]Driver, len(registry))
	copy(out, registry)
	return out
}

// Detect returns the first driver recognising the show version output.
func Detect(showVersion string) (Driver, error) {
	for _, driver := range registry {
		if driver.Detect(showVersion) {
			return driver, nil
		}
	}
	return nil, fmt.Errorf("unable to detect switch platform")
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
