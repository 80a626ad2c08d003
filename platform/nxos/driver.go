package nxos

import (
	"strings"

	"github.com/carlosrabelo/nxproxy/domain/entities"
)

const driverName = "nxos"

const (
	VersionCommand       = "show version"
	RunningConfigCommand = "show running-config"
	SaveCommand          = "copy running-config startup-config"
	ConfigureTerminal    = "configure terminal"
	End                  = "end"
)

// Driver implements the platform behaviour for Cisco NX-OS switches.
type Driver struct{}

// New creates a new NX-OS driver instance.
func New() *Driver {
	return &Driver{}
}

// Name returns the canonical platform identifier.
func (d *Driver) Name() string {
	return driverName
}

// Detect reports whether show version output came from NX-OS.
func (d *Driver) Detect(showVersion string) bool {
	lower := strings.ToLower(showVersion)
	return strings.Contains(lower, "nx-os") || strings.Contains(lower, "nxos: version")
}

// AuthenticationSequence returns the login exchange of the NX-OS console.
func (d *Driver) AuthenticationSequence(username, password string) []entities.AuthPrompt {
	return []entities.AuthPrompt{
		{WaitFor: `(?i)login:\s*$`, SendCmd: username},
		{WaitFor: `(?i)password:\s*$`, SendCmd: password, Secret: true},
	}
}

// ParseGrains extracts software, hardware and plugin facts.
func (d *Driver) ParseGrains(showVersion string) entities.Grains {
	return parseShowVersion(showVersion)
}

func (d *Driver) VersionCommand() string {
	return VersionCommand
}

func (d *Driver) RunningConfigCommand() string {
	return RunningConfigCommand
}

// ConfigPrologue enters configuration mode on terminal transports.
func (d *Driver) ConfigPrologue() []string {
	return []string{ConfigureTerminal}
}

// ConfigEpilogue leaves configuration mode.
func (d *Driver) ConfigEpilogue() []string {
	return []string{End}
}

// SaveCommands returns commands that persist the running configuration.
func (d *Driver) SaveCommands() []string {
	return []string{SaveCommand}
}
