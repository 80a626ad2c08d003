package entities

import (
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// TransportKind selects how the device is reached
type TransportKind string

const (
	TransportSSH    TransportKind = "ssh"
	TransportNXAPI  TransportKind = "nxapi"
	TransportTelnet TransportKind = "telnet"
)

const (
	DefaultPrompt         = `.+#$`
	DefaultTimeout        = 60 * time.Second
	DefaultCookieUser     = "admin"
	DefaultScheme         = "https"
	DefaultSSHPort        = 22
	DefaultTelnetPort     = 23
	DefaultConnectRetries = 1
)

// ConnectionSpec defines how to reach a single device. It is built once at
// startup and never mutated afterwards.
type ConnectionSpec struct {
	Host     string
	Username string
	Password string
	Kind     TransportKind

	// Terminal transports (ssh, telnet)
	PromptName     string
	PromptRegex    string
	SSHArgs        string
	KeyAccept      bool
	KnownHostsFile string
	ErrorPatterns  []string
	SSHPort        int
	TelnetPort     int
	ConnectRetries int

	// NX-API
	Scheme         string
	Port           int
	VerifyTLS      bool
	CABundle       string
	Timeout        time.Duration
	CookieUser     string
	ConnectOverUDS bool

	SaveConfig bool
}

// WithDefaults returns a copy with every unset field filled in
func (cs ConnectionSpec) WithDefaults() ConnectionSpec {
	if cs.Kind == "" {
		cs.Kind = TransportSSH
	}
	if cs.Scheme == "" {
		cs.Scheme = DefaultScheme
	}
	if cs.Port == 0 {
		cs.Port = 443
		if cs.Scheme == "http" {
			cs.Port = 80
		}
	}
	if cs.Timeout <= 0 {
		cs.Timeout = DefaultTimeout
	}
	if cs.CookieUser == "" {
		cs.CookieUser = DefaultCookieUser
	}
	if cs.SSHPort == 0 {
		cs.SSHPort = DefaultSSHPort
	}
	if cs.TelnetPort == 0 {
		cs.TelnetPort = DefaultTelnetPort
	}
	if cs.ConnectRetries <= 0 {
		cs.ConnectRetries = DefaultConnectRetries
	}
	if cs.Kind == TransportNXAPI && (cs.Host == "" || cs.Username == "" || cs.Password == "") {
		cs.ConnectOverUDS = true
	}
	return cs
}

// Prompt returns the regular expression that matches the device prompt.
// fallback is true when neither prompt_regex nor prompt_name was configured.
func (cs ConnectionSpec) Prompt() (pattern string, fallback bool) {
	switch {
	case cs.PromptRegex != "":
		return cs.PromptRegex, false
	case cs.PromptName != "":
		return cs.PromptName + ".*#", false
	}
	return DefaultPrompt, true
}

// Validate checks the spec for internally inconsistent values
func (cs ConnectionSpec) Validate() error {
	return validation.ValidateStruct(&cs,
		validation.Field(&cs.Kind, validation.Required, validation.In(TransportSSH, TransportNXAPI, TransportTelnet)),
		validation.Field(&cs.Host, validation.When(cs.Kind != TransportNXAPI, validation.Required)),
		validation.Field(&cs.Username, validation.When(cs.Kind != TransportNXAPI, validation.Required)),
		validation.Field(&cs.Scheme, validation.When(cs.Kind == TransportNXAPI, validation.In("http", "https"))),
		validation.Field(&cs.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&cs.PromptRegex, validation.By(compiles)),
		validation.Field(&cs.ErrorPatterns, validation.Each(validation.By(compiles))),
	)
}

// Endpoint is a short human readable identifier used in logs and errors
func (cs ConnectionSpec) Endpoint() string {
	if cs.Kind == TransportNXAPI && cs.ConnectOverUDS {
		return "localhost (unix socket)"
	}
	return cs.Host
}

func compiles(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := regexp.Compile(s); err != nil {
		return fmt.Errorf("invalid regular expression: %v", err)
	}
	return nil
}
