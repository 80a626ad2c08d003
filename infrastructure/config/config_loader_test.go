package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		check  func(t *testing.T, cfg *Config)
		errMsg string
	}{
		{
			name: "ssh defaults",
			yaml: `
proxy:
  host: dc1-n9k
  username: admin
  password: secret
  prompt_name: dc1-n9k
log:
  level: debug
`,
			check: func(t *testing.T, cfg *Config) {
				spec := cfg.Proxy
				assert.Equal(t, entities.TransportSSH, spec.Kind)
				assert.Equal(t, "dc1-n9k", spec.Host)
				assert.Equal(t, entities.DefaultSSHPort, spec.SSHPort)
				assert.True(t, spec.SaveConfig)
				prompt, fallback := spec.Prompt()
				assert.Equal(t, "dc1-n9k.*#", prompt)
				assert.False(t, fallback)
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
		{
			name: "nxapi over http with ca bundle",
			yaml: `
proxy:
  connection: nxapi
  host: 10.0.0.1
  username: admin
  password: secret
  transport: HTTP
  verify: /etc/ssl/nxos-ca.pem
  no_save_config: true
  timeout: 30
`,
			check: func(t *testing.T, cfg *Config) {
				spec := cfg.Proxy
				assert.Equal(t, entities.TransportNXAPI, spec.Kind)
				assert.Equal(t, "http", spec.Scheme)
				assert.Equal(t, 80, spec.Port)
				assert.True(t, spec.VerifyTLS)
				assert.Equal(t, "/etc/ssl/nxos-ca.pem", spec.CABundle)
				assert.False(t, spec.SaveConfig)
				assert.False(t, spec.ConnectOverUDS)
				assert.Equal(t, 30*time.Second, spec.Timeout)
				assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
			},
		},
		{
			name: "nxapi without credentials uses the local socket",
			yaml: `
proxy:
  connection: nxapi
  verify: false
  cookie: operator
  timeout: 2m
`,
			check: func(t *testing.T, cfg *Config) {
				spec := cfg.Proxy
				assert.True(t, spec.ConnectOverUDS)
				assert.False(t, spec.VerifyTLS)
				assert.Equal(t, "operator", spec.CookieUser)
				assert.Equal(t, 2*time.Minute, spec.Timeout)
				assert.Equal(t, 443, spec.Port)
			},
		},
		{
			name: "telnet with error patterns and explicit save",
			yaml: `
proxy:
  connection: telnet
  host: lab-sw
  username: admin
  password: secret
  error_pattern:
    - "^ERROR:"
    - "% Permission denied"
  save_config: false
  platform: NXOS
`,
			check: func(t *testing.T, cfg *Config) {
				spec := cfg.Proxy
				assert.Equal(t, entities.TransportTelnet, spec.Kind)
				assert.Equal(t, []string{"^ERROR:", "% Permission denied"}, spec.ErrorPatterns)
				assert.Equal(t, entities.DefaultTelnetPort, spec.TelnetPort)
				assert.False(t, spec.SaveConfig)
				assert.Equal(t, "nxos", cfg.Platform)
			},
		},
		{
			name: "unknown connection",
			yaml: `
proxy:
  connection: serial
  host: lab-sw
  username: admin
`,
			errMsg: "invalid proxy configuration",
		},
		{
			name: "ssh without host",
			yaml: `
proxy:
  username: admin
`,
			errMsg: "invalid proxy configuration",
		},
		{
			name: "bad prompt regex",
			yaml: `
proxy:
  host: lab-sw
  username: admin
  prompt_regex: "([a-z"
`,
			errMsg: "invalid regular expression",
		},
		{
			name: "bad timeout",
			yaml: `
proxy:
  connection: nxapi
  timeout: soon
`,
			errMsg: "invalid timeout",
		},
		{
			name:   "malformed yaml",
			yaml:   "proxy: [host",
			errMsg: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.yaml)
			cfg, err := Load(path, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, path, cfg.Source)
			tt.check(t, cfg)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read YAML file")
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
proxy:
  host: from-file
  username: admin
  key_accept: false
`)
	t.Setenv("NXPROXY_HOST", "from-env")
	t.Setenv("NXPROXY_KEY_ACCEPT", "true")
	t.Setenv("NXPROXY_LOG_LEVEL", "warn")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Proxy.Host)
	assert.True(t, cfg.Proxy.KeyAccept)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "from-env", cfg.Reader().GetString("host"))
	assert.True(t, cfg.Reader().IsSet("username"))
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
proxy:
  host: found
  username: admin
`)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "found", cfg.Proxy.Host)
	assert.Equal(t, filepath.Join(".", FileName), cfg.Source)
}

func TestSearchPaths(t *testing.T) {
	paths := SearchPaths()
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
	assert.Equal(t, "/etc/nxproxy", paths[len(paths)-1])
}

func TestApplyLogLevel(t *testing.T) {
	previous := zerolog.GlobalLevel()
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	cfg := &Config{LogLevel: "ERROR"}
	require.NoError(t, cfg.ApplyLogLevel())
	assert.Equal(t, zerolog.ErrorLevel, zerolog.GlobalLevel())

	cfg.LogLevel = "chatty"
	assert.Error(t, cfg.ApplyLogLevel())
}
