package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/ports"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment override, e.g. NXPROXY_HOST
	EnvPrefix = "NXPROXY"
	// FileName is the config file looked up in SearchPaths
	FileName = "nxproxy.yaml"
	// DefaultLogLevel applies when the log block is absent
	DefaultLogLevel = "info"
)

// OptionKeys lists every proxy option that can come from the file, the
// environment or a command line flag.
var OptionKeys = []string{
	"connection",
	"host",
	"username",
	"password",
	"prompt_name",
	"prompt_regex",
	"ssh_args",
	"key_accept",
	"known_hosts",
	"error_pattern",
	"ssh_port",
	"telnet_port",
	"connect_retries",
	"transport",
	"port",
	"verify",
	"timeout",
	"cookie",
	"connect_over_uds",
	"save_config",
	"no_save_config",
	"platform",
	"file_root",
}

// Config is the resolved proxy configuration
type Config struct {
	Proxy    entities.ConnectionSpec
	Platform string
	FileRoot string
	LogLevel string
	Source   string

	reader *viper.Viper
}

// Reader exposes the layered settings to components that read ad-hoc keys
func (c *Config) Reader() ports.ConfigReader {
	return c.reader
}

type fileConfig struct {
	Proxy map[string]any `yaml:"proxy"`
	Log   struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// proxyOptions is the decoded form of the proxy option map
type proxyOptions struct {
	Connection     string   `mapstructure:"connection"`
	Host           string   `mapstructure:"host"`
	Username       string   `mapstructure:"username"`
	Password       string   `mapstructure:"password"`
	PromptName     string   `mapstructure:"prompt_name"`
	PromptRegex    string   `mapstructure:"prompt_regex"`
	SSHArgs        string   `mapstructure:"ssh_args"`
	KeyAccept      bool     `mapstructure:"key_accept"`
	KnownHosts     string   `mapstructure:"known_hosts"`
	ErrorPattern   []string `mapstructure:"error_pattern"`
	SSHPort        int      `mapstructure:"ssh_port"`
	TelnetPort     int      `mapstructure:"telnet_port"`
	ConnectRetries int      `mapstructure:"connect_retries"`
	Transport      string   `mapstructure:"transport"`
	Port           int      `mapstructure:"port"`
	Verify         any      `mapstructure:"verify"`
	Timeout        any      `mapstructure:"timeout"`
	Cookie         string   `mapstructure:"cookie"`
	ConnectOverUDS bool     `mapstructure:"connect_over_uds"`
	SaveConfig     *bool    `mapstructure:"save_config"`
	NoSaveConfig   bool     `mapstructure:"no_save_config"`
	Platform       string   `mapstructure:"platform"`
	FileRoot       string   `mapstructure:"file_root"`
}

// SearchPaths returns the directories probed for FileName, in order
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "nxproxy"))
	}
	return append(paths, "/etc/nxproxy")
}

// FindFile returns the first FileName found in SearchPaths, or "" if none
func FindFile() string {
	for _, dir := range SearchPaths() {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return ""
}

// NewViper returns a viper instance wired for NXPROXY_* environment overrides
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load resolves the proxy configuration. The .env file is read first, then
// yamlFile (or the first file found in SearchPaths when empty), then the
// NXPROXY_* environment and any flags already bound on v. v may be nil.
func Load(yamlFile string, v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env file: %v", err)
	}
	if v == nil {
		v = NewViper()
	}

	if yamlFile == "" {
		yamlFile = FindFile()
	}
	var file fileConfig
	if yamlFile != "" {
		data, err := os.ReadFile(yamlFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %v", yamlFile, err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %v", err)
		}
	}

	for key, value := range file.Proxy {
		v.SetDefault(strings.ToLower(key), value)
	}
	v.SetDefault("log.level", lo.Ternary(file.Log.Level != "", file.Log.Level, DefaultLogLevel))

	options := make(map[string]any, len(OptionKeys))
	for _, key := range OptionKeys {
		if v.IsSet(key) {
			options[key] = v.Get(key)
		}
	}

	opts, err := decodeOptions(options)
	if err != nil {
		return nil, err
	}
	spec, err := opts.connectionSpec()
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid proxy configuration: %v", err)
	}

	return &Config{
		Proxy:    spec,
		Platform: strings.ToLower(strings.TrimSpace(opts.Platform)),
		FileRoot: opts.FileRoot,
		LogLevel: v.GetString("log.level"),
		Source:   yamlFile,
		reader:   v,
	}, nil
}

// ApplyLogLevel sets the zerolog global level from the configured name
func (c *Config) ApplyLogLevel() error {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %v", c.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

func decodeOptions(options map[string]any) (proxyOptions, error) {
	var opts proxyOptions
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, err
	}
	if err := decoder.Decode(options); err != nil {
		return opts, fmt.Errorf("failed to decode proxy options: %v", err)
	}
	return opts, nil
}

func (o proxyOptions) connectionSpec() (entities.ConnectionSpec, error) {
	kind := entities.TransportKind(strings.ToLower(strings.TrimSpace(o.Connection)))
	spec := entities.ConnectionSpec{
		Host:           o.Host,
		Username:       o.Username,
		Password:       o.Password,
		Kind:           kind,
		PromptName:     o.PromptName,
		PromptRegex:    o.PromptRegex,
		SSHArgs:        o.SSHArgs,
		KeyAccept:      o.KeyAccept,
		KnownHostsFile: o.KnownHosts,
		ErrorPatterns:  lo.Compact(o.ErrorPattern),
		SSHPort:        o.SSHPort,
		TelnetPort:     o.TelnetPort,
		ConnectRetries: o.ConnectRetries,
		Scheme:         strings.ToLower(o.Transport),
		Port:           o.Port,
		CookieUser:     o.Cookie,
		ConnectOverUDS: o.ConnectOverUDS,
		SaveConfig:     true,
	}

	switch verify := o.Verify.(type) {
	case nil:
		spec.VerifyTLS = true
	case bool:
		spec.VerifyTLS = verify
	case string:
		if b, err := cast.ToBoolE(verify); err == nil {
			spec.VerifyTLS = b
		} else {
			spec.VerifyTLS = true
			spec.CABundle = verify
		}
	default:
		return spec, fmt.Errorf("verify must be a boolean or a CA bundle path, got %T", o.Verify)
	}

	if o.Timeout != nil {
		timeout, err := parseTimeout(o.Timeout)
		if err != nil {
			return spec, err
		}
		spec.Timeout = timeout
	}

	if o.SaveConfig != nil {
		spec.SaveConfig = *o.SaveConfig
	}
	if o.NoSaveConfig {
		spec.SaveConfig = false
	}
	return spec.WithDefaults(), nil
}

// parseTimeout accepts plain seconds or a Go duration string
func parseTimeout(value any) (time.Duration, error) {
	if seconds, err := cast.ToFloat64E(value); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %v: %v", value, err)
	}
	return d, nil
}
