package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/carlosrabelo/nxproxy/application/services"
	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/infrastructure/config"
	"github.com/carlosrabelo/nxproxy/platform"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app holds what every subcommand shares. The proxy is built on first use
// so that --help and flag errors never touch the device.
type app struct {
	v       *viper.Viper
	out     io.Writer
	metrics *prometheus.Registry

	configFile string
	worker     string
	output     string
	dumpStats  bool

	proxy    *services.ProxyService
	executor *services.Executor
}

// proxyFlags maps command line flags onto config option keys
var proxyFlags = []struct {
	flag, key, usage string
	boolean          bool
}{
	{flag: "connection", key: "connection", usage: "transport to use: ssh, nxapi or telnet"},
	{flag: "host", key: "host", usage: "switch address"},
	{flag: "username", key: "username", usage: "login user"},
	{flag: "password", key: "password", usage: "login password"},
	{flag: "prompt-name", key: "prompt_name", usage: "hostname used to build the CLI prompt"},
	{flag: "prompt-regex", key: "prompt_regex", usage: "regular expression matching the CLI prompt"},
	{flag: "ssh-args", key: "ssh_args", usage: "extra ssh options (-p, -o User=, -o Ciphers=...)"},
	{flag: "key-accept", key: "key_accept", usage: "accept unknown ssh host keys", boolean: true},
	{flag: "transport", key: "transport", usage: "NX-API scheme: http or https"},
	{flag: "port", key: "port", usage: "NX-API port"},
	{flag: "verify", key: "verify", usage: "NX-API TLS verification: true, false or a CA bundle path"},
	{flag: "platform", key: "platform", usage: platformUsage()},
	{flag: "file-root", key: "file_root", usage: "directory salt:// sources are resolved against"},
}

func platformUsage() string {
	names := lo.Map(platform.Available(), func(d platform.Driver, _ int) string { return d.Name() })
	return fmt.Sprintf("switch platform driver: %s or %s (default %s)", platform.Auto, strings.Join(names, ", "), platform.Default)
}

func newApp(out io.Writer) *app {
	return &app{
		v:       config.NewViper(),
		out:     out,
		metrics: prometheus.NewRegistry(),
	}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "nxproxy",
		Short:         "Run exec and configuration commands on Cisco NX-OS switches",
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "YAML configuration file (default: "+config.FileName+" in ./, ~/.config/nxproxy/ or /etc/nxproxy/)")
	flags.StringVar(&a.worker, "worker", "", "worker id owning the session (default: process id)")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text, json or yaml")
	flags.BoolVar(&a.dumpStats, "stats", false, "log session metrics when the command finishes")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	for _, f := range proxyFlags {
		if f.boolean {
			flags.Bool(f.flag, false, f.usage)
		} else {
			flags.String(f.flag, "", f.usage)
		}
		_ = a.v.BindPFlag(f.key, flags.Lookup(f.flag))
	}

	root.AddCommand(
		a.pingCommand(),
		a.statusCommand(),
		a.showCommand(),
		a.sendlineCommand(),
		a.configCommand(),
		a.deleteConfigCommand(),
		a.replaceCommand(),
		a.findCommand(),
		a.grainsCommand(),
		a.saveCommand(),
		a.userCommand(),
		a.execCommand(),
	)
	return root
}

// load resolves the configuration and builds the proxy once
func (a *app) load() (*services.Executor, error) {
	if a.executor != nil {
		return a.executor, nil
	}
	cfg, err := config.Load(a.configFile, a.v)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyLogLevel(); err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		log.Debug().Str("file", cfg.Source).Msg("Configuration loaded")
	}

	proxy, err := services.NewProxyService(services.Options{
		Spec:       cfg.Proxy,
		Platform:   cfg.Platform,
		FileRoot:   cfg.FileRoot,
		Worker:     entities.WorkerID(a.worker),
		Registerer: a.metrics,
		Settings:   cfg.Reader(),
	})
	if err != nil {
		return nil, err
	}
	a.proxy = proxy
	a.executor = services.NewExecutor(proxy)
	return a.executor, nil
}

// run executes one named operation and prints its result
func (a *app) run(cmd *cobra.Command, name string, args map[string]any) error {
	executor, err := a.load()
	if err != nil {
		return err
	}
	result, err := executor.Execute(cmd.Context(), name, args)
	if err != nil {
		return err
	}
	return render(a.out, a.output, result)
}

func (a *app) close() error {
	if a.proxy == nil {
		return nil
	}
	if a.dumpStats {
		a.logStats()
	}
	return a.proxy.Close()
}

func (a *app) logStats() {
	families, err := a.metrics.Gather()
	if err != nil {
		log.Warn().Err(err).Msg("could not gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			event := log.Info().Str("metric", mf.GetName())
			for _, label := range m.GetLabel() {
				event = event.Str(label.GetName(), label.GetValue())
			}
			value := m.GetCounter().GetValue()
			if m.GetGauge() != nil {
				value = m.GetGauge().GetValue()
			}
			event.Float64("value", value).Msg("Session metric")
		}
	}
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout)
	err := a.rootCommand().ExecuteContext(ctx)
	if closeErr := a.close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("Closing the session failed")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
