package services

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/ports"
	"github.com/carlosrabelo/nxproxy/domain/services"
	"github.com/carlosrabelo/nxproxy/infrastructure/capabilities"
	"github.com/carlosrabelo/nxproxy/infrastructure/session"
	"github.com/carlosrabelo/nxproxy/infrastructure/transport"
	"github.com/carlosrabelo/nxproxy/platform"
)

// Options configure a ProxyService. Only Spec is required.
type Options struct {
	Spec     entities.ConnectionSpec
	Platform string
	FileRoot string
	Worker   entities.WorkerID

	// Registerer receives the session metrics; nil keeps them unregistered
	Registerer prometheus.Registerer
	// Factory overrides the transport factory
	Factory  ports.TransportFactory
	Fetcher  ports.FileFetcher
	Renderer ports.TemplateRenderer
	Hasher   ports.PasswordHasher
	// Settings are handed to configuration templates as .opts
	Settings ports.ConfigReader
}

// ProxyService wires the session registry, the platform driver and the
// domain services for one worker
type ProxyService struct {
	Dispatcher *services.Dispatcher
	Applier    *services.ConfigApplier
	Users      *services.Users

	registry *session.Registry
	worker   entities.WorkerID
	kind     entities.TransportKind
	driver   platform.Driver
	detect   bool
}

// Status is the health report of the worker session
type Status struct {
	Worker      entities.WorkerID      `json:"worker" yaml:"worker"`
	Transport   entities.TransportKind `json:"transport" yaml:"transport"`
	Platform    string                 `json:"platform" yaml:"platform"`
	Initialized bool                   `json:"initialized" yaml:"initialized"`
	State       string                 `json:"state" yaml:"state"`
	Error       string                 `json:"error,omitempty" yaml:"error,omitempty"`
}

// NewProxyService creates the service without connecting. With platform
// auto the default driver is used until Init detects the device.
func NewProxyService(opts Options) (*ProxyService, error) {
	detect := platform.IsAuto(opts.Platform)
	if detect {
		opts.Platform = ""
	}
	driver, err := platform.Get(opts.Platform)
	if err != nil {
		return nil, err
	}

	spec := opts.Spec.WithDefaults()
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	factory := opts.Factory
	if factory == nil {
		factory = transport.New
	}
	if opts.Worker == "" {
		opts.Worker = entities.CurrentWorker()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = capabilities.NewFileFetcher(opts.FileRoot)
	}
	if opts.Renderer == nil {
		opts.Renderer = capabilities.NewTemplateRenderer()
	}
	if opts.Hasher == nil {
		opts.Hasher = capabilities.NewCryptHasher()
	}

	registry := session.NewRegistry(spec, withAuthSequence(factory, driver, spec), session.NewMetrics(opts.Registerer))
	dispatcher := services.NewDispatcher(registry.ForWorker(opts.Worker), driver, spec.Kind)
	applier := services.NewConfigApplier(dispatcher, opts.Fetcher, opts.Renderer).WithSettings(opts.Settings)

	log.Debug().
		Str("component", "proxy").
		Str("host", spec.Endpoint()).
		Str("transport", string(spec.Kind)).
		Str("platform", lo.Ternary(detect, platform.Auto, driver.Name())).
		Str("worker", string(opts.Worker)).
		Msg("Proxy service created")

	return &ProxyService{
		Dispatcher: dispatcher,
		Applier:    applier,
		Users:      services.NewUsers(dispatcher, applier, opts.Hasher),
		registry:   registry,
		worker:     opts.Worker,
		kind:       spec.Kind,
		driver:     driver,
		detect:     detect,
	}, nil
}

// authSequencer is implemented by transports that log in interactively
type authSequencer interface {
	SetAuthSequence(prompts []entities.AuthPrompt)
}

// withAuthSequence hands the driver's login prompts to transports that need them
func withAuthSequence(factory ports.TransportFactory, driver platform.Driver, spec entities.ConnectionSpec) ports.TransportFactory {
	return func(s entities.ConnectionSpec) (ports.Transport, error) {
		t, err := factory(s)
		if err != nil {
			return nil, err
		}
		if seq, ok := t.(authSequencer); ok {
			seq.SetAuthSequence(driver.AuthenticationSequence(spec.Username, spec.Password))
		}
		return t, nil
	}
}

// Init opens the worker session, detects the platform when asked to and
// marks the session initialized
func (p *ProxyService) Init(ctx context.Context) error {
	if _, err := p.registry.GetOrCreate(ctx, p.worker); err != nil {
		return err
	}
	if p.detect {
		driver, err := p.Dispatcher.DetectPlatform(ctx)
		if err != nil {
			return err
		}
		p.driver = driver
		p.detect = false
	}
	p.registry.MarkInitialized(p.worker)
	return nil
}

// Status initializes the session if needed and reports its health. A
// failed connect is part of the report, not an error.
func (p *ProxyService) Status(ctx context.Context) Status {
	err := p.Init(ctx)
	status := Status{
		Worker:      p.worker,
		Transport:   p.kind,
		Platform:    p.Platform(),
		Initialized: p.Initialized(),
		State:       p.State().String(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status
}

// Initialized reports whether Init succeeded for this worker
func (p *ProxyService) Initialized() bool {
	return p.registry.IsInitialized(p.worker)
}

// State returns the worker session state
func (p *ProxyService) State() entities.SessionState {
	return p.registry.State(p.worker)
}

func (p *ProxyService) Worker() entities.WorkerID { return p.worker }

// Platform names the active driver, or auto while detection is pending
func (p *ProxyService) Platform() string {
	if p.detect {
		return platform.Auto
	}
	return p.driver.Name()
}

// Close tears down every session the service opened
func (p *ProxyService) Close() error {
	return p.registry.Close()
}
