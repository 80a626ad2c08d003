package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
	"github.com/carlosrabelo/nxproxy/domain/ports"
	"github.com/carlosrabelo/nxproxy/platform"
)

const grainsKey = "grains"

// MethodUsage is returned when Sendline gets an unknown NX-API method
const MethodUsage = "INPUT ERROR: Second argument 'method' must be one of %s\n" +
	"Value passed: %s\n" +
	"Hint: White space separated commands should be wrapped by double quotes"

// Dispatcher routes the public command surface to the worker's session
type Dispatcher struct {
	sessions ports.SessionProvider
	driver   platform.Driver
	kind     entities.TransportKind
	grains   *cache.Cache
	logger   zerolog.Logger
}

// NewDispatcher creates a dispatcher for one worker; kind names the
// configured transport so Shutdown can answer without connecting
func NewDispatcher(sessions ports.SessionProvider, driver platform.Driver, kind entities.TransportKind) *Dispatcher {
	return &Dispatcher{
		sessions: sessions,
		driver:   driver,
		kind:     kind,
		grains:   cache.New(cache.NoExpiration, 0),
		logger:   log.With().Str("component", "dispatcher").Str("transport", string(kind)).Logger(),
	}
}

// Ping reports whether the device answers. Terminal sessions get one
// reconnect attempt; no error is ever returned.
func (d *Dispatcher) Ping(ctx context.Context) bool {
	s, err := d.sessions.Session(ctx)
	if err != nil {
		d.logger.Debug().Err(err).Msg("ping could not open a session")
		return false
	}
	if s.IsAlive() {
		return true
	}
	if s.Kind() == entities.TransportNXAPI {
		return false
	}
	if err := s.Reconnect(ctx); err != nil {
		d.logger.Debug().Err(err).Msg("ping reconnect failed")
		return false
	}
	return true
}

// Sendline runs commands with the given NX-API method name. An unknown
// method yields a UsageError carrying the usage text.
func (d *Dispatcher) Sendline(ctx context.Context, commands any, method string) ([]any, error) {
	mode, ok := entities.ParseMode(method)
	if !ok {
		return nil, &nxerrors.UsageError{Message: methodUsage(method)}
	}
	batch, err := entities.NormalizeBatch(commands)
	if err != nil {
		return nil, fmt.Errorf("sendline: %w", err)
	}
	return d.send(ctx, batch, mode)
}

func methodUsage(method string) string {
	modes := lo.Map(entities.Modes, func(m entities.Mode, _ int) string { return string(m) })
	return fmt.Sprintf(MethodUsage, "["+strings.Join(modes, ", ")+"]", method)
}

// Show runs show commands; the leading "show" verb is optional. Empty
// results are dropped, and a batch with only empty results yields [""].
func (d *Dispatcher) Show(ctx context.Context, commands any, rawText bool) ([]any, error) {
	batch, err := entities.NormalizeBatch(commands)
	if err != nil {
		return nil, fmt.Errorf("show: %w", err)
	}
	batch = lo.Map(batch, func(cmd string, _ int) string {
		return "show " + strings.TrimPrefix(strings.TrimSpace(cmd), "show ")
	})
	mode := entities.ModeShowASCII
	if !rawText {
		mode = entities.ModeShow
	}
	out, err := d.send(ctx, batch, mode)
	if err != nil {
		return nil, err
	}
	out = lo.Reject(out, func(item any, _ int) bool { return isEmpty(item) })
	if len(out) == 0 {
		return []any{""}, nil
	}
	return out, nil
}

func isEmpty(item any) bool {
	switch v := item.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case map[string]any:
		return len(v) == 0
	}
	return false
}

// ShowRun returns the running configuration text
func (d *Dispatcher) ShowRun(ctx context.Context) (string, error) {
	return d.first(ctx, d.driver.RunningConfigCommand())
}

// ShowVer returns the show version text
func (d *Dispatcher) ShowVer(ctx context.Context) (string, error) {
	return d.first(ctx, d.driver.VersionCommand())
}

func (d *Dispatcher) first(ctx context.Context, command string) (string, error) {
	out, err := d.send(ctx, []string{command}, entities.ModeShowASCII)
	if err != nil {
		return "", err
	}
	if len(out) == 0 {
		return "", nil
	}
	return cast.ToStringE(out[0])
}

// SystemInfo parses a fresh show version, bypassing the grains cache
func (d *Dispatcher) SystemInfo(ctx context.Context) (entities.Grains, error) {
	text, err := d.ShowVer(ctx)
	if err != nil {
		return entities.Grains{}, err
	}
	return d.driver.ParseGrains(text), nil
}

// Grains returns the cached device facts, collecting them on first use
func (d *Dispatcher) Grains(ctx context.Context) (entities.Grains, error) {
	if cached, ok := d.grains.Get(grainsKey); ok {
		return cached.(entities.Grains), nil
	}
	grains, err := d.SystemInfo(ctx)
	if err != nil {
		return entities.Grains{}, err
	}
	d.grains.Set(grainsKey, grains, cache.NoExpiration)
	return grains, nil
}

// DetectPlatform identifies the device from show version and switches to
// the matching driver. The parsed facts seed the grains cache.
func (d *Dispatcher) DetectPlatform(ctx context.Context) (platform.Driver, error) {
	text, err := d.ShowVer(ctx)
	if err != nil {
		return nil, err
	}
	driver, err := platform.Detect(text)
	if err != nil {
		return nil, err
	}
	d.driver = driver
	d.grains.Set(grainsKey, driver.ParseGrains(text), cache.NoExpiration)
	d.logger.Debug().Str("platform", driver.Name()).Msg("platform detected")
	return driver, nil
}

// GrainsRefresh drops the cached facts and collects them again
func (d *Dispatcher) GrainsRefresh(ctx context.Context) (entities.Grains, error) {
	d.grains.Delete(grainsKey)
	return d.Grains(ctx)
}

// Shutdown is not supported; the device session outlives the request
func (d *Dispatcher) Shutdown() string {
	return fmt.Sprintf("Shutdown of %s proxy is not supported", d.kind)
}

// Find returns every running-config match of a multiline pattern. A pattern
// with one capture group yields that group; with several, the groups of a
// match joined by spaces.
func (d *Dispatcher) Find(ctx context.Context, pattern string) ([]string, error) {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return nil, &nxerrors.UsageError{Message: fmt.Sprintf("invalid pattern %q: %v", pattern, err)}
	}
	text, err := d.ShowRun(ctx)
	if err != nil {
		return nil, err
	}
	text = strings.ReplaceAll(text, "\r", "")
	if re.NumSubexp() == 0 {
		matches := re.FindAllString(text, -1)
		if matches == nil {
			matches = []string{}
		}
		return matches, nil
	}
	return lo.Map(re.FindAllStringSubmatch(text, -1), func(groups []string, _ int) string {
		return strings.Join(groups[1:], " ")
	}), nil
}

// ProxyConfig applies configuration commands and optionally saves them. It
// returns the commands and the last non-blank device result.
func (d *Dispatcher) ProxyConfig(ctx context.Context, commands []string, save bool) ([]string, any, error) {
	s, err := d.sessions.Session(ctx)
	if err != nil {
		return commands, nil, err
	}
	var result any
	if s.Kind() == entities.TransportNXAPI {
		out, err := s.Send(ctx, commands, entities.ModeConf)
		if err != nil {
			return commands, nil, err
		}
		d.logFailures(out)
		result = out
	} else {
		if result, err = d.terminalConfig(ctx, s, commands); err != nil {
			return commands, nil, err
		}
	}
	if save {
		d.save(ctx, s)
	}
	return commands, result, nil
}

func (d *Dispatcher) terminalConfig(ctx context.Context, s ports.Session, commands []string) (any, error) {
	if _, err := s.Send(ctx, d.driver.ConfigPrologue(), entities.ModeConf); err != nil {
		return nil, err
	}
	var result any
	for i, cmd := range commands {
		out, err := s.Send(ctx, []string{cmd}, entities.ModeConf)
		if err != nil {
			if _, endErr := s.Send(ctx, d.driver.ConfigEpilogue(), entities.ModeConf); endErr != nil {
				d.logger.Warn().Err(endErr).Msg("could not leave configuration mode")
			}
			var rejected *nxerrors.CommandRejectedError
			if errors.As(err, &rejected) && rejected.PreviousCommands == nil {
				rejected.PreviousCommands = append([]string(nil), commands[:i]...)
			}
			return nil, err
		}
		for _, item := range out {
			if strings.TrimSpace(cast.ToString(item)) != "" {
				result = item
			}
		}
	}
	if _, err := s.Send(ctx, d.driver.ConfigEpilogue(), entities.ModeConf); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Dispatcher) save(ctx context.Context, s ports.Session) {
	out, err := s.Send(ctx, d.driver.SaveCommands(), entities.ModeConf)
	if err != nil {
		d.logger.Error().Err(err).Msg("could not save running-config")
		return
	}
	if s.Kind() == entities.TransportNXAPI {
		d.logFailures(out)
		return
	}
	for _, item := range out {
		if text := strings.TrimSpace(cast.ToString(item)); text != "" {
			d.logger.Error().Str("output", text).Msg("save running-config reported output")
		}
	}
}

func (d *Dispatcher) logFailures(out []any) {
	for _, item := range out {
		if text, ok := item.(string); ok && strings.Contains(text, "Failure") {
			d.logger.Error().Str("output", text).Msg("device reported a configuration failure")
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, commands []string, mode entities.Mode) ([]any, error) {
	s, err := d.sessions.Session(ctx)
	if err != nil {
		return nil, err
	}
	return s.Send(ctx, commands, mode)
}

// saveOnApply is the session default for persisting configuration changes
func (d *Dispatcher) saveOnApply(ctx context.Context) (bool, error) {
	s, err := d.sessions.Session(ctx)
	if err != nil {
		return false, err
	}
	return s.SaveConfigOnApply(), nil
}
