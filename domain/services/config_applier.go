package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
	"github.com/carlosrabelo/nxproxy/domain/ports"
)

// ErrNoConfigSource is returned when a request names neither commands nor a file
var ErrNoConfigSource = errors.New("either commands or config_file must be specified")

// bannerLines are the volatile timestamp lines at the top of running-config
const bannerLines = 4

const diffHeader = "--- \n+++ \n"

// settingsKey exposes the host settings to configuration templates
const settingsKey = "opts"

// ConfigRequest describes one configuration apply. Commands is a string or a
// list of strings; ConfigFile is used when set. SaveConfig overrides the
// session default when not nil.
type ConfigRequest struct {
	Commands       any
	ConfigFile     string
	TemplateEngine string
	Context        map[string]any
	Defaults       map[string]any
	SaveConfig     *bool
}

// ConfigApplier applies configuration and reports the running-config diff
type ConfigApplier struct {
	dispatcher *Dispatcher
	fetcher    ports.FileFetcher
	renderer   ports.TemplateRenderer
	settings   ports.ConfigReader
	logger     zerolog.Logger
}

// NewConfigApplier creates an applier; fetcher and renderer may be nil when
// only inline commands are applied
func NewConfigApplier(dispatcher *Dispatcher, fetcher ports.FileFetcher, renderer ports.TemplateRenderer) *ConfigApplier {
	return &ConfigApplier{
		dispatcher: dispatcher,
		fetcher:    fetcher,
		renderer:   renderer,
		logger:     log.With().Str("component", "config").Logger(),
	}
}

// WithSettings makes the host settings available to templates as .opts,
// unless the request context defines that key itself
func (a *ConfigApplier) WithSettings(settings ports.ConfigReader) *ConfigApplier {
	a.settings = settings
	return a
}

// Config applies the request and returns the executed commands, the device
// result and the running-config diff
func (a *ConfigApplier) Config(ctx context.Context, req ConfigRequest) (*entities.ConfigReport, error) {
	before, err := a.dispatcher.ShowRun(ctx)
	if err != nil {
		return nil, err
	}
	text, err := a.source(ctx, req)
	if err != nil {
		return nil, err
	}
	batch := lo.FilterMap(strings.Split(text, "\n"), func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})

	save, err := a.dispatcher.saveOnApply(ctx)
	if err != nil {
		return nil, err
	}
	if req.SaveConfig != nil {
		save = *req.SaveConfig
	}
	commands, result, err := a.dispatcher.ProxyConfig(ctx, batch, save)
	if err != nil {
		return nil, err
	}

	after, err := a.dispatcher.ShowRun(ctx)
	if err != nil {
		return nil, err
	}
	diff, err := configDiff(before, after)
	if err != nil {
		return nil, fmt.Errorf("diff running-config: %w", err)
	}
	a.logger.Info().Strs("commands", commands).Bool("save", save).Msg("configuration applied")
	return &entities.ConfigReport{Commands: commands, Result: renderResult(result), Diff: diff}, nil
}

func (a *ConfigApplier) source(ctx context.Context, req ConfigRequest) (string, error) {
	if req.ConfigFile != "" {
		if a.fetcher == nil {
			return "", &nxerrors.ConfigSourceNotFoundError{Source: req.ConfigFile}
		}
		text, err := a.fetcher.Fetch(ctx, req.ConfigFile)
		if err != nil {
			return "", err
		}
		if text == "" {
			return "", &nxerrors.ConfigSourceNotFoundError{Source: req.ConfigFile}
		}
		if req.TemplateEngine == "" || a.renderer == nil {
			return text, nil
		}
		data := lo.Assign(req.Defaults, req.Context)
		if _, ok := data[settingsKey]; !ok && a.settings != nil {
			data[settingsKey] = a.settings
		}
		return a.renderer.Render(req.TemplateEngine, text, data)
	}
	if req.Commands == nil {
		return "", ErrNoConfigSource
	}
	batch, err := entities.NormalizeBatch(req.Commands)
	if err != nil {
		return "", fmt.Errorf("config: %w", err)
	}
	return strings.Join(batch, "\n"), nil
}

// AddConfig applies commands; it is Config with an inline source
func (a *ConfigApplier) AddConfig(ctx context.Context, commands any, save *bool) (*entities.ConfigReport, error) {
	return a.Config(ctx, ConfigRequest{Commands: commands, SaveConfig: save})
}

// DeleteConfig negates each line and applies them at once. A rejection with
// code 400 means the lines were already absent and yields a nil report.
func (a *ConfigApplier) DeleteConfig(ctx context.Context, lines any, save *bool) (*entities.ConfigReport, error) {
	batch, err := entities.NormalizeBatch(lines)
	if err != nil {
		return nil, fmt.Errorf("delete config: %w", err)
	}
	negated := lo.Map(batch, func(line string, _ int) string { return "no " + line })
	report, err := a.Config(ctx, ConfigRequest{Commands: negated, SaveConfig: save})
	if nxerrors.RejectedWithCode(err, entities.CodeInputError) {
		a.logger.Debug().Err(err).Strs("commands", negated).Msg("lines already absent")
		return nil, nil
	}
	return report, err
}

// SaveRunningConfig copies running-config to startup-config
func (a *ConfigApplier) SaveRunningConfig(ctx context.Context) (*entities.ConfigReport, error) {
	return a.Config(ctx, ConfigRequest{Commands: a.dispatcher.driver.SaveCommands()})
}

// Replace swaps every running-config line matching old. Unless fullMatch is
// set, old is a literal and matches any line containing it.
func (a *ConfigApplier) Replace(ctx context.Context, old, replacement string, fullMatch bool, save *bool) (entities.ReplaceResult, error) {
	result := entities.ReplaceResult{Old: []string{}, New: []string{}}
	var matcher, repl *regexp.Regexp
	if fullMatch {
		re, err := regexp.Compile("(?m)" + old)
		if err != nil {
			return result, &nxerrors.UsageError{Message: fmt.Sprintf("invalid pattern %q: %v", old, err)}
		}
		matcher, repl = re, re
	} else {
		quoted := regexp.QuoteMeta(old)
		matcher = regexp.MustCompile("(?m)^.*" + quoted + ".*$")
		repl = regexp.MustCompile(quoted)
	}

	text, err := a.dispatcher.ShowRun(ctx)
	if err != nil {
		return result, err
	}
	for _, line := range matcher.FindAllString(strings.ReplaceAll(text, "\r", ""), -1) {
		result.Old = append(result.Old, line)
		if fullMatch {
			result.New = append(result.New, repl.ReplaceAllString(line, replacement))
		} else {
			result.New = append(result.New, repl.ReplaceAllLiteralString(line, replacement))
		}
	}

	if len(result.Old) > 0 {
		if _, err := a.DeleteConfig(ctx, result.Old, save); err != nil {
			return result, err
		}
	}
	if len(result.New) > 0 {
		if _, err := a.AddConfig(ctx, result.New, save); err != nil {
			return result, err
		}
	}
	return result, nil
}

// configDiff is a unified diff of two running-configs without their banners
func configDiff(before, after string) (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       configLines(before),
		B:       configLines(after),
		Context: 3,
	})
	if err != nil || diff == "" {
		return diff, err
	}
	return diffHeader + diff, nil
}

func configLines(text string) []string {
	lines := strings.SplitAfter(strings.ReplaceAll(text, "\r", ""), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= bannerLines {
		return []string{}
	}
	return lines[bannerLines:]
}

// renderResult flattens a device result: maps contribute their values in
// key order, lists each of their items
func renderResult(result any) string {
	switch v := result.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		keys := lo.Keys(v)
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			b.WriteString(renderResult(v[k]))
		}
		return b.String()
	case []any:
		var b strings.Builder
		for _, item := range v {
			b.WriteString(renderResult(item))
		}
		return b.String()
	}
	return cast.ToString(result)
}
