package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/samber/lo"
	"github.com/spf13/cast"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
	"github.com/carlosrabelo/nxproxy/domain/ports"
	"github.com/carlosrabelo/nxproxy/domain/services"
)

// ErrUnknownOperation is returned by Execute for names it does not know
var ErrUnknownOperation = errors.New("unknown operation")

// RawTextUsage is returned when show gets a raw_text that is not a boolean
const RawTextUsage = "INPUT ERROR: Second argument 'raw_text' must be either True or False\n" +
	"Value passed: %v\n" +
	"Hint: White space separated show commands should be wrapped by double quotes"

type operation func(ctx context.Context, args map[string]any) (any, error)

// offline operations run before platform detection has happened
var offline = map[string]bool{"shutdown": true, "status": true}

// Executor runs the public operations by name. Arguments arrive loosely
// typed, as they do from the command line or a remote caller.
type Executor struct {
	proxy *ProxyService
	ops   map[string]operation
}

var _ ports.Executor = (*Executor)(nil)

func NewExecutor(proxy *ProxyService) *Executor {
	e := &Executor{proxy: proxy}
	e.ops = map[string]operation{
		"ping":                e.ping,
		"status":              e.status,
		"sendline":            e.sendline,
		"show":                e.show,
		"show_run":            e.showRun,
		"show_ver":            e.showVer,
		"system_info":         e.systemInfo,
		"grains":              e.grains,
		"grains_refresh":      e.grainsRefresh,
		"shutdown":            e.shutdown,
		"find":                e.find,
		"config":              e.config,
		"add_config":          e.addConfig,
		"delete_config":       e.deleteConfig,
		"save_running_config": e.saveRunningConfig,
		"replace":             e.replace,
		"get_user":            e.getUser,
		"get_roles":           e.getRoles,
		"check_role":          e.checkRole,
		"check_password":      e.checkPassword,
		"set_password":        e.setPassword,
		"lock_password":       e.lockPassword,
		"unlock_password":     e.unlockPassword,
		"del_password":        e.delPassword,
		"set_role":            e.setRole,
		"unset_role":          e.unsetRole,
		"remove_user":         e.removeUser,
	}
	return e
}

// Operations lists the names Execute accepts
func (e *Executor) Operations() []string {
	names := lo.Keys(e.ops)
	sort.Strings(names)
	return names
}

// Execute runs the named operation. Usage errors are returned as the result
// value so callers print them the way the device would.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	normalized := strings.ReplaceAll(strings.ToLower(name), "-", "_")
	op, ok := e.ops[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	if e.proxy.detect && !offline[normalized] {
		if err := e.proxy.Init(ctx); err != nil {
			return nil, err
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	result, err := op(ctx, args)
	var usage *nxerrors.UsageError
	if errors.As(err, &usage) {
		return usage.Message, nil
	}
	return result, err
}

func decode(args map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(args); err != nil {
		return &nxerrors.UsageError{Message: fmt.Sprintf("INPUT ERROR: %v", err)}
	}
	return nil
}

// strictBool accepts a boolean or its spelling, nothing else; nil yields def
func strictBool(value any, def bool) (bool, bool) {
	switch v := value.(type) {
	case nil:
		return def, true
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true":
			return true, true
		case "false":
			return false, true
		}
	}
	return false, false
}

type commandArgs struct {
	Commands any    `mapstructure:"commands"`
	Method   string `mapstructure:"method"`
	RawText  any    `mapstructure:"raw_text"`
}

type saveArgs struct {
	SaveConfig *bool `mapstructure:"save_config"`
}

type configArgs struct {
	Commands       any            `mapstructure:"commands"`
	ConfigFile     string         `mapstructure:"config_file"`
	TemplateEngine string         `mapstructure:"template_engine"`
	Context        map[string]any `mapstructure:"context"`
	Defaults       map[string]any `mapstructure:"defaults"`
	SaveConfig     *bool          `mapstructure:"save_config"`
}

type replaceArgs struct {
	OldValue   string `mapstructure:"old_value"`
	NewValue   string `mapstructure:"new_value"`
	FullMatch  bool   `mapstructure:"full_match"`
	SaveConfig *bool  `mapstructure:"save_config"`
}

type userArgs struct {
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Role       string `mapstructure:"role"`
	Roles      string `mapstructure:"roles"`
	Encrypted  bool   `mapstructure:"encrypted"`
	CryptSalt  string `mapstructure:"crypt_salt"`
	Algorithm  string `mapstructure:"algorithm"`
	SaveConfig *bool  `mapstructure:"save_config"`
}

func (a userArgs) passwordOptions() services.PasswordOptions {
	return services.PasswordOptions{
		Encrypted: a.Encrypted,
		Role:      a.Role,
		Salt:      a.CryptSalt,
		Algorithm: a.Algorithm,
		Save:      a.SaveConfig,
	}
}

func (a userArgs) require(fields ...string) error {
	values := map[string]string{"username": a.Username, "password": a.Password, "role": a.Role}
	for _, f := range fields {
		if values[f] == "" {
			return &nxerrors.UsageError{Message: fmt.Sprintf("INPUT ERROR: argument '%s' is required", f)}
		}
	}
	return nil
}

func decodeUser(args map[string]any, fields ...string) (userArgs, error) {
	var a userArgs
	if err := decode(args, &a); err != nil {
		return a, err
	}
	return a, a.require(fields...)
}

// report keeps a nil report a nil interface
func report(r *entities.ConfigReport, err error) (any, error) {
	if err != nil || r == nil {
		return nil, err
	}
	return r, nil
}

func (e *Executor) ping(ctx context.Context, _ map[string]any) (any, error) {
	return e.proxy.Dispatcher.Ping(ctx), nil
}

func (e *Executor) status(ctx context.Context, _ map[string]any) (any, error) {
	return e.proxy.Status(ctx), nil
}

func (e *Executor) sendline(ctx context.Context, args map[string]any) (any, error) {
	var a commandArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.Method == "" {
		a.Method = string(entities.ModeShowASCII)
	}
	return e.proxy.Dispatcher.Sendline(ctx, a.Commands, a.Method)
}

func (e *Executor) show(ctx context.Context, args map[string]any) (any, error) {
	var a commandArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	rawText, ok := strictBool(a.RawText, true)
	if !ok {
		return nil, &nxerrors.UsageError{Message: fmt.Sprintf(RawTextUsage, a.RawText)}
	}
	return e.proxy.Dispatcher.Show(ctx, a.Commands, rawText)
}

func (e *Executor) showRun(ctx context.Context, _ map[string]any) (any, error) {
	return e.proxy.Dispatcher.ShowRun(ctx)
}

func (e *Executor) showVer(ctx context.Context, _ map[string]any) (any, error) {
	return e.proxy.Dispatcher.ShowVer(ctx)
}

func (e *Executor) systemInfo(ctx context.Context, _ map[string]any) (any, error) {
	return e.proxy.Dispatcher.SystemInfo(ctx)
}

func (e *Executor) grains(ctx context.Context, _ map[string]any) (any, error) {
	return e.proxy.Dispatcher.Grains(ctx)
}

func (e *Executor) grainsRefresh(ctx context.Context, _ map[string]any) (any, error) {
	return e.proxy.Dispatcher.GrainsRefresh(ctx)
}

func (e *Executor) shutdown(context.Context, map[string]any) (any, error) {
	return e.proxy.Dispatcher.Shutdown(), nil
}

func (e *Executor) find(ctx context.Context, args map[string]any) (any, error) {
	pattern := cast.ToString(args["pattern"])
	if pattern == "" {
		return nil, &nxerrors.UsageError{Message: "INPUT ERROR: argument 'pattern' is required"}
	}
	return e.proxy.Dispatcher.Find(ctx, pattern)
}

func (e *Executor) config(ctx context.Context, args map[string]any) (any, error) {
	var a configArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	return report(e.proxy.Applier.Config(ctx, services.ConfigRequest{
		Commands:       a.Commands,
		ConfigFile:     a.ConfigFile,
		TemplateEngine: a.TemplateEngine,
		Context:        a.Context,
		Defaults:       a.Defaults,
		SaveConfig:     a.SaveConfig,
	}))
}

func (e *Executor) addConfig(ctx context.Context, args map[string]any) (any, error) {
	var a saveArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	return report(e.proxy.Applier.AddConfig(ctx, args["commands"], a.SaveConfig))
}

func (e *Executor) deleteConfig(ctx context.Context, args map[string]any) (any, error) {
	var a saveArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	lines, ok := args["lines"]
	if !ok {
		lines = args["commands"]
	}
	return report(e.proxy.Applier.DeleteConfig(ctx, lines, a.SaveConfig))
}

func (e *Executor) saveRunningConfig(ctx context.Context, _ map[string]any) (any, error) {
	return report(e.proxy.Applier.SaveRunningConfig(ctx))
}

func (e *Executor) replace(ctx context.Context, args map[string]any) (any, error) {
	var a replaceArgs
	if err := decode(args, &a); err != nil {
		return nil, err
	}
	if a.OldValue == "" {
		return nil, &nxerrors.UsageError{Message: "INPUT ERROR: argument 'old_value' is required"}
	}
	return e.proxy.Applier.Replace(ctx, a.OldValue, a.NewValue, a.FullMatch, a.SaveConfig)
}

func (e *Executor) getUser(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username")
	if err != nil {
		return nil, err
	}
	return e.proxy.Users.GetUser(ctx, a.Username)
}

func (e *Executor) getRoles(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username")
	if err != nil {
		return nil, err
	}
	return e.proxy.Users.GetRoles(ctx, a.Username)
}

func (e *Executor) checkRole(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username")
	if err != nil {
		return nil, err
	}
	role := lo.Ternary(a.Roles != "", a.Roles, a.Role)
	return e.proxy.Users.CheckRole(ctx, a.Username, role)
}

func (e *Executor) checkPassword(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username", "password")
	if err != nil {
		return nil, err
	}
	ok, err := e.proxy.Users.CheckPassword(ctx, a.Username, a.Password, a.Encrypted)
	if err != nil || ok == nil {
		return nil, err
	}
	return *ok, nil
}

func (e *Executor) setPassword(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username", "password")
	if err != nil {
		return nil, err
	}
	return report(e.proxy.Users.SetPassword(ctx, a.Username, a.Password, a.passwordOptions()))
}

func (e *Executor) lockPassword(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username")
	if err != nil {
		return nil, err
	}
	return report(e.proxy.Users.LockPassword(ctx, a.Username, a.SaveConfig))
}

func (e *Executor) unlockPassword(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username", "password")
	if err != nil {
		return nil, err
	}
	return report(e.proxy.Users.UnlockPassword(ctx, a.Username, a.Password, a.passwordOptions()))
}

func (e *Executor) delPassword(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username")
	if err != nil {
		return nil, err
	}
	return report(e.proxy.Users.DelPassword(ctx, a.Username, a.SaveConfig))
}

func (e *Executor) setRole(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username", "role")
	if err != nil {
		return nil, err
	}
	return report(e.proxy.Users.SetRole(ctx, a.Username, a.Role, a.SaveConfig))
}

func (e *Executor) unsetRole(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username", "role")
	if err != nil {
		return nil, err
	}
	return report(e.proxy.Users.UnsetRole(ctx, a.Username, a.Role, a.SaveConfig))
}

func (e *Executor) removeUser(ctx context.Context, args map[string]any) (any, error) {
	a, err := decodeUser(args, "username")
	if err != nil {
		return nil, err
	}
	return report(e.proxy.Users.RemoveUser(ctx, a.Username, a.SaveConfig))
}
