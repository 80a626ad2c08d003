package main

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// withSave adds save_config to args when --save or --no-save was given
func withSave(cmd *cobra.Command, args map[string]any) map[string]any {
	if cmd.Flags().Changed("save") {
		save, _ := cmd.Flags().GetBool("save")
		args["save_config"] = save
	}
	if cmd.Flags().Changed("no-save") {
		noSave, _ := cmd.Flags().GetBool("no-save")
		args["save_config"] = !noSave
	}
	return args
}

func addSaveFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("save", false, "copy running-config to startup-config afterwards")
	cmd.Flags().Bool("no-save", false, "leave startup-config untouched")
	cmd.MarkFlagsMutuallyExclusive("save", "no-save")
}

func (a *app) pingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the switch answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "ping", nil)
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Connect if needed and report the session state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "status", nil)
		},
	}
}

func (a *app) showCommand() *cobra.Command {
	var rawText string
	cmd := &cobra.Command{
		Use:     "show COMMAND...",
		Short:   "Run show commands; the leading \"show\" is optional",
		Example: "  nxproxy show version\n  nxproxy show --raw-text=false 'interface brief'",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "show", map[string]any{"commands": args, "raw_text": rawText})
		},
	}
	cmd.Flags().StringVar(&rawText, "raw-text", "true", "return plain text instead of structured output")
	return cmd
}

func (a *app) sendlineCommand() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "sendline COMMAND...",
		Short: "Send commands verbatim",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "sendline", map[string]any{"commands": args, "method": method})
		},
	}
	cmd.Flags().StringVar(&method, "method", "cli_show_ascii", "NX-API method: cli_show_ascii, cli_show or cli_conf")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	var (
		file     string
		engine   string
		context  map[string]string
		defaults map[string]string
	)
	cmd := &cobra.Command{
		Use:   "config [COMMAND...]",
		Short: "Apply configuration and show the running-config diff",
		Example: "  nxproxy config 'feature bgp' 'feature lldp'\n" +
			"  nxproxy config --file salt://nxos/ntp.cfg --template-engine gotmpl --context server=10.0.0.1",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := map[string]any{}
			if len(args) > 0 {
				opts["commands"] = args
			}
			if file != "" {
				opts["config_file"] = file
				opts["template_engine"] = engine
				opts["context"] = toAnyMap(context)
				opts["defaults"] = toAnyMap(defaults)
			}
			if len(opts) == 0 {
				return fmt.Errorf("either commands or --file is required")
			}
			return a.run(cmd, "config", withSave(cmd, opts))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "configuration source: a path, file://, salt:// or http(s) URL")
	cmd.Flags().StringVar(&engine, "template-engine", "", "render the file through this template engine")
	cmd.Flags().StringToStringVar(&context, "context", nil, "template variables")
	cmd.Flags().StringToStringVar(&defaults, "defaults", nil, "template defaults, overridden by --context")
	addSaveFlags(cmd)
	return cmd
}

func (a *app) deleteConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-config LINE...",
		Short: "Negate configuration lines",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "delete_config", withSave(cmd, map[string]any{"lines": args}))
		},
	}
	addSaveFlags(cmd)
	return cmd
}

func (a *app) replaceCommand() *cobra.Command {
	var fullMatch bool
	cmd := &cobra.Command{
		Use:   "replace OLD NEW",
		Short: "Replace running-config lines matching OLD",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "replace", withSave(cmd, map[string]any{
				"old_value":  args[0],
				"new_value":  args[1],
				"full_match": fullMatch,
			}))
		},
	}
	cmd.Flags().BoolVar(&fullMatch, "full-match", false, "treat OLD as a regular expression")
	addSaveFlags(cmd)
	return cmd
}

func (a *app) findCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "find PATTERN",
		Short: "Search running-config with a regular expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "find", map[string]any{"pattern": args[0]})
		},
	}
}

func (a *app) grainsCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "grains",
		Short: "Show software, hardware and plugin facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if refresh {
				return a.run(cmd, "grains_refresh", nil)
			}
			return a.run(cmd, "grains", nil)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "query the switch instead of the cache")
	return cmd
}

func (a *app) saveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Copy running-config to startup-config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, "save_running_config", nil)
		},
	}
}

func (a *app) userCommand() *cobra.Command {
	user := &cobra.Command{
		Use:   "user",
		Short: "Manage local user accounts",
	}

	simple := func(use, short, op string, withRole bool) *cobra.Command {
		nargs := 1
		if withRole {
			nargs = 2
		}
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(nargs),
			RunE: func(cmd *cobra.Command, args []string) error {
				opts := map[string]any{"username": args[0]}
				if withRole {
					opts["role"] = args[1]
				}
				return a.run(cmd, op, withSave(cmd, opts))
			},
		}
		addSaveFlags(cmd)
		return cmd
	}

	password := func(use, short, op string) *cobra.Command {
		var (
			encrypted bool
			role      string
			salt      string
			algorithm string
		)
		cmd := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, op, withSave(cmd, map[string]any{
					"username":   args[0],
					"password":   args[1],
					"encrypted":  encrypted,
					"role":       role,
					"crypt_salt": salt,
					"algorithm":  algorithm,
				}))
			},
		}
		cmd.Flags().BoolVar(&encrypted, "encrypted", false, "PASSWORD is already a crypt hash")
		cmd.Flags().StringVar(&role, "role", "", "role assigned with the password")
		cmd.Flags().StringVar(&salt, "salt", "", "crypt salt (default: random)")
		cmd.Flags().StringVar(&algorithm, "algorithm", "sha256", "hash algorithm: md5, sha256 or sha512")
		addSaveFlags(cmd)
		return cmd
	}

	check := &cobra.Command{
		Use:   "check-password USER PASSWORD",
		Short: "Compare a password with the configured hash",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			encrypted, _ := cmd.Flags().GetBool("encrypted")
			return a.run(cmd, "check_password", map[string]any{
				"username":  args[0],
				"password":  args[1],
				"encrypted": encrypted,
			})
		},
	}
	check.Flags().Bool("encrypted", false, "PASSWORD is already a crypt hash")

	roles := &cobra.Command{
		Use:   "roles USER",
		Short: "List the roles of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "get_roles", map[string]any{"username": args[0]})
		},
	}
	get := &cobra.Command{
		Use:   "get USER",
		Short: "Show the username line of running-config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, "get_user", map[string]any{"username": args[0]})
		},
	}

	user.AddCommand(
		get,
		roles,
		check,
		password("set-password USER PASSWORD", "Set a user's password", "set_password"),
		password("unlock USER PASSWORD", "Set a new password on a locked account", "unlock_password"),
		simple("lock USER", "Lock a user's password", "lock_password", false),
		simple("del-password USER", "Remove a user's password", "del_password", false),
		simple("set-role USER ROLE", "Assign a role", "set_role", true),
		simple("unset-role USER ROLE", "Remove a role", "unset_role", true),
		simple("remove USER", "Delete a user", "remove_user", false),
	)
	return user
}

func (a *app) execCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cmd OPERATION [KEY=VALUE...]",
		Short: "Run any operation by name with key=value arguments",
		Example: "  nxproxy cmd show commands='[clock, version]' raw_text=false\n" +
			"  nxproxy cmd set_role username=bob role=network-operator",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseKeyValues(args[1:])
			if err != nil {
				return err
			}
			return a.run(cmd, args[0], opts)
		},
	}
}

// parseKeyValues turns key=value words into typed arguments. Values are read
// as YAML scalars, lists or maps and fall back to the literal text.
func parseKeyValues(words []string) (map[string]any, error) {
	out := make(map[string]any, len(words))
	for _, word := range words {
		key, raw, ok := strings.Cut(word, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", word)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}

func toAnyMap(in map[string]string) map[string]any {
	return lo.MapValues(in, func(v string, _ string) any { return v })
}
