package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// render prints an operation result. Text output keeps strings and string
// lists readable and falls back to YAML for structured values.
func render(w io.Writer, format string, result any) error {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %v", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		return writeYAML(w, result)
	case "text", "":
	default:
		return fmt.Errorf("output %s is invalid, must be 'text', 'json' or 'yaml'", format)
	}

	switch v := result.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(w, strings.TrimRight(v, "\n"))
		return err
	case fmt.Stringer:
		_, err := fmt.Fprint(w, v.String())
		return err
	case bool:
		_, err := fmt.Fprintln(w, v)
		return err
	case []string:
		_, err := fmt.Fprintln(w, strings.Join(v, "\n"))
		return err
	case []any:
		if lines, err := cast.ToStringSliceE(v); err == nil && allStrings(v) {
			_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(lines, "\n"), "\n"))
			return err
		}
	}
	return writeYAML(w, result)
}

func writeYAML(w io.Writer, result any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %v", err)
	}
	return enc.Close()
}

func allStrings(items []any) bool {
	for _, item := range items {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}
