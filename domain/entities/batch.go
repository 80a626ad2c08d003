package entities

import (
	"fmt"
	"strings"
)

// NormalizeBatch turns a single command string or a list of commands into
// an ordered command batch. Nil yields an empty batch.
func NormalizeBatch(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("command %d is %T, want string", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported command batch type %T", v)
	}
}

// SplitChained re-splits a batch holding exactly one "a ; b" string so each
// command can be correlated with its own result.
func SplitChained(commands []string) []string {
	if len(commands) != 1 || !strings.Contains(commands[0], ";") {
		return commands
	}
	parts := strings.Split(commands[0], ";")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// JoinBatch renders a batch as one CLI line
func JoinBatch(commands []string) string {
	return strings.Join(commands, " ; ")
}
