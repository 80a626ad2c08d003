package ports

import "context"

// ConfigReader exposes key/value settings from the host environment
type ConfigReader interface {
	Get(key string) any
	GetString(key string) string
	GetBool(key string) bool
	IsSet(key string) bool
}

// FileFetcher retrieves the contents of a configuration source. An empty
// result with a nil error means the source does not exist.
type FileFetcher interface {
	Fetch(ctx context.Context, source string) (string, error)
}

// TemplateRenderer renders configuration text through a named engine
type TemplateRenderer interface {
	Render(engine, text string, data map[string]any) (string, error)
}

// PasswordHasher hashes a password in crypt(3) format
type PasswordHasher interface {
	Hash(password, salt, algorithm string) (string, error)
}

// Executor runs a named public operation with loosely typed arguments
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}
