package capabilities

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carlosrabelo/nxproxy/domain/ports"
)

const (
	SaltScheme = "salt://"
	FileScheme = "file://"

	DefaultFetchTimeout = 30 * time.Second
)

// FileFetcher reads configuration sources. salt:// paths resolve against the
// file root, http(s) URLs are downloaded and anything else is a local path.
// A source that does not exist yields "" and no error.
type FileFetcher struct {
	root   string
	client *resty.Client
	logger zerolog.Logger
}

// NewFileFetcher creates a fetcher rooted at root
func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{
		root:   root,
		client: resty.New().SetTimeout(DefaultFetchTimeout),
		logger: log.With().Str("component", "fetcher").Logger(),
	}
}

func (f *FileFetcher) Fetch(ctx context.Context, source string) (string, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return f.fetchURL(ctx, source)
	case strings.HasPrefix(source, SaltScheme):
		rel := filepath.Clean("/" + strings.TrimPrefix(source, SaltScheme))
		return f.readFile(filepath.Join(f.root, rel))
	case strings.HasPrefix(source, FileScheme):
		return f.readFile(strings.TrimPrefix(source, FileScheme))
	}
	return f.readFile(source)
}

func (f *FileFetcher) readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		f.logger.Debug().Str("path", path).Msg("config source does not exist")
		return "", nil
	}
	if err != nil {
		return "", errors.Wrapf(err, "failed to read %s", path)
	}
	return string(data), nil
}

func (f *FileFetcher) fetchURL(ctx context.Context, url string) (string, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch %s", url)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", nil
	}
	if resp.IsError() {
		return "", errors.Errorf("failed to fetch %s: %s", url, resp.Status())
	}
	return resp.String(), nil
}

var _ ports.FileFetcher = (*FileFetcher)(nil)
