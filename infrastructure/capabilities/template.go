package capabilities

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/carlosrabelo/nxproxy/domain/ports"
)

// GoTemplateEngines are the engine names rendered with text/template
var GoTemplateEngines = []string{"gotmpl", "go", "text/template"}

// TemplateRenderer renders configuration text with text/template and the
// sprig function library
type TemplateRenderer struct{}

func NewTemplateRenderer() *TemplateRenderer {
	return &TemplateRenderer{}
}

func (r *TemplateRenderer) Render(engine, text string, data map[string]any) (string, error) {
	if !isGoTemplate(engine) {
		return "", errors.Errorf("template engine %s is not supported, use one of %s", engine, strings.Join(GoTemplateEngines, ", "))
	}
	tmpl, err := template.New("config").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse configuration template")
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", errors.Wrap(err, "failed to render configuration template")
	}
	return out.String(), nil
}

func isGoTemplate(engine string) bool {
	engine = strings.ToLower(strings.TrimSpace(engine))
	for _, e := range GoTemplateEngines {
		if e == engine {
			return true
		}
	}
	return false
}

var _ ports.TemplateRenderer = (*TemplateRenderer)(nil)
