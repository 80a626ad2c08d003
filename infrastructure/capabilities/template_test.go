package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateRenderer_Render(t *testing.T) {
	tests := []struct {
		name     string
		engine   string
		text     string
		data     map[string]any
		expected string
	}{
		{
			name:     "plain text",
			engine:   "gotmpl",
			text:     "feature bgp\n",
			expected: "feature bgp\n",
		},
		{
			name:     "context values",
			engine:   "go",
			text:     "router bgp {{ .asn }}\n  router-id {{ .router_id }}\n",
			data:     map[string]any{"asn": 65001, "router_id": "10.0.0.1"},
			expected: "router bgp 65001\n  router-id 10.0.0.1\n",
		},
		{
			name:     "sprig functions",
			engine:   "GOTMPL",
			text:     `{{ range .vlans }}vlan {{ . }}{{ "\n" }}{{ end }}hostname {{ .hostname | upper }}`,
			data:     map[string]any{"vlans": []int{10, 20}, "hostname": "leaf-101"},
			expected: "vlan 10\nvlan 20\nhostname LEAF-101",
		},
		{
			name:     "sprig default",
			engine:   "text/template",
			text:     `vrf context {{ .vrf | default "management" }}`,
			data:     map[string]any{"vrf": ""},
			expected: "vrf context management",
		},
	}

	r := NewTemplateRenderer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := r.Render(tt.engine, tt.text, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestTemplateRenderer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		engine string
		text   string
		data   map[string]any
	}{
		{name: "unsupported engine", engine: "jinja", text: "feature bgp"},
		{name: "parse error", engine: "gotmpl", text: "{{ .asn "},
		{name: "missing key", engine: "gotmpl", text: "router bgp {{ .asn }}", data: map[string]any{}},
	}

	r := NewTemplateRenderer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(tt.engine, tt.text, tt.data)
			assert.Error(t, err)
		})
	}
}
