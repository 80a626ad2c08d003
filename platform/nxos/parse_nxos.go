package nxos

import (
	"regexp"
	"strings"

	"github.com/carlosrabelo/nxproxy/domain/entities"
)

var (
	keyValueRegex = regexp.MustCompile(`^\s+([^:]+?):\s*(.*?)\s*$`)
	indentRegex   = regexp.MustCompile(`^\s`)
)

const (
	sectionSoftware = "software"
	sectionHardware = "hardware"
	sectionPlugin   = "plugin"
)

// parseShowVersion walks the sections of show version. A section starts at
// a non-indented line; its indented lines belong to it.
func parseShowVersion(output string) entities.Grains {
	grains := entities.Grains{
		Software: map[string]string{},
		Hardware: map[string]string{},
		Plugins:  []string{},
	}
	section := ""
	for _, line := range strings.Split(strings.ReplaceAll(output, "\r", ""), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !indentRegex.MatchString(line) {
			section = strings.ToLower(strings.TrimSpace(line))
			continue
		}
		switch section {
		case sectionSoftware:
			if key, value, ok := splitKeyValue(line); ok {
				grains.Software[key] = value
			}
		case sectionHardware:
			if key, value, ok := splitKeyValue(line); ok {
				grains.Hardware[key] = value
			}
		case sectionPlugin:
			for _, plugin := range strings.Split(strings.TrimSpace(line), ",") {
				if plugin = strings.TrimSpace(plugin); plugin != "" {
					grains.Plugins = append(grains.Plugins, plugin)
				}
			}
		}
	}
	return grains
}

func splitKeyValue(line string) (string, string, bool) {
	match := keyValueRegex.FindStringSubmatch(line)
	if len(match) < 3 {
		return "", "", false
	}
	return match[1], match[2], true
}
