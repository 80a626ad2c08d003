package entities

// Mode is the NX-API command type; terminal transports ignore it
type Mode string

const (
	ModeShowASCII Mode = "cli_show_ascii"
	ModeShow      Mode = "cli_show"
	ModeConf      Mode = "cli_conf"
)

// Modes lists every accepted mode in the order shown to users
var Modes = []Mode{ModeShowASCII, ModeShow, ModeConf}

// ParseMode reports whether s names a known mode
func ParseMode(s string) (Mode, bool) {
	for _, m := range Modes {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}
