package entities

import "strings"

// ConfigReport summarizes one configuration apply
type ConfigReport struct {
	Commands []string
	Result   string
	Diff     string
}

func (r ConfigReport) String() string {
	return "COMMAND_LIST: " + strings.Join(r.Commands, " ; ") + "\n" + r.Result + "\n" + r.Diff
}

// ReplaceResult lists the running-config lines removed and added by a replace
type ReplaceResult struct {
	Old []string `json:"old"`
	New []string `json:"new"`
}
