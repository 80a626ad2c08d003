package entities

// Grains are the device facts parsed from "show version"
type Grains struct {
	Software map[string]string `json:"software"`
	Hardware map[string]string `json:"hardware"`
	Plugins  []string          `json:"plugins"`
}
