package entities

// AuthPrompt represents a prompt-response pair during a terminal login
type AuthPrompt struct {
	WaitFor string // text to wait for
	SendCmd string // line to send (empty means just wait)
	Secret  bool   // keep SendCmd out of the logs
}
