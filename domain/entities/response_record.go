package entities

// Response codes reported by NX-API for every command of a batch
const (
	CodeSuccess         = "200"
	CodeInputError      = "400"
	CodePayloadTooLarge = "413"
)

// ResponseRecord is the device result for one command of an NX-API batch.
// Body is either a string (cli_show_ascii, cli_conf) or a decoded JSON object
// (cli_show).
type ResponseRecord struct {
	Code     string
	Msg      string
	Body     any
	CLIError string
}

// OK reports whether the device accepted the command
func (r ResponseRecord) OK() bool {
	return r.Code == CodeSuccess
}
