// Package nxapi speaks the NX-API JSON-RPC-like protocol: it builds request
// envelopes, posts them over HTTP(S) or the device-local unix socket, and
// turns the per-command response records into bodies or typed errors.
package nxapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
)

const (
	SocketPath  = "/tmp/nginx_local/nginx_1_be_nxapi.sock"
	LocalPath   = "/ins_local"
	RemotePath  = "/ins"
	localOrigin = "http://localhost"
)

// Request is a fully built NX-API call
type Request struct {
	URL     string
	Headers map[string]string
	Payload []byte
}

// envelope fields are declared in the order the device firmware expects;
// some releases mis-parse the body when "input" precedes "type".
type envelope struct {
	InsAPI insAPI `json:"ins_api"`
}

type insAPI struct {
	Version      string `json:"version"`
	Type         string `json:"type"`
	Chunk        string `json:"chunk"`
	SID          string `json:"sid"`
	Input        string `json:"input"`
	OutputFormat string `json:"output_format"`
}

// BuildRequest assembles the URL, headers and JSON body for a command batch
func BuildRequest(commands []string, mode entities.Mode, spec entities.ConnectionSpec) (Request, error) {
	body := envelope{InsAPI: insAPI{
		Version:      "1.0",
		Type:         string(mode),
		Chunk:        "0",
		SID:          "1",
		Input:        entities.JoinBatch(commands),
		OutputFormat: "json",
	}}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return Request{}, fmt.Errorf("failed to encode nxapi request: %w", err)
	}

	req := Request{
		Headers: map[string]string{"content-type": "application/json"},
		Payload: bytes.TrimRight(buf.Bytes(), "\n"),
	}
	if spec.ConnectOverUDS {
		req.URL = localOrigin + LocalPath
		req.Headers["cookie"] = "nxapi_auth=" + spec.CookieUser + ":local"
	} else {
		req.URL = fmt.Sprintf("%s://%s%s", spec.Scheme, net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port)), RemotePath)
	}
	return req, nil
}

// ParseResponse returns one body per command when every command succeeded
func ParseResponse(raw []byte, commands []string) ([]any, error) {
	records, err := Parse(raw, commands)
	if err != nil {
		return nil, err
	}
	bodies := make([]any, 0, len(records))
	for _, r := range records {
		bodies = append(bodies, r.Body)
	}
	return bodies, nil
}

// Parse decodes a response and correlates its output records with commands.
// The first record that is not a success aborts the batch: the device does
// not run anything after it either.
func Parse(raw []byte, commands []string) ([]entities.ResponseRecord, error) {
	var top map[string]any
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &nxerrors.UnexpectedShapeError{Detail: "response is not a JSON object: " + err.Error()}
	}

	if status, ok := top["status"]; ok {
		code, err := cast.ToIntE(status)
		if err != nil {
			return nil, &nxerrors.UnexpectedShapeError{Detail: fmt.Sprintf("non numeric status %v", status)}
		}
		return nil, nxerrors.Status(code, describe(top))
	}

	// responses relayed through an HTTP helper arrive as {"body": "...", "dict": {...}}
	if wrapped, ok := top["dict"].(map[string]any); ok {
		top = wrapped
	}

	output, err := outputs(top)
	if err != nil {
		return nil, err
	}

	cmds := entities.SplitChained(commands)
	if len(cmds) != len(output) {
		log.Warn().Int("commands", len(cmds)).Int("outputs", len(output)).Msg("nxapi output count does not match command count")
	}

	records := make([]entities.ResponseRecord, 0, len(output))
	var previous []string
	for i := 0; i < len(cmds) && i < len(output); i++ {
		item, ok := output[i].(map[string]any)
		if !ok {
			return nil, &nxerrors.UnexpectedShapeError{Detail: fmt.Sprintf("output record %d is %T", i, output[i])}
		}
		rec := entities.ResponseRecord{
			Code:     cast.ToString(item["code"]),
			Msg:      cast.ToString(item["msg"]),
			Body:     item["body"],
			CLIError: cast.ToString(item["clierror"]),
		}
		switch rec.Code {
		case entities.CodeSuccess:
			records = append(records, rec)
			previous = append(previous, cmds[i])
		case entities.CodeInputError:
			return nil, &nxerrors.CommandRejectedError{
				Command:          cmds[i],
				Code:             rec.Code,
				Message:          rec.Msg,
				CLIError:         rec.CLIError,
				PreviousCommands: previous,
			}
		case entities.CodePayloadTooLarge:
			return nil, &nxerrors.PayloadTooLargeError{Message: rec.Msg}
		default:
			return nil, &nxerrors.UnknownDeviceError{Code: rec.Code, Message: rec.Msg}
		}
	}
	return records, nil
}

func outputs(top map[string]any) ([]any, error) {
	ins, ok := top["ins_api"].(map[string]any)
	if !ok {
		return nil, &nxerrors.UnexpectedShapeError{Detail: "missing ins_api"}
	}
	outs, ok := ins["outputs"].(map[string]any)
	if !ok {
		return nil, &nxerrors.UnexpectedShapeError{Detail: "missing ins_api.outputs"}
	}
	switch o := outs["output"].(type) {
	case []any:
		return o, nil
	case map[string]any:
		return []any{o}, nil
	default:
		return nil, &nxerrors.UnexpectedShapeError{Detail: "missing ins_api.outputs.output"}
	}
}

func describe(top map[string]any) string {
	for _, key := range []string{"error", "body"} {
		if s, ok := top[key].(string); ok && s != "" {
			return s
		}
	}
	b, _ := json.Marshal(top)
	return string(b)
}
