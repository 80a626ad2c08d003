package transport

import (
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/carlosrabelo/nxproxy/domain/entities"
	"github.com/carlosrabelo/nxproxy/domain/nxerrors"
)

const (
	BufferSize        = 4096
	TerminalLengthCmd = "terminal length 0"
	InvalidMarker     = "% Invalid"
	CLIErrorMessage   = "CLI execution error"
)

// terminal drives a line oriented CLI over an interactive byte stream. It has
// no read deadline: a device that never prints its prompt blocks the caller.
type terminal struct {
	w        io.Writer
	r        io.Reader
	prompt   *regexp.Regexp
	patterns []*regexp.Regexp
	failed   bool
	logger   zerolog.Logger
}

func newTerminal(w io.Writer, r io.Reader, spec entities.ConnectionSpec, logger zerolog.Logger) (*terminal, error) {
	pattern, fallback := spec.Prompt()
	if fallback {
		logger.Warn().Str("prompt", pattern).Msg("neither prompt_regex nor prompt_name configured, using default prompt")
	}
	prompt, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid prompt pattern %q", pattern)
	}
	patterns, err := compilePatterns(spec.ErrorPatterns)
	if err != nil {
		return nil, err
	}
	return &terminal{w: w, r: r, prompt: prompt, patterns: patterns, logger: logger}, nil
}

func compilePatterns(extra []string) ([]*regexp.Regexp, error) {
	out := []*regexp.Regexp{regexp.MustCompile(regexp.QuoteMeta(InvalidMarker))}
	for _, p := range extra {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid error pattern %q", p)
		}
		out = append(out, re)
	}
	return out, nil
}

// run sends commands as one " ; " joined line and returns the framed payload
func (t *terminal) run(commands []string) (string, error) {
	line := entities.JoinBatch(commands)
	t.logger.Debug().Str("command", line).Msg("executing")
	if err := t.write(line + "\n"); err != nil {
		return "", err
	}
	raw, err := t.waitPrompt()
	if err != nil {
		return "", errors.Wrapf(err, "error executing %s", line)
	}
	payload := frame(raw)
	t.logger.Trace().Str("command", line).Str("output", payload).Msg("device output")
	if err := t.scan(line, payload); err != nil {
		return "", err
	}
	return payload, nil
}

// prime consumes the login banner and disables paging
func (t *terminal) prime() error {
	if _, err := t.waitPrompt(); err != nil {
		return err
	}
	_, err := t.run([]string{TerminalLengthCmd})
	return err
}

func (t *terminal) write(data string) error {
	if _, err := io.WriteString(t.w, data); err != nil {
		t.failed = true
		return errors.Wrap(err, "terminal write")
	}
	return nil
}

func (t *terminal) waitPrompt() (string, error) {
	return t.readUntil(func(text string) bool {
		last := text[strings.LastIndex(text, "\n")+1:]
		return t.prompt.MatchString(strings.TrimRight(last, " \t\r"))
	})
}

// expect waits for a login prompt such as "Password:"
func (t *terminal) expect(pattern *regexp.Regexp) (string, error) {
	return t.readUntil(pattern.MatchString)
}

func (t *terminal) readUntil(done func(string) bool) (string, error) {
	buffer := make([]byte, BufferSize)
	var output strings.Builder
	output.Grow(BufferSize)
	for {
		n, err := t.r.Read(buffer)
		if n > 0 {
			output.Write(buffer[:n])
			if done(output.String()) {
				return output.String(), nil
			}
		}
		if err != nil {
			t.failed = true
			return output.String(), errors.Wrap(err, "terminal read")
		}
	}
}

func (t *terminal) scan(line, payload string) error {
	for _, re := range t.patterns {
		if re.MatchString(payload) {
			return &nxerrors.CommandRejectedError{
				Command:  line,
				Code:     entities.CodeInputError,
				Message:  CLIErrorMessage,
				CLIError: strings.TrimLeft(payload, " \t\n"),
			}
		}
	}
	return nil
}

// frame keeps what sits between the echoed command line and the prompt
func frame(raw string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	first := strings.Index(text, "\n")
	if first < 0 {
		return ""
	}
	text = text[first+1:]
	last := strings.LastIndex(text, "\n")
	if last < 0 {
		return ""
	}
	return text[:last]
}
