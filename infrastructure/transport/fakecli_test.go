package transport

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

const (
	testPrompt = "n9k-device# "
	testBanner = "Cisco NX-OS Software\r\nCopyright (c) 2002-2018, Cisco Systems, Inc.\r\n"
)

// fakeCLI answers command lines the way an NX-OS exec shell does: it echoes
// the line, prints the reply and ends with the prompt.
type fakeCLI struct {
	mu       sync.Mutex
	replies  map[string]string
	received []string
}

func newFakeCLI(replies map[string]string) *fakeCLI {
	if replies == nil {
		replies = map[string]string{}
	}
	return &fakeCLI{replies: replies}
}

func (f *fakeCLI) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeCLI) serve(r io.Reader, w io.Writer) {
	if _, err := io.WriteString(w, testBanner+testPrompt); err != nil {
		return
	}
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		f.mu.Lock()
		f.received = append(f.received, line)
		reply := f.replies[line]
		f.mu.Unlock()

		out := line + "\r\n"
		if reply != "" {
			out += strings.ReplaceAll(reply, "\n", "\r\n") + "\r\n"
		}
		out += testPrompt
		if _, err := io.WriteString(w, out); err != nil {
			return
		}
	}
}
