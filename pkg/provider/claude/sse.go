package claude

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sseEvent is one "event:"/"data:" block off the Messages API's
// text/event-stream body. The wire format also carries an "id:" field;
// the Messages API never sets one the adapter needs, so it's dropped
// rather than parsed and ignored.
type sseEvent struct {
	name string
	data string
}

// sseScanner turns a raw event-stream body into sseEvent values, one per
// blank-line-delimited block.
type sseScanner struct {
	lines *bufio.Scanner
}

func newSSEScanner(r io.Reader) *sseScanner {
	return &sseScanner{lines: bufio.NewScanner(r)}
}

// next reads the following block, returning io.EOF once the stream is
// exhausted. A field with no recognized tag doesn't abort the block --
// Anthropic may add new field names, and a parse the adapter can still
// use for every field it does know about beats discarding the whole event.
func (s *sseScanner) next() (sseEvent, error) {
	var ev sseEvent
	var sawLine bool
	var parseErr error

	for s.lines.Scan() {
		line := s.lines.Text()
		if line == "" {
			break
		}
		sawLine = true

		colon := strings.IndexByte(line, ':')
		switch {
		case colon < 0:
			parseErr = errors.Join(parseErr, fmt.Errorf("sse: line has no colon: %q", line))
			continue
		case colon == 0:
			continue // comment line
		}

		field, value := line[:colon], strings.TrimSpace(line[colon+1:])
		switch field {
		case "event":
			ev.name = value
		case "data":
			if ev.data != "" {
				ev.data += "\n" + value
			} else {
				ev.data = value
			}
		}
	}

	if !sawLine {
		return sseEvent{}, io.EOF
	}
	return ev, parseErr
}
