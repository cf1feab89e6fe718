package transport

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// MaxSSEEventSize bounds a single buffered SSE event (1MB), preventing an
// unbounded-size server stream from exhausting memory.
const MaxSSEEventSize = 1024 * 1024

// sseEvent is one dispatched Server-Sent Event.
type sseEvent struct {
	ID    string
	Event string
	Data  []byte
}

// sseScanner recovers SSE event boundaries ("\n\n") from a byte stream and
// surfaces id/event/data/retry fields. Correctness hinges on never
// dispatching a partial event: Next only returns once a blank line (or
// EOF with pending data) closes the event out.
type sseScanner struct {
	reader  *bufio.Reader
	maxSize int
	size    int
}

func newSSEScanner(r io.Reader, maxSize int) *sseScanner {
	return &sseScanner{reader: bufio.NewReader(r), maxSize: maxSize}
}

// Next reads and returns the next complete SSE event.
func (s *sseScanner) Next() (*sseEvent, error) {
	event := &sseEvent{}
	var dataLines [][]byte
	s.size = 0

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF && len(dataLines) > 0 {
				event.Data = bytes.Join(dataLines, []byte("\n"))
				return event, nil
			}
			return nil, err
		}

		s.size += len(line)
		if s.size > s.maxSize {
			return nil, fmt.Errorf("sse: event exceeds maximum size of %d bytes", s.maxSize)
		}

		line = bytes.TrimSuffix(line, []byte("\n"))
		line = bytes.TrimSuffix(line, []byte("\r"))

		if len(line) == 0 {
			if len(dataLines) > 0 || event.ID != "" || event.Event != "" {
				event.Data = bytes.Join(dataLines, []byte("\n"))
				return event, nil
			}
			continue
		}

		if line[0] == ':' {
			continue // comment
		}

		var field, value []byte
		if idx := bytes.IndexByte(line, ':'); idx == -1 {
			field = line
		} else {
			field = line[:idx]
			value = line[idx+1:]
			if len(value) > 0 && value[0] == ' ' {
				value = value[1:]
			}
		}

		switch string(field) {
		case "id":
			event.ID = string(value)
		case "event":
			event.Event = string(value)
		case "data":
			dataLines = append(dataLines, value)
		case "retry":
			// Reconnection hint; not acted on here.
		}
	}
}
