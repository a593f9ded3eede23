package claude

import (
	"bufio"
	"encoding/json"
	"io"
)

// defaultBufferSize bounds a single JSON line. A result event repeats the
// whole answer, so a long test case document needs far more than
// bufio.Scanner's 64KB default.
const defaultBufferSize = 10 * 1024 * 1024

// Parser decodes the CLI's stream-json output.
//
// Each line of the input is expected to hold one complete JSON object
// shaped like [StreamEvent]. The returned channel is closed when:
//   - the reader reaches EOF, which is the normal end of a run
//   - the reader is closed underneath the parser, e.g. the process was killed
//   - a line exceeds the buffer limit or another read error occurs
type Parser interface {
	// Parse emits one [Event] per decodable line of r, in input order.
	// Blank lines and lines that are not valid JSON are skipped.
	Parse(r io.Reader) <-chan Event
}

// DefaultParser decodes newline-delimited stream-json.
//
// Blank and malformed lines are skipped so partial output from an
// interrupted CLI does not abort parsing; whatever was decoded before the
// damage still reaches the caller. Use [NewParser] to get the default
// buffer limit.
type DefaultParser struct {
	// BufferSize is the maximum line length in bytes. Longer lines stop
	// parsing. Zero or negative means 10MB.
	BufferSize int
}

// NewParser returns a [DefaultParser] with a 10MB line limit, enough for a
// result event that repeats a full test plan.
func NewParser() *DefaultParser {
	return &DefaultParser{BufferSize: defaultBufferSize}
}

// Parse implements [Parser].
//
// It starts a goroutine that scans r line by line and sends each decoded
// [Event] on an unbuffered channel. The caller must drain the channel until
// it is closed, otherwise the goroutine blocks. Scanner errors end the
// stream quietly: the executor learns about a broken run from the process
// exit status, not from the parser.
func (p *DefaultParser) Parse(r io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		bufSize := p.BufferSize
		if bufSize <= 0 {
			bufSize = defaultBufferSize
		}
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), bufSize)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var raw StreamEvent
			if err := json.Unmarshal(line, &raw); err != nil {
				continue
			}
			events <- NewEventFromStream(&raw)
		}
	}()

	return events
}

// ParseSingle decodes one stream-json line. Unlike [Parser.Parse] it
// reports malformed input instead of skipping it, which makes it handy in
// tests and when inspecting a captured transcript.
//
// Example:
//
//	ev, err := ParseSingle(`{"type":"result","result":"# Test Plan","duration_ms":1500}`)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(ev.SessionComplete, ev.Result, ev.Duration) // true # Test Plan 1.5s
func ParseSingle(line string) (Event, error) {
	var raw StreamEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, err
	}
	return NewEventFromStream(&raw), nil
}
