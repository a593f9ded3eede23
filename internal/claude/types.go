// Package claude runs the Claude CLI as a text generator for stage drafts.
//
// The CLI is started in print mode with --output-format stream-json, so its
// stdout is a sequence of JSON objects, one per line. A typical run for a
// test-planning prompt looks like:
//
//	{"type":"system","subtype":"init","model":"claude-sonnet-4","session_id":"..."}
//	{"type":"assistant","message":{"content":[{"type":"text","text":"# Test Plan\n..."}]}}
//	{"type":"result","result":"# Test Plan\n...","duration_ms":8120,"is_error":false}
//
// [Parser] turns those lines into [Event] values and [DefaultExecutor]
// collects them into a [Result] whose Text becomes the draft content.
//
// Key types:
//   - [Executor]: runs one prompt through the CLI and returns its [Result]
//   - [Parser]: decodes the stream-json event stream into a channel of events
//   - [Event]: one decoded event with convenience accessors such as
//     [Event.IsText] and [Event.IsToolUse]
//
// Tests use [MockExecutor], which implements [Executor] without spawning a
// process.
package claude

import "time"

// StreamEvent is one raw line of stream-json output, decoded as-is.
//
// Only the fields stlcpilot reads are mapped; unknown keys are ignored. Most
// callers should use [Event], which flattens the fields that matter for a
// given event type. The original StreamEvent stays reachable through
// [Event.Raw].
//
// Which fields are set depends on Type:
//   - "system": Subtype, SessionID and Model
//   - "assistant": Message
//   - "result": Result, IsError, DurationMS and CostUSD
type StreamEvent struct {
	Type       string          `json:"type"`
	Subtype    string          `json:"subtype,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	Model      string          `json:"model,omitempty"`
	Message    *MessageContent `json:"message,omitempty"`
	Result     string          `json:"result,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
	DurationMS int64           `json:"duration_ms,omitempty"`
	CostUSD    float64         `json:"total_cost_usd,omitempty"`
}

// MessageContent is the message body of an assistant event.
//
// A long answer may arrive as several [ContentBlock] values in one message,
// and a message may mix text with tool invocations.
type MessageContent struct {
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is one block of an assistant message.
//
// Type tells which fields are set:
//   - "text": Text holds model output, for example "## Scope\n- checkout flow"
//   - "tool_use": Name holds the invoked tool, for example "Read"
//
// Other block types (thinking, images) are ignored by [NewEventFromStream].
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Name string `json:"name,omitempty"`
}

// EventType classifies stream events.
//
// A run emits one system init event, then assistant events interleaved with
// user events (tool results), and ends with exactly one result event.
type EventType string

const (
	// EventTypeSystem is emitted once when the CLI session starts.
	// [Event.SessionStarted] is set for the init subtype.
	EventTypeSystem EventType = "system"

	// EventTypeAssistant carries model output. Use [Event.IsText] and
	// [Event.IsToolUse] to tell text from tool calls.
	EventTypeAssistant EventType = "assistant"

	// EventTypeUser carries tool results fed back to the model. They are
	// ignored when collecting a [Result].
	EventTypeUser EventType = "user"

	// EventTypeResult is the final event of a run. Its Result field is the
	// complete answer and is preferred over concatenated assistant text.
	EventTypeResult EventType = "result"
)

// SubtypeInit is the subtype of the system event that opens a session.
// [Event.SessionStarted] is true exactly when Type is [EventTypeSystem] and
// Subtype is SubtypeInit.
const SubtypeInit = "init"

// Event is a decoded stream event.
//
// It wraps the raw [StreamEvent] and lifts the fields a generator needs to
// the top level. Events are produced by [NewEventFromStream] and emitted by
// [Parser.Parse].
//
// Example:
//
//	for ev := range parser.Parse(stdout) {
//	    switch {
//	    case ev.IsText():
//	        text.WriteString(ev.Text)
//	    case ev.SessionComplete:
//	        final = ev.Result
//	    }
//	}
type Event struct {
	// Raw is the undecoded event, for fields not lifted below.
	Raw *StreamEvent

	// Type is the event type (system, assistant, user or result).
	Type EventType

	// Subtype refines Type. For system events it is "init" when the
	// session starts (see [SubtypeInit]).
	Subtype string

	// Text is the concatenation of every text block of an assistant event,
	// in order. Empty for other event types.
	Text string

	// ToolName is the tool invoked by an assistant event, e.g. "Bash".
	// When a message holds several tool_use blocks the last one wins.
	ToolName string

	// Model is the model name reported by the init event, e.g.
	// "claude-sonnet-4".
	Model string

	// Result is the final answer carried by the result event.
	Result string

	// IsError is set on result events for runs the CLI reports as failed,
	// for instance when the prompt exceeded the context window.
	IsError bool

	// Duration is the wall time reported by the result event.
	Duration time.Duration

	// SessionStarted is true for the system init event.
	SessionStarted bool

	// SessionComplete is true for the result event. No events follow it.
	SessionComplete bool
}

// NewEventFromStream decodes raw into an [Event].
//
// Fields are filled per event type: init events set SessionStarted and
// Model; assistant events set Text and ToolName; result events set
// SessionComplete, Result, IsError and Duration. User events carry only Raw.
func NewEventFromStream(raw *StreamEvent) Event {
	e := Event{
		Raw:     raw,
		Type:    EventType(raw.Type),
		Subtype: raw.Subtype,
	}

	switch e.Type {
	case EventTypeSystem:
		if raw.Subtype == SubtypeInit {
			e.SessionStarted = true
			e.Model = raw.Model
		}

	case EventTypeAssistant:
		if raw.Message == nil {
			break
		}
		for _, block := range raw.Message.Content {
			switch block.Type {
			case "text":
				e.Text += block.Text
			case "tool_use":
				e.ToolName = block.Name
			}
		}

	case EventTypeResult:
		e.SessionComplete = true
		e.Result = raw.Result
		e.IsError = raw.IsError
		e.Duration = time.Duration(raw.DurationMS) * time.Millisecond
	}

	return e
}

// IsText reports whether e is assistant text output.
//
// It is true when Type is [EventTypeAssistant] and at least one text block
// was non-empty. An assistant event can be both text and a tool call.
func (e Event) IsText() bool {
	return e.Type == EventTypeAssistant && e.Text != ""
}

// IsToolUse reports whether e is a tool invocation by the model.
//
// Drafting prompts do not request tools, so these never add to a [Result];
// an [EventHandler] can still use them to show progress.
func (e Event) IsToolUse() bool {
	return e.Type == EventTypeAssistant && e.ToolName != ""
}
