package domain

// EventType discriminates stream event payloads.
type EventType string

const (
	EventTypeText       EventType = "text"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeToolError  EventType = "tool_error"
	EventTypeDone       EventType = "done"
)

// StreamEvent is one wire-only event pushed to the client during a streaming
// turn. Data is one of the *EventData payloads matching Type.
type StreamEvent struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// TextEventData carries one text fragment.
type TextEventData struct {
	Content string `json:"content"`
}

// ToolCallEventData announces a tool call about to be executed.
type ToolCallEventData struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResultEventData carries the result of a completed tool call.
type ToolResultEventData struct {
	Tool   string `json:"tool"`
	Result any    `json:"result"`
}

// ToolErrorEventData carries a per-call tool failure. The turn continues.
type ToolErrorEventData struct {
	Tool  string `json:"tool"`
	Error string `json:"error"`
}

// DoneEventData terminates the semantic stream. A literal [DONE] frame
// follows it at the transport level.
type DoneEventData struct {
	ConversationID string `json:"conversationId"`
}

// TextEvent builds a text stream event.
func TextEvent(content string) StreamEvent {
	return StreamEvent{Type: EventTypeText, Data: TextEventData{Content: content}}
}

// ToolCallEvent builds a tool_call stream event.
func ToolCallEvent(tool string, args map[string]any) StreamEvent {
	return StreamEvent{Type: EventTypeToolCall, Data: ToolCallEventData{Tool: tool, Arguments: args}}
}

// ToolResultEvent builds a tool_result stream event.
func ToolResultEvent(tool string, result any) StreamEvent {
	return StreamEvent{Type: EventTypeToolResult, Data: ToolResultEventData{Tool: tool, Result: result}}
}

// ToolErrorEvent builds a tool_error stream event.
func ToolErrorEvent(tool string, errMsg string) StreamEvent {
	return StreamEvent{Type: EventTypeToolError, Data: ToolErrorEventData{Tool: tool, Error: errMsg}}
}

// DoneEvent builds the terminal done stream event.
func DoneEvent(conversationID string) StreamEvent {
	return StreamEvent{Type: EventTypeDone, Data: DoneEventData{ConversationID: conversationID}}
}
