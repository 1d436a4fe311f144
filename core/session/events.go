package session

// EventType labels an outbound event pushed to a connection.
type EventType string

const (
	// EventAck acknowledges receipt of an inbound chat message.
	EventAck EventType = "ack"
	// EventTyping toggles the typing indicator for a conversation.
	EventTyping EventType = "typing"
	// EventMessage carries an orchestration result.
	EventMessage EventType = "message"
	// EventHistory carries prior conversation turns.
	EventHistory EventType = "history"
	// EventError reports a failed exchange without closing the connection.
	EventError EventType = "error"
	// EventPing is a liveness probe; the client answers with a pong.
	EventPing EventType = "ping"
)

// Event is the envelope pushed to a connection. Fields are populated
// per type; unused fields are omitted on the wire.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Text           string    `json:"text,omitempty"`      // message content (EventMessage)
	Provider       string    `json:"provider,omitempty"`  // providers behind the message, comma-joined
	Typing         bool      `json:"typing,omitempty"`    // indicator state (EventTyping)
	Turns          []Turn    `json:"turns,omitempty"`     // history payload (EventHistory)
	ErrorKind      string    `json:"error_kind,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// Turn is one prior exchange entry in a history event.
type Turn struct {
	Role     string `json:"role"`
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
}

// InboundType labels a message received from a connection.
type InboundType string

const (
	// InboundAuth presents a credential while in the connected state.
	InboundAuth InboundType = "auth"
	// InboundChat submits a prompt for orchestration.
	InboundChat InboundType = "chat"
	// InboundTyping reports the client's typing state.
	InboundTyping InboundType = "typing"
	// InboundHistory requests prior turns for the bound conversation.
	InboundHistory InboundType = "history"
	// InboundPong acknowledges a liveness probe.
	InboundPong InboundType = "pong"
)

// Inbound is the envelope received from a connection.
type Inbound struct {
	Type           InboundType `json:"type"`
	Credential     string      `json:"credential,omitempty"`      // InboundAuth
	ConversationID string      `json:"conversation_id,omitempty"` // optional on InboundAuth
	Prompt         string      `json:"prompt,omitempty"`          // InboundChat
	Preference     string      `json:"preference,omitempty"`      // InboundChat
	Temperature    *float32    `json:"temperature,omitempty"`     // InboundChat; nil means default, 0 is honored
	MaxTokens      int         `json:"max_tokens,omitempty"`      // InboundChat
	Typing         bool        `json:"typing,omitempty"`          // InboundTyping
	Limit          int         `json:"limit,omitempty"`           // InboundHistory
}
