// Package chat owns the per-connection conversation state machine: it
// receives client events, optionally augments a turn with retrieved
// passages, and streams generation deltas back over the transport.
package chat

import "encoding/json"

// Inbound event types.
const (
	EventChat   = "chat"
	EventIngest = "ingest"
	EventClear  = "clear"
	EventPing   = "ping"
)

// Outbound event types.
const (
	EventConnected      = "connected"
	EventRAGContext     = "rag_context"
	EventDelta          = "llm_delta"
	EventComplete       = "llm_complete"
	EventIngestComplete = "ingest_complete"
	EventCleared        = "cleared"
	EventPong           = "pong"
	EventError          = "error"
)

// Error kinds carried by the error event.
const (
	ErrKindProtocol = "protocol"
	ErrKindBusy     = "busy"
	ErrKindProvider = "provider"
	ErrKindFormat   = "format"
	ErrKindIngest   = "ingest"
)

// Envelope is the inbound message frame. Payload fields beyond Type are
// decoded per event type.
type Envelope struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	UseRAG   *bool  `json:"use_rag,omitempty"`
	Filename string `json:"filename,omitempty"`
	Content  string `json:"content,omitempty"` // base64
}

// Event is one outbound frame.
type Event struct {
	Type string `json:"type"`

	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`

	Delta string `json:"delta,omitempty"`

	ElapsedMS      int64 `json:"elapsed_ms,omitempty"`
	ResponseLength int   `json:"response_length,omitempty"`

	Results  []PassageNotice `json:"results,omitempty"`
	Count    int             `json:"count,omitempty"`
	Degraded bool            `json:"degraded,omitempty"`

	Filename string `json:"filename,omitempty"`
	Chunks   int    `json:"chunks,omitempty"`
}

// PassageNotice is the diagnostic view of one retrieved passage.
type PassageNotice struct {
	ChunkID string  `json:"chunk_id"`
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Text    string  `json:"text"`
}

// DecodeEnvelope parses an inbound frame. A decode failure is a protocol
// error; the session stays open.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
