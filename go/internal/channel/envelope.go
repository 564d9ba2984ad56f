package channel

import "encoding/json"

// frameTypeAck marks a reply to a request/acknowledgement call. Every other
// frame type is either a call name (client -> server) or a push name
// (server -> client).
const frameTypeAck = "ack"

// Envelope is the single wire frame shared by calls, acks and pushes.
type Envelope struct {
	Type    string          `json:"type"`
	CallID  string          `json:"call_id,omitempty"`
	Token   string          `json:"token,omitempty"` // bearer token, calls only
	OK      *bool           `json:"ok,omitempty"`    // acks only
	Code    string          `json:"code,omitempty"`  // machine-readable ack failure code
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Ack is the decoded acknowledgement for one call.
type Ack struct {
	OK      bool
	Code    string
	Error   string
	Payload json.RawMessage
}

// Failure codes the client branches on. Everything else is surfaced verbatim.
const (
	CodeAuthExpired  = "AUTH_EXPIRED"
	CodeRoomNotFound = "ROOM_NOT_FOUND"
	CodeBadPassword  = "BAD_PASSWORD"
	CodeRoomFull     = "ROOM_FULL"
	CodeRebanned     = "REBANNED"
)

// Decode unmarshals the ack payload into out when the ack succeeded.
func (a Ack) Decode(out interface{}) error {
	if len(a.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(a.Payload, out)
}
