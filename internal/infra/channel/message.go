// Package channel is the duplex message channel between the analysis host
// and its UI observers: commands flow observer-to-host, lifecycle events
// host-to-observer, over one persistent WebSocket per observer.
package channel

import "encoding/json"

// Command types accepted by the host.
const (
	CommandStart       = "START"
	CommandCancel      = "CANCEL"
	CommandQueryStatus = "QUERY_STATUS"
)

// TypeAck is the host's reply to a command; it is not a session lifecycle
// event. Command failures travel inside the ack, never as a dropped
// connection or a raw error.
const TypeAck = "ACK"

// Command is one observer-to-host message.
type Command struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StartPayload is the payload of a START command. ImageIDs may be empty to
// analyze every captured image of the company.
type StartPayload struct {
	CompanyID string   `json:"company_id"`
	ImageIDs  []string `json:"image_ids,omitempty"`
}

// AckPayload reports the outcome of a command.
type AckPayload struct {
	Command   string `json:"command"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Envelope is the generic host-to-observer frame: lifecycle events and acks
// share this shape.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}
