package stream

import (
	"encoding/json"
	"strings"
)

// Delta is the token delta carried by one protocol frame. Thinking and
// Content are independent channels; either or both may be empty.
type Delta struct {
	Thinking string
	Content  string
	Done     bool
}

// frame is the wire shape of one newline-delimited JSON line from the model
// server's chat endpoint.
type frame struct {
	Message struct {
		Thinking string `json:"thinking"`
		Content  string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// ParseFrame interprets one decoded line as a streaming protocol frame.
// Returns nil for blank or malformed lines; a malformed frame is a skippable
// condition for the caller, never a fatal error. Done defaults to false when
// absent.
func ParseFrame(line string) *Delta {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	var f frame
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return nil
	}
	return &Delta{
		Thinking: f.Message.Thinking,
		Content:  f.Message.Content,
		Done:     f.Done,
	}
}
