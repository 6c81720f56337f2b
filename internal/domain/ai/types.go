package ai

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a chat request.
// Images carries base64-encoded payloads for vision models.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Chunk is one incremental streaming notification. Thinking and Content are
// the deltas carried by a single frame, not accumulated totals.
type Chunk struct {
	Thinking string
	Content  string
	Done     bool
}

// Response is the accumulated result of one streaming chat call.
// Thinking holds the model's reasoning trace, Content the user-facing answer;
// the two channels are accumulated independently in arrival order.
type Response struct {
	Thinking string
	Content  string
}
