package analysis

// EventType identifies a lifecycle event pushed to observers.
type EventType string

const (
	EventStreamChunk      EventType = "STREAM_CHUNK"
	EventImageComplete    EventType = "IMAGE_COMPLETE"
	EventAnalysisComplete EventType = "ANALYSIS_COMPLETE"
	EventAnalysisError    EventType = "ANALYSIS_ERROR"
	EventStatus           EventType = "STATUS"
)

// Event is one message on the observer-bound side of the channel.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// StreamChunkPayload surfaces an in-flight token delta for one image.
type StreamChunkPayload struct {
	SessionID SessionID `json:"session_id"`
	ImageID   string    `json:"image_id"`
	Thinking  string    `json:"thinking,omitempty"`
	Content   string    `json:"content,omitempty"`
	Done      bool      `json:"done"`
}

// ImageCompletePayload reports one finished image, succeeded or failed.
type ImageCompletePayload struct {
	SessionID SessionID     `json:"session_id"`
	ImageID   string        `json:"image_id"`
	Outcome   *ImageOutcome `json:"outcome"`
	Completed int           `json:"completed"`
	Total     int           `json:"total"`
	Progress  int           `json:"progress"`
}

// AnalysisCompletePayload carries the final verdict.
type AnalysisCompletePayload struct {
	SessionID SessionID        `json:"session_id"`
	CompanyID string           `json:"company_id"`
	Result    *SynthesisResult `json:"result"`
	Failed    int              `json:"failed_images"`
}

// AnalysisErrorPayload carries a terminal diagnostic. Reason is a message,
// never a stack trace.
type AnalysisErrorPayload struct {
	SessionID SessionID `json:"session_id"`
	CompanyID string    `json:"company_id"`
	Status    Status    `json:"status"`
	Reason    string    `json:"reason"`
	Failed    int       `json:"failed_images"`
}

// StatusPayload is a full session snapshot, also the reply to QUERY_STATUS.
// Session is nil when no session has run since startup.
type StatusPayload struct {
	Session *Session `json:"session"`
}
