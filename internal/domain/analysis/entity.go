package analysis

import (
	"time"
)

// SessionID identifier type
type SessionID string

// Status enum for a session's lifecycle.
// idle -> running -> synthesizing -> done; running/synthesizing may fall to
// error or cancelled at any point. Terminal states stay until a new start.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusRunning      Status = "running"
	StatusSynthesizing Status = "synthesizing"
	StatusDone         Status = "done"
	StatusError        Status = "error"
	StatusCancelled    Status = "cancelled"
)

// ImageResult is the validated structured output of analyzing one captured image.
type ImageResult struct {
	Category  string   `json:"category"`
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
	Sentiment string   `json:"sentiment"`
}

// Failure kinds recorded against an image when a call could not produce a result.
const (
	FailureModelCall  = "model_call"
	FailureExtraction = "extraction"
	FailureSchema     = "schema"
)

// ImageOutcome records what happened to one image within a session.
// Exactly one of Result or Error is set. Entries are write-once per image;
// a retry overwrites, it does not append.
type ImageOutcome struct {
	Result      *ImageResult `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	FailureKind string       `json:"failure_kind,omitempty"`
}

// SynthesisResult is the company-level verdict produced by the final synthesis call.
type SynthesisResult struct {
	Score          int       `json:"score"`
	Summary        string    `json:"summary"`
	Strengths      []string  `json:"strengths"`
	Weaknesses     []string  `json:"weaknesses"`
	Recommendation string    `json:"recommendation"`
	Reasoning      string    `json:"reasoning"`
	AnalyzedAt     time.Time `json:"analyzedAt"`
}

// Aggregate Root: Session
// The only long-lived mutable entity in the system. Owned and mutated
// exclusively by the session manager; observers read snapshots.
type Session struct {
	ID              SessionID                `json:"id"`
	CompanyID       string                   `json:"company_id"`
	Status          Status                   `json:"status"`
	ImageIDs        []string                 `json:"image_ids"`
	CurrentIndex    int                      `json:"current_index"`
	Results         map[string]*ImageOutcome `json:"results"`
	Progress        int                      `json:"progress"`
	StartedAt       time.Time                `json:"started_at"`
	CancelRequested bool                     `json:"cancel_requested"`
	FailureReason   string                   `json:"failure_reason,omitempty"`
}

// Active reports whether the session occupies the single active slot.
func (s *Session) Active() bool {
	return s.Status == StatusRunning || s.Status == StatusSynthesizing
}

// CompletedCount is the number of images that finished, whether succeeded or failed.
func (s *Session) CompletedCount() int {
	return len(s.Results)
}

// SucceededCount is the number of images with a usable result.
func (s *Session) SucceededCount() int {
	n := 0
	for _, o := range s.Results {
		if o != nil && o.Result != nil {
			n++
		}
	}
	return n
}

// FailedCount is the number of images with a recorded failure.
func (s *Session) FailedCount() int {
	n := 0
	for _, o := range s.Results {
		if o != nil && o.Result == nil {
			n++
		}
	}
	return n
}

// ProgressFor computes overall progress from completed count and phase.
// Progress is never stored independently of these inputs: while running it is
// completed/total scaled to 100, during synthesis it holds at 99, and it
// reaches 100 only when the session is done.
func ProgressFor(status Status, completed, total int) int {
	switch status {
	case StatusDone:
		return 100
	case StatusSynthesizing:
		return 99
	default:
		if total == 0 {
			return 0
		}
		p := completed * 100 / total
		if p > 99 {
			p = 99
		}
		return p
	}
}

// Snapshot returns a deep copy safe to hand to observers.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ImageIDs = append([]string(nil), s.ImageIDs...)
	cp.Results = make(map[string]*ImageOutcome, len(s.Results))
	for id, o := range s.Results {
		if o == nil {
			cp.Results[id] = nil
			continue
		}
		oc := *o
		if o.Result != nil {
			rc := *o.Result
			rc.KeyPoints = append([]string(nil), o.Result.KeyPoints...)
			oc.Result = &rc
		}
		cp.Results[id] = &oc
	}
	return &cp
}
