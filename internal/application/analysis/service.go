package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/aydenden/companylens/internal/application"
	"github.com/aydenden/companylens/internal/domain/ai"
	domain "github.com/aydenden/companylens/internal/domain/analysis"
	"github.com/aydenden/companylens/internal/domain/company"
	"github.com/aydenden/companylens/internal/infra/ai/extract"
)

const (
	defaultWorkers    = 2
	defaultMaxRetries = 2

	// synthesisImageID marks stream chunks that belong to the final
	// synthesis call rather than a captured image.
	synthesisImageID = "synthesis"
)

// PromptProvider supplies the template strings for model calls.
type PromptProvider interface {
	ImagePrompt(kind company.SourceKind) (system, user string)
	SynthesisPrompt(companyName string, results []*domain.ImageResult) (system, user string)
}

// Service orchestrates company analysis sessions: it iterates a company's
// captured images with a bounded worker pool, runs each through the model
// client, validates the structured output, then issues one synthesis call
// over the successful results.
//
// Service owns the only long-lived mutable state in the system (the current
// session); all mutation happens under its mutex, one completion at a time.
type Service struct {
	Sessions  domain.SessionStore
	Companies company.Repository
	Images    company.ImageStore
	Model     ai.Client
	Prompts   PromptProvider
	Events    domain.Publisher
	Clock     application.Clock

	// Workers bounds in-flight model calls; MaxRetries bounds re-attempts of
	// a failed per-image call. Zero values select the defaults.
	Workers    int
	MaxRetries int

	mu      sync.Mutex
	current *domain.Session
	cancel  context.CancelFunc
}

func (s *Service) workers() int {
	if s.Workers <= 0 {
		return defaultWorkers
	}
	return s.Workers
}

func (s *Service) attempts() int {
	if s.MaxRetries < 0 {
		return 1
	}
	return s.MaxRetries + 1
}

// Start begins a new session for the company. imageIDs may be empty, in
// which case every captured image of the company is analyzed in capture
// order. Returns ErrSessionActive while a session is running or
// synthesizing; the active-session invariant is enforced by the session
// store's Activate guard, not by this process's memory alone.
func (s *Service) Start(ctx context.Context, companyID string, imageIDs []string) (domain.SessionID, error) {
	c, err := s.Companies.GetCompany(ctx, company.CompanyID(companyID))
	if err != nil {
		return "", err
	}
	if c == nil {
		return "", fmt.Errorf("%w: %s", company.ErrNotFound, companyID)
	}

	if len(imageIDs) == 0 {
		metas, err := s.Companies.ListImagesByCompany(ctx, c.ID)
		if err != nil {
			return "", err
		}
		for _, m := range metas {
			imageIDs = append(imageIDs, m.ID)
		}
	}
	if len(imageIDs) == 0 {
		return "", domain.ErrNoImages
	}

	sess := &domain.Session{
		ID:        domain.SessionID(uuid.New().String()),
		CompanyID: companyID,
		Status:    domain.StatusRunning,
		ImageIDs:  imageIDs,
		Results:   make(map[string]*domain.ImageOutcome, len(imageIDs)),
		StartedAt: s.Clock.Now(),
	}

	if err := s.Sessions.Activate(ctx, sess); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.current = sess
	s.cancel = cancel
	s.mu.Unlock()

	log.Printf("analysis session %s started: company=%s images=%d workers=%d",
		sess.ID, companyID, len(imageIDs), s.workers())
	s.Events.Publish(domain.Event{Type: domain.EventStatus, Payload: domain.StatusPayload{Session: sess.Snapshot()}})

	go s.run(runCtx, sess)
	return sess.ID, nil
}

// Cancel requests cooperative cancellation of the active session. In-flight
// model calls are aborted through their context; no further images are
// dispatched and synthesis is skipped.
func (s *Service) Cancel(ctx context.Context) error {
	s.mu.Lock()
	sess := s.current
	if sess == nil || !sess.Active() {
		s.mu.Unlock()
		return domain.ErrNoSession
	}
	sess.CancelRequested = true
	cancel := s.cancel
	snap := sess.Snapshot()
	s.mu.Unlock()

	if err := s.Sessions.Save(ctx, snap); err != nil {
		log.Printf("failed to persist cancel request: %v", err)
	}
	if cancel != nil {
		cancel()
	}
	log.Printf("analysis session %s: cancellation requested", sess.ID)
	return nil
}

// Status returns a snapshot of the current session, falling back to the
// persisted record when this process has not run one. Returns nil when no
// session exists.
func (s *Service) Status(ctx context.Context) (*domain.Session, error) {
	s.mu.Lock()
	cur := s.current
	s.mu.Unlock()
	if cur != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return cur.Snapshot(), nil
	}
	return s.Sessions.Load(ctx)
}

// Recover handles a session left active by a crashed or restarted host.
// Policy: mark it error rather than resume; the record is kept in the store
// so a reconnecting observer can query what happened.
func (s *Service) Recover(ctx context.Context) error {
	sess, err := s.Sessions.Load(ctx)
	if err != nil {
		return err
	}
	if sess == nil || !sess.Active() {
		return nil
	}
	sess.Status = domain.StatusError
	sess.FailureReason = "interrupted by host restart"
	sess.Progress = domain.ProgressFor(sess.Status, sess.CompletedCount(), len(sess.ImageIDs))
	log.Printf("analysis session %s: marked error after host restart", sess.ID)
	return s.Sessions.Save(ctx, sess)
}

// run processes the session end to end. It owns all session mutation from
// this point on; every transition is persisted before its event is emitted.
func (s *Service) run(ctx context.Context, sess *domain.Session) {
	s.runPool(ctx, sess)

	s.mu.Lock()
	cancelled := sess.CancelRequested
	s.mu.Unlock()
	if cancelled {
		s.finish(sess, domain.StatusCancelled, "analysis cancelled", nil)
		return
	}

	results := s.successfulResults(sess)
	if len(results) == 0 {
		s.finish(sess, domain.StatusError, domain.ErrNoUsableResults.Error(), nil)
		return
	}

	s.transition(sess, domain.StatusSynthesizing)

	verdict, err := s.synthesize(ctx, sess, results)
	if err != nil {
		s.mu.Lock()
		cancelled = sess.CancelRequested
		s.mu.Unlock()
		if cancelled {
			s.finish(sess, domain.StatusCancelled, "analysis cancelled", nil)
			return
		}
		s.finish(sess, domain.StatusError, fmt.Sprintf("synthesis failed: %v", err), nil)
		return
	}

	if err := s.persistVerdict(sess, verdict); err != nil {
		s.finish(sess, domain.StatusError, fmt.Sprintf("failed to persist result: %v", err), nil)
		return
	}
	s.finish(sess, domain.StatusDone, "", verdict)
}

// runPool dispatches the session's images to a fixed pool of workers.
// Dispatch follows ImageIDs order and stops at the first cancellation check
// that trips; completion order is whatever the workers produce.
func (s *Service) runPool(ctx context.Context, sess *domain.Session) {
	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < s.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				outcome := s.analyzeImage(ctx, sess, id)
				if outcome == nil {
					// call aborted by cancellation, nothing to record
					continue
				}
				s.applyOutcome(sess, id, outcome)
			}
		}()
	}

	for _, id := range sess.ImageIDs {
		if s.cancelRequested(sess) {
			break
		}
		jobs <- id
	}
	close(jobs)
	wg.Wait()
}

func (s *Service) cancelRequested(sess *domain.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.CancelRequested
}

// analyzeImage runs one captured image through the model with bounded
// retries. Model-call failures are retried; extraction and schema failures
// are recorded immediately since re-asking would replay the same exchange.
// Returns nil when the call was aborted by cancellation.
func (s *Service) analyzeImage(ctx context.Context, sess *domain.Session, imageID string) *domain.ImageOutcome {
	meta, err := s.Companies.GetImage(ctx, imageID)
	if err != nil || meta == nil {
		return &domain.ImageOutcome{Error: fmt.Sprintf("image not found: %s", imageID), FailureKind: domain.FailureModelCall}
	}
	data, err := s.Images.Get(ctx, meta.ObjectKey)
	if err != nil {
		return &domain.ImageOutcome{Error: fmt.Sprintf("image payload unavailable: %v", err), FailureKind: domain.FailureModelCall}
	}

	system, user := s.Prompts.ImagePrompt(meta.Kind)
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: user, Images: []string{base64.StdEncoding.EncodeToString(data)}},
	}

	var lastErr error
	for attempt := 0; attempt < s.attempts(); attempt++ {
		resp, err := s.Model.Chat(ctx, messages, s.chunkPublisher(sess.ID, imageID))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			lastErr = err
			log.Printf("analysis session %s: image %s attempt %d failed: %v", sess.ID, imageID, attempt+1, err)
			continue
		}

		var result domain.ImageResult
		if !extract.Into(resp.Content, &result) {
			return &domain.ImageOutcome{Error: "no structured payload in model output", FailureKind: domain.FailureExtraction}
		}
		if err := validateImageResult(&result); err != nil {
			return &domain.ImageOutcome{Error: err.Error(), FailureKind: domain.FailureSchema}
		}
		return &domain.ImageOutcome{Result: &result}
	}
	return &domain.ImageOutcome{Error: lastErr.Error(), FailureKind: domain.FailureModelCall}
}

// applyOutcome records one finished image. The whole update happens in a
// single locked step so interleaved completions never lose progress updates;
// a retry overwrites the entry, it does not append.
func (s *Service) applyOutcome(sess *domain.Session, imageID string, outcome *domain.ImageOutcome) {
	s.mu.Lock()
	sess.Results[imageID] = outcome
	completed := sess.CompletedCount()
	if completed > sess.CurrentIndex {
		sess.CurrentIndex = completed
	}
	sess.Progress = domain.ProgressFor(sess.Status, completed, len(sess.ImageIDs))
	snap := sess.Snapshot()
	s.mu.Unlock()

	if err := s.Sessions.Save(context.Background(), snap); err != nil {
		log.Printf("failed to persist session %s: %v", sess.ID, err)
	}
	if outcome.Result != nil {
		if b, err := json.Marshal(outcome.Result); err == nil {
			if err := s.Companies.SaveImageResult(context.Background(), imageID, string(b)); err != nil {
				log.Printf("failed to persist image result %s: %v", imageID, err)
			}
		}
	}
	s.Events.Publish(domain.Event{Type: domain.EventImageComplete, Payload: domain.ImageCompletePayload{
		SessionID: sess.ID,
		ImageID:   imageID,
		Outcome:   outcome,
		Completed: completed,
		Total:     len(sess.ImageIDs),
		Progress:  snap.Progress,
	}})
}

// synthesize issues the final model call over all successful per-image
// results. Failed images are excluded, not retried at this stage.
func (s *Service) synthesize(ctx context.Context, sess *domain.Session, results []*domain.ImageResult) (*domain.SynthesisResult, error) {
	name := sess.CompanyID
	if c, err := s.Companies.GetCompany(ctx, company.CompanyID(sess.CompanyID)); err == nil && c != nil {
		name = c.Name
	}

	system, user := s.Prompts.SynthesisPrompt(name, results)
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: system},
		{Role: ai.RoleUser, Content: user},
	}

	resp, err := s.Model.Chat(ctx, messages, s.chunkPublisher(sess.ID, synthesisImageID))
	if err != nil {
		return nil, err
	}

	var verdict domain.SynthesisResult
	if !extract.Into(resp.Content, &verdict) {
		return nil, fmt.Errorf("%w: no structured payload in synthesis output", domain.ErrSchema)
	}
	if err := validateSynthesis(&verdict); err != nil {
		return nil, err
	}
	verdict.AnalyzedAt = s.Clock.Now()
	return &verdict, nil
}

func (s *Service) persistVerdict(sess *domain.Session, verdict *domain.SynthesisResult) error {
	b, err := json.Marshal(verdict)
	if err != nil {
		return err
	}
	return s.Companies.SaveAnalysis(context.Background(), &company.AnalysisRecord{
		ID:        uuid.New().String(),
		CompanyID: company.CompanyID(sess.CompanyID),
		Result:    string(b),
		CreatedAt: verdict.AnalyzedAt,
	})
}

// transition moves the session to a new non-terminal status, persists it,
// and emits a status event.
func (s *Service) transition(sess *domain.Session, status domain.Status) {
	s.mu.Lock()
	sess.Status = status
	sess.Progress = domain.ProgressFor(status, sess.CompletedCount(), len(sess.ImageIDs))
	snap := sess.Snapshot()
	s.mu.Unlock()

	if err := s.Sessions.Save(context.Background(), snap); err != nil {
		log.Printf("failed to persist session %s: %v", sess.ID, err)
	}
	s.Events.Publish(domain.Event{Type: domain.EventStatus, Payload: domain.StatusPayload{Session: snap}})
}

// finish settles the session in a terminal state, clears the active-session
// slot, and emits the terminal event.
func (s *Service) finish(sess *domain.Session, status domain.Status, reason string, verdict *domain.SynthesisResult) {
	s.mu.Lock()
	sess.Status = status
	sess.FailureReason = reason
	sess.Progress = domain.ProgressFor(status, sess.CompletedCount(), len(sess.ImageIDs))
	snap := sess.Snapshot()
	s.cancel = nil
	s.mu.Unlock()

	if err := s.Sessions.Clear(context.Background()); err != nil {
		log.Printf("failed to clear session slot: %v", err)
	}

	switch status {
	case domain.StatusDone:
		log.Printf("analysis session %s done: %d analyzed, %d failed", sess.ID, snap.SucceededCount(), snap.FailedCount())
		s.Events.Publish(domain.Event{Type: domain.EventAnalysisComplete, Payload: domain.AnalysisCompletePayload{
			SessionID: sess.ID,
			CompanyID: sess.CompanyID,
			Result:    verdict,
			Failed:    snap.FailedCount(),
		}})
	default:
		log.Printf("analysis session %s ended: status=%s reason=%s", sess.ID, status, reason)
		s.Events.Publish(domain.Event{Type: domain.EventAnalysisError, Payload: domain.AnalysisErrorPayload{
			SessionID: sess.ID,
			CompanyID: sess.CompanyID,
			Status:    status,
			Reason:    reason,
			Failed:    snap.FailedCount(),
		}})
	}
}

// successfulResults collects usable per-image results in dispatch order.
func (s *Service) successfulResults(sess *domain.Session) []*domain.ImageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.ImageResult
	for _, id := range sess.ImageIDs {
		if o := sess.Results[id]; o != nil && o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}

func (s *Service) chunkPublisher(sessionID domain.SessionID, imageID string) ai.StreamFunc {
	return func(ch ai.Chunk) {
		s.Events.Publish(domain.Event{Type: domain.EventStreamChunk, Payload: domain.StreamChunkPayload{
			SessionID: sessionID,
			ImageID:   imageID,
			Thinking:  ch.Thinking,
			Content:   ch.Content,
			Done:      ch.Done,
		}})
	}
}
