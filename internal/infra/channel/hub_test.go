package channel

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aydenden/companylens/internal/application"
	appanalysis "github.com/aydenden/companylens/internal/application/analysis"
	"github.com/aydenden/companylens/internal/domain/ai"
	"github.com/aydenden/companylens/internal/domain/analysis"
	"github.com/aydenden/companylens/internal/domain/company"
)

// --- minimal in-memory ports ----------------------------------------------

type memSessions struct {
	mu     sync.Mutex
	stored *analysis.Session
}

func (m *memSessions) Activate(_ context.Context, s *analysis.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stored != nil && m.stored.Active() {
		return analysis.ErrSessionActive
	}
	m.stored = s.Snapshot()
	return nil
}

func (m *memSessions) Save(_ context.Context, s *analysis.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = s.Snapshot()
	return nil
}

func (m *memSessions) Load(context.Context) (*analysis.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stored.Snapshot(), nil
}

func (m *memSessions) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = nil
	return nil
}

// stubRepo serves one company with one captured image.
type stubRepo struct{}

func (stubRepo) SaveCompany(context.Context, *company.Company) error { return nil }
func (stubRepo) GetCompany(_ context.Context, id company.CompanyID) (*company.Company, error) {
	if id != "acme" {
		return nil, nil
	}
	return &company.Company{ID: "acme", Name: "Acme Corp"}, nil
}
func (stubRepo) ListCompanies(context.Context, int) ([]*company.Company, error) { return nil, nil }
func (stubRepo) SaveImage(context.Context, *company.CapturedImage) error        { return nil }
func (stubRepo) GetImage(_ context.Context, id string) (*company.CapturedImage, error) {
	return &company.CapturedImage{ID: id, CompanyID: "acme", Kind: company.SourceReview, ObjectKey: "acme/" + id}, nil
}
func (stubRepo) ListImagesByCompany(context.Context, company.CompanyID) ([]*company.CapturedImage, error) {
	return []*company.CapturedImage{{ID: "img-1", CompanyID: "acme", Kind: company.SourceReview, ObjectKey: "acme/img-1"}}, nil
}
func (stubRepo) SaveImageResult(context.Context, string, string) error       { return nil }
func (stubRepo) SaveAnalysis(context.Context, *company.AnalysisRecord) error { return nil }
func (stubRepo) LatestAnalysis(context.Context, company.CompanyID) (*company.AnalysisRecord, error) {
	return nil, nil
}

type stubImages struct{}

func (stubImages) Put(context.Context, string, []byte, string) error { return nil }
func (stubImages) Get(context.Context, string) ([]byte, error)       { return []byte{1}, nil }

type stubPrompts struct{}

func (stubPrompts) ImagePrompt(company.SourceKind) (string, string) { return "s", "u" }
func (stubPrompts) SynthesisPrompt(string, []*analysis.ImageResult) (string, string) {
	return "s", "u"
}

// scriptModel answers every image call and the synthesis call with valid
// payloads.
type scriptModel struct{}

func (scriptModel) Chat(ctx context.Context, messages []ai.Message, onChunk ai.StreamFunc) (ai.Response, error) {
	content := `{"category":"c","summary":"s","keyPoints":["k"],"sentiment":"neutral"}`
	synthesis := true
	for _, m := range messages {
		if len(m.Images) > 0 {
			synthesis = false
		}
	}
	if synthesis {
		content = `{"score":50,"summary":"ok","recommendation":"neutral","reasoning":"r"}`
	}
	if onChunk != nil {
		onChunk(ai.Chunk{Content: content})
		onChunk(ai.Chunk{Done: true})
	}
	return ai.Response{Content: content}, nil
}

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	svc := &appanalysis.Service{
		Sessions:  &memSessions{},
		Companies: stubRepo{},
		Images:    stubImages{},
		Model:     scriptModel{},
		Prompts:   stubPrompts{},
		Clock:     application.SystemClock{},
	}
	hub := NewHub(svc)
	svc.Events = hub
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads envelopes until one of msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) Envelope {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == msgType {
			return env
		}
	}
}

// --- tests -----------------------------------------------------------------

func TestHubBroadcast(t *testing.T) {
	hub, srv := newTestHub(t)
	a := dial(t, srv)
	b := dial(t, srv)

	require.Eventually(t, func() bool { return hub.ObserverCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(analysis.Event{Type: analysis.EventStatus, Payload: analysis.StatusPayload{}})

	for _, conn := range []*websocket.Conn{a, b} {
		env := readUntil(t, conn, string(analysis.EventStatus))
		assert.Equal(t, string(analysis.EventStatus), env.Type)
	}
}

func TestHubStartCommandRunsSession(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	body, _ := json.Marshal(StartPayload{CompanyID: "acme"})
	require.NoError(t, conn.WriteJSON(Command{Type: CommandStart, Payload: body}))

	env := readUntil(t, conn, TypeAck)
	var ack AckPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	assert.True(t, ack.OK)
	assert.Equal(t, CommandStart, ack.Command)
	assert.NotEmpty(t, ack.SessionID)

	env = readUntil(t, conn, string(analysis.EventAnalysisComplete))
	var done analysis.AnalysisCompletePayload
	require.NoError(t, json.Unmarshal(env.Payload, &done))
	assert.Equal(t, "acme", done.CompanyID)
	require.NotNil(t, done.Result)
	assert.Equal(t, 50, done.Result.Score)
}

func TestHubStartRequiresCompanyID(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandStart}))

	env := readUntil(t, conn, TypeAck)
	var ack AckPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	assert.False(t, ack.OK)
	assert.Contains(t, ack.Error, "company_id")
}

func TestHubCancelWithoutSession(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandCancel}))

	env := readUntil(t, conn, TypeAck)
	var ack AckPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	assert.False(t, ack.OK)
	assert.Equal(t, analysis.ErrNoSession.Error(), ack.Error)
}

func TestHubQueryStatus(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(Command{Type: CommandQueryStatus}))

	env := readUntil(t, conn, string(analysis.EventStatus))
	var status analysis.StatusPayload
	require.NoError(t, json.Unmarshal(env.Payload, &status))
	assert.Nil(t, status.Session)
}

func TestHubUnknownCommand(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(Command{Type: "REBOOT"}))

	env := readUntil(t, conn, TypeAck)
	var ack AckPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	assert.False(t, ack.OK)
	assert.Equal(t, "unknown command", ack.Error)
}

func TestHubDropsDisconnectedObserver(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)

	require.Eventually(t, func() bool { return hub.ObserverCount() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	require.Eventually(t, func() bool { return hub.ObserverCount() == 0 }, time.Second, 10*time.Millisecond)

	// publishing to an empty hub must not panic
	hub.Publish(analysis.Event{Type: analysis.EventStatus, Payload: analysis.StatusPayload{}})
}
