package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aydenden/companylens/internal/domain/ai"
)

func chatMessages() []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: "you are a test"},
		{Role: ai.RoleUser, Content: "hello"},
	}
}

func frameLine(thinking, content string, done bool) string {
	b, _ := json.Marshal(map[string]any{
		"message": map[string]string{"thinking": thinking, "content": content},
		"done":    done,
	})
	return string(b) + "\n"
}

func TestChatStreamsAndAccumulates(t *testing.T) {
	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}

		fl := w.(http.Flusher)
		for _, line := range []string{
			frameLine("let me think", "", false),
			frameLine("", "Hel", false),
			frameLine("", "lo!", false),
			frameLine("", "", true),
		} {
			fmt.Fprint(w, line)
			fl.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-model", 5*time.Second)

	var chunks []ai.Chunk
	resp, err := c.Chat(context.Background(), chatMessages(), func(ch ai.Chunk) {
		chunks = append(chunks, ch)
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Content != "Hello!" {
		t.Errorf("Content = %q, want %q", resp.Content, "Hello!")
	}
	if resp.Thinking != "let me think" {
		t.Errorf("Thinking = %q, want %q", resp.Thinking, "let me think")
	}
	if len(chunks) != 4 || !chunks[3].Done {
		t.Errorf("chunks = %+v, want 4 with final done", chunks)
	}
	if !gotReq.Stream || gotReq.Model != "test-model" {
		t.Errorf("request = %+v, want stream=true model=test-model", gotReq)
	}
}

func TestChatSoftCompleteWithoutDoneFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// stream closes after content frames, no terminal frame and no
		// trailing newline on the last line
		fmt.Fprint(w, frameLine("", "partial ", false))
		fmt.Fprint(w, strings.TrimSuffix(frameLine("", "answer", false), "\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	resp, err := c.Chat(context.Background(), chatMessages(), nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "partial answer" {
		t.Errorf("Content = %q, want %q", resp.Content, "partial answer")
	}
}

func TestChatSkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not json\n")
		fmt.Fprint(w, frameLine("", "ok", false))
		fmt.Fprint(w, "\n\n")
		fmt.Fprint(w, frameLine("", "", true))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	resp, err := c.Chat(context.Background(), chatMessages(), nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("Content = %q, want %q", resp.Content, "ok")
	}
}

func TestChatEmptyMessages(t *testing.T) {
	c := NewClient("", "", 0)
	if _, err := c.Chat(context.Background(), nil, nil); err == nil {
		t.Fatal("Chat with no messages: want error")
	}
}

func TestChatQuotaExceeded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	_, err := c.Chat(context.Background(), chatMessages(), nil)
	if !errors.Is(err, ai.ErrQuotaExceeded) {
		t.Errorf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestChatServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	_, err := c.Chat(context.Background(), chatMessages(), nil)
	if !errors.Is(err, ai.ErrRequestFailed) {
		t.Errorf("err = %v, want ErrRequestFailed", err)
	}
}

func TestChatTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, "m", 50*time.Millisecond)
	_, err := c.Chat(context.Background(), chatMessages(), nil)
	if !errors.Is(err, ai.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestChatServerNotRunning(t *testing.T) {
	// a listener that is immediately closed leaves a port nothing accepts on
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "m", time.Second)
	_, err := c.Chat(context.Background(), chatMessages(), nil)
	if !errors.Is(err, ai.ErrNotRunning) {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "Ollama is running")
	}))
	c := NewClient(srv.URL, "m", time.Second)
	if err := c.Healthy(context.Background()); err != nil {
		t.Fatalf("Healthy: %v", err)
	}

	srv.Close()
	if err := c.Healthy(context.Background()); err == nil {
		t.Fatal("Healthy against closed server: want error")
	}
}

func TestChatResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fl := w.(http.Flusher)
		big := strings.Repeat("a", 64*1024)
		for i := 0; i < 20; i++ {
			fmt.Fprint(w, frameLine("", big, false))
			fl.Flush()
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "m", 5*time.Second)
	_, err := c.Chat(context.Background(), chatMessages(), nil)
	if !errors.Is(err, ai.ErrRequestFailed) {
		t.Errorf("err = %v, want ErrRequestFailed", err)
	}
}
