package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JoseManaure/portfolio-server/internal/ai"
	"github.com/JoseManaure/portfolio-server/internal/config"
	"github.com/JoseManaure/portfolio-server/internal/contact"
	"github.com/JoseManaure/portfolio-server/internal/dictionary"
	"github.com/JoseManaure/portfolio-server/internal/relay"
	"github.com/JoseManaure/portfolio-server/internal/session"
	"github.com/JoseManaure/portfolio-server/internal/store"
)

type memStore struct {
	mu          sync.Mutex
	transcripts []store.Transcript
	visitors    []store.Visitor
}

func (m *memStore) CreateTranscript(ctx context.Context, t *store.Transcript) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts = append(m.transcripts, *t)
	return nil
}

func (m *memStore) ListTranscripts(ctx context.Context, f store.Filter) ([]store.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.Transcript
	for i := len(m.transcripts) - 1; i >= 0; i-- {
		t := m.transcripts[i]
		if f.SessionID != "" && t.SessionID != f.SessionID {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) CreateVisitor(ctx context.Context, v *store.Visitor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visitors = append(m.visitors, *v)
	return nil
}

func (m *memStore) SetVisitorLocation(ctx context.Context, id string, loc store.Location) error {
	return nil
}

func (m *memStore) Close(ctx context.Context) error { return nil }

type stubProvider struct {
	chunks []string
}

func (s *stubProvider) Chat(ctx context.Context, _ []ai.Message) (string, error) {
	return strings.Join(s.chunks, " "), nil
}

func (s *stubProvider) StreamChat(ctx context.Context, _ []ai.Message) (<-chan string, <-chan error) {
	chunks := make(chan string, len(s.chunks))
	errs := make(chan error, 1)
	for _, c := range s.chunks {
		chunks <- c
	}
	close(chunks)
	close(errs)
	return chunks, errs
}

func newTestRouter(t *testing.T, st *memStore) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop().Sugar()

	sessions := session.NewMemoryStore(time.Minute)
	t.Cleanup(func() { sessions.Close() })

	flow := contact.New(sessions, st, nil, nil, log)
	engine := relay.NewEngine(&stubProvider{chunks: []string{"Hola", "desde", "el modelo"}},
		dictionary.New(nil), flow, st, nil, log, relay.Options{WordDelay: time.Millisecond})

	cfg := config.Config{JWTSecret: "test-secret", AllowedOrigins: []string{"http://localhost:3000"}}
	return NewRouter(engine, st, nil, cfg, log)
}

func TestPostChatDictionary(t *testing.T) {
	r := newTestRouter(t, &memStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"prompt":"hola"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Reply  string `json:"reply"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Source != "dictionary" {
		t.Fatalf("expected dictionary source, got %q", resp.Source)
	}
	if !strings.HasPrefix(resp.Reply, "¡Hola!") {
		t.Fatalf("unexpected reply %q", resp.Reply)
	}
}

func TestPostChatContactTrigger(t *testing.T) {
	r := newTestRouter(t, &memStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"prompt":"quiero contratar tu servicio","sessionId":"s1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Reply  string `json:"reply"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Reply != "¿Cuál es tu nombre?" || resp.Source != "formulario-contacto" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPostChatMissingPrompt(t *testing.T) {
	r := newTestRouter(t, &memStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestChatSSEStreamsAndTerminates(t *testing.T) {
	st := &memStore{}
	r := newTestRouter(t, st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chat-sse?prompt=cu%C3%A9ntame+algo+sobre+tus+proyectos&sessionId=s1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "data: Hola ") {
		t.Fatalf("missing streamed chunk in body:\n%s", body)
	}
	if !strings.HasSuffix(body, "data: [END]\n\n") {
		t.Fatalf("stream must end with the [END] sentinel:\n%s", body)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.transcripts) != 1 || st.transcripts[0].Source != "model" {
		t.Fatalf("expected one model transcript, got %+v", st.transcripts)
	}
}

func TestChatSSEMissingPrompt(t *testing.T) {
	r := newTestRouter(t, &memStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/chat-sse", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCreateVisitor(t *testing.T) {
	st := &memStore{}
	r := newTestRouter(t, st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/visitor", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success   bool   `json:"success"`
		VisitorID string `json:"visitorId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.VisitorID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}

	var cookie string
	for _, c := range w.Result().Cookies() {
		if c.Name == "visitor_token" {
			cookie = c.Value
		}
	}
	if cookie == "" {
		t.Fatal("visitor_token cookie was not set")
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.visitors) != 1 {
		t.Fatalf("expected one visitor, got %d", len(st.visitors))
	}
	v := st.visitors[0]
	if v.IP != "203.0.113.9" || v.UserAgent != "test-agent" || v.VisitorID != resp.VisitorID {
		t.Fatalf("unexpected visitor %+v", v)
	}
}

func TestHistoryFiltersBySession(t *testing.T) {
	st := &memStore{}
	now := time.Now()
	st.transcripts = []store.Transcript{
		{ID: "01A", SessionID: "s1", Prompt: "a", Reply: "ra", Source: "model", CreatedAt: now},
		{ID: "01B", SessionID: "s2", Prompt: "b", Reply: "rb", Source: "model", CreatedAt: now},
		{ID: "01C", SessionID: "s1", Prompt: "c", Reply: "rc", Source: "dictionary", CreatedAt: now},
	}
	r := newTestRouter(t, st)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/history?sessionId=s1", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Chats []store.Transcript `json:"chats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Chats) != 2 {
		t.Fatalf("expected 2 chats, got %+v", resp.Chats)
	}
	if resp.Chats[0].Prompt != "c" || resp.Chats[1].Prompt != "a" {
		t.Fatalf("expected newest first, got %+v", resp.Chats)
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	r := newTestRouter(t, &memStore{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("preflight status %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("unexpected allow-origin %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow-origin for unknown origin: %q", got)
	}
}
