package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/ldrpitr/samvaad/internal/dialogue"
	"github.com/ldrpitr/samvaad/internal/draft"
	querymock "github.com/ldrpitr/samvaad/internal/query/mock"
	speechmock "github.com/ldrpitr/samvaad/internal/speech/mock"
	"github.com/ldrpitr/samvaad/internal/store"
	"github.com/ldrpitr/samvaad/pkg/provider/llm"
	llmmock "github.com/ldrpitr/samvaad/pkg/provider/llm/mock"
)

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	manager := dialogue.NewManager(dialogue.Config{
		Querier:  &querymock.Service{Answer: "a stub answer"},
		Schedule: func(time.Duration, func()) {},
	})
	srv := httptest.NewServer(New(manager, opts...).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && resp.StatusCode != http.StatusNoContent {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/api/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create session status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("create session returned no id")
	}
	return id
}

func TestCreateSession(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if body["stage"] != "awaiting_role" {
		t.Errorf("stage = %v, want awaiting_role", body["stage"])
	}
	transcript, _ := body["transcript"].([]any)
	if len(transcript) != 1 {
		t.Fatalf("len(transcript) = %d, want 1", len(transcript))
	}
	greeting, _ := transcript[0].(map[string]any)
	if text, _ := greeting["text"].(string); !strings.HasPrefix(text, "Welcome to LDRP!") {
		t.Errorf("greeting = %q, want the welcome copy", text)
	}
	options, _ := greeting["options"].([]any)
	if len(options) != 2 {
		t.Errorf("len(options) = %d, want 2 role choices", len(options))
	}
}

func TestGetSession_NotFound(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/nope/", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	if body["error"] == "" {
		t.Error("missing error field in response")
	}
}

func TestOptionAndMessageFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/option",
		`{"payload":"role_student"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("option status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body["stage"] != "student_freeform" {
		t.Errorf("stage = %v, want student_freeform", body["stage"])
	}
	if body["input_enabled"] != true {
		t.Error("input_enabled = false, want true in student stage")
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/message",
		`{"text":"admision documen checklist"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("message status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	transcript, _ := body["transcript"].([]any)
	var sawCorrection, sawAnswer bool
	for _, raw := range transcript {
		m, _ := raw.(map[string]any)
		if m["kind"] == "correction" {
			sawCorrection = true
			if text, _ := m["text"].(string); text != `Did you mean: "admission document checklist"?` {
				t.Errorf("correction notice = %q", text)
			}
		}
		if m["text"] == "a stub answer" {
			sawAnswer = true
		}
	}
	if !sawCorrection {
		t.Error("no correction notice in transcript")
	}
	if !sawAnswer {
		t.Error("no answer turn in transcript")
	}
}

func TestSubmitMessage_InputDisabled(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/message",
		`{"text":"hello"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d before a role is chosen", resp.StatusCode, http.StatusConflict)
	}
}

func TestSetFilters_Validation(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/filters",
		`{"batch":"1800-1804"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d for an out-of-set batch", resp.StatusCode, http.StatusBadRequest)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/filters",
		`{"batch":"2024-2028","branch":"Information Technology"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	filters, _ := body["filters"].(map[string]any)
	if filters["batch"] != "2024-2028" {
		t.Errorf("batch = %v, want 2024-2028", filters["batch"])
	}
	// Empty fields fall back to the defaults.
	if filters["semester"] != "ALL" {
		t.Errorf("semester = %v, want ALL", filters["semester"])
	}
}

func TestSetLanguage_Endpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/language",
		`{"language":"fr-FR"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d for an unsupported tag", resp.StatusCode, http.StatusBadRequest)
	}

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/language",
		`{"language":"ta-IN"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body["language"] != "ta-IN" {
		t.Errorf("language = %v, want ta-IN", body["language"])
	}
}

func TestResetAndEnd(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/end", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body["stage"] != "ended" {
		t.Errorf("stage = %v, want ended", body["stage"])
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/reset", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body["stage"] != "awaiting_role" {
		t.Errorf("stage = %v, want awaiting_role after reset", body["stage"])
	}
	transcript, _ := body["transcript"].([]any)
	if len(transcript) != 1 {
		t.Errorf("len(transcript) = %d, want 1 after reset", len(transcript))
	}
}

func TestDeleteSession(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id+"/", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	getResp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/"+id+"/", "")
	if getResp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", getResp.StatusCode, http.StatusNotFound)
	}
}

func TestDraftEmail_Endpoint(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "SUBJECT: Transcript Request\n\nBODY:\nPlease issue my transcript.\n\nBest regards,",
	}}
	srv := newTestServer(t, WithDrafter(draft.New(p)))

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/draft-email",
		`{"prompt":"request an official transcript copy"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body["subject"] != "Transcript Request" {
		t.Errorf("subject = %v, want Transcript Request", body["subject"])
	}
	if body["fallback"] != false {
		t.Errorf("fallback = %v, want false", body["fallback"])
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/draft-email", `{"prompt":"short"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short prompt status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestRecentSessions_Endpoint(t *testing.T) {
	t.Parallel()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "log.db"))
	if err != nil {
		t.Fatalf("NewSQLite() error = %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.SaveSession(context.Background(), store.SessionRecord{
		SessionID: "s1", StartedAt: time.Now(), Language: "en-IN",
	}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	srv := newTestServer(t, WithRepository(repo))

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/analytics/sessions", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	sessions, _ := body["sessions"].([]any)
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
}

func TestWebSocketStream(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	id := createSession(t, srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + id + "/ws"
	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer ws.Close(websocket.StatusNormalClosure, "done")

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/option",
		`{"payload":"role_parent_visitor"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("option status = %d", resp.StatusCode)
	}

	// Expect two append events: the choice echo and the visitor menu.
	for i := 0; i < 2; i++ {
		_, data, err := ws.Read(ctx)
		if err != nil {
			t.Fatalf("websocket read %d: %v", i, err)
		}
		var ev dialogue.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if ev.Type != dialogue.EventAppend || ev.Message == nil {
			t.Errorf("event %d = %+v, want an append with a message", i, ev)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t, WithAllowedOrigins([]string{"http://widget.example"}))

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/sessions", nil)
	req.Header.Set("Origin", "http://widget.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://widget.example" {
		t.Errorf("Allow-Origin = %q, want the request origin", got)
	}

	req, _ = http.NewRequest(http.MethodOptions, srv.URL+"/api/sessions", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Allow-Origin = %q, want empty for a disallowed origin", got)
	}
}

func TestListen_Endpoints(t *testing.T) {
	t.Parallel()

	// Without a recognizer the engine cannot capture voice.
	srv := newTestServer(t)
	id := createSession(t, srv.URL)
	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+id+"/listen", "")
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("listen without recognizer status = %d, want %d", resp.StatusCode, http.StatusNotImplemented)
	}

	// With one, the recognised text lands in the pending input.
	rec := &speechmock.Recognizer{Result: "admission document list"}
	manager := dialogue.NewManager(dialogue.Config{
		Querier:    &querymock.Service{Answer: "a stub answer"},
		Recognizer: rec,
		Schedule:   func(time.Duration, func()) {},
	})
	srv2 := httptest.NewServer(New(manager).Routes())
	t.Cleanup(srv2.Close)

	id = createSession(t, srv2.URL)
	resp, body := doJSON(t, http.MethodPost, srv2.URL+"/api/sessions/"+id+"/listen", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("listen status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if body["pending_input"] != "admission document list" {
		t.Errorf("pending_input = %v, want the recognised text", body["pending_input"])
	}

	resp, _ = doJSON(t, http.MethodDelete, srv2.URL+"/api/sessions/"+id+"/listen", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop listening status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if rec.Stopped != 1 {
		t.Errorf("recognizer stopped %d times, want 1", rec.Stopped)
	}
}
