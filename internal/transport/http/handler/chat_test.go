package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"carequery/internal/agent"
	"carequery/internal/app"
	"carequery/internal/session"
)

type stubExecutor struct {
	result *agent.Result
	err    error
}

func (s *stubExecutor) Execute(context.Context, string, string) (*agent.Result, error) {
	return s.result, s.err
}

func newChatRouter(executor app.QueryExecutor) (*gin.Engine, *session.Store) {
	gin.SetMode(gin.TestMode)
	store := session.NewStore(0)
	svc := app.NewExchangeService(store, executor, nil, 0, 0)
	router := gin.New()
	router.POST("/chat", NewChatHandler(svc).Chat)
	return router, store
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	router, _ := newChatRouter(&stubExecutor{result: &agent.Result{
		Kind:     agent.KindSQL,
		Answer:   "There are 2000 patients.",
		SQLQuery: "SELECT COUNT(*) FROM patients",
		Rows:     []map[string]any{{"count": 2000}},
	}})

	rec := postJSON(t, router, "/chat", gin.H{
		"message":    "How many patients do we have?",
		"session_id": "web_1756700000000",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp app.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success=true: %s", rec.Body.String())
	}
	if resp.SessionID != "web_1756700000000" {
		t.Fatalf("expected session id echoed, got %q", resp.SessionID)
	}
	if resp.ResultCount != len(resp.Data) || resp.ResultCount != 1 {
		t.Fatalf("result_count %d vs %d rows", resp.ResultCount, len(resp.Data))
	}
	if resp.SQLGenerated == "" {
		t.Fatalf("expected sql_generated in response")
	}
}

func TestChatEmptyMessageRejected(t *testing.T) {
	router, store := newChatRouter(&stubExecutor{result: &agent.Result{Answer: "ok"}})

	rec := postJSON(t, router, "/chat", gin.H{"message": ""})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "empty") {
		t.Fatalf("expected validation message, got %s", rec.Body.String())
	}
	if store.Len() != 0 {
		t.Fatalf("rejected request must not create a session")
	}
}

func TestChatOversizedMessageRejected(t *testing.T) {
	router, _ := newChatRouter(&stubExecutor{result: &agent.Result{Answer: "ok"}})

	rec := postJSON(t, router, "/chat", gin.H{"message": strings.Repeat("x", 5001)})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatInvalidJSON(t *testing.T) {
	router, _ := newChatRouter(&stubExecutor{result: &agent.Result{Answer: "ok"}})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatAgentUnavailable(t *testing.T) {
	router, _ := newChatRouter(nil)

	rec := postJSON(t, router, "/chat", gin.H{"message": "hello"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestChatAgentFailureIsSoft(t *testing.T) {
	router, store := newChatRouter(&stubExecutor{err: errors.New("query planner exploded")})

	rec := postJSON(t, router, "/chat", gin.H{
		"message":    "hello",
		"session_id": "web_1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("agent failure must stay 200, got %d", rec.Code)
	}

	var resp app.ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected success=false")
	}
	if resp.Data == nil || len(resp.Data) != 0 {
		t.Fatalf("expected empty data list, got %v", resp.Data)
	}
	if _, ok := store.Snapshot("web_1"); !ok {
		t.Fatalf("session must survive agent failure")
	}
}
