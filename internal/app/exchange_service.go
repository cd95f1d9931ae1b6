package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"carequery/internal/agent"
	"carequery/internal/model"
	"carequery/internal/session"
)

var (
	ErrMessageEmpty     = errors.New("message cannot be empty")
	ErrMessageTooLong   = errors.New("message too long, maximum length is 5000 characters")
	ErrAgentUnavailable = errors.New("query agent is not available")
)

const (
	maxMessageLength = 5000
	apiVersion       = "1.0.0"
)

// QueryExecutor is the single call contract to the external
// natural-language-to-SQL agent.
type QueryExecutor interface {
	Execute(ctx context.Context, question, conversationContext string) (*agent.Result, error)
}

// ExchangeLogPublisher hands request/response records to the async persist
// pipeline. Logging is best-effort: a broken publisher never fails a chat.
type ExchangeLogPublisher interface {
	Publish(ctx context.Context, entry model.ExchangeLog) error
}

// ExchangeService is the chat exchange handler: it validates the request,
// resolves the session, delegates to the query agent, shapes the wire
// response, and records both turns.
type ExchangeService struct {
	store           *session.Store
	executor        QueryExecutor
	publisher       ExchangeLogPublisher
	execTimeout     time.Duration
	maxContextTurns int
}

type ExchangeInput struct {
	Message   string
	SessionID string
	IPAddress string
	UserAgent string
}

// ChatResponse is the exact shape the web client consumes. Data is always
// present (empty list rather than null), and ResultCount always equals
// len(Data); TableData.RowCount may exceed len(TableData.Data) when the
// agent truncated the transmitted rows.
type ChatResponse struct {
	Response           string           `json:"response"`
	SQLGenerated       string           `json:"sql_generated,omitempty"`
	Data               []map[string]any `json:"data"`
	ResultCount        int              `json:"result_count"`
	Success            bool             `json:"success"`
	SessionID          string           `json:"session_id"`
	QueryUnderstanding string           `json:"query_understanding,omitempty"`
	Metadata           map[string]any   `json:"metadata"`
	TableData          *agent.TableData `json:"table_data,omitempty"`
}

func NewExchangeService(
	store *session.Store,
	executor QueryExecutor,
	publisher ExchangeLogPublisher,
	execTimeout time.Duration,
	maxContextTurns int,
) *ExchangeService {
	if execTimeout <= 0 {
		execTimeout = 30 * time.Second
	}
	if maxContextTurns <= 0 {
		maxContextTurns = 5
	}
	return &ExchangeService{
		store:           store,
		executor:        executor,
		publisher:       publisher,
		execTimeout:     execTimeout,
		maxContextTurns: maxContextTurns,
	}
}

func (s *ExchangeService) AgentReady() bool {
	return s.executor != nil
}

// Exchange runs one chat turn. Validation failures surface as errors; agent
// failures do not — they come back as a success=false ChatResponse with the
// session intact so the conversation can continue.
func (s *ExchangeService) Exchange(ctx context.Context, input ExchangeInput) (*ChatResponse, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrMessageEmpty
	}
	if len(input.Message) > maxMessageLength {
		return nil, ErrMessageTooLong
	}
	if s.executor == nil {
		return nil, ErrAgentUnavailable
	}

	sessionID := input.SessionID
	if sessionID == "" {
		sessionID = session.NewID()
	}
	s.store.GetOrCreate(sessionID)

	requestID := uuid.NewString()
	startedAt := time.Now()
	s.logRequest(ctx, &model.RequestLog{
		RequestID:   requestID,
		SessionID:   sessionID,
		Endpoint:    "/chat",
		Method:      "POST",
		UserQuery:   message,
		RequestSize: len(input.Message),
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
		CreatedAt:   startedAt,
	})

	// Conversation context is the history before this message; the user
	// turn is appended after so it never quotes itself.
	conversationContext := s.store.Context(sessionID, s.maxContextTurns)
	s.store.AppendTurn(sessionID, session.Turn{Role: "user", Content: message})

	execCtx, cancel := context.WithTimeout(ctx, s.execTimeout)
	defer cancel()

	result, err := s.executor.Execute(execCtx, message, conversationContext)
	processingTime := time.Since(startedAt).Seconds()
	if err != nil {
		log.Printf("agent query failed for session %s: %v", sessionID, err)
		return s.failureResponse(ctx, requestID, sessionID, message, processingTime, err), nil
	}

	rows := result.Rows
	if rows == nil {
		rows = []map[string]any{}
	}

	resp := &ChatResponse{
		Response:           result.Answer,
		Data:               rows,
		ResultCount:        len(rows),
		Success:            true,
		SessionID:          sessionID,
		QueryUnderstanding: result.QueryUnderstanding,
		Metadata: map[string]any{
			"session_id":      sessionID,
			"api_version":     apiVersion,
			"processing_time": processingTime,
			"agent_type":      result.AgentType,
		},
	}
	switch result.Kind {
	case agent.KindSQL:
		resp.SQLGenerated = result.SQLQuery
		resp.TableData = result.TableData
	case agent.KindTool:
		resp.Metadata["tool_used"] = result.ToolUsed
	}

	s.store.AppendTurn(sessionID, session.Turn{
		Role:         "assistant",
		Content:      result.Answer,
		SQLGenerated: resp.SQLGenerated,
		ResultCount:  resp.ResultCount,
	})

	s.logResponse(ctx, requestID, resp, processingTime, "", result.AgentType)
	return resp, nil
}

// ResetSession clears the session, if known, and mints a fresh id. Unknown
// or absent ids still succeed: the caller simply starts a new conversation.
func (s *ExchangeService) ResetSession(sessionID string) string {
	return s.store.Reset(sessionID)
}

// EndSession removes the session and reports whether it existed.
func (s *ExchangeService) EndSession(sessionID string) bool {
	return s.store.End(sessionID)
}

func (s *ExchangeService) Sessions() []string {
	return s.store.List()
}

func (s *ExchangeService) SessionTurns(sessionID string) ([]session.Turn, bool) {
	return s.store.Snapshot(sessionID)
}

func (s *ExchangeService) failureResponse(
	ctx context.Context,
	requestID, sessionID, message string,
	processingTime float64,
	cause error,
) *ChatResponse {
	s.store.AppendTurn(sessionID, session.Turn{
		Role:    "assistant",
		Content: "Error: " + cause.Error(),
		Failed:  true,
	})

	resp := &ChatResponse{
		Response:           "I apologize, but I encountered an error while processing your request. Please try again.",
		Data:               []map[string]any{},
		ResultCount:        0,
		Success:            false,
		SessionID:          sessionID,
		QueryUnderstanding: "Error processing: " + message,
		Metadata: map[string]any{
			"session_id":      sessionID,
			"api_version":     apiVersion,
			"processing_time": processingTime,
			"error":           cause.Error(),
		},
	}
	s.logResponse(ctx, requestID, resp, processingTime, cause.Error(), "")
	return resp
}

func (s *ExchangeService) logRequest(ctx context.Context, entry *model.RequestLog) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, model.ExchangeLog{
		Kind:    model.ExchangeLogRequest,
		Request: entry,
	}); err != nil {
		log.Printf("publish request log failed: %v", err)
	}
}

func (s *ExchangeService) logResponse(
	ctx context.Context,
	requestID string,
	resp *ChatResponse,
	processingTime float64,
	errorMessage, agentType string,
) {
	if s.publisher == nil {
		return
	}

	size := 0
	if payload, err := json.Marshal(resp); err == nil {
		size = len(payload)
	}
	statusCode := 200

	entry := &model.ResponseLog{
		ResponseID:     uuid.NewString(),
		RequestID:      requestID,
		SessionID:      resp.SessionID,
		StatusCode:     statusCode,
		Success:        resp.Success,
		ResponseSize:   size,
		ProcessingTime: processingTime,
		SQLGenerated:   resp.SQLGenerated,
		ResultCount:    resp.ResultCount,
		AgentType:      agentType,
		ErrorMessage:   errorMessage,
		CreatedAt:      time.Now(),
	}
	if err := s.publisher.Publish(ctx, model.ExchangeLog{
		Kind:     model.ExchangeLogResponse,
		Response: entry,
	}); err != nil {
		log.Printf("publish response log failed: %v", err)
	}
}
