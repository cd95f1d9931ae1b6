package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ResultKind tags the shape of an agent answer so callers can switch
// exhaustively instead of probing optional fields.
type ResultKind int

const (
	// KindText is a plain natural-language answer with no query behind it.
	KindText ResultKind = iota
	// KindSQL carries a generated query plus its row set.
	KindSQL
	// KindTool is an answer produced through an external search tool.
	KindTool
)

// TableData is the structured table payload forwarded to the client as-is.
type TableData struct {
	Headers  []string         `json:"headers"`
	Data     []map[string]any `json:"data"`
	RowCount int              `json:"row_count"`
}

// Result is one answer from the query agent.
type Result struct {
	Kind               ResultKind
	Answer             string
	SQLQuery           string
	Rows               []map[string]any
	TableData          *TableData
	QueryUnderstanding string
	AgentType          string
	ToolUsed           string
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client talks to the natural-language-to-SQL agent service. The agent is an
// external collaborator: this client owns only the single call contract and
// the timeout budget, nothing about how SQL gets generated.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type queryRequest struct {
	Question string `json:"question"`
	Context  string `json:"context,omitempty"`
	Model    string `json:"model,omitempty"`
}

type queryResponse struct {
	Answer             string           `json:"answer"`
	SQLQuery           string           `json:"sql_query"`
	Data               []map[string]any `json:"data"`
	Success            bool             `json:"success"`
	Error              string           `json:"error"`
	TableData          *TableData       `json:"table_data"`
	QueryUnderstanding string           `json:"query_understanding"`
	AgentType          string           `json:"agent_type"`
	ToolUsed           string           `json:"tool_used"`
}

// Execute sends the question plus accumulated conversation context to the
// agent and returns the parsed result. The configured timeout bounds the
// whole call; callers may pass a tighter deadline via ctx.
func (c *Client) Execute(ctx context.Context, question, conversationContext string) (*Result, error) {
	reqBody := queryRequest{
		Question: question,
		Context:  conversationContext,
		Model:    c.cfg.Model,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal agent request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/query"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build agent request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read agent response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("agent response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed queryResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse agent json failed: %w", err)
	}
	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "agent reported failure without detail"
		}
		return nil, fmt.Errorf("agent query failed: %s", msg)
	}

	result := &Result{
		Kind:               KindText,
		Answer:             strings.TrimSpace(parsed.Answer),
		SQLQuery:           strings.TrimSpace(parsed.SQLQuery),
		Rows:               parsed.Data,
		TableData:          parsed.TableData,
		QueryUnderstanding: parsed.QueryUnderstanding,
		AgentType:          parsed.AgentType,
		ToolUsed:           parsed.ToolUsed,
	}
	switch {
	case result.ToolUsed != "":
		result.Kind = KindTool
	case result.SQLQuery != "":
		result.Kind = KindSQL
	}
	if result.Answer == "" {
		result.Answer = "Query processed successfully"
	}
	return result, nil
}
