package model

// ExchangeLog is the envelope published to the persist queue. Exactly one
// of Request/Response is set, selected by Kind.
type ExchangeLog struct {
	Kind     string       `json:"kind"`
	Request  *RequestLog  `json:"request,omitempty"`
	Response *ResponseLog `json:"response,omitempty"`
}

const (
	ExchangeLogRequest  = "request"
	ExchangeLogResponse = "response"
)
