package core

import "time"

// FunctionCallRequest is a pending side-effecting action derived from a
// model's function-call output. Requests travel from the conversation runtime
// through the execution queue to the executor; ownership transfers on dequeue
// and the executor alone drives the retry loop for a given request.
//
// Delivery is at-least-once: a transient failure may have partially succeeded
// upstream before the retry, so handlers must tolerate duplicate effects.
type FunctionCallRequest struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Arguments      map[string]any `json:"arguments,omitempty"`
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	EnqueuedAt     time.Time      `json:"enqueued_at"`
	Attempts       int            `json:"attempts"`
}

// NewFunctionCallRequest builds a request bound to the conversation and
// assistant message that produced it.
func NewFunctionCallRequest(name string, args map[string]any, conversationID, messageID string) FunctionCallRequest {
	return FunctionCallRequest{
		ID:             NewID(),
		Name:           name,
		Arguments:      args,
		ConversationID: conversationID,
		MessageID:      messageID,
		EnqueuedAt:     time.Now().UTC(),
	}
}

// OutcomeState is the terminal state of a function-call request.
type OutcomeState string

const (
	// OutcomeSucceeded: the handler completed within the retry budget.
	OutcomeSucceeded OutcomeState = "succeeded"
	// OutcomeFailedPermanently: the handler reported a non-retryable error.
	OutcomeFailedPermanently OutcomeState = "failed_permanently"
	// OutcomeFailedExhaustedRetries: every attempt failed transiently.
	OutcomeFailedExhaustedRetries OutcomeState = "failed_exhausted_retries"
)

// ExecutionOutcome records the terminal result of one request's processing.
// Outcomes are written once by the executor and never mutated; the audit sink
// is their system of record.
type ExecutionOutcome struct {
	RequestID      string        `json:"request_id"`
	Function       string        `json:"function"`
	ConversationID string        `json:"conversation_id"`
	State          OutcomeState  `json:"state"`
	Result         any           `json:"result,omitempty"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	Attempts       int           `json:"attempts"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Succeeded reports whether the outcome is terminal success.
func (o ExecutionOutcome) Succeeded() bool { return o.State == OutcomeSucceeded }
