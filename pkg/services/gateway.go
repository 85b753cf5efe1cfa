package services

import (
	"context"
	"errors"
	"fmt"

	"KBAssist/models"
)

// Gateway is the only way the rest of the system talks to the language
// model backend. Each call is one request and one outcome; failures are
// always *BackendError.
type Gateway interface {
	// Answer replies to text given the transcript as it stood before the
	// new user message. att is nil when nothing was attached.
	Answer(ctx context.Context, history []models.Message, text string, att *models.Attachment) (*Answer, error)
	Analyze(ctx context.Context, history []models.Message) (*models.ConversationAnalysis, error)
}

type Answer struct {
	Text    string          `json:"text"`
	Sources []models.Source `json:"sources,omitempty"`
}

const (
	OpAnswer  = "answer"
	OpAnalyze = "analyze"
)

// BackendError is the normalized failure of a gateway call. Message is
// meant for people and ends up in the chat transcript.
type BackendError struct {
	Op      string
	Status  int // HTTP status from the backend, 0 if none
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

func (e *BackendError) Unwrap() error { return e.Err }

var ErrGatewayDisabled = errors.New("gateway is disabled via config")

// AsBackendError returns err as a *BackendError, wrapping it when it is some
// other kind of failure. nil stays nil.
func AsBackendError(op string, err error) *BackendError {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return be
	}
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "the knowledge base took too long to respond"
	case errors.Is(err, context.Canceled):
		msg = "the request was cancelled"
	}
	return &BackendError{Op: op, Message: msg, Err: err}
}
