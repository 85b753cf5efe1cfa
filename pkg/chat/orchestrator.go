// Package chat owns the conversation lifecycle of one support session: the
// send cycle, feedback, pending attachment, input draft and the admin
// analysis that runs next to it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"KBAssist/models"
	"KBAssist/pkg/attachment"
	"KBAssist/pkg/metrics"
	"KBAssist/pkg/services"
	"KBAssist/pkg/transcript"

	"github.com/google/uuid"
)

var (
	ErrNothingToSend = errors.New("nothing to send")
	ErrSendInFlight  = errors.New("a message is already being sent")
)

const errorTemplate = "**Knowledge Base Error**: %s"

// ErrorText is the transcript text of a failed cycle.
func ErrorText(msg string) string {
	if strings.TrimSpace(msg) == "" {
		msg = "Could not retrieve info."
	}
	return fmt.Sprintf(errorTemplate, msg)
}

// DefaultAttachmentText is what the user "says" when they send a file alone.
func DefaultAttachmentText(name string) string {
	return "Analyze this document: " + name
}

// FeedbackSink receives every recorded rating, e.g. an audit log.
type FeedbackSink interface {
	RecordFeedback(ctx context.Context, sessionID string, msg models.Message) error
}

// Cycle is the outcome of one Send: the user entry and the reply (which may
// be an error entry).
type Cycle struct {
	User  models.Message `json:"user_message"`
	Reply models.Message `json:"reply"`
}

type OrchestratorOptions struct {
	SessionID string
	Encoder   *attachment.Encoder
	Feedback  FeedbackSink
	// OnChange runs after any visible state change, without locks held.
	OnChange func()
}

// Orchestrator runs send cycles against a Gateway. At most one cycle is in
// flight; sends made meanwhile are rejected, not queued.
type Orchestrator struct {
	store     *transcript.Store
	gw        services.Gateway
	enc       *attachment.Encoder
	sink      FeedbackSink
	sessionID string
	onChange  func()

	mu       sync.Mutex
	inFlight bool
	input    string
	pending  *models.Attachment
}

func NewOrchestrator(store *transcript.Store, gw services.Gateway, opts OrchestratorOptions) *Orchestrator {
	enc := opts.Encoder
	if enc == nil {
		enc = attachment.NewEncoder(0, nil)
	}
	return &Orchestrator{
		store:     store,
		gw:        gw,
		enc:       enc,
		sink:      opts.Feedback,
		sessionID: opts.SessionID,
		onChange:  opts.OnChange,
	}
}

// Send runs one cycle. Blank text falls back to the input draft, and a
// pending attachment alone is enough to send. Backend failures do not return
// an error: they come back as an error entry in Cycle.Reply.
func (o *Orchestrator) Send(ctx context.Context, text string) (*Cycle, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		metrics.SendsRejected.WithLabelValues("in_flight").Inc()
		return nil, ErrSendInFlight
	}
	// the entry keeps the text as typed; trimming only decides emptiness
	body := text
	if strings.TrimSpace(body) == "" {
		body = o.input
	}
	att := o.pending
	if strings.TrimSpace(body) == "" && att == nil {
		o.mu.Unlock()
		metrics.SendsRejected.WithLabelValues("empty").Inc()
		return nil, ErrNothingToSend
	}
	if strings.TrimSpace(body) == "" {
		body = DefaultAttachmentText(att.Name)
	}

	history := o.store.Snapshot()
	user := models.Message{
		ID:         uuid.NewString(),
		Role:       models.RoleUser,
		Text:       body,
		Timestamp:  time.Now(),
		Attachment: att,
	}
	o.store.Append(user)
	o.pending = nil
	o.input = ""
	o.inFlight = true
	o.mu.Unlock()
	o.changed()

	reply := o.answer(ctx, history, body, att)

	o.mu.Lock()
	o.store.Append(reply)
	o.inFlight = false
	o.mu.Unlock()
	o.changed()

	outcome := "ok"
	if reply.IsError {
		outcome = "error"
	}
	metrics.SendCycles.WithLabelValues(outcome).Inc()
	return &Cycle{User: user, Reply: reply}, nil
}

// answer calls the gateway and always produces a model entry.
func (o *Orchestrator) answer(ctx context.Context, history []models.Message, text string, att *models.Attachment) (reply models.Message) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[chat] session %s: gateway panic: %v", o.sessionID, r)
			reply = errorReply(fmt.Sprint(r))
		}
	}()

	ans, err := o.gw.Answer(ctx, history, text, att)
	if err != nil {
		be := services.AsBackendError(services.OpAnswer, err)
		log.Printf("[chat] session %s: %v", o.sessionID, be)
		return errorReply(be.Message)
	}
	if ans == nil {
		return errorReply("")
	}
	return models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleModel,
		Text:      ans.Text,
		Timestamp: time.Now(),
		Sources:   ans.Sources,
	}
}

func errorReply(msg string) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		Role:      models.RoleModel,
		Text:      ErrorText(msg),
		Timestamp: time.Now(),
		IsError:   true,
	}
}

// RecordFeedback rates a message. It may be called at any time, including
// while a cycle is in flight, and reports whether the message exists.
func (o *Orchestrator) RecordFeedback(ctx context.Context, id string, v models.Feedback) bool {
	if !o.store.SetFeedback(id, v) {
		return false
	}
	msg, _ := o.store.Get(id)
	log.Printf("[feedback] session %s message %s: %s", o.sessionID, id, v)
	metrics.FeedbackRecorded.WithLabelValues(string(v)).Inc()
	if o.sink != nil {
		if err := o.sink.RecordFeedback(ctx, o.sessionID, msg); err != nil {
			log.Printf("[feedback] audit log failed: %v", err)
		}
	}
	o.changed()
	return true
}

func (o *Orchestrator) SetInput(text string) {
	o.mu.Lock()
	o.input = text
	o.mu.Unlock()
	o.changed()
}

func (o *Orchestrator) Input() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.input
}

// Attach replaces the pending attachment outright.
func (o *Orchestrator) Attach(att *models.Attachment) {
	if att == nil {
		return
	}
	cp := *att
	o.mu.Lock()
	o.pending = &cp
	o.mu.Unlock()
	o.changed()
}

// AttachFrom encodes r and makes it the pending attachment. On failure the
// previous pending attachment stays as it was.
func (o *Orchestrator) AttachFrom(name, mimeType string, r io.Reader) (*models.Attachment, error) {
	att, err := o.enc.Encode(name, mimeType, r)
	if err != nil {
		log.Printf("[chat] session %s: attachment rejected: %v", o.sessionID, err)
		return nil, err
	}
	o.Attach(att)
	return att, nil
}

// AttachDataURL is AttachFrom for a browser data URL.
func (o *Orchestrator) AttachDataURL(name, dataURL string) (*models.Attachment, error) {
	att, err := o.enc.EncodeDataURL(name, dataURL)
	if err != nil {
		log.Printf("[chat] session %s: attachment rejected: %v", o.sessionID, err)
		return nil, err
	}
	o.Attach(att)
	return att, nil
}

// ClearAttachment drops the pending attachment and reports whether there was one.
func (o *Orchestrator) ClearAttachment() bool {
	o.mu.Lock()
	had := o.pending != nil
	o.pending = nil
	o.mu.Unlock()
	if had {
		o.changed()
	}
	return had
}

func (o *Orchestrator) PendingAttachment() *models.Attachment {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return nil
	}
	cp := *o.pending
	return &cp
}

// Sending reports whether a cycle is in flight.
func (o *Orchestrator) Sending() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

func (o *Orchestrator) Transcript() []models.Message {
	return o.store.Snapshot()
}

func (o *Orchestrator) changed() {
	if o.onChange != nil {
		o.onChange()
	}
}
