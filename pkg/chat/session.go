package chat

import (
	"sync"
	"time"

	"KBAssist/models"
	"KBAssist/pkg/attachment"
	"KBAssist/pkg/config"
	"KBAssist/pkg/services"
	"KBAssist/pkg/transcript"

	"github.com/google/uuid"
)

// AttachmentInfo describes a pending attachment without its payload.
type AttachmentInfo struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
}

func InfoOf(att *models.Attachment) *AttachmentInfo {
	if att == nil {
		return nil
	}
	return &AttachmentInfo{Name: att.Name, MimeType: att.MimeType, Size: att.Size()}
}

// DisplayCopy returns m with any attachment payload removed.
func DisplayCopy(m models.Message) models.Message {
	m = m.Clone()
	if m.Attachment != nil {
		m.Attachment.Data = ""
	}
	return m
}

// State is the renderable state of a session's chat.
type State struct {
	SessionID  string           `json:"session_id"`
	Messages   []models.Message `json:"messages"`
	Sending    bool             `json:"sending"`
	Input      string           `json:"input"`
	Attachment *AttachmentInfo  `json:"attachment"`
}

const (
	EventState    = "state"
	EventAnalysis = "analysis"
)

type Event struct {
	Type     string        `json:"type"`
	State    *State        `json:"state,omitempty"`
	Analysis *AnalysisView `json:"analysis,omitempty"`
}

// Session is the application state of one conversation: transcript,
// orchestrator, analysis controller and the subscribers watching them.
type Session struct {
	ID        string
	CreatedAt time.Time

	Transcript *transcript.Store
	Chat       *Orchestrator
	Analysis   *AnalysisController

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

type SessionOptions struct {
	ID       string
	Profile  config.Profile
	Encoder  *attachment.Encoder
	Feedback FeedbackSink
}

// NewSession starts a conversation seeded with the profile greeting.
func NewSession(gw services.Gateway, opts SessionOptions) *Session {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		Transcript: transcript.NewStore(),
		subs:       make(map[int]chan Event),
	}
	if opts.Profile.Greeting != "" {
		s.Transcript.Append(models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleModel,
			Text:      opts.Profile.Greeting,
			Timestamp: s.CreatedAt,
		})
	}
	s.Chat = NewOrchestrator(s.Transcript, gw, OrchestratorOptions{
		SessionID: id,
		Encoder:   opts.Encoder,
		Feedback:  opts.Feedback,
		OnChange:  s.publishState,
	})
	s.Analysis = NewAnalysisController(s.Transcript, gw, s.publishAnalysis)
	return s
}

// State returns the current chat state. Attachment payloads are left out of
// the messages; only their metadata is rendered.
func (s *Session) State() State {
	msgs := s.Transcript.Snapshot()
	for i := range msgs {
		msgs[i] = DisplayCopy(msgs[i])
	}
	return State{
		SessionID:  s.ID,
		Messages:   msgs,
		Sending:    s.Chat.Sending(),
		Input:      s.Chat.Input(),
		Attachment: InfoOf(s.Chat.PendingAttachment()),
	}
}

// Subscribe returns a channel of session events. Slow subscribers miss
// events rather than block the session; every event carries full state, so
// the next one catches them up. Call cancel when done.
func (s *Session) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
			s.mu.Unlock()
		})
	}
}

// Close disconnects all subscribers. The session is unusable for pushes
// afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, c := range s.subs {
		close(c)
		delete(s.subs, id)
	}
}

// publishState and publishAnalysis read the state while holding s.mu, so
// events reach subscribers in the order the state changed.
func (s *Session) publishState() {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.State()
	s.pushLocked(Event{Type: EventState, State: &st})
}

func (s *Session) publishAnalysis(AnalysisView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.Analysis.View()
	s.pushLocked(Event{Type: EventAnalysis, Analysis: &v})
}

func (s *Session) pushLocked(ev Event) {
	for _, c := range s.subs {
		select {
		case c <- ev:
		default:
		}
	}
}
