package chat

import (
	"context"
	"sync"

	"KBAssist/models"
	"KBAssist/pkg/services"
)

// stubGateway records calls. When a gate channel is set the matching call
// signals on entered and blocks until the gate is closed.
type stubGateway struct {
	mu sync.Mutex

	answer      *services.Answer
	answerErr   error
	answerPanic any
	answerGate  chan struct{}
	entered     chan struct{}
	answerCalls int
	histories   [][]models.Message
	texts       []string
	atts        []*models.Attachment

	analysis     *models.ConversationAnalysis
	analyzeErr   error
	analyzeGate  chan struct{}
	analyzeCalls int
}

func newStub() *stubGateway {
	return &stubGateway{
		answer:   &services.Answer{Text: "ok"},
		analysis: &models.ConversationAnalysis{Sentiment: models.SentimentNeutral, Summary: "fine"},
		entered:  make(chan struct{}, 8),
	}
}

func (g *stubGateway) Answer(ctx context.Context, history []models.Message, text string, att *models.Attachment) (*services.Answer, error) {
	g.mu.Lock()
	g.answerCalls++
	g.histories = append(g.histories, history)
	g.texts = append(g.texts, text)
	g.atts = append(g.atts, att)
	gate, ans, err, p := g.answerGate, g.answer, g.answerErr, g.answerPanic
	g.mu.Unlock()

	if gate != nil {
		g.entered <- struct{}{}
		<-gate
	}
	if p != nil {
		panic(p)
	}
	if err != nil {
		return nil, err
	}
	return ans, nil
}

func (g *stubGateway) Analyze(ctx context.Context, history []models.Message) (*models.ConversationAnalysis, error) {
	g.mu.Lock()
	g.analyzeCalls++
	gate, res, err := g.analyzeGate, g.analysis, g.analyzeErr
	g.mu.Unlock()

	if gate != nil {
		g.entered <- struct{}{}
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (g *stubGateway) calls() (answer, analyze int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.answerCalls, g.analyzeCalls
}

type recordingSink struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (s *recordingSink) RecordFeedback(ctx context.Context, sessionID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}
