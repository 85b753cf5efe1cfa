package chat

import (
	"context"
	"testing"
	"time"

	"KBAssist/models"
	"KBAssist/pkg/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartTwiceIssuesOneAnalyze(t *testing.T) {
	gw := newStub()
	gw.analyzeGate = make(chan struct{})
	ac := NewAnalysisController(seededStore(), gw, nil)

	assert.True(t, ac.Start(context.Background()))
	assert.False(t, ac.Start(context.Background()))
	<-gw.entered
	_, err := ac.RequestAnalysis(context.Background())
	assert.ErrorIs(t, err, ErrAnalysisInFlight)

	v := ac.View()
	assert.True(t, v.IsOpen)
	assert.True(t, v.IsLoading)

	close(gw.analyzeGate)
	require.Eventually(t, func() bool { return !ac.View().IsLoading }, time.Second, 5*time.Millisecond)
	_, analyzes := gw.calls()
	assert.Equal(t, 1, analyzes)
	assert.Equal(t, "fine", ac.View().Analysis.Summary)
}

func TestRequestAnalysisStoresResult(t *testing.T) {
	gw := newStub()
	store := seededStore()
	ac := NewAnalysisController(store, gw, nil)

	v, err := ac.RequestAnalysis(context.Background())
	require.NoError(t, err)
	assert.True(t, v.IsOpen)
	assert.False(t, v.IsLoading)
	require.NotNil(t, v.Analysis)
	assert.Empty(t, v.Error)
	assert.Equal(t, 1, store.Len(), "analysis never writes the transcript")
}

func TestFailedAnalysisKeepsPreviousResult(t *testing.T) {
	gw := newStub()
	ac := NewAnalysisController(seededStore(), gw, nil)
	_, err := ac.RequestAnalysis(context.Background())
	require.NoError(t, err)

	gw.mu.Lock()
	gw.analyzeErr = &services.BackendError{Op: services.OpAnalyze, Message: "quota exceeded"}
	gw.mu.Unlock()

	v, err := ac.RequestAnalysis(context.Background())
	require.Error(t, err)
	assert.Equal(t, "quota exceeded", v.Error)
	require.NotNil(t, v.Analysis)
	assert.Equal(t, "fine", v.Analysis.Summary)
	assert.False(t, v.IsLoading)

	gw.mu.Lock()
	gw.analyzeErr = nil
	gw.analysis = &models.ConversationAnalysis{Summary: "newer"}
	gw.mu.Unlock()
	v, err = ac.RequestAnalysis(context.Background())
	require.NoError(t, err)
	assert.Empty(t, v.Error)
	assert.Equal(t, "newer", v.Analysis.Summary)
}

func TestLateResultAfterCloseIsDiscarded(t *testing.T) {
	gw := newStub()
	gw.analyzeGate = make(chan struct{})
	done := make(chan struct{}, 4)
	ac := NewAnalysisController(seededStore(), gw, func(v AnalysisView) {
		if !v.IsLoading {
			done <- struct{}{}
		}
	})

	require.True(t, ac.Start(context.Background()))
	<-gw.entered
	ac.Close()
	assert.True(t, ac.View().IsLoading, "closing does not cancel the run")
	close(gw.analyzeGate)
	<-done

	v := ac.View()
	assert.False(t, v.IsOpen)
	assert.False(t, v.IsLoading)
	assert.Nil(t, v.Analysis)
}

func TestAnalysisSnapshotsTranscriptAtStart(t *testing.T) {
	gw := &historyGateway{stubGateway: newStub()}
	gw.analyzeGate = make(chan struct{})
	store := seededStore()
	ac := NewAnalysisController(store, gw, nil)

	require.True(t, ac.Start(context.Background()))
	<-gw.entered
	store.Append(models.Message{ID: "late", Role: models.RoleUser, Text: "late"})
	close(gw.analyzeGate)
	require.Eventually(t, func() bool { return !ac.Analyzing() }, time.Second, 5*time.Millisecond)

	assert.Len(t, gw.seen, 1)
}

func TestAnalysisRunsDuringSend(t *testing.T) {
	gw := newStub()
	gw.answerGate = make(chan struct{})
	store := seededStore()
	o := NewOrchestrator(store, gw, OrchestratorOptions{})
	ac := NewAnalysisController(store, gw, nil)

	sent := make(chan struct{})
	go func() {
		defer close(sent)
		_, _ = o.Send(context.Background(), "Hello")
	}()
	<-gw.entered

	v, err := ac.RequestAnalysis(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, v.Analysis)
	assert.True(t, o.Sending())

	close(gw.answerGate)
	<-sent
	assert.Equal(t, 3, store.Len())
}

type historyGateway struct {
	*stubGateway
	seen []models.Message
}

func (g *historyGateway) Analyze(ctx context.Context, history []models.Message) (*models.ConversationAnalysis, error) {
	res, err := g.stubGateway.Analyze(ctx, history)
	g.seen = history
	return res, err
}
