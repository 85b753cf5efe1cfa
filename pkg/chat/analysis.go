package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"KBAssist/models"
	"KBAssist/pkg/metrics"
	"KBAssist/pkg/services"
	"KBAssist/pkg/transcript"
)

var ErrAnalysisInFlight = errors.New("an analysis is already running")

// AnalysisView is what the admin display surface shows.
type AnalysisView struct {
	IsOpen    bool                         `json:"is_open"`
	IsLoading bool                         `json:"is_loading"`
	Analysis  *models.ConversationAnalysis `json:"analysis"`
	Error     string                       `json:"error,omitempty"`
}

// AnalysisController runs admin analyses of a transcript. It only reads the
// transcript and is independent of any send cycle. One analysis at a time.
//
// A failed run keeps the last good result and sets Error. Closing the
// surface does not stop a running analysis, but its outcome is then dropped.
type AnalysisController struct {
	store    *transcript.Store
	gw       services.Gateway
	onChange func(AnalysisView)

	mu        sync.Mutex
	analyzing bool
	open      bool
	result    *models.ConversationAnalysis
	errMsg    string
}

func NewAnalysisController(store *transcript.Store, gw services.Gateway, onChange func(AnalysisView)) *AnalysisController {
	return &AnalysisController{store: store, gw: gw, onChange: onChange}
}

// Start opens the surface and runs the analysis in the background. It
// returns false, doing nothing, if one is already running.
func (a *AnalysisController) Start(ctx context.Context) bool {
	history, ok := a.begin()
	if !ok {
		return false
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		res, err := a.analyze(ctx, history)
		a.finish(res, err)
	}()
	return true
}

// RequestAnalysis is Start that waits for the outcome.
func (a *AnalysisController) RequestAnalysis(ctx context.Context) (AnalysisView, error) {
	history, ok := a.begin()
	if !ok {
		return a.View(), ErrAnalysisInFlight
	}
	res, err := a.analyze(ctx, history)
	a.finish(res, err)
	return a.View(), err
}

// Close hides the display surface.
func (a *AnalysisController) Close() {
	a.mu.Lock()
	a.open = false
	a.mu.Unlock()
	a.changed()
}

func (a *AnalysisController) View() AnalysisView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.viewLocked()
}

func (a *AnalysisController) Analyzing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analyzing
}

func (a *AnalysisController) begin() ([]models.Message, bool) {
	a.mu.Lock()
	if a.analyzing {
		a.mu.Unlock()
		return nil, false
	}
	a.analyzing = true
	a.open = true
	a.errMsg = ""
	history := a.store.Snapshot()
	a.mu.Unlock()
	a.changed()
	return history, true
}

func (a *AnalysisController) analyze(ctx context.Context, history []models.Message) (res *models.ConversationAnalysis, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &services.BackendError{Op: services.OpAnalyze, Message: fmt.Sprint(r)}
		}
	}()
	res, err = a.gw.Analyze(ctx, history)
	if err != nil {
		return nil, services.AsBackendError(services.OpAnalyze, err)
	}
	if res == nil {
		return nil, &services.BackendError{Op: services.OpAnalyze, Message: "empty analysis"}
	}
	return res, nil
}

func (a *AnalysisController) finish(res *models.ConversationAnalysis, err error) {
	a.mu.Lock()
	a.analyzing = false
	switch {
	case !a.open:
		metrics.AnalysisRuns.WithLabelValues("discarded").Inc()
		log.Printf("[analysis] surface closed, result discarded")
	case err != nil:
		metrics.AnalysisRuns.WithLabelValues("error").Inc()
		log.Printf("[analysis] failed: %v", err)
		var be *services.BackendError
		if errors.As(err, &be) {
			a.errMsg = be.Message
		} else {
			a.errMsg = err.Error()
		}
	default:
		metrics.AnalysisRuns.WithLabelValues("ok").Inc()
		a.result = res
		a.errMsg = ""
	}
	a.mu.Unlock()
	a.changed()
}

func (a *AnalysisController) viewLocked() AnalysisView {
	return AnalysisView{
		IsOpen:    a.open,
		IsLoading: a.analyzing,
		Analysis:  a.result,
		Error:     a.errMsg,
	}
}

func (a *AnalysisController) changed() {
	if a.onChange != nil {
		a.onChange(a.View())
	}
}
