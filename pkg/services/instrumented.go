package services

import (
	"context"
	"time"

	"KBAssist/models"
	"KBAssist/pkg/metrics"
)

// Instrumented records request counts and latency for any Gateway.
type Instrumented struct {
	next Gateway
}

func WithMetrics(g Gateway) *Instrumented {
	return &Instrumented{next: g}
}

func (i *Instrumented) Answer(ctx context.Context, history []models.Message, text string, att *models.Attachment) (*Answer, error) {
	start := time.Now()
	ans, err := i.next.Answer(ctx, history, text, att)
	observe(OpAnswer, start, err)
	return ans, err
}

func (i *Instrumented) Analyze(ctx context.Context, history []models.Message) (*models.ConversationAnalysis, error) {
	start := time.Now()
	a, err := i.next.Analyze(ctx, history)
	observe(OpAnalyze, start, err)
	return a, err
}

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.GatewayRequests.WithLabelValues(op, outcome).Inc()
	metrics.GatewayLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
