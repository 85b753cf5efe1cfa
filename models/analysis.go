package models

import "strings"

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type Criticality string

const (
	CriticalityLow    Criticality = "low"
	CriticalityMedium Criticality = "medium"
	CriticalityHigh   Criticality = "high"
)

// ConversationAnalysis is the admin summary of a whole transcript. It is
// produced fresh on every request and never merged with an earlier one.
type ConversationAnalysis struct {
	Sentiment            Sentiment   `json:"sentiment"`
	SentimentScore       int         `json:"sentimentScore"` // 0..100
	Summary              string      `json:"summary"`
	KeyTopics            []string    `json:"keyTopics"`
	CustomerIntent       string      `json:"customerIntent"`
	UnresolvedIssues     []string    `json:"unresolvedIssues"`
	AdminRecommendations []string    `json:"adminRecommendations"`
	Criticality          Criticality `json:"criticality"`
}

// Normalize coerces enum fields into their known values, clamps the score and
// replaces nil lists with empty ones so the value always renders.
func (a *ConversationAnalysis) Normalize() {
	switch Sentiment(strings.ToLower(strings.TrimSpace(string(a.Sentiment)))) {
	case SentimentPositive:
		a.Sentiment = SentimentPositive
	case SentimentNegative:
		a.Sentiment = SentimentNegative
	default:
		a.Sentiment = SentimentNeutral
	}
	switch Criticality(strings.ToLower(strings.TrimSpace(string(a.Criticality)))) {
	case CriticalityHigh:
		a.Criticality = CriticalityHigh
	case CriticalityMedium:
		a.Criticality = CriticalityMedium
	default:
		a.Criticality = CriticalityLow
	}
	if a.SentimentScore < 0 {
		a.SentimentScore = 0
	}
	if a.SentimentScore > 100 {
		a.SentimentScore = 100
	}
	if a.KeyTopics == nil {
		a.KeyTopics = []string{}
	}
	if a.UnresolvedIssues == nil {
		a.UnresolvedIssues = []string{}
	}
	if a.AdminRecommendations == nil {
		a.AdminRecommendations = []string{}
	}
}
