package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"KBAssist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAnswerMatchesTopics(t *testing.T) {
	g := NewLocalGateway()
	ans, err := g.Answer(context.Background(), nil, "What are your data plans?", nil)
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "Data plans")
	require.NotEmpty(t, ans.Sources)
	assert.NotEmpty(t, ans.Sources[0].URI)
}

func TestLocalAnswerIsDeterministic(t *testing.T) {
	g := NewLocalGateway()
	a1, _ := g.Answer(context.Background(), nil, "bill payment", nil)
	a2, _ := g.Answer(context.Background(), nil, "bill payment", nil)
	assert.Equal(t, a1, a2)
}

func TestLocalAnswerMentionsAttachment(t *testing.T) {
	att := &models.Attachment{Name: "bill.pdf", MimeType: "application/pdf", Data: "AAAA"}
	ans, err := NewLocalGateway().Answer(context.Background(), nil, "Analyze this document: bill.pdf", att)
	require.NoError(t, err)
	assert.Contains(t, ans.Text, "bill.pdf")
}

func TestLocalAnswerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalGateway().Answer(ctx, nil, "hi", nil)
	var be *BackendError
	assert.ErrorAs(t, err, &be)
}

func TestLocalAnalyzeNegativeConversation(t *testing.T) {
	history := []models.Message{
		{Role: models.RoleModel, Text: "Ayubowan!"},
		{Role: models.RoleUser, Text: "My fibre is down again, this is terrible"},
		{Role: models.RoleModel, Text: "Restart your router", Feedback: models.FeedbackNegative},
		{Role: models.RoleUser, Text: "Still not working, worst service"},
		{Role: models.RoleModel, Text: "**Knowledge Base Error**: quota", IsError: true},
	}
	a, err := NewLocalGateway().Analyze(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, a.Sentiment)
	assert.Equal(t, models.CriticalityHigh, a.Criticality)
	assert.Contains(t, a.KeyTopics, "Fibre availability")
	assert.Len(t, a.UnresolvedIssues, 2)
	assert.NotEmpty(t, a.AdminRecommendations)
	assert.GreaterOrEqual(t, a.SentimentScore, 0)
}

func TestLocalAnalyzeEmpty(t *testing.T) {
	a, err := NewLocalGateway().Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNeutral, a.Sentiment)
	assert.Equal(t, models.CriticalityLow, a.Criticality)
	assert.NotNil(t, a.KeyTopics)
}

func TestLocalAnalyzeKeepsSinhalaIntact(t *testing.T) {
	question := strings.Repeat("ශ්‍රී ", 20)
	history := []models.Message{
		{Role: models.RoleUser, Text: question},
		{Role: models.RoleModel, Text: "**Knowledge Base Error**: quota", IsError: true},
	}
	a, err := NewLocalGateway().Analyze(context.Background(), history)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(a.CustomerIntent), a.CustomerIntent)
	assert.True(t, strings.HasSuffix(a.CustomerIntent, "..."))
	require.Len(t, a.UnresolvedIssues, 1)
	assert.True(t, utf8.ValidString(a.UnresolvedIssues[0]))
}

func TestTruncateCountsRunes(t *testing.T) {
	assert.Equal(t, "දෝෂය", truncate("දෝෂය", 4))
	assert.Equal(t, "දෝ...", truncate("දෝෂය දෝෂය", 5))
	assert.Equal(t, "abc", truncate("abcdef", 3))
}
