package services

import (
	"context"
	"fmt"
	"strings"

	"KBAssist/models"
)

// LocalGateway answers without any network access. It is picked at startup
// when the Gemini gateway is disabled and gives deterministic output, which
// also makes it handy for demos and the terminal client.
type LocalGateway struct{}

func NewLocalGateway() *LocalGateway { return &LocalGateway{} }

type localTopic struct {
	keywords []string
	topic    string
	answer   string
	source   models.Source
}

var localTopics = []localTopic{
	{
		keywords: []string{"data", "plan", "package"},
		topic:    "Data plans",
		answer:   "We offer prepaid and postpaid data plans, from daily add-ons to unlimited monthly packages.",
		source:   models.Source{Title: "Data packages", URI: "https://www.slt.lk/en/personal/broadband/packages"},
	},
	{
		keywords: []string{"fibre", "fiber", "ftth", "availability"},
		topic:    "Fibre availability",
		answer:   "Fibre coverage is checked by address. Enter your location on the coverage page or call 1212.",
		source:   models.Source{Title: "Fibre coverage", URI: "https://www.slt.lk/en/personal/broadband/fibre"},
	},
	{
		keywords: []string{"bill", "pay", "payment", "charge"},
		topic:    "Billing",
		answer:   "Bills can be paid online with a card, through the MySLT app, or at any SLT-MOBITEL branch.",
		source:   models.Source{Title: "Pay your bill", URI: "https://myslt.slt.lk"},
	},
	{
		keywords: []string{"down", "fault", "not working", "outage", "slow", "disconnect"},
		topic:    "Service fault",
		answer:   "Sorry about the trouble. Restart your router, check the LOS light, and if it stays red report a fault on 1212.",
		source:   models.Source{Title: "Report a fault", URI: "https://www.slt.lk/en/contact-us"},
	},
	{
		keywords: []string{"peo", "tv", "channel"},
		topic:    "PEO TV",
		answer:   "PEO TV packages and channel lists are available on the PEO TV page.",
		source:   models.Source{Title: "PEO TV", URI: "https://www.peotv.com"},
	},
}

func matchTopics(text string) []localTopic {
	lower := strings.ToLower(text)
	var out []localTopic
	for _, t := range localTopics {
		for _, k := range t.keywords {
			if strings.Contains(lower, k) {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func (l *LocalGateway) Answer(ctx context.Context, history []models.Message, text string, att *models.Attachment) (*Answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, AsBackendError(OpAnswer, err)
	}
	last := strings.TrimSpace(text)
	if last == "" {
		last = "your question"
	}

	b := &strings.Builder{}
	fmt.Fprintf(b, "Here is what I found for: %s\n\n", truncate(last, 80))
	topics := matchTopics(last)
	var sources []models.Source
	if len(topics) == 0 {
		fmt.Fprintln(b, "- I could not match this to a known service topic.")
		fmt.Fprintln(b, "- Try asking about data plans, fibre, billing, faults or PEO TV.")
	}
	for _, t := range topics {
		fmt.Fprintf(b, "- **%s**: %s\n", t.topic, t.answer)
		sources = append(sources, t.source)
	}
	if att != nil {
		fmt.Fprintf(b, "\nI received **%s** (%s, %d bytes). Document reading is not available in offline mode.\n",
			att.Name, att.MimeType, att.Size())
	}
	if turns := countRole(history, models.RoleUser); turns > 0 {
		fmt.Fprintf(b, "\n_%d earlier question(s) in this conversation._\n", turns)
	}
	return &Answer{Text: strings.TrimSpace(b.String()), Sources: sources}, nil
}

var negativeWords = []string{"angry", "bad", "terrible", "worst", "not working", "down", "slow", "complain", "useless", "frustrat", "again"}
var positiveWords = []string{"thanks", "thank you", "great", "good", "perfect", "awesome", "solved", "works"}

func (l *LocalGateway) Analyze(ctx context.Context, history []models.Message) (*models.ConversationAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, AsBackendError(OpAnalyze, err)
	}

	score := 50
	topicSet := map[string]bool{}
	var topics, unresolved []string
	var lastQuestion string
	negRatings := 0
	for i, m := range history {
		if m.Role == models.RoleModel {
			if m.Feedback == models.FeedbackNegative {
				negRatings++
				score -= 10
			}
			if m.Feedback == models.FeedbackPositive {
				score += 10
			}
			continue
		}
		lower := strings.ToLower(m.Text)
		for _, w := range negativeWords {
			if strings.Contains(lower, w) {
				score -= 10
			}
		}
		for _, w := range positiveWords {
			if strings.Contains(lower, w) {
				score += 10
			}
		}
		for _, t := range matchTopics(m.Text) {
			if !topicSet[t.topic] {
				topicSet[t.topic] = true
				topics = append(topics, t.topic)
			}
		}
		lastQuestion = strings.TrimSpace(m.Text)
		if answeredBadly(history, i) {
			unresolved = append(unresolved, truncate(lastQuestion, 80))
		}
	}

	a := &models.ConversationAnalysis{
		SentimentScore:   score,
		KeyTopics:        topics,
		UnresolvedIssues: unresolved,
	}
	switch {
	case score >= 60:
		a.Sentiment = models.SentimentPositive
	case score <= 40:
		a.Sentiment = models.SentimentNegative
	default:
		a.Sentiment = models.SentimentNeutral
	}
	switch {
	case a.Sentiment == models.SentimentNegative && len(unresolved) > 1:
		a.Criticality = models.CriticalityHigh
	case a.Sentiment == models.SentimentNegative || len(unresolved) > 0:
		a.Criticality = models.CriticalityMedium
	default:
		a.Criticality = models.CriticalityLow
	}

	userTurns := countRole(history, models.RoleUser)
	if userTurns == 0 {
		a.Summary = "The customer has not asked anything yet."
		a.CustomerIntent = "Unknown"
	} else {
		a.Summary = fmt.Sprintf("The customer asked %d question(s)", userTurns)
		if len(topics) > 0 {
			a.Summary += " about " + strings.Join(topics, ", ")
		}
		a.Summary += "."
		a.CustomerIntent = truncate(lastQuestion, 80)
	}
	if negRatings > 0 {
		a.AdminRecommendations = append(a.AdminRecommendations, fmt.Sprintf("Review the %d answer(s) the customer rated negatively.", negRatings))
	}
	if len(unresolved) > 0 {
		a.AdminRecommendations = append(a.AdminRecommendations, "Follow up on the unresolved issues by phone or email.")
	}
	if a.Criticality == models.CriticalityHigh {
		a.AdminRecommendations = append(a.AdminRecommendations, "Escalate to a human agent.")
	}
	a.Normalize()
	return a, nil
}

// answeredBadly reports whether the user message at i got an error bubble or
// a negatively rated reply.
func answeredBadly(history []models.Message, i int) bool {
	if i+1 >= len(history) {
		return true
	}
	next := history[i+1]
	return next.Role == models.RoleModel && (next.IsError || next.Feedback == models.FeedbackNegative)
}

func countRole(history []models.Message, r models.Role) int {
	n := 0
	for _, m := range history {
		if m.Role == r {
			n++
		}
	}
	return n
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
