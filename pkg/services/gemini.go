package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"KBAssist/models"
	"KBAssist/pkg/config"
)

type GeminiOptions struct {
	APIKey    string
	Model     string
	BaseURL   string
	Grounding bool
	Profile   config.Profile
	Client    *http.Client
}

// GeminiGateway talks to the Gemini generateContent REST endpoint. It makes
// exactly one request per call.
type GeminiGateway struct {
	apiKey    string
	model     string
	baseURL   string
	grounding bool
	profile   config.Profile
	client    *http.Client
}

func NewGeminiGateway(opts GeminiOptions) *GeminiGateway {
	g := &GeminiGateway{
		apiKey:    opts.APIKey,
		model:     opts.Model,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		grounding: opts.Grounding,
		profile:   opts.Profile,
		client:    opts.Client,
	}
	if g.model == "" {
		g.model = "gemini-2.0-flash"
	}
	if g.baseURL == "" {
		g.baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if g.client == nil {
		g.client = http.DefaultClient
	}
	return g
}

// NewGeminiGatewayFromConfig builds a gateway from the loaded package config.
func NewGeminiGatewayFromConfig(profile config.Profile) *GeminiGateway {
	return NewGeminiGateway(GeminiOptions{
		APIKey:    config.GeminiAPIKey,
		Model:     config.GeminiModel,
		BaseURL:   config.GeminiBaseURL,
		Grounding: config.GroundingEnabled,
		Profile:   profile,
	})
}

func (g *GeminiGateway) Answer(ctx context.Context, history []models.Message, text string, att *models.Attachment) (*Answer, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		log.Printf("[gemini] GEMINI_API_KEY is not set")
		return nil, &BackendError{Op: OpAnswer, Message: "GEMINI_API_KEY is not set"}
	}

	reqBody := map[string]any{
		"contents": buildContents(history, text, att),
		"generationConfig": map[string]any{
			"temperature":     0.6,
			"maxOutputTokens": 2048,
			"topK":            40,
			"topP":            0.9,
		},
	}
	if si := strings.TrimSpace(g.profile.SystemInstruction); si != "" {
		reqBody["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": si}},
		}
	}
	if g.grounding {
		reqBody["tools"] = []any{map[string]any{"google_search": map[string]any{}}}
	}

	resp, err := g.generate(ctx, OpAnswer, reqBody)
	if err != nil {
		return nil, err
	}
	out, err := resp.text(OpAnswer)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: out, Sources: resp.sources()}, nil
}

func (g *GeminiGateway) Analyze(ctx context.Context, history []models.Message) (*models.ConversationAnalysis, error) {
	if strings.TrimSpace(g.apiKey) == "" {
		log.Printf("[gemini] GEMINI_API_KEY is not set")
		return nil, &BackendError{Op: OpAnalyze, Message: "GEMINI_API_KEY is not set"}
	}

	reqBody := map[string]any{
		"contents": []any{
			map[string]any{
				"role":  "user",
				"parts": []any{map[string]any{"text": RenderTranscript(history)}},
			},
		},
		"generationConfig": map[string]any{
			"temperature":      0.2,
			"responseMimeType": "application/json",
			"responseSchema":   analysisSchema,
		},
	}
	if ai := strings.TrimSpace(g.profile.AnalysisInstruction); ai != "" {
		reqBody["systemInstruction"] = map[string]any{
			"parts": []any{map[string]any{"text": ai}},
		}
	}

	resp, err := g.generate(ctx, OpAnalyze, reqBody)
	if err != nil {
		return nil, err
	}
	raw, err := resp.text(OpAnalyze)
	if err != nil {
		return nil, err
	}
	var a models.ConversationAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &a); err != nil {
		log.Printf("[gemini] analysis is not valid JSON: %v", err)
		return nil, &BackendError{Op: OpAnalyze, Message: "the analysis response was not valid JSON", Err: err}
	}
	a.Normalize()
	return &a, nil
}

var analysisSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"sentiment":            map[string]any{"type": "STRING", "enum": []string{"positive", "neutral", "negative"}},
		"sentimentScore":       map[string]any{"type": "INTEGER"},
		"summary":              map[string]any{"type": "STRING"},
		"keyTopics":            map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"customerIntent":       map[string]any{"type": "STRING"},
		"unresolvedIssues":     map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"adminRecommendations": map[string]any{"type": "ARRAY", "items": map[string]any{"type": "STRING"}},
		"criticality":          map[string]any{"type": "STRING", "enum": []string{"low", "medium", "high"}},
	},
	"required": []string{"sentiment", "sentimentScore", "summary", "keyTopics", "customerIntent", "unresolvedIssues", "adminRecommendations", "criticality"},
}

// buildContents turns the prior transcript into Gemini turns and appends the
// new user turn. Error bubbles never go back to the model, and the first
// turn must be the user's, so the seed greeting is dropped.
func buildContents(history []models.Message, text string, att *models.Attachment) []any {
	contents := make([]any, 0, len(history)+1)
	for _, m := range history {
		if m.IsError || strings.TrimSpace(m.Text) == "" {
			continue
		}
		if len(contents) == 0 && m.Role != models.RoleUser {
			continue
		}
		role := "user"
		if m.Role == models.RoleModel {
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []any{map[string]any{"text": m.Text}},
		})
	}

	parts := make([]any, 0, 2)
	if att != nil {
		parts = append(parts, map[string]any{
			"inline_data": map[string]any{
				"mime_type": att.MimeType,
				"data":      att.Data,
			},
		})
	}
	parts = append(parts, map[string]any{"text": text})
	return append(contents, map[string]any{"role": "user", "parts": parts})
}

// RenderTranscript is the plain-text form of a conversation sent for analysis.
func RenderTranscript(history []models.Message) string {
	var b strings.Builder
	b.WriteString("Analyze the following customer support conversation.\n\nTRANSCRIPT:\n")
	for _, m := range history {
		who := "CUSTOMER"
		if m.Role == models.RoleModel {
			who = "AGENT"
		}
		if m.IsError {
			who = "SYSTEM ERROR"
		}
		fmt.Fprintf(&b, "%s: %s", who, strings.TrimSpace(m.Text))
		if m.Attachment != nil {
			fmt.Fprintf(&b, " [attached %s]", m.Attachment.Name)
		}
		if m.Feedback != models.FeedbackNone {
			fmt.Fprintf(&b, " (rated %s)", m.Feedback)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (g *GeminiGateway) generate(ctx context.Context, op string, reqBody map[string]any) (*generateResponse, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &BackendError{Op: op, Message: "could not encode request", Err: err}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	log.Printf("[gemini] %s using model %s", op, g.model)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, AsBackendError(op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		log.Printf("[gemini] %s http error: %v", op, redactKey(err.Error(), g.apiKey))
		if ctx.Err() != nil {
			return nil, AsBackendError(op, ctx.Err())
		}
		return nil, &BackendError{Op: op, Message: "could not reach the knowledge base", Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Op: op, Status: resp.StatusCode, Message: "could not read the response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := apiErrorMessage(respBytes)
		log.Printf("[gemini] %s status %d: %s", op, resp.StatusCode, msg)
		return nil, &BackendError{Op: op, Status: resp.StatusCode, Message: msg}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, &BackendError{Op: op, Status: resp.StatusCode, Message: "malformed response from the knowledge base", Err: err}
	}
	return &parsed, nil
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason      string `json:"finishReason"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// text returns the concatenated text of the first candidate, or a
// BackendError when the backend blocked or returned nothing.
func (r *generateResponse) text(op string) (string, error) {
	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return "", &BackendError{Op: op, Message: fmt.Sprintf("the request was blocked (%s)", r.PromptFeedback.BlockReason)}
	}
	if len(r.Candidates) == 0 {
		return "", &BackendError{Op: op, Message: "the knowledge base returned no answer"}
	}
	c := r.Candidates[0]
	var b strings.Builder
	for _, p := range c.Content.Parts {
		b.WriteString(p.Text)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		switch c.FinishReason {
		case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII", "RECITATION":
			return "", &BackendError{Op: op, Message: fmt.Sprintf("the answer was blocked (%s)", c.FinishReason)}
		}
		return "", &BackendError{Op: op, Message: "the knowledge base returned an empty answer"}
	}
	return out, nil
}

// sources returns web grounding citations in order, one per URI.
func (r *generateResponse) sources() []models.Source {
	if len(r.Candidates) == 0 || r.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var out []models.Source
	seen := make(map[string]bool)
	for _, ch := range r.Candidates[0].GroundingMetadata.GroundingChunks {
		if ch.Web == nil || strings.TrimSpace(ch.Web.URI) == "" || seen[ch.Web.URI] {
			continue
		}
		seen[ch.Web.URI] = true
		out = append(out, models.Source{Title: ch.Web.Title, URI: ch.Web.URI})
	}
	return out
}

func apiErrorMessage(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	if s := strings.TrimSpace(strings.ToValidUTF8(string(body), "")); s != "" {
		return truncate(s, 200)
	}
	return "unexpected response from the knowledge base"
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	return strings.ReplaceAll(s, key, "REDACTED")
}
