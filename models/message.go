package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Feedback is the user's rating of a message. The zero value means no rating.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
)

// ParseFeedback accepts "positive"/"negative" (and the thumbs aliases "up"/"down").
func ParseFeedback(s string) (Feedback, bool) {
	switch s {
	case "positive", "up", "+1":
		return FeedbackPositive, true
	case "negative", "down", "-1":
		return FeedbackNegative, true
	}
	return FeedbackNone, false
}

// Source is a grounding citation attached to a model answer.
type Source struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri"`
}

// Attachment is a complete, self-contained encoded file payload.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64, no data-URL prefix
}

// Size returns the decoded payload size in bytes.
func (a *Attachment) Size() int {
	if a == nil {
		return 0
	}
	n := len(a.Data) / 4 * 3
	if l := len(a.Data); l > 0 && a.Data[l-1] == '=' {
		n--
		if l > 1 && a.Data[l-2] == '=' {
			n--
		}
	}
	return n
}

// Message is one transcript entry. Only Feedback changes after it is appended.
type Message struct {
	ID         string      `json:"id"`
	Role       Role        `json:"role"`
	Text       string      `json:"text"`
	Timestamp  time.Time   `json:"timestamp"`
	Sources    []Source    `json:"sources,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
	IsError    bool        `json:"is_error,omitempty"`
	Feedback   Feedback    `json:"feedback,omitempty"`
}

// Clone returns a copy that shares no slices or pointers with m.
func (m Message) Clone() Message {
	out := m
	if m.Sources != nil {
		out.Sources = append([]Source(nil), m.Sources...)
	}
	if m.Attachment != nil {
		att := *m.Attachment
		out.Attachment = &att
	}
	return out
}
