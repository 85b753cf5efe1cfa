package controllers

import (
	"KBAssist/models"
	"KBAssist/pkg/attachment"
	"KBAssist/pkg/chat"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// loadSession resolves :session_id or writes 404.
func loadSession(c *gin.Context, reg *chat.Registry) (*chat.Session, bool) {
	s, ok := reg.Get(c.Param("session_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"msg": "session not found"})
		return nil, false
	}
	return s, true
}

// RequireSession rejects unknown sessions before later handlers (e.g. the
// rate limiter) spend anything on the request.
func RequireSession(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := loadSession(c, reg); !ok {
			c.Abort()
			return
		}
		c.Next()
	}
}

func CreateSession(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := reg.Create()
		st := s.State()
		c.JSON(http.StatusCreated, gin.H{"session_id": s.ID, "messages": st.Messages})
	}
}

func GetSession(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, s.State())
	}
}

func SetInput(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		s.Chat.SetInput(body.Text)
		c.JSON(http.StatusOK, gin.H{"input": s.Chat.Input()})
	}
}

// UploadAttachment accepts a multipart "file" field or a JSON body
// {name, mime_type?, data_url}. The new file replaces any pending one.
func UploadAttachment(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}

		var att *models.Attachment
		var err error
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			fh, ferr := c.FormFile("file")
			if ferr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "file is required"})
				return
			}
			f, oerr := fh.Open()
			if oerr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "could not read file"})
				return
			}
			defer f.Close()
			att, err = s.Chat.AttachFrom(fh.Filename, fh.Header.Get("Content-Type"), f)
		} else {
			var body struct {
				Name    string `json:"name"`
				DataURL string `json:"data_url"`
			}
			if berr := c.ShouldBindJSON(&body); berr != nil || strings.TrimSpace(body.DataURL) == "" {
				c.JSON(http.StatusBadRequest, gin.H{"msg": "file or data_url is required"})
				return
			}
			att, err = s.Chat.AttachDataURL(body.Name, body.DataURL)
		}
		if err != nil {
			c.JSON(attachmentStatus(err), gin.H{"msg": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"attachment": chat.InfoOf(att)})
	}
}

func attachmentStatus(err error) int {
	switch {
	case errors.Is(err, attachment.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, attachment.ErrUnsupportedType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadRequest
	}
}

func ClearAttachment(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"cleared": s.Chat.ClearAttachment()})
	}
}

// SendMessage runs one send cycle and returns both new entries. A backend
// failure is still 201: the reply is the error entry.
func SendMessage(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		var body struct {
			Message string `json:"message"`
		}
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}

		// the cycle must finish even if the client goes away
		ctx := context.WithoutCancel(c.Request.Context())
		cycle, err := s.Chat.Send(ctx, body.Message)
		switch {
		case errors.Is(err, chat.ErrNothingToSend):
			c.JSON(http.StatusBadRequest, gin.H{"msg": "message or attachment is required"})
			return
		case errors.Is(err, chat.ErrSendInFlight):
			c.JSON(http.StatusConflict, gin.H{"msg": "a message is already being sent"})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"msg": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"user_message": chat.DisplayCopy(cycle.User),
			"reply":        cycle.Reply,
		})
	}
}

func RecordFeedback(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		var body struct {
			Value string `json:"value"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid request"})
			return
		}
		v, valid := models.ParseFeedback(strings.ToLower(strings.TrimSpace(body.Value)))
		if !valid {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "value must be positive or negative"})
			return
		}
		id := c.Param("message_id")
		if !s.Chat.RecordFeedback(c.Request.Context(), id, v) {
			c.JSON(http.StatusNotFound, gin.H{"msg": "message not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message_id": id, "feedback": v})
	}
}
