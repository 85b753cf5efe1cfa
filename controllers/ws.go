package controllers

import (
	"KBAssist/models"
	"KBAssist/pkg/chat"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS handled at HTTP level; allow WS here
		return true
	},
}

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 50 * time.Second
	wsWriteWait  = 10 * time.Second
)

type wsCommand struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Text      string `json:"text"`
	MessageID string `json:"message_id"`
	Value     string `json:"value"`
}

// SessionWS pushes session state to a chat UI and accepts its commands.
// Client protocol (JSON messages):
//
//	<- {type: "state", state: {...}}            on connect and on every change
//	<- {type: "analysis", analysis: {...}}      on connect and on every change
//	<- {type: "error", error: string}
//	-> {type: "send", message?: string}
//	-> {type: "input", text: string}
//	-> {type: "feedback", message_id: string, value: "positive"|"negative"}
//	-> {type: "clear_attachment"}
//	-> {type: "close_analysis"}
func SessionWS(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade error: %v", err)
			return
		}
		defer conn.Close()

		events, cancel := s.Subscribe(32)
		defer cancel()

		// Setup read limits and pong handler for keepalive
		conn.SetReadLimit(1 << 20) // 1MB
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})

		replies := make(chan gin.H, 8)
		readDone := make(chan struct{})
		go func() {
			defer close(readDone)
			for {
				mt, msg, err := conn.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
						log.Printf("[ws] read error: %v", err)
					}
					return
				}
				// Only handle text/binary frames with JSON
				if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
					continue
				}
				var cmd wsCommand
				if err := json.Unmarshal(msg, &cmd); err != nil {
					replyErr(replies, "invalid command")
					continue
				}
				handleCommand(s, cmd, replies)
			}
		}()

		write := func(v any) error {
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			return conn.WriteJSON(v)
		}

		st := s.State()
		view := s.Analysis.View()
		if write(chat.Event{Type: chat.EventState, State: &st}) != nil ||
			write(chat.Event{Type: chat.EventAnalysis, Analysis: &view}) != nil {
			return
		}

		ping := time.NewTicker(wsPingPeriod)
		defer ping.Stop()
		for {
			select {
			case <-readDone:
				return
			case ev, open := <-events:
				if !open {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session expired"), time.Now().Add(wsWriteWait))
					return
				}
				if err := write(ev); err != nil {
					return
				}
			case r := <-replies:
				if err := write(r); err != nil {
					return
				}
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

func handleCommand(s *chat.Session, cmd wsCommand, replies chan<- gin.H) {
	switch strings.ToLower(strings.TrimSpace(cmd.Type)) {
	case "send":
		// sends run on their own so feedback and input keep flowing meanwhile
		go func() {
			_, err := s.Chat.Send(context.Background(), cmd.Message)
			switch {
			case errors.Is(err, chat.ErrNothingToSend):
				replyErr(replies, "message or attachment is required")
			case errors.Is(err, chat.ErrSendInFlight):
				replyErr(replies, "a message is already being sent")
			}
		}()
	case "input":
		s.Chat.SetInput(cmd.Text)
	case "feedback":
		v, ok := models.ParseFeedback(strings.ToLower(strings.TrimSpace(cmd.Value)))
		if !ok {
			replyErr(replies, "value must be positive or negative")
			return
		}
		if !s.Chat.RecordFeedback(context.Background(), cmd.MessageID, v) {
			replyErr(replies, "message not found")
		}
	case "clear_attachment":
		s.Chat.ClearAttachment()
	case "close_analysis":
		s.Analysis.Close()
	default:
		replyErr(replies, "unknown command")
	}
}

func replyErr(replies chan<- gin.H, msg string) {
	select {
	case replies <- gin.H{"type": "error", "error": msg}:
	default:
	}
}
