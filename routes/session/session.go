package session

import (
	"KBAssist/controllers"
	"KBAssist/middleware"
	"KBAssist/pkg/chat"

	"github.com/gin-gonic/gin"
)

// Register registers the public chat session routes.
func Register(g *gin.RouterGroup, reg *chat.Registry) {
	g.POST("/sessions", controllers.CreateSession(reg))
	g.GET("/sessions/:session_id", controllers.GetSession(reg))
	g.PUT("/sessions/:session_id/input", controllers.SetInput(reg))
	g.POST("/sessions/:session_id/attachment", controllers.UploadAttachment(reg))
	g.DELETE("/sessions/:session_id/attachment", controllers.ClearAttachment(reg))
	// Basic rate limiting on the send endpoint, per client IP
	g.POST("/sessions/:session_id/messages", controllers.RequireSession(reg), middleware.RateLimit(), controllers.SendMessage(reg))
	g.POST("/sessions/:session_id/messages/:message_id/feedback", controllers.RecordFeedback(reg))
}
