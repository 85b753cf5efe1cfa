package websocket

import (
	"KBAssist/controllers"
	"KBAssist/pkg/chat"

	"github.com/gin-gonic/gin"
)

func Register(r *gin.Engine, reg *chat.Registry) {
	r.GET("/ws/sessions/:session_id", controllers.SessionWS(reg))
}
