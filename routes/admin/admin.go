package admin

import (
	"KBAssist/controllers"
	"KBAssist/pkg/chat"

	"github.com/gin-gonic/gin"
)

// Register registers analysis routes on an AdminAuth-protected group.
func Register(g *gin.RouterGroup, reg *chat.Registry) {
	g.POST("/sessions/:session_id/analysis", controllers.StartAnalysis(reg))
	g.GET("/sessions/:session_id/analysis", controllers.GetAnalysis(reg))
	g.DELETE("/sessions/:session_id/analysis", controllers.CloseAnalysis(reg))
}
