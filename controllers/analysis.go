package controllers

import (
	"KBAssist/pkg/chat"
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartAnalysis opens the analysis surface and runs the analysis in the
// background. Poll GetAnalysis or watch the session websocket for the result.
func StartAnalysis(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		if !s.Analysis.Start(c.Request.Context()) {
			c.JSON(http.StatusConflict, gin.H{"msg": "an analysis is already running", "analysis": s.Analysis.View()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"analysis": s.Analysis.View()})
	}
}

func GetAnalysis(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"analysis": s.Analysis.View()})
	}
}

// CloseAnalysis hides the surface. A running analysis keeps going but its
// outcome is dropped.
func CloseAnalysis(reg *chat.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := loadSession(c, reg)
		if !ok {
			return
		}
		s.Analysis.Close()
		c.JSON(http.StatusOK, gin.H{"analysis": s.Analysis.View()})
	}
}
