package controllers

import (
	"KBAssist/pkg/config"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Health(profile config.Profile) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": profile.Name + " backend running"})
	}
}

func QuickActions(profile config.Profile) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"quick_actions": profile.QuickActions})
	}
}
