package routes

import (
	"KBAssist/controllers"
	"KBAssist/middleware"
	"KBAssist/pkg/chat"
	"KBAssist/pkg/config"
	"KBAssist/pkg/metrics"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	adminRoutes "KBAssist/routes/admin"
	authRoutes "KBAssist/routes/auth"
	sessionRoutes "KBAssist/routes/session"
	websocketRoutes "KBAssist/routes/websocket"
)

func RegisterRoutes(r *gin.Engine, db *gorm.DB, reg *chat.Registry, profile config.Profile) {
	r.GET("/", controllers.Health(profile))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/quick-actions", controllers.QuickActions(profile))
	sessionRoutes.Register(api, reg)

	websocketRoutes.Register(r, reg)
	authRoutes.RegisterPublic(r, db)

	admin := r.Group("/admin")
	admin.Use(middleware.AdminAuth())
	authRoutes.RegisterProtected(admin)
	adminRoutes.Register(admin, reg)
}
