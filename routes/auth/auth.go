package auth

import (
	"KBAssist/controllers"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegisterPublic registers public auth routes: /admin/login
func RegisterPublic(r *gin.Engine, db *gorm.DB) {
	r.POST("/admin/login", controllers.Login(db))
}

// RegisterProtected registers protected auth routes (e.g. logout)
func RegisterProtected(g *gin.RouterGroup) {
	g.POST("/logout", controllers.Logout())
}
