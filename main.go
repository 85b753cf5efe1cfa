package main

import (
	"KBAssist/middleware"
	"KBAssist/pkg/attachment"
	"KBAssist/pkg/cache"
	"KBAssist/pkg/chat"
	"KBAssist/pkg/config"
	"KBAssist/pkg/db"
	"KBAssist/pkg/services"
	"KBAssist/routes"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("config: %v", err)
	}
	profile, err := config.LoadProfile(config.ProfilePath)
	if err != nil {
		log.Fatalf("profile: %v", err)
	}

	conn, err := db.Open(config.DBDriver, config.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := db.SeedAdmin(conn, config.AdminEmail, config.AdminPassword); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	var gw services.Gateway = services.NewLocalGateway()
	if config.IsGeminiEnabled {
		gw = services.NewGeminiGatewayFromConfig(profile)
	} else {
		log.Printf("[gemini] disabled via config, answering with the local gateway")
	}

	middleware.SetRateLimitConfig(time.Duration(config.RateLimitWindowSeconds)*time.Second, config.RateLimitCapacity)
	cache.SetMaxItems(config.SessionMaxItems)
	registry := chat.NewRegistry(cache.Default(), time.Duration(config.SessionTTLSeconds)*time.Second, services.WithMetrics(gw), chat.SessionOptions{
		Profile:  profile,
		Encoder:  attachment.NewEncoder(config.MaxAttachmentBytes, config.AllowedAttachmentTypes),
		Feedback: db.NewFeedbackLog(conn),
	})

	r := gin.Default()
	r.MaxMultipartMemory = config.MaxAttachmentBytes + 1<<20

	// CORS configuration
	r.Use(cors.New(cors.Config{
		AllowOrigins:     config.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, conn, registry, profile)
	if err := r.Run(":" + config.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
