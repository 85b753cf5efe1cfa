// Package db wires gorm: connection, migrations, the feedback audit log and
// admin accounts. Conversations themselves are never stored here.
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"KBAssist/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects with the given driver ("sqlite" or "mysql") and migrates.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	conn, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if err := conn.AutoMigrate(&models.Admin{}, &models.FeedbackRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Printf("[db] connected driver=%s", driver)
	return conn, nil
}

// FeedbackLog appends every rating to the feedback_records table.
type FeedbackLog struct {
	db *gorm.DB
}

func NewFeedbackLog(db *gorm.DB) *FeedbackLog {
	return &FeedbackLog{db: db}
}

func (f *FeedbackLog) RecordFeedback(ctx context.Context, sessionID string, msg models.Message) error {
	rec := models.FeedbackRecord{
		SessionID: sessionID,
		MessageID: msg.ID,
		Value:     string(msg.Feedback),
		Excerpt:   excerpt(msg.Text, 200),
	}
	if err := f.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// List returns the audit rows of a session, oldest first.
func (f *FeedbackLog) List(ctx context.Context, sessionID string) ([]models.FeedbackRecord, error) {
	var out []models.FeedbackRecord
	err := f.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("id asc").Find(&out).Error
	return out, err
}

// SeedAdmin creates the admin account if it does not exist yet. Empty
// credentials are skipped.
func SeedAdmin(db *gorm.DB, email, password string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		log.Printf("[db] ADMIN_EMAIL/ADMIN_PASSWORD not set, no admin seeded")
		return nil
	}
	var existing models.Admin
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up admin: %w", err)
	}
	admin := models.Admin{Email: email}
	if err := admin.SetPassword(password); err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := db.Create(&admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Printf("[db] admin %s seeded", email)
	return nil
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
