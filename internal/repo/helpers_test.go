package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// newRepoDB opens a private in-memory database with the full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedGroup creates an active group with a single admin member.
func seedGroup(t *testing.T, db *gorm.DB, chatID, admin string) *domain.Group {
	t.Helper()
	g := &domain.Group{
		ChatID:  chatID,
		Name:    "Group " + chatID,
		Active:  true,
		Members: []domain.GroupMember{{MemberID: admin, IsAdmin: true}},
	}
	if err := CreateGroup(context.Background(), db, g); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return g
}

// seedMeeting inserts a one-hour meeting starting at start.
func seedMeeting(t *testing.T, db *gorm.DB, groupID, title string, start time.Time) *domain.Meeting {
	t.Helper()
	m := &domain.Meeting{
		Title:     title,
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		CreatedBy: "creator",
		GroupID:   groupID,
	}
	if err := CreateMeeting(context.Background(), db, m); err != nil {
		t.Fatalf("seed meeting: %v", err)
	}
	return m
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrBool(b bool) *bool           { return &b }
func ptrString(s string) *string     { return &s }
