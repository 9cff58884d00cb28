package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/repo"
	"github.com/tbourn/go-meeting-bot/internal/services"
)

// ---------- test DB + repo shim ----------

func newAdminDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:admin_handlers_%s?mode=memory&cache=shared", uuid.NewString())
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
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testAdminRepo struct{}

func (testAdminRepo) GetGroupByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.Group, error) {
	return repo.GetGroupByChatID(ctx, db, chatID)
}
func (testAdminRepo) UpdateGroup(ctx context.Context, db *gorm.DB, chatID string, p repo.GroupPatch) (*domain.Group, error) {
	return repo.UpdateGroup(ctx, db, chatID, p)
}
func (testAdminRepo) FindMeetings(ctx context.Context, db *gorm.DB, f repo.MeetingFilter) ([]domain.Meeting, error) {
	return repo.FindMeetings(ctx, db, f)
}
func (testAdminRepo) MeetingsStats(ctx context.Context, db *gorm.DB, groupID string) (int64, *time.Time, error) {
	return repo.MeetingsStats(ctx, db, groupID)
}
func (testAdminRepo) ListReminders(ctx context.Context, db *gorm.DB, f repo.ReminderFilter) ([]domain.Reminder, error) {
	return repo.ListReminders(ctx, db, f)
}
func (testAdminRepo) CancelReminder(ctx context.Context, db *gorm.DB, id string) error {
	return repo.CancelReminder(ctx, db, id)
}

func newAdminRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newAdminDB(t)
	ctx := context.Background()
	if err := repo.CreateGroup(ctx, db, &domain.Group{
		ChatID: "g1", Name: "Tim Inti", Active: true,
		Members: []domain.GroupMember{{MemberID: "6281", Name: "Alice", IsAdmin: true}},
	}); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	h := New(Deps{Admin: &services.AdminService{DB: db, Store: testAdminRepo{}}})
	r := gin.New()
	r.GET("/groups/:chat_id", h.GetGroup)
	r.PATCH("/groups/:chat_id", h.UpdateGroup)
	r.GET("/groups/:chat_id/meetings", h.ListMeetings)
	r.GET("/reminders", h.ListReminders)
	r.DELETE("/reminders/:id", h.CancelReminder)
	return r, db
}

// ---------- tests ----------

func TestGetGroup(t *testing.T) {
	r, _ := newAdminRouter(t)
	w := do(r, http.MethodGet, "/groups/g1", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var g domain.Group
	if err := json.Unmarshal(w.Body.Bytes(), &g); err != nil {
		t.Fatalf("json: %v", err)
	}
	if g.Name != "Tim Inti" || len(g.Members) != 1 || !g.Members[0].IsAdmin {
		t.Fatalf("group = %+v", g)
	}

	w = do(r, http.MethodGet, "/groups/unknown", "", nil)
	var er ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &er)
	if w.Code != http.StatusNotFound || er.Code != ErrCodeNotFound {
		t.Fatalf("unknown: %d %+v", w.Code, er)
	}
}

func TestUpdateGroup(t *testing.T) {
	r, _ := newAdminRouter(t)

	w := do(r, http.MethodPatch, "/groups/g1", `{"timezone":"Asia/Makassar","reminder_minutes":[1440,30]}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("patch: %d %s", w.Code, w.Body.String())
	}
	var g domain.Group
	_ = json.Unmarshal(w.Body.Bytes(), &g)
	if g.Timezone != "Asia/Makassar" || len(g.ReminderMinutes) != 2 || g.Name != "Tim Inti" {
		t.Fatalf("group = %+v", g)
	}

	cases := []struct {
		path, body string
		status     int
		code       string
	}{
		{"/groups/g1", `{"timezone":"Nowhere/City"}`, http.StatusBadRequest, ErrCodeInvalidUpdate},
		{"/groups/g1", `{"reminder_minutes":[-5]}`, http.StatusBadRequest, ErrCodeInvalidUpdate},
		{"/groups/g1", `{"name":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"/groups/missing", `{"name":"x"}`, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tc := range cases {
		w := do(r, http.MethodPatch, tc.path, tc.body, nil)
		var er ErrorResponse
		_ = json.Unmarshal(w.Body.Bytes(), &er)
		if w.Code != tc.status || er.Code != tc.code {
			t.Fatalf("%s %s: %d %+v", tc.path, tc.body, w.Code, er)
		}
	}
}

func TestListMeetings_ETag(t *testing.T) {
	r, db := newAdminRouter(t)
	start := time.Now().Add(48 * time.Hour).Truncate(time.Second)
	if err := repo.CreateMeeting(context.Background(), db, &domain.Meeting{
		Title: "Retro", StartTime: start, EndTime: start.Add(time.Hour), CreatedBy: "6281", GroupID: "g1",
	}); err != nil {
		t.Fatalf("seed meeting: %v", err)
	}

	w := do(r, http.MethodGet, "/groups/g1/meetings", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("missing ETag")
	}
	var resp ListMeetingsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Meetings) != 1 || resp.Meetings[0].Title != "Retro" {
		t.Fatalf("meetings = %+v", resp.Meetings)
	}

	w = do(r, http.MethodGet, "/groups/g1/meetings", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional GET: %d", w.Code)
	}

	w = do(r, http.MethodGet, "/groups/g1/meetings?upcoming=true&limit=1", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("upcoming view must not be validated: %d", w.Code)
	}

	w = do(r, http.MethodGet, "/groups/empty/meetings", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != `{"meetings":[]}` {
		t.Fatalf("empty: %d %s", w.Code, w.Body.String())
	}
}

func TestReminders_ListAndCancel(t *testing.T) {
	r, db := newAdminRouter(t)
	rem := &domain.Reminder{ChatID: "6281", MeetingTitle: "Sync", MeetingTime: time.Now().Add(time.Hour), CreatedBy: "6281"}
	if err := repo.CreateReminder(context.Background(), db, rem); err != nil {
		t.Fatalf("seed reminder: %v", err)
	}

	w := do(r, http.MethodGet, "/reminders?chat_id=6281&status=pending", "", nil)
	var resp ListRemindersResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || len(resp.Reminders) != 1 {
		t.Fatalf("list: %d %+v", w.Code, resp)
	}
	if w := do(r, http.MethodGet, "/reminders?status=someday", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad status: %d", w.Code)
	}

	if w := do(r, http.MethodDelete, "/reminders/not-a-uuid", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", w.Code)
	}
	if w := do(r, http.MethodDelete, "/reminders/"+rem.ID, "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("cancel: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodDelete, "/reminders/"+rem.ID, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("second cancel: %d", w.Code)
	}
}
