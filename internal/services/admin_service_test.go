package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/repo"
)

func newAdmin(t *testing.T) (*AdminService, context.Context) {
	t.Helper()
	db := newSvcDB(t)
	ctx := context.Background()
	if err := repo.CreateGroup(ctx, db, &domain.Group{ChatID: "g1", Name: "Tim Inti", Active: true}); err != nil {
		t.Fatalf("seed group: %v", err)
	}
	return &AdminService{DB: db, Store: testStore{}, Now: func() time.Time { return svcNow }}, ctx
}

func strp(s string) *string { return &s }

func TestAdmin_GetGroup(t *testing.T) {
	s, ctx := newAdmin(t)
	g, err := s.GetGroup(ctx, "g1")
	if err != nil || g.Name != "Tim Inti" {
		t.Fatalf("GetGroup = %+v, %v", g, err)
	}
	if _, err := s.GetGroup(ctx, "nope"); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("missing group err = %v", err)
	}
}

func TestAdmin_UpdateGroup(t *testing.T) {
	s, ctx := newAdmin(t)

	g, err := s.UpdateGroup(ctx, "g1", GroupUpdate{
		Name:            strp("  Tim Produk "),
		Timezone:        strp("Asia/Makassar"),
		ReminderMinutes: []int{60, 15},
		CalendarID:      strp(" "),
	})
	if err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	if g.Name != "Tim Produk" || g.Timezone != "Asia/Makassar" || g.CalendarID != domain.DefaultCalendarID {
		t.Fatalf("group = %+v", g)
	}
	if lt := g.LeadTimes(); len(lt) != 2 || lt[0] != 15 || lt[1] != 60 {
		t.Fatalf("lead times = %v", lt)
	}

	off := false
	g, err = s.UpdateGroup(ctx, "g1", GroupUpdate{Active: &off})
	if err != nil || g.Active {
		t.Fatalf("deactivate = %+v, %v", g, err)
	}

	bad := []GroupUpdate{
		{Name: strp("   ")},
		{Timezone: strp("Mars/Olympus")},
		{Timezone: strp("")},
		{ReminderMinutes: []int{}},
		{ReminderMinutes: []int{30, 0}},
	}
	for i, u := range bad {
		if _, err := s.UpdateGroup(ctx, "g1", u); !errors.Is(err, ErrInvalidGroupUpdate) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}

	if _, err := s.UpdateGroup(ctx, "nope", GroupUpdate{Name: strp("x")}); !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("missing group err = %v", err)
	}
}

func TestAdmin_MeetingsAndETag(t *testing.T) {
	s, ctx := newAdmin(t)

	etag0, err := s.MeetingsETag(ctx, "g1")
	if err != nil || etag0 != `W/"meetings:g1:0:0"` {
		t.Fatalf("empty etag = %q, %v", etag0, err)
	}

	past := &domain.Meeting{Title: "Lalu", StartTime: svcNow.Add(-48 * time.Hour), EndTime: svcNow.Add(-47 * time.Hour), CreatedBy: "u", GroupID: "g1"}
	next := &domain.Meeting{Title: "Nanti", StartTime: svcNow.Add(2 * time.Hour), EndTime: svcNow.Add(3 * time.Hour), CreatedBy: "u", GroupID: "g1"}
	for _, m := range []*domain.Meeting{next, past} {
		if err := repo.CreateMeeting(ctx, s.DB, m); err != nil {
			t.Fatalf("seed meeting: %v", err)
		}
	}

	all, err := s.ListMeetings(ctx, "g1", false, 0)
	if err != nil || len(all) != 2 || all[0].Title != "Lalu" {
		t.Fatalf("all = %+v, %v", all, err)
	}
	upcoming, err := s.ListMeetings(ctx, "g1", true, 10)
	if err != nil || len(upcoming) != 1 || upcoming[0].Title != "Nanti" {
		t.Fatalf("upcoming = %+v, %v", upcoming, err)
	}

	etag1, _ := s.MeetingsETag(ctx, "g1")
	if etag1 == etag0 || !strings.HasPrefix(etag1, `W/"meetings:g1:2:`) {
		t.Fatalf("etag after inserts = %q", etag1)
	}
	if err := repo.DeleteMeeting(ctx, s.DB, past.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if etag2, _ := s.MeetingsETag(ctx, "g1"); etag2 == etag1 {
		t.Fatalf("etag unchanged after delete: %q", etag2)
	}
}

func TestAdmin_Reminders(t *testing.T) {
	s, ctx := newAdmin(t)
	a := &domain.Reminder{ChatID: "6281", MeetingTitle: "A", MeetingTime: svcNow.Add(time.Hour), CreatedBy: "6281"}
	b := &domain.Reminder{ChatID: "g1", MeetingTitle: "B", MeetingTime: svcNow.Add(2 * time.Hour), CreatedBy: "6281"}
	for _, r := range []*domain.Reminder{a, b} {
		if err := repo.CreateReminder(ctx, s.DB, r); err != nil {
			t.Fatalf("seed reminder: %v", err)
		}
	}

	list, err := s.ListReminders(ctx, "6281", "", 0)
	if err != nil || len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("by chat = %+v, %v", list, err)
	}

	if err := s.CancelReminder(ctx, a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := s.CancelReminder(ctx, a.ID); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("second cancel err = %v", err)
	}
	if err := s.CancelReminder(ctx, "missing"); !errors.Is(err, ErrReminderNotFound) {
		t.Fatalf("missing cancel err = %v", err)
	}

	pending, _ := s.ListReminders(ctx, "", domain.ReminderPending, 0)
	if len(pending) != 1 || pending[0].ID != b.ID {
		t.Fatalf("pending = %+v", pending)
	}
	cancelled, _ := s.ListReminders(ctx, "", domain.ReminderCancelled, 0)
	if len(cancelled) != 1 || cancelled[0].ID != a.ID {
		t.Fatalf("cancelled = %+v", cancelled)
	}
}
