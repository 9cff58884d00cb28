// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for meetings.
//
// Times are normalized to UTC on the way in so that range filters compare
// consistently on SQLite, which stores timestamps as text.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// MeetingFilter narrows FindMeetings. Zero values disable a criterion.
type MeetingFilter struct {
	GroupID       string     // owning group chat id
	StartFrom     *time.Time // start_time >= StartFrom
	StartAfter    *time.Time // start_time > StartAfter
	StartTo       *time.Time // start_time <= StartTo
	ReminderSent  *bool
	TitleContains string // case-insensitive substring
	Limit         int
}

// CreateMeeting validates and inserts m, generating its id when empty.
func CreateMeeting(ctx context.Context, db *gorm.DB, m *domain.Meeting) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	m.StartTime = m.StartTime.UTC()
	m.EndTime = m.EndTime.UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	return db.WithContext(ctx).Omit("Group").Create(m).Error
}

// GetMeeting fetches a meeting by id or returns ErrNotFound.
func GetMeeting(ctx context.Context, db *gorm.DB, id string) (*domain.Meeting, error) {
	var m domain.Meeting
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindMeetings returns meetings matching f ordered by start time ascending.
func FindMeetings(ctx context.Context, db *gorm.DB, f MeetingFilter) ([]domain.Meeting, error) {
	q := db.WithContext(ctx).Model(&domain.Meeting{})
	if f.GroupID != "" {
		q = q.Where("group_id = ?", f.GroupID)
	}
	if f.StartFrom != nil {
		q = q.Where("start_time >= ?", f.StartFrom.UTC())
	}
	if f.StartAfter != nil {
		q = q.Where("start_time > ?", f.StartAfter.UTC())
	}
	if f.StartTo != nil {
		q = q.Where("start_time <= ?", f.StartTo.UTC())
	}
	if f.ReminderSent != nil {
		q = q.Where("reminder_sent = ?", *f.ReminderSent)
	}
	if s := strings.TrimSpace(f.TitleContains); s != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(s))+"%")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []domain.Meeting
	err := q.Order("start_time asc").Order("created_at asc").Find(&out).Error
	return out, err
}

// UpdateMeeting writes the mutable columns of m in place. It returns
// ErrNotFound when the meeting no longer exists (e.g. cancelled concurrently).
func UpdateMeeting(ctx context.Context, db *gorm.DB, m *domain.Meeting) error {
	if err := m.Validate(); err != nil {
		return err
	}
	m.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Meeting{}).
		Where("id = ?", m.ID).
		Updates(map[string]any{
			"title":             m.Title,
			"description":       m.Description,
			"start_time":        m.StartTime.UTC(),
			"end_time":          m.EndTime.UTC(),
			"calendar_event_id": m.CalendarEventID,
			"reminder_sent":     m.ReminderSent,
			"attendees":         m.Attendees,
			"updated_at":        m.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMeeting hard-deletes a meeting by id or returns ErrNotFound.
func DeleteMeeting(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Meeting{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
