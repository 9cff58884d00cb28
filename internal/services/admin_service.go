// Package services – AdminService
//
// AdminService backs the read/admin HTTP API: inspecting and configuring
// groups, listing their meetings, and managing freeform reminders.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/domain"
	"github.com/tbourn/go-meeting-bot/internal/repo"
)

// AdminStore is the persistence contract of AdminService.
type AdminStore interface {
	GetGroupByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.Group, error)
	UpdateGroup(ctx context.Context, db *gorm.DB, chatID string, patch repo.GroupPatch) (*domain.Group, error)
	FindMeetings(ctx context.Context, db *gorm.DB, f repo.MeetingFilter) ([]domain.Meeting, error)
	MeetingsStats(ctx context.Context, db *gorm.DB, groupID string) (int64, *time.Time, error)
	ListReminders(ctx context.Context, db *gorm.DB, f repo.ReminderFilter) ([]domain.Reminder, error)
	CancelReminder(ctx context.Context, db *gorm.DB, id string) error
}

// GroupUpdate is an admin edit of a group. Nil fields stay unchanged.
type GroupUpdate struct {
	Name            *string
	CalendarID      *string
	Timezone        *string
	ReminderMinutes []int
	Active          *bool
}

// AdminService implements the admin API operations.
type AdminService struct {
	DB    *gorm.DB
	Store AdminStore
	Now   func() time.Time
}

// GetGroup returns the group for chatID.
func (s *AdminService) GetGroup(ctx context.Context, chatID string) (*domain.Group, error) {
	g, err := s.Store.GetGroupByChatID(ctx, s.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	return g, err
}

// UpdateGroup validates and applies u to the group for chatID.
func (s *AdminService) UpdateGroup(ctx context.Context, chatID string, u GroupUpdate) (*domain.Group, error) {
	ctx, span := otel.Tracer("services/AdminService").Start(ctx, "UpdateGroup",
		trace.WithAttributes(attribute.String("group.id", chatID)))
	defer span.End()

	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidGroupUpdate)
	}
	if u.Timezone != nil {
		if _, err := time.LoadLocation(strings.TrimSpace(*u.Timezone)); err != nil || strings.TrimSpace(*u.Timezone) == "" {
			return nil, fmt.Errorf("%w: unknown timezone %q", ErrInvalidGroupUpdate, *u.Timezone)
		}
	}
	if u.ReminderMinutes != nil {
		if len(u.ReminderMinutes) == 0 {
			return nil, fmt.Errorf("%w: at least one reminder lead time is required", ErrInvalidGroupUpdate)
		}
		for _, m := range u.ReminderMinutes {
			if m <= 0 {
				return nil, fmt.Errorf("%w: reminder minutes must be positive", ErrInvalidGroupUpdate)
			}
		}
	}
	if u.CalendarID != nil && strings.TrimSpace(*u.CalendarID) == "" {
		def := domain.DefaultCalendarID
		u.CalendarID = &def
	}

	g, err := s.Store.UpdateGroup(ctx, s.DB, chatID, repo.GroupPatch{
		Name:            u.Name,
		CalendarID:      u.CalendarID,
		Timezone:        u.Timezone,
		ReminderMinutes: u.ReminderMinutes,
		Active:          u.Active,
	})
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrGroupNotFound
	}
	return g, err
}

// ListMeetings returns the group's meetings, soonest first. With upcoming
// set only meetings that have not started are returned.
func (s *AdminService) ListMeetings(ctx context.Context, chatID string, upcoming bool, limit int) ([]domain.Meeting, error) {
	f := repo.MeetingFilter{GroupID: chatID, Limit: limit}
	if upcoming {
		now := s.now()
		f.StartFrom = &now
	}
	return s.Store.FindMeetings(ctx, s.DB, f)
}

// MeetingsETag returns a weak validator that changes whenever a meeting of
// the group is added, removed or modified.
func (s *AdminService) MeetingsETag(ctx context.Context, chatID string) (string, error) {
	count, maxTS, err := s.Store.MeetingsStats(ctx, s.DB, chatID)
	if err != nil {
		return "", err
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.UnixNano()
	}
	return fmt.Sprintf(`W/"meetings:%s:%d:%d"`, chatID, count, ts), nil
}

// ListReminders returns reminders filtered by recipient chat and status.
func (s *AdminService) ListReminders(ctx context.Context, chatID string, status domain.ReminderStatus, limit int) ([]domain.Reminder, error) {
	return s.Store.ListReminders(ctx, s.DB, repo.ReminderFilter{ChatID: chatID, Status: status, Limit: limit})
}

// CancelReminder cancels a pending reminder.
func (s *AdminService) CancelReminder(ctx context.Context, id string) error {
	err := s.Store.CancelReminder(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrReminderNotFound
	}
	return err
}

func (s *AdminService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
