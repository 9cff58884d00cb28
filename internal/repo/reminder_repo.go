package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// Reminder delivery horizons.
const (
	OneDayAhead        = 24 * time.Hour
	ThirtyMinutesAhead = 30 * time.Minute
)

// ReminderFilter narrows ListReminders. Zero values disable a criterion.
type ReminderFilter struct {
	ChatID string
	Status domain.ReminderStatus
	Limit  int
}

// CreateReminder inserts a pending reminder, generating its id when empty.
func CreateReminder(ctx context.Context, db *gorm.DB, r *domain.Reminder) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.ReminderPending
	}
	now := time.Now().UTC()
	r.MeetingTime = r.MeetingTime.UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	return db.WithContext(ctx).Create(r).Error
}

// GetReminder fetches a reminder by id or returns ErrNotFound.
func GetReminder(ctx context.Context, db *gorm.DB, id string) (*domain.Reminder, error) {
	var r domain.Reminder
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// FindDueReminders returns pending reminders whose meeting is still ahead and
// for which at least one notice is due: the one-day notice within 24h or the
// thirty-minute notice within 30m.
func FindDueReminders(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Reminder, error) {
	now = now.UTC()
	var out []domain.Reminder
	err := db.WithContext(ctx).
		Where("status = ? AND meeting_time > ?", domain.ReminderPending, now).
		Where("(meeting_time <= ? AND sent_one_day = ?) OR (meeting_time <= ? AND sent_thirty_minutes = ?)",
			now.Add(OneDayAhead), false, now.Add(ThirtyMinutesAhead), false).
		Order("meeting_time asc").
		Find(&out).Error
	return out, err
}

// ListReminders returns reminders matching f, soonest meeting first.
func ListReminders(ctx context.Context, db *gorm.DB, f ReminderFilter) ([]domain.Reminder, error) {
	q := db.WithContext(ctx).Model(&domain.Reminder{})
	if f.ChatID != "" {
		q = q.Where("chat_id = ?", f.ChatID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var out []domain.Reminder
	err := q.Order("meeting_time asc").Find(&out).Error
	return out, err
}

// UpdateReminder persists the status and delivery flags of a pending reminder.
// Flags are only ever raised, and a reminder that left the pending state in
// the meantime is not touched: ErrNotFound is returned instead.
func UpdateReminder(ctx context.Context, db *gorm.DB, r *domain.Reminder) error {
	r.UpdatedAt = time.Now().UTC()
	updates := map[string]any{
		"status":     r.Status,
		"updated_at": r.UpdatedAt,
	}
	if r.SentOneDay {
		updates["sent_one_day"] = true
	}
	if r.SentThirtyMinutes {
		updates["sent_thirty_minutes"] = true
	}
	res := db.WithContext(ctx).Model(&domain.Reminder{}).
		Where("id = ? AND status = ?", r.ID, domain.ReminderPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CancelReminder moves a pending reminder to cancelled. Reminders already in a
// terminal state, or missing, yield ErrNotFound.
func CancelReminder(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Reminder{}).
		Where("id = ? AND status = ?", id, domain.ReminderPending).
		Updates(map[string]any{"status": domain.ReminderCancelled, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
