// Package domain defines the persistence models for chat groups, meetings,
// and freeform reminders. These types are mapped with GORM and shared across
// the repository, scheduler, and service layers.
package domain

import (
	"errors"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // group timezones resolve on hosts without zoneinfo

	"gorm.io/datatypes"
)

// DefaultReminderMinutes is the lead-time set used by groups that configure none.
var DefaultReminderMinutes = []int{30}

// DefaultCalendarID targets the calendar owning the OAuth credentials.
const DefaultCalendarID = "primary"

// ErrInvalidTimeRange is returned by Meeting.Validate when the meeting does
// not end strictly after it starts.
var ErrInvalidTimeRange = errors.New("meeting end time must be after start time")

// Group represents a chat group that can own meetings. Groups are created on
// the first recognized meeting command from an unknown chat and are never
// hard-deleted; Active=false deactivates them.
//
// Fields:
//   - ChatID: external chat identifier (WhatsApp group id, Telegram chat id).
//   - CalendarID: target calendar for reflected events.
//   - Timezone: IANA zone used to resolve and render meeting times.
//   - ReminderMinutes: lead times in minutes; empty means DefaultReminderMinutes.
type Group struct {
	ID              string                   `json:"id"               gorm:"type:char(36);primaryKey"`
	ChatID          string                   `json:"chat_id"          gorm:"type:varchar(128);not null;uniqueIndex"`
	Name            string                   `json:"name"             gorm:"type:varchar(255);not null"`
	Active          bool                     `json:"active"           gorm:"not null;default:true;index"`
	CalendarID      string                   `json:"calendar_id"      gorm:"type:varchar(255);not null;default:'primary'"`
	Timezone        string                   `json:"timezone"         gorm:"type:varchar(64);not null;default:'Asia/Jakarta'"`
	ReminderMinutes datatypes.JSONSlice[int] `json:"reminder_minutes"`
	Members         []GroupMember            `json:"members"          gorm:"foreignKey:GroupID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt       time.Time                `json:"created_at"`
	UpdatedAt       time.Time                `json:"updated_at"`
}

// TableName returns the database table name for Group.
func (Group) TableName() string { return "groups" }

// LeadTimes returns the positive lead times in ascending order without
// duplicates, falling back to DefaultReminderMinutes.
func (g *Group) LeadTimes() []int {
	seen := make(map[int]struct{}, len(g.ReminderMinutes))
	out := make([]int, 0, len(g.ReminderMinutes))
	for _, m := range g.ReminderMinutes {
		if m <= 0 {
			continue
		}
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	if len(out) == 0 {
		return append([]int(nil), DefaultReminderMinutes...)
	}
	sort.Ints(out)
	return out
}

// Member returns the member with the given id, if present.
func (g *Group) Member(memberID string) (*GroupMember, bool) {
	for i := range g.Members {
		if g.Members[i].MemberID == memberID {
			return &g.Members[i], true
		}
	}
	return nil, false
}

// IsAdmin reports whether memberID is an admin of the group.
func (g *Group) IsAdmin(memberID string) bool {
	m, ok := g.Member(memberID)
	return ok && m.IsAdmin
}

// Location resolves the group's timezone, returning fallback (or UTC when
// fallback is nil) if the zone is empty or unknown.
func (g *Group) Location(fallback *time.Location) *time.Location {
	return loadLocation(g.Timezone, fallback)
}

func loadLocation(name string, fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}

// GroupMember is a participant of a group. A member id is unique per group.
type GroupMember struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	GroupID   string    `json:"-"          gorm:"type:char(36);not null;uniqueIndex:ux_group_member,priority:1"`
	MemberID  string    `json:"member_id"  gorm:"type:varchar(128);not null;uniqueIndex:ux_group_member,priority:2"`
	Name      string    `json:"name"       gorm:"type:varchar(255)"`
	IsAdmin   bool      `json:"is_admin"   gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for GroupMember.
func (GroupMember) TableName() string { return "group_members" }

// Meeting is a scheduled event owned by a group.
//
// GroupID holds the owning group's external chat id. ReminderSent is the
// one-shot flag of the group lead-time reminder: once true it is never reset.
// CalendarEventID is empty until the calendar reflector returns an event.
type Meeting struct {
	ID              string                      `json:"id"                          gorm:"type:char(36);primaryKey"`
	Title           string                      `json:"title"                       gorm:"type:varchar(255);not null"`
	Description     string                      `json:"description,omitempty"       gorm:"type:text"`
	StartTime       time.Time                   `json:"start_time"                  gorm:"not null;index:idx_meetings_group_start,priority:2"`
	EndTime         time.Time                   `json:"end_time"                    gorm:"not null"`
	CreatedBy       string                      `json:"created_by"                  gorm:"type:varchar(128);not null"`
	GroupID         string                      `json:"group_id"                    gorm:"type:varchar(128);not null;index:idx_meetings_group_start,priority:1"`
	CalendarEventID string                      `json:"calendar_event_id,omitempty" gorm:"type:varchar(255)"`
	ReminderSent    bool                        `json:"reminder_sent"               gorm:"not null;default:false"`
	Attendees       datatypes.JSONSlice[string] `json:"attendees"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`

	Group *Group `json:"-" gorm:"foreignKey:GroupID;references:ChatID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Meeting.
func (Meeting) TableName() string { return "meetings" }

// Validate checks the meeting's time range.
func (m *Meeting) Validate() error {
	if !m.EndTime.After(m.StartTime) {
		return ErrInvalidTimeRange
	}
	return nil
}

// ReminderStatus is the lifecycle state of a freeform reminder.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderCompleted ReminderStatus = "completed"
	ReminderCancelled ReminderStatus = "cancelled"
)

// Reminder is a freeform notification job bound to a single chat recipient.
// It is independent of Meeting: MeetingTitle is free text, not a foreign key.
//
// State machine: pending with any combination of the two delivery flags, then
// completed once both are set. Completed and cancelled are terminal; flags
// never reset. Reminders are never deleted.
type Reminder struct {
	ID                string         `json:"id"                  gorm:"type:char(36);primaryKey"`
	ChatID            string         `json:"chat_id"             gorm:"type:varchar(128);not null;index"`
	MeetingTitle      string         `json:"meeting_title"       gorm:"type:varchar(255);not null"`
	MeetingTime       time.Time      `json:"meeting_time"        gorm:"not null;index:idx_reminders_due,priority:2"`
	CreatedBy         string         `json:"created_by"          gorm:"type:varchar(128);not null"`
	Timezone          string         `json:"timezone,omitempty"  gorm:"type:varchar(64)"`
	Status            ReminderStatus `json:"status"              gorm:"type:varchar(16);not null;default:'pending';index:idx_reminders_due,priority:1;check:status IN ('pending','completed','cancelled')"`
	SentOneDay        bool           `json:"sent_one_day"        gorm:"not null;default:false"`
	SentThirtyMinutes bool           `json:"sent_thirty_minutes" gorm:"not null;default:false"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Reminder.
func (Reminder) TableName() string { return "reminders" }

// Location returns the zone the reminder time was written in, or fallback
// for reminders stored without one.
func (r *Reminder) Location(fallback *time.Location) *time.Location {
	return loadLocation(r.Timezone, fallback)
}

// Terminal reports whether the reminder can no longer be delivered.
func (r *Reminder) Terminal() bool {
	return r.Status == ReminderCompleted || r.Status == ReminderCancelled
}

// Settle marks a pending reminder completed once both notices were sent and
// reports whether the status changed.
func (r *Reminder) Settle() bool {
	if r.Status == ReminderPending && r.SentOneDay && r.SentThirtyMinutes {
		r.Status = ReminderCompleted
		return true
	}
	return false
}
