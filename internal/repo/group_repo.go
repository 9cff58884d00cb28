// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for groups and
// their members.
//
// All functions are context-aware and accept a *gorm.DB handle. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition.
//
// Error semantics:
//   - Missing rows surface as ErrNotFound (gorm.ErrRecordNotFound).
//   - Unique violations on member insert surface as ErrDuplicate.
//   - Other DB errors are propagated unchanged.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a row with the same unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// GroupPatch lists the admin-editable group attributes. Nil fields are left
// unchanged.
type GroupPatch struct {
	Name            *string
	CalendarID      *string
	Timezone        *string
	ReminderMinutes []int
	Active          *bool
}

// CreateGroup inserts g together with its members. Missing ids are generated.
// A group whose chat id already exists yields ErrDuplicate.
func CreateGroup(ctx context.Context, db *gorm.DB, g *domain.Group) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now
	for i := range g.Members {
		if g.Members[i].ID == "" {
			g.Members[i].ID = uuid.NewString()
		}
		g.Members[i].CreatedAt = now
	}
	if err := db.WithContext(ctx).Create(g).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// GetGroupByChatID loads a group and its members by external chat id.
func GetGroupByChatID(ctx context.Context, db *gorm.DB, chatID string) (*domain.Group, error) {
	var g domain.Group
	err := db.WithContext(ctx).
		Preload("Members", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at asc") }).
		Where("chat_id = ?", chatID).
		First(&g).Error
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListActiveGroups returns all groups with Active=true, members preloaded.
func ListActiveGroups(ctx context.Context, db *gorm.DB) ([]domain.Group, error) {
	var out []domain.Group
	err := db.WithContext(ctx).
		Preload("Members").
		Where("active = ?", true).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// AddGroupMember inserts a member into the group identified by groupID.
func AddGroupMember(ctx context.Context, db *gorm.DB, groupID string, m *domain.GroupMember) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.GroupID = groupID
	m.CreatedAt = time.Now().UTC()
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateGroup applies patch to the group with the given chat id and returns
// the refreshed row. It returns ErrNotFound when no such group exists.
func UpdateGroup(ctx context.Context, db *gorm.DB, chatID string, patch GroupPatch) (*domain.Group, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.CalendarID != nil {
		updates["calendar_id"] = strings.TrimSpace(*patch.CalendarID)
	}
	if patch.Timezone != nil {
		updates["timezone"] = strings.TrimSpace(*patch.Timezone)
	}
	if patch.ReminderMinutes != nil {
		updates["reminder_minutes"] = datatypes.JSONSlice[int](patch.ReminderMinutes)
	}
	if patch.Active != nil {
		updates["active"] = *patch.Active
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		res := db.WithContext(ctx).Model(&domain.Group{}).Where("chat_id = ?", chatID).Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return GetGroupByChatID(ctx, db, chatID)
}

// isUniqueViolation recognizes unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
