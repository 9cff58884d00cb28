// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides helpers for processed inbound messages
// (webhook replay protection) and the stored calendar OAuth token.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// MarkMessageProcessed records messageID as handled until now+ttl. It returns
// ErrDuplicate when the id was already recorded.
func MarkMessageProcessed(ctx context.Context, db *gorm.DB, messageID, senderID, chatID string, now time.Time, ttl time.Duration) error {
	if strings.TrimSpace(messageID) == "" {
		return nil
	}
	now = now.UTC()
	rec := &domain.ProcessedMessage{
		ID:        uuid.NewString(),
		MessageID: messageID,
		SenderID:  senderID,
		ChatID:    chatID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PurgeProcessedMessages deletes records that expired at or before now and
// returns how many were removed.
func PurgeProcessedMessages(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.ProcessedMessage{})
	return res.RowsAffected, res.Error
}

// SaveCalendarToken inserts or replaces the deployment's calendar token.
func SaveCalendarToken(ctx context.Context, db *gorm.DB, tok *domain.CalendarToken) error {
	if tok.ID == "" {
		tok.ID = domain.CalendarTokenKey
	}
	tok.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(tok).Error
}

// LoadCalendarToken returns the stored calendar token or ErrNotFound.
func LoadCalendarToken(ctx context.Context, db *gorm.DB) (*domain.CalendarToken, error) {
	var tok domain.CalendarToken
	if err := db.WithContext(ctx).Where("id = ?", domain.CalendarTokenKey).First(&tok).Error; err != nil {
		return nil, err
	}
	return &tok, nil
}
