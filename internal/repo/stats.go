// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-meeting-bot/internal/domain"
)

// MeetingsStats returns the number of meetings owned by a group and the
// greatest UpdatedAt among them. When the group has no meetings the count is
// 0 and maxUpdatedAt is nil.
func MeetingsStats(ctx context.Context, db *gorm.DB, groupID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Meeting{}).Where("group_id = ?", groupID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at via ORDER BY; MAX() comes back as TEXT in SQLite.
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(&domain.Meeting{}).
		Where("group_id = ?", groupID).
		Select("updated_at").Order("updated_at DESC").Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
