package domain

import "time"

// ProcessedMessage records an inbound chat message id that was already
// handled. Transports redeliver webhooks on timeouts; a unique MessageID lets
// the service drop the replay instead of scheduling the same meeting twice.
// Rows expire after ExpiresAt and are purged by the scheduler.
type ProcessedMessage struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	MessageID string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	SenderID  string    `gorm:"type:varchar(128);not null"`
	ChatID    string    `gorm:"type:varchar(128)"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (ProcessedMessage) TableName() string { return "processed_messages" }

// CalendarToken stores the OAuth token obtained through the consent flow so
// the calendar reflector keeps working without a refresh token in the
// environment. A deployment has a single row keyed by CalendarTokenKey.
type CalendarToken struct {
	ID           string    `gorm:"type:varchar(64);primaryKey"`
	AccessToken  string    `gorm:"type:text"`
	RefreshToken string    `gorm:"type:text"`
	TokenType    string    `gorm:"type:varchar(32)"`
	Expiry       time.Time
	UpdatedAt    time.Time
}

// CalendarTokenKey is the primary key of the deployment's calendar token.
const CalendarTokenKey = "default"

// TableName implements the GORM tabler interface.
func (CalendarToken) TableName() string { return "calendar_tokens" }
