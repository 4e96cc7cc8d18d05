package models

import "time"

// User represents a dashboard user in the database.
type User struct {
	ID               int64     `db:"id"`
	TelegramID       int64     `db:"telegram_id"`
	TelegramUsername string    `db:"telegram_username"`
	FeedUUID         string    `db:"feed_uuid"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
