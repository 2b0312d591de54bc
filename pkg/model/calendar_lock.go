package model

import "time"

// CalendarLock is the advisory lock document guarding one user's calendar
// while a check-then-write runs.
type CalendarLock struct {
	ID        string    `bson:"_id" json:"id"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
