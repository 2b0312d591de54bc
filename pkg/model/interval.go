package model

import (
	"fmt"
	"time"
)

// Interval is a half-open time range [StartAt, EndAt) in UTC.
type Interval struct {
	StartAt time.Time `json:"start_at" bson:"start_at"`
	EndAt   time.Time `json:"end_at" bson:"end_at"`
}

func NewInterval(start, end time.Time) Interval {
	return Interval{StartAt: start.UTC(), EndAt: end.UTC()}
}

func (i Interval) Valid() bool {
	return !i.StartAt.IsZero() && i.StartAt.Before(i.EndAt)
}

func (i Interval) Duration() time.Duration {
	return i.EndAt.Sub(i.StartAt)
}

// Overlaps reports whether two half-open intervals share any instant.
func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.StartAt, i.EndAt, o.StartAt, o.EndAt)
}

func (i Interval) Equal(o Interval) bool {
	return i.StartAt.Equal(o.StartAt) && i.EndAt.Equal(o.EndAt)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.StartAt.UTC().Format(time.RFC3339), i.EndAt.UTC().Format(time.RFC3339))
}

// Overlaps implements a1 < b2 && b1 < a2; touching endpoints do not overlap.
func Overlaps(a1, a2, b1, b2 time.Time) bool {
	return a1.Before(b2) && b1.Before(a2)
}
