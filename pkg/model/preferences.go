package model

import (
	"fmt"
	"time"
)

type WorkingHours struct {
	Start string `json:"start" bson:"start" validate:"required,hhmm"`
	End   string `json:"end" bson:"end" validate:"required,hhmm"`
}

type CalendarPreferences struct {
	UserID                   string         `json:"user_id" bson:"user_id" validate:"required"`
	UserType                 UserType       `json:"user_type" bson:"user_type" validate:"required,oneof=manager agent"`
	TimeZone                 string         `json:"timezone" bson:"timezone" validate:"required,timezone"`
	DefaultSlotLengthMinutes int            `json:"default_slot_length_minutes" bson:"default_slot_length_minutes" validate:"min=15,max=120"`
	WorkingHours             WorkingHours   `json:"working_hours" bson:"working_hours"`
	WorkingDays              []time.Weekday `json:"working_days" bson:"working_days" validate:"required,min=1,max=7,unique,dive,min=0,max=6"`
	UpdatedAt                time.Time      `json:"updated_at" bson:"updated_at"`
}

func (p *CalendarPreferences) User() UserRef {
	return UserRef{ID: p.UserID, Type: p.UserType}
}

func (p *CalendarPreferences) SlotLength() time.Duration {
	return time.Duration(p.DefaultSlotLengthMinutes) * time.Minute
}

func (p *CalendarPreferences) Location() (*time.Location, error) {
	return time.LoadLocation(p.TimeZone)
}

func (p *CalendarPreferences) WorksOn(d time.Weekday) bool {
	for _, w := range p.WorkingDays {
		if w == d {
			return true
		}
	}
	return false
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
