// Package testutil provides in-memory repositories and fixtures for service
// and handler tests.
package testutil

import (
	"time"

	"tourbook/pkg/clock"
	"tourbook/pkg/config"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
)

// Now is the fixed instant service tests run at: Friday 2025-11-28 12:00 UTC.
var Now = time.Date(2025, 11, 28, 12, 0, 0, 0, time.UTC)

var (
	Manager = model.UserRef{ID: "mgr-1", Type: model.UserTypeManager}
	Agent   = model.UserRef{ID: "agt-1", Type: model.UserTypeAgent}
)

// Config returns a configuration with production defaults, a discarding
// logger and no retry backoff.
func Config() *config.Config {
	return &config.Config{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,

		StateChangeLimit:  100,
		StateChangeWindow: time.Minute,

		BookingHorizon:     config.DefaultBookingHorizon,
		MaxSuggestions:     config.DefaultMaxSuggestions,
		DefaultTimeZone:    "UTC",
		DefaultSlotLength:  30,
		DefaultStartOfDay:  "09:00",
		DefaultEndOfDay:    "17:00",
		DefaultWorkingDays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},

		LockTimeout: time.Second,
		CacheTTL:    time.Minute,

		RetryAttempts: 3,
		RetryBackoff:  0,

		NotifyQueueSize: 16,
		SlotRetention:   config.DefaultSlotRetention,

		Log: logger.Discard(),
	}
}

func Clock() *clock.Manual {
	return clock.NewManual(Now)
}

// At returns a UTC instant on the given day of December 2025.
func At(day, hour, minute int) time.Time {
	return time.Date(2025, time.December, day, hour, minute, 0, 0, time.UTC)
}
