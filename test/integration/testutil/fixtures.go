package testutil

import (
	"time"

	"tourbook/pkg/model"
)

type BookingRequestBuilder struct {
	req model.BookingRequest
}

func NewBookingRequestBuilder(propertyID string) *BookingRequestBuilder {
	return &BookingRequestBuilder{
		req: model.BookingRequest{
			PropertyID: propertyID,
			Visitor:    model.Visitor{Name: "Dana Scully", Phone: "+14155550100"},
			CreatedBy:  model.CreatedByVoiceAgent,
		},
	}
}

func (b *BookingRequestBuilder) At(start time.Time, d time.Duration) *BookingRequestBuilder {
	b.req.StartAt = start.UTC().Format(time.RFC3339)
	b.req.EndAt = start.Add(d).UTC().Format(time.RFC3339)
	return b
}

func (b *BookingRequestBuilder) WithVisitor(name, phone string) *BookingRequestBuilder {
	b.req.Visitor = model.Visitor{Name: name, Phone: phone}
	return b
}

func (b *BookingRequestBuilder) WithCallerWords(start, end string) *BookingRequestBuilder {
	b.req.CallerStart = start
	b.req.CallerEnd = end
	return b
}

func (b *BookingRequestBuilder) Build() model.BookingRequest {
	return b.req
}

// NextWeekday returns hour:00 UTC on the first Monday to Friday at least two
// days from now.
func NextWeekday(hour int) time.Time {
	day := time.Now().UTC().AddDate(0, 0, 2)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, time.UTC)
}
