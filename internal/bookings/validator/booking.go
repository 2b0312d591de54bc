package validator

import (
	"fmt"
	"strings"
	"time"

	"tourbook/pkg/logger"
	"tourbook/pkg/model"
	"tourbook/pkg/sanitizer"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v, err := validation.New()
	if err != nil {
		log.Fatal("Failed to build booking validator", "error", err)
	}

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// Struct validates any request type against its tags.
func (v *BookingValidator) Struct(s any) error {
	return validation.Struct(v.validate, s)
}

// ParseInterval parses two RFC 3339 instants. The offset is mandatory and
// the result is normalized to UTC.
func (v *BookingValidator) ParseInterval(start, end string) (model.Interval, error) {
	startAt, err := time.Parse(time.RFC3339, strings.TrimSpace(start))
	if err != nil {
		return model.Interval{}, validation.Fail("start_at", "start_at must be RFC 3339 with an explicit offset")
	}
	endAt, err := time.Parse(time.RFC3339, strings.TrimSpace(end))
	if err != nil {
		return model.Interval{}, validation.Fail("end_at", "end_at must be RFC 3339 with an explicit offset")
	}

	interval := model.NewInterval(startAt, endAt)
	if !interval.Valid() {
		return model.Interval{}, validation.Fail("end_at", "end_at must be after start_at")
	}
	return interval, nil
}

// ValidateInterval checks an interval supplied as a JSON object.
func (v *BookingValidator) ValidateInterval(field string, i model.Interval) error {
	if i.StartAt.IsZero() || i.EndAt.IsZero() {
		return validation.Fail(field, fmt.Sprintf("%s requires start_at and end_at", field))
	}
	if !i.StartAt.Before(i.EndAt) {
		return validation.Fail(field, fmt.Sprintf("%s end_at must be after start_at", field))
	}
	return nil
}

// NormalizeVisitor cleans the visitor identity in place. At least one of
// phone or name must remain.
func (v *BookingValidator) NormalizeVisitor(visitor *model.Visitor) error {
	visitor.Name = sanitizer.NormalizeName(visitor.Name)
	visitor.NameKey = sanitizer.FoldName(visitor.Name)
	visitor.Email = strings.TrimSpace(visitor.Email)

	if strings.TrimSpace(visitor.Phone) != "" {
		phone, err := sanitizer.NormalizePhone(visitor.Phone)
		if err != nil {
			return validation.Fail("visitor.phone", "visitor.phone is not a valid phone number")
		}
		visitor.Phone = phone
	} else {
		visitor.Phone = ""
	}

	if visitor.Phone == "" && visitor.Name == "" {
		return validation.Fail("visitor", "visitor phone or name is required")
	}

	return validation.Struct(v.validate, visitor)
}

// Validate checks a fully built booking before it is stored.
func (v *BookingValidator) Validate(booking *model.Booking) error {
	if err := validation.Struct(v.validate, booking); err != nil {
		return err
	}
	if !booking.AssignedUser.Type.Valid() || booking.AssignedUser.ID == "" {
		return validation.Fail("assigned_user", "assigned_user must name a manager or agent")
	}
	return nil
}
