package validator

import (
	"errors"
	"testing"
	"time"

	"tourbook/pkg/logger"
	"tourbook/pkg/model"
	"tourbook/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func firstField(t *testing.T, err error) string {
	t.Helper()
	var verrs validation.ValidationErrors
	require.True(t, errors.As(err, &verrs), "unexpected error %v", err)
	require.NotEmpty(t, verrs)
	return verrs[0].Field
}

func TestParseInterval(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	got, err := v.ParseInterval(" 2025-12-01T10:00:00-05:00 ", "2025-12-01T10:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.StartAt.Location())
	assert.True(t, got.StartAt.Equal(time.Date(2025, 12, 1, 15, 0, 0, 0, time.UTC)))
	assert.Equal(t, 30*time.Minute, got.Duration())

	tests := []struct {
		name  string
		start string
		end   string
		field string
	}{
		{"missing offset", "2025-12-01T10:00:00", "2025-12-01T10:30:00Z", "start_at"},
		{"garbage end", "2025-12-01T10:00:00Z", "tomorrow", "end_at"},
		{"end before start", "2025-12-01T10:00:00Z", "2025-12-01T09:00:00Z", "end_at"},
		{"empty interval", "2025-12-01T10:00:00Z", "2025-12-01T10:00:00Z", "end_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ParseInterval(tt.start, tt.end)
			assert.Equal(t, tt.field, firstField(t, err))
		})
	}
}

func TestValidateInterval(t *testing.T) {
	v := NewBookingValidator(logger.Discard())
	at := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

	assert.NoError(t, v.ValidateInterval("slot", model.NewInterval(at, at.Add(time.Hour))))
	assert.Equal(t, "slot", firstField(t, v.ValidateInterval("slot", model.Interval{StartAt: at})))
	assert.Equal(t, "slot", firstField(t, v.ValidateInterval("slot", model.NewInterval(at, at))))
}

func TestNormalizeVisitor(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	visitor := model.Visitor{Name: "  Dana   Scully ", Phone: "(415) 555-0100", Email: " dana@example.com "}
	require.NoError(t, v.NormalizeVisitor(&visitor))
	assert.Equal(t, "Dana Scully", visitor.Name)
	assert.Equal(t, "+14155550100", visitor.Phone)
	assert.Equal(t, "dana@example.com", visitor.Email)
	assert.Equal(t, "dana scully", visitor.NameKey)

	accented := model.Visitor{Name: "José O'Neil"}
	require.NoError(t, v.NormalizeVisitor(&accented))
	assert.Equal(t, "José O'Neil", accented.Name)
	assert.Equal(t, "jose o neil", accented.NameKey)

	nameOnly := model.Visitor{Name: "Dana", Phone: "   "}
	require.NoError(t, v.NormalizeVisitor(&nameOnly))
	assert.Empty(t, nameOnly.Phone)

	anonymous := model.Visitor{Name: "   "}
	assert.Equal(t, "visitor", firstField(t, v.NormalizeVisitor(&anonymous)))

	badPhone := model.Visitor{Phone: "12"}
	assert.Equal(t, "visitor.phone", firstField(t, v.NormalizeVisitor(&badPhone)))

	badEmail := model.Visitor{Name: "Dana", Email: "dana-at-example"}
	assert.Equal(t, "email", firstField(t, v.NormalizeVisitor(&badEmail)))
}

func TestValidateBooking(t *testing.T) {
	v := NewBookingValidator(logger.Discard())
	at := time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC)

	valid := func() *model.Booking {
		return &model.Booking{
			PropertyID:   "prop-loft",
			AssignedUser: model.UserRef{ID: "mgr-1", Type: model.UserTypeManager},
			Visitor:      model.Visitor{Phone: "+14155550100"},
			StartAt:      at,
			EndAt:        at.Add(30 * time.Minute),
			TimeZone:     "UTC",
			Status:       model.StatusPending,
			CreatedBy:    model.CreatedByDashboard,
		}
	}

	assert.NoError(t, v.Validate(valid()))

	b := valid()
	b.EndAt = at
	assert.Equal(t, "end_at", firstField(t, v.Validate(b)))

	b = valid()
	b.CreatedBy = "fax"
	assert.Equal(t, "created_by", firstField(t, v.Validate(b)))

	b = valid()
	b.TimeZone = "Atlantis/Capital"
	assert.Equal(t, "timezone", firstField(t, v.Validate(b)))

	b = valid()
	b.AssignedUser = model.UserRef{}
	assert.Error(t, v.Validate(b))
}
