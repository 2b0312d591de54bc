package handler

import (
	"context"
	"net/http"
	"testing"

	"tourbook/internal/bookings/service"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToolHandler(svc service.BookingService) *ToolHandler {
	return NewToolHandler(svc, logger.Discard())
}

func TestTools_OnlyForPhoneCallers(t *testing.T) {
	rec, env := serve(t, newToolHandler(&mockBookingService{}), http.MethodPost, "/api/v1/tools/booking_status", `{}`, &managerActor)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.CodeForbidden, env.Error.Code)
}

func TestTools_UnknownTool(t *testing.T) {
	rec, env := serve(t, newToolHandler(&mockBookingService{}), http.MethodPost, "/api/v1/tools/teleport", `{}`, &visitorActor)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)
}

func TestTools_CreateBooking(t *testing.T) {
	var got *model.BookingRequest
	svc := &mockBookingService{
		createFunc: func(_ context.Context, _ model.Actor, req *model.BookingRequest) (*model.Booking, error) {
			got = req
			return &model.Booking{ID: "b1", Status: model.StatusPending}, nil
		},
	}

	body := `{"property_id":"loft","visitor_name":"Dana","start_at":"2025-12-01T15:00:00Z","end_at":"2025-12-01T15:30:00Z","caller_start":"3pm Monday"}`
	rec, env := serve(t, newToolHandler(svc), http.MethodPost, "/api/v1/tools/create_booking", body, &visitorActor)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, got)
	assert.Equal(t, model.CreatedByVoiceAgent, got.CreatedBy)
	assert.Equal(t, visitorActor.Phone, got.Visitor.Phone)
	assert.Equal(t, "Dana", got.Visitor.Name)
	assert.Equal(t, "3pm Monday", got.CallerStart)
}

func TestTools_ValidatePayloads(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		body  string
		field string
	}{
		{
			name:  "create without property",
			tool:  ToolCreateBooking,
			body:  `{"visitor_name":"Dana","start_at":"2025-12-01T15:00:00Z","end_at":"2025-12-01T15:30:00Z"}`,
			field: "property_id",
		},
		{
			name:  "create with bad email",
			tool:  ToolCreateBooking,
			body:  `{"property_id":"loft","visitor_name":"Dana","email":"nope","start_at":"2025-12-01T15:00:00Z","end_at":"2025-12-01T15:30:00Z"}`,
			field: "email",
		},
		{
			name:  "confirm index out of range",
			tool:  ToolConfirmSlot,
			body:  `{"booking_id":"507f1f77bcf86cd799439011","index":3}`,
			field: "index",
		},
		{
			name:  "confirm with malformed id",
			tool:  ToolConfirmSlot,
			body:  `{"booking_id":"b1","index":0}`,
			field: "booking_id",
		},
		{
			name:  "availability without end",
			tool:  ToolCheckAvailability,
			body:  `{"property_id":"loft","start_at":"2025-12-01T15:00:00Z"}`,
			field: "end_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := serve(t, newToolHandler(&mockBookingService{}), http.MethodPost, "/api/v1/tools/"+tt.tool, tt.body, &visitorActor)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			require.NotNil(t, env.Error)
			assert.Equal(t, apperrors.CodeValidation, env.Error.Code)
			fields, ok := env.Error.Details["fields"].(map[string]any)
			require.True(t, ok)
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestTools_CheckAvailabilityMessages(t *testing.T) {
	tests := []struct {
		name    string
		result  *service.ValidationResult
		message string
	}{
		{
			name:    "free",
			result:  &service.ValidationResult{IsAvailable: true},
			message: "That time is available",
		},
		{
			name: "taken with alternatives",
			result: &service.ValidationResult{
				HasAvailability: true,
				SuggestedSlots:  make([]model.Interval, 2),
			},
			message: "That time is taken; 2 other times are open",
		},
		{
			name:    "taken without alternatives",
			result:  &service.ValidationResult{},
			message: "That time is taken and nothing else is open in the next two weeks",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				validateFunc: func(context.Context, *model.AvailabilityCheck) (*service.ValidationResult, error) {
					return tt.result, nil
				},
			}

			rec, env := serve(t, newToolHandler(svc), http.MethodPost, "/api/v1/tools/check_availability",
				`{"property_id":"loft","start_at":"2025-12-01T15:00:00Z","end_at":"2025-12-01T15:30:00Z"}`, &visitorActor)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.message, env.Message)
		})
	}
}

func TestTools_BookingStatusUsesCallerPhone(t *testing.T) {
	var got model.VisitorQuery
	svc := &mockBookingService{
		lookupFunc: func(_ context.Context, q model.VisitorQuery) ([]*model.Booking, error) {
			got = q
			return []*model.Booking{{ID: "b1"}}, nil
		},
	}

	rec, env := serve(t, newToolHandler(svc), http.MethodPost, "/api/v1/tools/booking_status",
		`{"visitor_name":" Dana ","property":"loft"}`, &visitorActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, visitorActor.Phone, got.Phone)
	assert.Equal(t, "Dana", got.Name)
	assert.Equal(t, "loft", got.Property)
	assert.Equal(t, "1 booking", env.Message)
}

func TestTools_ConfirmSlot(t *testing.T) {
	var gotIndex int
	var gotActor model.Actor
	svc := &mockBookingService{
		confirmFunc: func(_ context.Context, id string, actor model.Actor, index int) (*model.Booking, error) {
			gotIndex, gotActor = index, actor
			return &model.Booking{ID: id, Status: model.StatusApproved}, nil
		},
	}

	rec, env := serve(t, newToolHandler(svc), http.MethodPost, "/api/v1/tools/confirm_slot",
		`{"booking_id":"507f1f77bcf86cd799439011","index":2}`, &visitorActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Your tour is confirmed", env.Message)
	assert.Equal(t, 2, gotIndex)
	assert.Equal(t, visitorActor, gotActor)
}
