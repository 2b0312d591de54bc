package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tourbook/internal/bookings/service"
	"tourbook/pkg/contracts"
	apperrors "tourbook/pkg/errors"
	"tourbook/pkg/logger"
	"tourbook/pkg/middleware"
	"tourbook/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBookingService struct {
	createFunc          func(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error)
	validateFunc        func(ctx context.Context, req *model.AvailabilityCheck) (*service.ValidationResult, error)
	listFunc            func(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int64, error)
	approveFunc         func(ctx context.Context, id string, actor model.Actor, slot *model.Interval) (*model.Booking, error)
	cancelFunc          func(ctx context.Context, id string, actor model.Actor, reason string) (*model.Booking, error)
	confirmFunc         func(ctx context.Context, id string, actor model.Actor, index int) (*model.Booking, error)
	lookupFunc          func(ctx context.Context, q model.VisitorQuery) ([]*model.Booking, error)
	cancelByVisitorFunc func(ctx context.Context, actor model.Actor, q model.VisitorQuery, reason string) ([]*model.Booking, error)
}

func (m *mockBookingService) Create(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, actor, req)
	}
	return &model.Booking{}, nil
}

func (m *mockBookingService) Validate(ctx context.Context, req *model.AvailabilityCheck) (*service.ValidationResult, error) {
	if m.validateFunc != nil {
		return m.validateFunc(ctx, req)
	}
	return &service.ValidationResult{IsAvailable: true}, nil
}

func (m *mockBookingService) CreateManual(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
	return &model.Booking{}, nil
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) GetAuditTrail(ctx context.Context, id string) (*model.Booking, error) {
	return &model.Booking{ID: id}, nil
}

func (m *mockBookingService) List(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, int64, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, filter)
	}
	return []*model.Booking{}, 0, nil
}

func (m *mockBookingService) Approve(ctx context.Context, id string, actor model.Actor, slot *model.Interval) (*model.Booking, error) {
	if m.approveFunc != nil {
		return m.approveFunc(ctx, id, actor, slot)
	}
	return &model.Booking{ID: id, Status: model.StatusApproved}, nil
}

func (m *mockBookingService) Deny(ctx context.Context, id string, actor model.Actor, reason string) (*model.Booking, error) {
	return &model.Booking{ID: id, Status: model.StatusDenied}, nil
}

func (m *mockBookingService) Reschedule(ctx context.Context, id string, actor model.Actor, candidates []model.Interval, reason string) (*model.Booking, error) {
	return &model.Booking{ID: id, Status: model.StatusRescheduled, ProposedSlots: candidates}, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, id string, actor model.Actor, reason string) (*model.Booking, error) {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id, actor, reason)
	}
	return &model.Booking{ID: id, Status: model.StatusCancelled}, nil
}

func (m *mockBookingService) ConfirmProposedSlot(ctx context.Context, id string, actor model.Actor, index int) (*model.Booking, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, id, actor, index)
	}
	return &model.Booking{ID: id, Status: model.StatusApproved}, nil
}

func (m *mockBookingService) LookupByVisitor(ctx context.Context, q model.VisitorQuery) ([]*model.Booking, error) {
	if m.lookupFunc != nil {
		return m.lookupFunc(ctx, q)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingService) CancelByVisitor(ctx context.Context, actor model.Actor, q model.VisitorQuery, reason string) ([]*model.Booking, error) {
	if m.cancelByVisitorFunc != nil {
		return m.cancelByVisitorFunc(ctx, actor, q, reason)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingService) Hygiene(ctx context.Context) (*service.HygieneReport, error) {
	return &service.HygieneReport{}, nil
}

var (
	managerActor = model.ActorFromUser(model.UserRef{ID: "mgr-1", Type: model.UserTypeManager})
	visitorActor = model.Actor{Kind: model.ActorVisitor, Phone: "+14155550100"}
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Retryable bool           `json:"retryable"`
		Details   map[string]any `json:"details"`
	} `json:"error"`
}

// serve routes one request through h. A nil actor sends the request
// anonymously.
func serve(t *testing.T, h contracts.Handler, method, path, body string, actor *model.Actor) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	router := httprouter.New()
	h.RegisterRoutes(router)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func newBookingHandler(svc service.BookingService) *BookingHandler {
	return NewBookingHandler(svc, logger.Discard())
}

func TestCreate_PassesCallerStringsThrough(t *testing.T) {
	var got *model.BookingRequest
	var gotActor model.Actor
	svc := &mockBookingService{
		createFunc: func(_ context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
			got, gotActor = req, actor
			return &model.Booking{ID: "b1", Status: model.StatusPending, CallerStart: req.CallerStart}, nil
		},
	}

	body := `{"property_id":"loft","visitor":{"name":"Dana"},"start_at":"2025-12-01T15:00:00-05:00","end_at":"2025-12-01T15:30:00-05:00","caller_start":"Monday at 3 in the afternoon"}`
	rec, env := serve(t, newBookingHandler(svc), http.MethodPost, "/api/v1/bookings", body, &visitorActor)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, env.Success)
	require.NotNil(t, got)
	assert.Equal(t, "Monday at 3 in the afternoon", got.CallerStart)
	assert.Equal(t, visitorActor, gotActor)
	assert.Contains(t, string(env.Data), `"caller_start":"Monday at 3 in the afternoon"`)
}

func TestCreate_RequiresIdentity(t *testing.T) {
	called := false
	svc := &mockBookingService{
		createFunc: func(context.Context, model.Actor, *model.BookingRequest) (*model.Booking, error) {
			called = true
			return nil, nil
		},
	}

	rec, env := serve(t, newBookingHandler(svc), http.MethodPost, "/api/v1/bookings", `{"property_id":"loft"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)
	assert.False(t, called)
}

func TestCreate_RejectsUnknownFields(t *testing.T) {
	rec, env := serve(t, newBookingHandler(&mockBookingService{}), http.MethodPost, "/api/v1/bookings",
		`{"property_id":"loft","when":"soon"}`, &visitorActor)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)
}

func TestApprove_ConflictCarriesSuggestions(t *testing.T) {
	suggestion := model.NewInterval(
		time.Date(2025, 12, 1, 16, 30, 0, 0, time.UTC),
		time.Date(2025, 12, 1, 17, 0, 0, 0, time.UTC),
	)
	svc := &mockBookingService{
		approveFunc: func(context.Context, string, model.Actor, *model.Interval) (*model.Booking, error) {
			return nil, apperrors.Conflict("The requested time overlaps another commitment").WithDetails(map[string]any{
				"suggested_slots":  []model.Interval{suggestion},
				"has_availability": true,
			})
		},
	}

	rec, env := serve(t, newBookingHandler(svc), http.MethodPost, "/api/v1/bookings/id/b1/approve", "", &managerActor)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeConflict, env.Error.Code)
	assert.Equal(t, true, env.Error.Details["has_availability"])
	slots, ok := env.Error.Details["suggested_slots"].([]any)
	require.True(t, ok)
	require.Len(t, slots, 1)
	assert.Equal(t, "2025-12-01T16:30:00Z", slots[0].(map[string]any)["start_at"])
}

func TestApprove_OptionalBody(t *testing.T) {
	var gotSlot *model.Interval
	svc := &mockBookingService{
		approveFunc: func(_ context.Context, id string, _ model.Actor, slot *model.Interval) (*model.Booking, error) {
			gotSlot = slot
			return &model.Booking{ID: id, Status: model.StatusApproved}, nil
		},
	}
	h := newBookingHandler(svc)

	rec, _ := serve(t, h, http.MethodPost, "/api/v1/bookings/id/b1/approve", "", &managerActor)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, gotSlot)

	rec, _ = serve(t, h, http.MethodPost, "/api/v1/bookings/id/b1/approve",
		`{"slot":{"start_at":"2025-12-02T10:00:00Z","end_at":"2025-12-02T10:30:00Z"}}`, &managerActor)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotSlot)
	assert.Equal(t, 10, gotSlot.StartAt.Hour())
}

func TestList_ScopesToCallingUser(t *testing.T) {
	var got model.BookingFilter
	svc := &mockBookingService{
		listFunc: func(_ context.Context, filter model.BookingFilter) ([]*model.Booking, int64, error) {
			got = filter
			return []*model.Booking{{ID: "b1"}}, 1, nil
		},
	}
	h := newBookingHandler(svc)

	rec, _ := serve(t, h, http.MethodGet, "/api/v1/bookings?status=pending,approved&limit=5", "", &managerActor)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.UserRef)
	assert.Equal(t, "mgr-1", got.UserRef.ID)
	assert.Equal(t, []model.BookingStatus{model.StatusPending, model.StatusApproved}, got.Status)
	assert.Equal(t, int64(5), got.Limit)

	rec, _ = serve(t, h, http.MethodGet, "/api/v1/bookings?property_id=loft", "", &managerActor)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, got.UserRef)
	assert.Equal(t, "loft", got.PropertyID)

	rec, env := serve(t, h, http.MethodGet, "/api/v1/bookings", "", &visitorActor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.CodeForbidden, env.Error.Code)

	rec, env = serve(t, h, http.MethodGet, "/api/v1/bookings?status=booked", "", &managerActor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidInput, env.Error.Code)
}

func TestByVisitor_CallerSeesOnlyOwnNumber(t *testing.T) {
	var got model.VisitorQuery
	svc := &mockBookingService{
		lookupFunc: func(_ context.Context, q model.VisitorQuery) ([]*model.Booking, error) {
			got = q
			return []*model.Booking{{ID: "b1"}, {ID: "b2"}}, nil
		},
	}
	h := newBookingHandler(svc)

	rec, env := serve(t, h, http.MethodGet, "/api/v1/bookings/visitor?phone=%2B14155550199&name=Someone", "", &visitorActor)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "+14155550100", got.Phone)
	assert.Empty(t, got.Name)
	assert.Equal(t, "2 bookings", env.Message)

	_, _ = serve(t, h, http.MethodGet, "/api/v1/bookings/visitor?phone=%2B14155550199", "", &managerActor)
	assert.Equal(t, "+14155550199", got.Phone)
}

func TestCancelByVisitor_ForwardsQuery(t *testing.T) {
	var gotQuery model.VisitorQuery
	var gotReason string
	svc := &mockBookingService{
		cancelByVisitorFunc: func(_ context.Context, _ model.Actor, q model.VisitorQuery, reason string) ([]*model.Booking, error) {
			gotQuery, gotReason = q, reason
			return []*model.Booking{{ID: "b1", Status: model.StatusCancelled}}, nil
		},
	}

	rec, env := serve(t, newBookingHandler(svc), http.MethodPost, "/api/v1/bookings/visitor/cancel",
		`{"property":"loft","reason":"  plans changed "}`, &visitorActor)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "loft", gotQuery.Property)
	assert.Equal(t, "plans changed", gotReason)
	assert.Equal(t, "1 booking cancelled", env.Message)
}

func TestCancel_PropagatesNotFound(t *testing.T) {
	svc := &mockBookingService{
		cancelFunc: func(context.Context, string, model.Actor, string) (*model.Booking, error) {
			return nil, apperrors.NotFound("Booking")
		},
	}

	rec, env := serve(t, newBookingHandler(svc), http.MethodPost, "/api/v1/bookings/id/missing/cancel", "", &managerActor)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)
}

func TestBookingCountMessage(t *testing.T) {
	assert.Equal(t, "No bookings found", bookingCountMessage(0))
	assert.Equal(t, "1 booking", bookingCountMessage(1))
	assert.Equal(t, "12 bookings", bookingCountMessage(12))
}
