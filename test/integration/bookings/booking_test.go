//go:build integration

package integrationtests

import (
	"net/http"
	"testing"
	"time"

	"tourbook/pkg/client"
	"tourbook/pkg/model"
	"tourbook/test/integration/testutil"
)

var (
	manager = model.UserRef{ID: "it-manager", Type: model.UserTypeManager}
	agent   = model.UserRef{ID: "it-agent", Type: model.UserTypeAgent}
	loft    = model.Property{ID: "it-loft", Name: "Harbor View Loft", Address: "12 Pier Street", OwnerUserID: manager.ID}
	cottage = model.Property{ID: "it-cottage", Name: "Maple Cottage", Address: "4 Elm Road", OwnerUserID: manager.ID}
)

const visitorPhone = "+14155550100"

func setup(t *testing.T) *client.BookingClient {
	t.Helper()
	env := testutil.NewTestEnv()
	mongo, c := env.Setup(t, loft, cottage)
	t.Cleanup(func() { env.Cleanup(t, mongo) })
	return c
}

func mustStatus(t *testing.T, resp *client.Response, err error, want int) *client.Response {
	t.Helper()
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != want {
		t.Fatalf("expected %d, got %s", want, resp.ToString())
	}
	return resp
}

func decodeBooking(t *testing.T, c *client.BookingClient, resp *client.Response) *model.Booking {
	t.Helper()
	b, err := c.DecodeBooking(resp)
	if err != nil {
		t.Fatalf("failed to decode booking: %v", err)
	}
	return b
}

func createPending(t *testing.T, c *client.BookingClient, propertyID string, start time.Time) *model.Booking {
	t.Helper()
	req := testutil.NewBookingRequestBuilder(propertyID).At(start, 30*time.Minute).Build()
	resp, err := c.AsVisitor(visitorPhone).Create(req)
	return decodeBooking(t, c, mustStatus(t, resp, err, http.StatusCreated))
}

func TestBookingLifecycle(t *testing.T) {
	c := setup(t)
	start := testutil.NextWeekday(10)

	req := testutil.NewBookingRequestBuilder(loft.ID).
		At(start, 30*time.Minute).
		WithCallerWords("ten in the morning", "half past ten").
		Build()
	resp, err := c.AsVisitor(visitorPhone).Create(req)
	created := decodeBooking(t, c, mustStatus(t, resp, err, http.StatusCreated))

	if created.Status != model.StatusPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}
	if created.AssignedUser != manager {
		t.Fatalf("expected booking assigned to owner, got %+v", created.AssignedUser)
	}
	if created.CallerStart != "ten in the morning" {
		t.Errorf("caller wording was not kept: %q", created.CallerStart)
	}

	resp, err = c.As(agent).Approve(created.ID, nil)
	mustStatus(t, resp, err, http.StatusForbidden)

	resp, err = c.As(manager).Approve(created.ID, nil)
	approved := decodeBooking(t, c, mustStatus(t, resp, err, http.StatusOK))
	if approved.Status != model.StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	resp, err = c.As(manager).Availability(manager, start.Add(-time.Hour).Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339))
	mustStatus(t, resp, err, http.StatusOK)
	var slots []model.AvailabilitySlot
	if err := resp.DecodeData(&slots); err != nil {
		t.Fatalf("failed to decode slots: %v", err)
	}
	if len(slots) != 1 || slots[0].SlotType != model.SlotBooking || slots[0].BookingID != created.ID {
		t.Fatalf("expected one booking slot for %s, got %+v", created.ID, slots)
	}

	resp, err = c.AsVisitor(visitorPhone).Cancel(created.ID, map[string]string{"reason": "change of plans"})
	cancelled := decodeBooking(t, c, mustStatus(t, resp, err, http.StatusOK))
	if cancelled.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}

	resp, err = c.As(manager).Availability(manager, start.Add(-time.Hour).Format(time.RFC3339), start.Add(time.Hour).Format(time.RFC3339))
	mustStatus(t, resp, err, http.StatusOK)
	slots = nil
	if err := resp.DecodeData(&slots); err != nil {
		t.Fatalf("failed to decode slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected the booking slot to be released, got %+v", slots)
	}

	resp, err = c.As(manager).Audit(created.ID)
	audited := decodeBooking(t, c, mustStatus(t, resp, err, http.StatusOK))
	if len(audited.AuditLog) != 3 {
		t.Errorf("expected created, approved and cancelled entries, got %d", len(audited.AuditLog))
	}
}

func TestApproveConflictSuggestsAlternatives(t *testing.T) {
	c := setup(t)
	start := testutil.NextWeekday(10)

	first := createPending(t, c, loft.ID, start)
	resp, err := c.As(manager).Approve(first.ID, nil)
	mustStatus(t, resp, err, http.StatusOK)

	// Same owner, different property: the calendar is shared.
	second := createPending(t, c, cottage.ID, start.Add(15*time.Minute))
	resp, err = c.As(manager).Approve(second.ID, nil)
	mustStatus(t, resp, err, http.StatusConflict)

	env, err := resp.Envelope()
	if err != nil {
		t.Fatal(err)
	}
	suggested, ok := env.Error.Details["suggested_slots"].([]any)
	if !ok || len(suggested) == 0 {
		t.Fatalf("expected suggested slots, got %+v", env.Error.Details)
	}

	resp, err = c.As(manager).GetByID(second.ID)
	stillPending := decodeBooking(t, c, mustStatus(t, resp, err, http.StatusOK))
	if stillPending.Status != model.StatusPending {
		t.Fatalf("a refused approval must not change the booking, got %s", stillPending.Status)
	}
}

func TestRescheduleAndVisitorConfirm(t *testing.T) {
	c := setup(t)
	start := testutil.NextWeekday(11)

	booking := createPending(t, c, loft.ID, start)

	candidates := []model.Interval{
		model.NewInterval(start.Add(2*time.Hour), start.Add(2*time.Hour+30*time.Minute)),
		model.NewInterval(start.Add(3*time.Hour), start.Add(3*time.Hour+30*time.Minute)),
	}
	resp, err := c.As(manager).Reschedule(booking.ID, map[string]any{"candidates": candidates, "reason": "busy at 11"})
	rescheduled := decodeBooking(t, c, mustStatus(t, resp, err, http.StatusOK))
	if rescheduled.Status != model.StatusRescheduled || len(rescheduled.ProposedSlots) != 2 {
		t.Fatalf("expected two proposals, got %s %+v", rescheduled.Status, rescheduled.ProposedSlots)
	}

	resp, err = c.AsVisitor("+14155550199").Confirm(booking.ID, map[string]int{"index": 1})
	mustStatus(t, resp, err, http.StatusForbidden)

	resp, err = c.AsVisitor(visitorPhone).Confirm(booking.ID, map[string]int{"index": 1})
	confirmed := decodeBooking(t, c, mustStatus(t, resp, err, http.StatusOK))
	if confirmed.Status != model.StatusApproved || !confirmed.StartAt.Equal(candidates[1].StartAt) {
		t.Fatalf("expected approval at the second candidate, got %s at %s", confirmed.Status, confirmed.StartAt)
	}
}

func TestVisitorLookupAndCancel(t *testing.T) {
	c := setup(t)
	start := testutil.NextWeekday(14)

	createPending(t, c, loft.ID, start)
	createPending(t, c, cottage.ID, start.Add(time.Hour))

	resp, err := c.AsVisitor(visitorPhone).ByVisitor("", "", "")
	bookings, err2 := c.DecodeBookings(mustStatus(t, resp, err, http.StatusOK))
	if err2 != nil {
		t.Fatal(err2)
	}
	if len(bookings) != 2 {
		t.Fatalf("expected both bookings, got %d", len(bookings))
	}

	resp, err = c.AsVisitor(visitorPhone).CancelByVisitor(map[string]string{"property": "maple", "reason": "found a place"})
	cancelled, err2 := c.DecodeBookings(mustStatus(t, resp, err, http.StatusOK))
	if err2 != nil {
		t.Fatal(err2)
	}
	if len(cancelled) != 1 || cancelled[0].PropertyID != cottage.ID {
		t.Fatalf("expected only the cottage booking cancelled, got %+v", cancelled)
	}
}

func TestReassignRoutesNewBookings(t *testing.T) {
	c := setup(t)

	resp, err := c.As(manager).Reassign(loft.ID, map[string]any{"to_user": agent, "reason": "vacation"})
	mustStatus(t, resp, err, http.StatusCreated)

	resp, err = c.As(manager).Approver(loft.ID)
	mustStatus(t, resp, err, http.StatusOK)
	var approver model.UserRef
	if err := resp.DecodeData(&approver); err != nil {
		t.Fatal(err)
	}
	if approver != agent {
		t.Fatalf("expected %s, got %s", agent.Key(), approver.Key())
	}

	booking := createPending(t, c, loft.ID, testutil.NextWeekday(9))
	if booking.AssignedUser != agent {
		t.Fatalf("expected new booking assigned to the agent, got %s", booking.AssignedUser.Key())
	}

	resp, err = c.As(manager).AssignmentHistory(loft.ID)
	mustStatus(t, resp, err, http.StatusOK)
	var history []model.PropertyAssignment
	if err := resp.DecodeData(&history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Reason != "vacation" {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestVoiceTools(t *testing.T) {
	c := setup(t)
	start := testutil.NextWeekday(15)

	resp, err := c.AsVisitor(visitorPhone).Tool("check_availability", map[string]string{
		"property_id": loft.ID,
		"start_at":    start.Format(time.RFC3339),
		"end_at":      start.Add(30 * time.Minute).Format(time.RFC3339),
	})
	mustStatus(t, resp, err, http.StatusOK)

	resp, err = c.As(manager).Tool("check_availability", map[string]string{})
	mustStatus(t, resp, err, http.StatusForbidden)

	resp, err = c.CreateRaw([]byte(`{"property_id":`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected the malformed anonymous request to be rejected, got %s", resp.ToString())
	}
}
