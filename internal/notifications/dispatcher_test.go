package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tourbook/pkg/logger"
	"tourbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	failOn map[string]bool
	block  chan struct{}
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[e.BookingID] {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) bookingIDs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.events))
	for _, e := range p.events {
		ids = append(ids, e.BookingID)
	}
	return ids
}

func event(bookingID string) Event {
	return Event{ID: bookingID + "-evt", Type: EventCreated, BookingID: bookingID}
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, 8, logger.Discard())
	d.Start()

	d.Emit(event("b1"))
	d.Emit(event("b2"))
	d.Emit(event("b3"))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, []string{"b1", "b2", "b3"}, pub.bookingIDs())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, 2, logger.Discard())

	// Not started yet, so nothing drains the queue.
	d.Emit(event("b1"))
	d.Emit(event("b2"))
	d.Emit(event("b3"))

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, []string{"b1", "b2"}, pub.bookingIDs())
}

func TestDispatcher_FailedPublishDoesNotStopDelivery(t *testing.T) {
	pub := &recordingPublisher{failOn: map[string]bool{"b1": true}}
	d := NewDispatcher(pub, 4, logger.Discard())
	d.Start()

	d.Emit(event("b1"))
	d.Emit(event("b2"))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, []string{"b2"}, pub.bookingIDs())
}

func TestDispatcher_EmitAfterStop(t *testing.T) {
	pub := &recordingPublisher{}
	d := NewDispatcher(pub, 4, logger.Discard())
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	assert.NotPanics(t, func() { d.Emit(event("late")) })
	assert.NoError(t, d.Stop(context.Background()))
	assert.Empty(t, pub.bookingIDs())
}

func TestDispatcher_StopHonoursDeadline(t *testing.T) {
	pub := &recordingPublisher{block: make(chan struct{})}
	d := NewDispatcher(pub, 4, logger.Discard())
	d.Start()
	d.Emit(event("b1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)

	close(pub.block)
	assert.Eventually(t, func() bool { return len(pub.bookingIDs()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestNewEvent_SnapshotsBooking(t *testing.T) {
	at := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	b := &model.Booking{
		ID:          "b1",
		PropertyID:  "prop-loft",
		Status:      model.StatusApproved,
		StartAt:     at,
		EndAt:       at.Add(30 * time.Minute),
		CallerStart: "9am",
	}

	e := NewEvent(EventApproved, b, "manager:mgr-1", "", at)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, EventApproved, e.Type)
	assert.Equal(t, "b1", e.BookingID)
	assert.Equal(t, model.StatusApproved, e.Status)
	assert.Equal(t, "9am", e.CallerStart)
	assert.Equal(t, "manager:mgr-1", e.Actor)

	other := NewEvent(EventApproved, b, "manager:mgr-1", "", at)
	assert.NotEqual(t, e.ID, other.ID)
}
