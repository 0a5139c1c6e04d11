package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/precis/internal/common"
	"github.com/ternarybob/precis/internal/models"
)

func newTestBus(maxSubs int, heartbeat, idle time.Duration) *Bus {
	config := &common.ProgressConfig{MaxSubscribers: maxSubs}
	return NewBus(config, heartbeat, idle, common.GetLogger())
}

func TestSubscribeAndPublish(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	bus.Publish(models.ProgressEvent{
		Type:       models.EventTypeProgress,
		DocumentID: "doc_1",
		Stage:      models.StageParsing,
		Percent:    15,
	})

	select {
	case event := <-ch:
		assert.Equal(t, models.EventTypeProgress, event.Type)
		assert.Equal(t, models.StageParsing, event.Stage)
		assert.Equal(t, 15, event.Percent)
		assert.False(t, event.Timestamp.IsZero(), "bus stamps events")
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublish_OnlyReachesOwnDocument(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)
	defer bus.Close()

	chA, cancelA, err := bus.Subscribe("doc_a")
	require.NoError(t, err)
	defer cancelA()
	_, cancelB, err := bus.Subscribe("doc_b")
	require.NoError(t, err)
	defer cancelB()

	bus.Publish(models.ProgressEvent{Type: models.EventTypeProgress, DocumentID: "doc_b"})

	select {
	case event := <-chA:
		t.Fatalf("doc_a received doc_b's event: %+v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriberLimit(t *testing.T) {
	bus := newTestBus(2, time.Minute, time.Minute)
	defer bus.Close()

	_, c1, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer c1()
	_, c2, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer c2()

	_, _, err = bus.Subscribe("doc_1")
	assert.ErrorIs(t, err, ErrSubscriberLimit)
	assert.Equal(t, 2, bus.SubscriberCount("doc_1"))

	// Cancelling frees a slot
	c1()
	_, c3, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer c3()
}

func TestPublish_DropsWhenSubscriberFull(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)
	defer bus.Close()

	_, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	// Publish must not block even with nobody draining the channel
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(models.ProgressEvent{Type: models.EventTypeProgress, DocumentID: "doc_1", Percent: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestTerminalEventClosesSubscribers(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	bus.Publish(models.ProgressEvent{Type: models.EventTypeError, DocumentID: "doc_1", Error: "parse failed"})

	// First receive is the error event, then the channel closes
	event, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, models.EventTypeError, event.Type)

	_, ok = <-ch
	assert.False(t, ok, "channel must close after terminal event")
	assert.Equal(t, 0, bus.SubscriberCount("doc_1"))
}

func TestHeartbeat(t *testing.T) {
	bus := newTestBus(4, 20*time.Millisecond, time.Minute)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	select {
	case event := <-ch:
		assert.Equal(t, models.EventTypeHeartbeat, event.Type)
		assert.Equal(t, "doc_1", event.DocumentID)
	case <-time.After(time.Second):
		t.Fatal("no heartbeat received")
	}
}

func TestIdleSubscriberEvicted(t *testing.T) {
	bus := newTestBus(4, 10*time.Millisecond, 30*time.Millisecond)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	// Never drain the channel: heartbeats pile up until the buffer is
	// full, activity stops updating, and the sweep evicts us.
	deadline := time.After(3 * time.Second)
	for bus.SubscriberCount("doc_1") > 0 {
		select {
		case <-deadline:
			t.Fatal("idle subscriber never evicted")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// Channel is closed after eviction; drain to the close
	for range ch {
	}
}

func TestHeartbeatsDoNotDeferEviction(t *testing.T) {
	bus := newTestBus(4, 10*time.Millisecond, 40*time.Millisecond)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	// Drain everything so heartbeats keep flowing; with no real events
	// the subscriber must still be evicted at the idle timeout
	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("heartbeats kept an idle subscriber alive")
	}
	assert.Equal(t, 0, bus.SubscriberCount("doc_1"))
}

func TestPublishedEventsDeferEviction(t *testing.T) {
	bus := newTestBus(4, 10*time.Millisecond, 100*time.Millisecond)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	go func() {
		for range ch {
		}
	}()

	// Keep publishing well inside the idle window
	for i := 0; i < 10; i++ {
		bus.Publish(models.ProgressEvent{Type: models.EventTypeProgress, DocumentID: "doc_1", Percent: i})
		time.Sleep(30 * time.Millisecond)
	}
	assert.Equal(t, 1, bus.SubscriberCount("doc_1"))
}

func TestClose_ShutsEverythingDown(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)

	ch, _, err := bus.Subscribe("doc_1")
	require.NoError(t, err)

	bus.Close()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, bus.SubscriberCount("doc_1"))

	// Close is idempotent
	bus.Close()
}

func TestTracker_GlobalPercentMapping(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	tracker := NewTracker("doc_1", bus, common.GetLogger())

	tracker.StageStart(models.StageParsing, "parsing")
	tracker.StageProgress(models.StageParsing, 50, "halfway")
	tracker.StageComplete(models.StageParsing)

	want := []int{10, 20, 30} // PARSING covers 10-30 globally
	for _, expected := range want {
		select {
		case event := <-ch:
			assert.Equal(t, expected, event.Percent)
			assert.Equal(t, models.StageParsing, event.Stage)
		case <-time.After(time.Second):
			t.Fatalf("missing event at %d%%", expected)
		}
	}
}

func TestTracker_CompleteEmitsTerminalEvent(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	tracker := NewTracker("doc_1", bus, common.GetLogger())
	tracker.Complete("2 summaries generated")

	event := <-ch
	assert.Equal(t, models.EventTypeSummaryComplete, event.Type)
	assert.Equal(t, 100, event.Percent)
	assert.Equal(t, models.StageCompleted, event.Stage)

	_, ok := <-ch
	assert.False(t, ok, "terminal event ends the stream")
}

func TestTracker_FailCarriesErrorKind(t *testing.T) {
	bus := newTestBus(4, time.Minute, time.Minute)
	defer bus.Close()

	ch, cancel, err := bus.Subscribe("doc_1")
	require.NoError(t, err)
	defer cancel()

	tracker := NewTracker("doc_1", bus, common.GetLogger())
	tracker.StageStart(models.StageParsing, "parsing")
	tracker.Fail(models.StageParsing, "not a PDF", string(common.KindInvalidPDF))

	<-ch // stage start
	event := <-ch
	assert.Equal(t, models.EventTypeError, event.Type)
	assert.Equal(t, "not a PDF", event.Error)
	assert.Equal(t, string(common.KindInvalidPDF), event.ErrorKind)
	assert.Equal(t, models.StageParsing, event.Stage)

	stage, _ := tracker.Stage()
	assert.Equal(t, models.StageFailed, stage)
}
