package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	console "mdmc/internal/utils/logger"
)

func TestEmitDeliversToEveryHandler(t *testing.T) {
	bus := NewEventBus()
	got := make(chan string, 2)

	bus.On(LeadCreated, func(data interface{}) { got <- "first:" + data.(RecordChange).ID })
	bus.On(LeadCreated, func(data interface{}) { got <- "second:" + data.(RecordChange).ID })
	bus.Emit(LeadCreated, RecordChange{ID: "lead-1"})

	var seen []string
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			seen = append(seen, s)
		case <-time.After(time.Second):
			t.Fatal("handler not called")
		}
	}
	assert.ElementsMatch(t, []string{"first:lead-1", "second:lead-1"}, seen)
}

func TestPanickingHandlerIsContained(t *testing.T) {
	bus := NewEventBus()
	done := make(chan struct{})

	bus.On(LeadLost, func(interface{}) { panic("boom") })
	bus.On(LeadLost, func(interface{}) { close(done) })
	bus.Emit(LeadLost, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second handler not called")
	}
}

func TestReset(t *testing.T) {
	bus := NewEventBus()
	called := make(chan struct{}, 1)
	bus.On(LeadDeleted, func(interface{}) { called <- struct{}{} })
	bus.Reset()
	bus.Emit(LeadDeleted, nil)

	select {
	case <-called:
		t.Fatal("handler survived reset")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAuditSubscribesToRecordEvents(t *testing.T) {
	bus := NewEventBus()
	bus.Audit(console.New("AUDIT"))

	for _, event := range RecordEvents {
		assert.Len(t, bus.handlers[event], 1, event)
	}
	assert.Empty(t, bus.handlers[AccountPasswordResetRequest])
}
