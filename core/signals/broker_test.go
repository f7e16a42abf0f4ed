package signals

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventFor(t *testing.T) {
	assert.Equal(t, Interrupt, EventFor(syscall.SIGINT))
	assert.Equal(t, Suspend, EventFor(syscall.SIGTSTP))
	assert.Equal(t, Event(0), EventFor(syscall.SIGHUP))
}

func TestEvent_notice(t *testing.T) {
	assert.Equal(t, "Caught {Ctrl+C}, Type 'exit' to quit.", Interrupt.Notice())
	assert.Equal(t, "Caught {Ctrl+Z}", Suspend.Notice())
	assert.Equal(t, "interrupt", Interrupt.String())
	assert.Equal(t, "suspend", Suspend.String())
}

func TestBroker_survivesSignals(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	for _, sig := range []syscall.Signal{syscall.SIGINT, syscall.SIGTSTP} {
		assert.NoError(t, syscall.Kill(os.Getpid(), sig))
	}

	var got []Event
	assert.Eventually(t, func() bool {
		got = append(got, b.Drain()...)
		return len(got) >= 2
	}, 5*time.Second, 10*time.Millisecond)

	assert.ElementsMatch(t, []Event{Interrupt, Suspend}, got)
	assert.Empty(t, b.Drain())
}

func TestBroker_coalesces(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	for i := 0; i < queueSize*4; i++ {
		assert.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
	}

	// Give the runtime time to deliver, then make sure nothing blocked.
	time.Sleep(100 * time.Millisecond)
	got := b.Drain()
	assert.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), queueSize)
}

func TestBroker_nil(t *testing.T) {
	var b *Broker
	assert.Nil(t, b.Events())
	assert.Nil(t, b.Drain())
}

func TestBroker_stopIdempotent(t *testing.T) {
	b := NewBroker()
	b.Start()
	b.Stop()
	b.Stop()
}
