// Package signals keeps interactive interrupt and suspend signals from
// killing or stopping the shell.
//
// Delivery only queues an Event. Anything visible, like printing a notice,
// is left to the control loop after it observes the event.
package signals

import (
	"fmt"
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// Event is the kind of signal observed.
type Event int

const (
	// Interrupt is Ctrl+C (SIGINT).
	Interrupt Event = iota + 1
	// Suspend is Ctrl+Z (SIGTSTP).
	Suspend
)

func (e Event) String() string {
	switch e {
	case Interrupt:
		return "interrupt"
	case Suspend:
		return "suspend"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// Notice is the message shown to the user after the event.
func (e Event) Notice() string {
	switch e {
	case Interrupt:
		return "Caught {Ctrl+C}, Type 'exit' to quit."
	case Suspend:
		return "Caught {Ctrl+Z}"
	default:
		return ""
	}
}

// EventFor maps an OS signal to an Event, returning 0 for other signals.
func EventFor(sig os.Signal) Event {
	switch sig {
	case unix.SIGINT:
		return Interrupt
	case unix.SIGTSTP:
		return Suspend
	default:
		return 0
	}
}

// queueSize bounds how many unobserved events are kept, extras coalesce.
const queueSize = 16

// Broker subscribes to the interactive signals.
type Broker struct {
	sigs   chan os.Signal
	events chan Event
	stop   chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewBroker creates a broker, call Start to begin intercepting.
func NewBroker() *Broker {
	return &Broker{
		sigs:   make(chan os.Signal, queueSize),
		events: make(chan Event, queueSize),
		stop:   make(chan struct{}),
	}
}

// Start installs the handlers. From here on SIGINT and SIGTSTP no longer
// terminate or stop the process.
func (b *Broker) Start() {
	b.startOnce.Do(func() {
		signal.Notify(b.sigs, unix.SIGINT, unix.SIGTSTP)
		go b.forward()
	})
}

func (b *Broker) forward() {
	for {
		select {
		case <-b.stop:
			return
		case sig := <-b.sigs:
			ev := EventFor(sig)
			if ev == 0 {
				continue
			}
			select {
			case b.events <- ev:
			default:
				// Queue full, the loop hasn't caught up yet.
			}
		}
	}
}

// Stop restores default signal handling.
func (b *Broker) Stop() {
	b.stopOnce.Do(func() {
		signal.Stop(b.sigs)
		close(b.stop)
	})
}

// Events delivers observed events. A nil Broker returns a nil channel, which
// blocks forever in a select.
func (b *Broker) Events() <-chan Event {
	if b == nil {
		return nil
	}
	return b.events
}

// Drain returns every queued event without blocking.
func (b *Broker) Drain() []Event {
	if b == nil {
		return nil
	}

	var out []Event
	for {
		select {
		case ev := <-b.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}
