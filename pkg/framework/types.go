package framework

import (
	"context"
	"time"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable defines a generic interface for background runners.
type Runnable interface {
	Run(context.Context) error
}

// TimeSource provides the time for controlling logic.
type TimeSource interface {
	Time() time.Time
}

// TimeFunc is the func form of TimeSource.
type TimeFunc func() time.Time

// Time implements TimeSource.
func (f TimeFunc) Time() time.Time {
	return f()
}

// SystemTime is the wall clock.
var SystemTime TimeSource = TimeFunc(time.Now)

// Delays returned by device hooks.
const (
	// DurationImmediately asks to be called again on the next pass.
	DurationImmediately time.Duration = 0
	// DurationNever cancels the pending deadline.
	DurationNever time.Duration = -1
	// DurationIgnore keeps the pending deadline unchanged.
	DurationIgnore time.Duration = -2
)

// Device is polled by the Loop. Timeout is called once the delay it last
// returned has elapsed and returns the delay until the next call.
// Devices must be comparable, usually pointers.
type Device interface {
	Timeout(ControlContext) time.Duration
}

// Starter is implemented by devices with a start hook. The returned delay
// schedules the first Timeout.
type Starter interface {
	Start(ControlContext) time.Duration
}

// Stopper is implemented by devices with a stop hook. Run calls Stop on
// the loop goroutine once its context is done, before the background
// runnables are cancelled.
type Stopper interface {
	Stop()
}

// EventHandler is implemented by devices reacting to TriggerEvent.
type EventHandler interface {
	Event(ControlContext) time.Duration
}

// ControlContext provides the context of the current pass.
type ControlContext interface {
	TimeSource
	// Context retrieves context.Context.
	Context() context.Context

	LoopControl
}

// LoopControl exposes access to the controlling loop.
type LoopControl interface {
	// Schedule sets the delay until the next Timeout of dev.
	Schedule(dev Device, after time.Duration)
	// TriggerEvent calls Event of all devices on the next pass.
	TriggerEvent()
	// Invoke runs fn on the loop goroutine on the next pass.
	Invoke(fn func(ControlContext))
}
