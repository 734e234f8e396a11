package framework

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Loop polls devices cooperatively. Each device hook returns the delay until
// its next Timeout; the loop sleeps until the earliest deadline or until it
// is woken by Schedule, TriggerEvent or Invoke.
type Loop struct {
	Time TimeSource

	devices []*deviceEntry
	runners []Runnable

	invokes      invokeList
	eventPending bool
	started      bool
	lock         sync.Mutex

	wakeUpCh chan struct{}
}

type deviceEntry struct {
	dev   Device
	next  time.Time
	armed bool
}

type loopPass struct {
	*Loop
	ctx  context.Context
	time time.Time
}

type invokeList struct {
	head *invokeItem
	tail *invokeItem
}

type invokeItem struct {
	fn   func(ControlContext)
	next *invokeItem
}

func (l *invokeList) append(item *invokeItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
}

func (l *invokeList) splice(src *invokeList) {
	l.head, l.tail, src.head, src.tail = src.head, src.tail, nil, nil
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{Time: SystemTime, wakeUpCh: make(chan struct{}, 1)}
}

// AddDevice registers devices. Devices implementing Runnable are also run in
// the background while the loop runs.
func (l *Loop) AddDevice(devs ...Device) *Loop {
	l.lock.Lock()
	defer l.lock.Unlock()
	for _, dev := range devs {
		l.devices = append(l.devices, &deviceEntry{dev: dev})
		if runner, ok := dev.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. Once ctx is done, Stop hooks run on the loop
// goroutine before the background runnables are cancelled.
func (l *Loop) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runner := NewRunnerWith(runCtx)
	runner.Go(l.runners...)
	defer func() {
		l.stop()
		cancel()
		if err := runner.Wait(); err != nil {
			glog.Errorf("loop: %v", err)
		}
	}()

	for {
		var timer *time.Timer
		var timeout <-chan time.Time
		if wait := l.Poll(ctx); wait >= 0 {
			timer = time.NewTimer(wait)
			timeout = timer.C
		}
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-timeout:
		case <-l.wakeUpCh:
			if timer != nil {
				timer.Stop()
			}
		}
	}
}

func (l *Loop) stop() {
	l.lock.Lock()
	entries := append([]*deviceEntry(nil), l.devices...)
	l.lock.Unlock()
	for _, e := range entries {
		if s, ok := e.dev.(Stopper); ok {
			s.Stop()
		}
	}
}

// Poll runs one pass: start hooks on the first pass, invoked funcs, event
// hooks if triggered, then every device whose deadline has passed.
// It returns the delay until the earliest deadline, or DurationNever.
func (l *Loop) Poll(ctx context.Context) time.Duration {
	pass := &loopPass{Loop: l, ctx: ctx, time: l.now()}
	var invokes invokeList
	l.lock.Lock()
	invokes.splice(&l.invokes)
	event, start := l.eventPending, !l.started
	l.eventPending, l.started = false, true
	entries := append([]*deviceEntry(nil), l.devices...)
	l.lock.Unlock()

	if start {
		for _, e := range entries {
			d := DurationImmediately
			if s, ok := e.dev.(Starter); ok {
				d = s.Start(pass)
			}
			l.apply(e, pass.time, d)
		}
	}
	for item := invokes.head; item != nil; item = item.next {
		item.fn(pass)
	}
	if event {
		for _, e := range entries {
			if h, ok := e.dev.(EventHandler); ok {
				l.apply(e, pass.time, h.Event(pass))
			}
		}
	}
	for _, e := range entries {
		if l.due(e, pass.time) {
			l.apply(e, pass.time, e.dev.Timeout(pass))
		}
	}
	return l.nextWait(pass.time)
}

// Schedule implements LoopControl.
func (l *Loop) Schedule(dev Device, after time.Duration) {
	now := l.now()
	l.lock.Lock()
	var found *deviceEntry
	for _, e := range l.devices {
		if e.dev == dev {
			found = e
			break
		}
	}
	l.lock.Unlock()
	if found == nil {
		glog.Warningf("schedule: device %T not in loop", dev)
		return
	}
	l.apply(found, now, after)
	l.wakeUp()
}

// TriggerEvent implements LoopControl.
func (l *Loop) TriggerEvent() {
	l.lock.Lock()
	l.eventPending = true
	l.lock.Unlock()
	l.wakeUp()
}

// Invoke implements LoopControl.
func (l *Loop) Invoke(fn func(ControlContext)) {
	l.lock.Lock()
	l.invokes.append(&invokeItem{fn: fn})
	l.lock.Unlock()
	l.wakeUp()
}

func (l *Loop) now() time.Time {
	if l.Time == nil {
		return time.Now()
	}
	return l.Time.Time()
}

func (l *Loop) wakeUp() {
	if l.wakeUpCh == nil {
		return
	}
	select {
	case l.wakeUpCh <- struct{}{}:
	default:
	}
}

func (l *Loop) apply(e *deviceEntry, now time.Time, d time.Duration) {
	l.lock.Lock()
	defer l.lock.Unlock()
	switch {
	case d == DurationIgnore:
	case d < 0:
		e.armed = false
	default:
		e.next, e.armed = now.Add(d), true
	}
}

func (l *Loop) due(e *deviceEntry, now time.Time) bool {
	l.lock.Lock()
	defer l.lock.Unlock()
	return e.armed && !now.Before(e.next)
}

func (l *Loop) nextWait(now time.Time) time.Duration {
	l.lock.Lock()
	defer l.lock.Unlock()
	wait := DurationNever
	for _, e := range l.devices {
		if !e.armed {
			continue
		}
		d := e.next.Sub(now)
		if d < 0 {
			d = 0
		}
		if wait < 0 || d < wait {
			wait = d
		}
	}
	if l.invokes.head != nil || l.eventPending {
		wait = 0
	}
	return wait
}

func (p *loopPass) Context() context.Context {
	return p.ctx
}

func (p *loopPass) Time() time.Time {
	return p.time
}
