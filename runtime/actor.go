package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riddler/statifier/engine"
)

// inboundEvent is one item crossing the Actor's input channel: an external
// event to Step with, or a delayed send whose timer just fired.
type inboundEvent struct {
	name string
	data any
}

// Actor drives a StateChart from its own goroutine, serializing external
// events and delayed-send deliveries through a single input channel so the
// chart itself never needs its own locking. Grounded on the teacher's
// statechart.go RunAsActor (goroutine + context.Done + input channel) and
// internal/core/machine.go's Machine (buffered channel event loop with a
// done channel for graceful shutdown), generalized with real delayed-send
// timers keyed by send id so <cancel sendid="..."> can actually stop a
// pending delivery instead of only being able to ignore it on arrival.
type Actor struct {
	sc     *engine.StateChart
	input  chan inboundEvent
	cancel chan string
	done   chan struct{}

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewActor wraps sc. Call Run in its own goroutine, then Send/CancelSend from
// any goroutine; call Stop to shut it down.
func NewActor(sc *engine.StateChart) *Actor {
	return &Actor{
		sc:     sc,
		input:  make(chan inboundEvent, 64),
		cancel: make(chan string, 64),
		done:   make(chan struct{}),
		timers: make(map[string]*time.Timer),
	}
}

// Send enqueues an external event for delivery. Safe to call concurrently;
// blocks if the actor's input buffer is full.
func (a *Actor) Send(eventName string, data any) {
	select {
	case a.input <- inboundEvent{name: eventName, data: data}:
	case <-a.done:
	}
}

// Stop ends the Run loop and cancels every outstanding delayed-send timer.
func (a *Actor) Stop() {
	select {
	case <-a.done:
		return
	default:
		close(a.done)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, timer := range a.timers {
		timer.Stop()
		delete(a.timers, id)
	}
}

// Run initializes the chart and processes events until ctx is cancelled or
// Stop is called. It owns the chart for its entire lifetime: nothing else
// should call sc.Step/Initialize concurrently.
func (a *Actor) Run(ctx context.Context) error {
	// Deliberately calls sc.Initialize directly rather than this package's
	// own Initialize: that helper drains pending sends synchronously
	// (collapsing every delay to zero), which would fire a real <send
	// delay="..."> before scheduleDelayed ever got a chance to arm a timer
	// for it.
	if err := a.sc.Initialize(); err != nil {
		return err
	}
	a.scheduleDelayed()
	a.applyCancellations()

	for {
		select {
		case <-ctx.Done():
			a.Stop()
			return nil
		case <-a.done:
			return nil
		case sendID := <-a.cancel:
			a.mu.Lock()
			if timer, ok := a.timers[sendID]; ok {
				timer.Stop()
				delete(a.timers, sendID)
			}
			a.mu.Unlock()
		case ev := <-a.input:
			if err := a.sc.Step(ev.name, ev.data); err != nil {
				return err
			}
			a.scheduleDelayed()
			a.applyCancellations()
		}
	}
}

// applyCancellations stops and forgets the timer for every send id the
// chart has recorded a <cancel> against since the last call.
func (a *Actor) applyCancellations() {
	ids := a.sc.DrainCancellations()
	if len(ids) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, id := range ids {
		if timer, ok := a.timers[id]; ok {
			timer.Stop()
			delete(a.timers, id)
		}
	}
}

// scheduleDelayed drains the chart's PendingSend buffer, delivering
// zero-delay internal-target sends immediately (mirroring SendSync) and
// arming a time.Timer for delayed internal-target sends, keyed by send id
// so a later <cancel> (drained by applyCancellations) or CancelSend can
// stop it. Sends to any other target are logged and dropped.
func (a *Actor) scheduleDelayed() {
	for _, p := range a.sc.DrainPendingSends() {
		if p.DelayRaw == "" && (p.Target == "" || p.Target == "#_internal") {
			if err := a.sc.Step(p.EventName, p.Data); err == nil {
				a.scheduleDelayed()
			}
			continue
		}

		delay, err := time.ParseDuration(p.DelayRaw)
		if err != nil {
			a.sc.Log("warn", "unparseable send delay, delivering immediately", map[string]any{
				"sendid": p.ID, "delay": p.DelayRaw, "error": err.Error(),
			})
			delay = 0
		}
		if p.Target != "" && p.Target != "#_internal" {
			a.sc.Log("warn", "send to external target not transported by actor runtime", map[string]any{
				"sendid": p.ID, "target": p.Target, "event": p.EventName,
			})
			continue
		}

		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		timer := time.AfterFunc(delay, func() {
			a.Send(p.EventName, p.Data)
		})
		a.mu.Lock()
		a.timers[id] = timer
		a.mu.Unlock()
	}
}

// CancelSend requests that a pending delayed send (by send id) never fire.
// Safe to call concurrently; a no-op if the send already fired or was
// never scheduled.
func (a *Actor) CancelSend(sendID string) {
	select {
	case a.cancel <- sendID:
	case <-a.done:
	}
}
