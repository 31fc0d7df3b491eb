// Package runtime implements the External Runtime Surface: the thin layer
// that turns a StateChart's Step/Initialize pair plus its PendingSend
// buffer into something that can actually run -- either as a pure-value
// synchronous driver for tests and one-shot CLI use, or as a long-lived
// actor goroutine that owns delayed-send timers.
//
// Grounded on the teacher's statechart.go Runtime.Start/SendEvent (the
// synchronous, lock-held-only-around-state-mutation shape SendSync
// follows) and internal/core/machine.go's Machine.interpret (the
// channel-driven event loop Actor generalizes); RunAsActor's
// goroutine+context.Done+input-channel composition is Actor's direct
// ancestor.
package runtime

import (
	"fmt"

	"github.com/riddler/statifier/engine"
)

// Initialize runs a StateChart's Initialize and immediately drains any
// PendingSend it produced (onentry content can <send> before anything else
// happens), routing each through the same immediate-delivery rule SendSync
// uses.
func Initialize(sc *engine.StateChart) error {
	if err := sc.Initialize(); err != nil {
		return err
	}
	return drainSync(sc)
}

// SendSync presents one external event synchronously: Step, then drain and
// immediately resolve every PendingSend it produced. A delayed send is
// delivered with its delay collapsed to zero -- there is no clock in this
// driver -- and a warning is logged so the discrepancy is visible rather
// than silent. A send to a target other than the chart itself is logged
// and dropped: SendSync has no transport.
func SendSync(sc *engine.StateChart, eventName string, data any) error {
	if err := sc.Step(eventName, data); err != nil {
		return err
	}
	return drainSync(sc)
}

// drainSync resolves every PendingSend the chart has accumulated,
// including any further sends raised as a side effect of delivering one
// (e.g. a chain of zero-delay <send>s fired from onentry), by looping
// until a drain call comes back empty.
func drainSync(sc *engine.StateChart) error {
	for {
		pending := sc.DrainPendingSends()
		if len(pending) == 0 {
			return nil
		}
		for _, p := range pending {
			if p.DelayRaw != "" {
				sc.Log("warn", "delayed send delivered immediately by synchronous runtime", map[string]any{
					"sendid": p.ID, "delay": p.DelayRaw, "event": p.EventName,
				})
			}
			if p.Target != "" && p.Target != "#_internal" {
				sc.Log("warn", "send to external target dropped by synchronous runtime", map[string]any{
					"sendid": p.ID, "target": p.Target, "event": p.EventName,
				})
				continue
			}
			if err := sc.Step(p.EventName, p.Data); err != nil {
				return fmt.Errorf("runtime: delivering pending send %q: %w", p.EventName, err)
			}
		}
	}
}
