package engine

import (
	"github.com/google/uuid"

	"github.com/riddler/statifier/actions"
	"github.com/riddler/statifier/datamodel"
	"github.com/riddler/statifier/document"
	"github.com/riddler/statifier/eval"
	"github.com/riddler/statifier/logging"
)

// EventKind classifies an Event the way SCXML's _event.type does.
type EventKind string

const (
	KindPlatform EventKind = "platform"
	KindInternal EventKind = "internal"
	KindExternal EventKind = "external"
)

// Event is one item flowing through the internal queue or presented from
// outside via Step.
type Event struct {
	Name     string
	Kind     EventKind
	Data     any
	SendID   string
	InvokeID string
}

// PendingSend is a <send> whose delivery is not this package's concern: a
// zero-delay send to a non-internal target, or any delayed send regardless
// of target. The embedding runtime (package runtime) drains these via
// DrainPendingSends and owns the actual timer/transport.
type PendingSend struct {
	ID        string
	Target    string
	EventName string
	Data      any
	DelayRaw  string
}

// Option configures a StateChart at construction.
type Option func(*StateChart)

// WithLogger installs a logging.Adapter. Defaults to an in-memory
// MemoryAdapter with capacity 0 (which NewMemoryAdapter rounds up to 256)
// at Info level if omitted.
func WithLogger(l logging.Adapter) Option {
	return func(sc *StateChart) { sc.logger = l }
}

// WithInvokeHandler registers h to serve <invoke type="name">.
func WithInvokeHandler(name string, h actions.InvokeHandler) Option {
	return func(sc *StateChart) { sc.invokes[name] = h }
}

// StateChart is a running instance of a Document: its active configuration,
// datamodel, history, and pending internal/external work. It implements
// actions.Context, letting executable content mutate the chart it runs
// inside without actions importing this package.
//
// Grounded on the teacher's internal/core/machine.go Machine: a mutable
// runtime object wrapping a compiled document, generalized from Machine's
// single-active-path model to a full multi-leaf Configuration, and from its
// RWMutex-guarded goroutine/channel event loop to a synchronous
// Initialize/Step pair — concurrency and timers are runtime's job
// (package runtime), not the Step Engine's.
type StateChart struct {
	doc       *document.Document
	config    *Configuration
	data      datamodel.Tree
	history   *HistoryTracker
	evaluator *eval.Adapter
	logger    logging.Adapter
	invokes   map[string]actions.InvokeHandler

	internalQueue []Event
	currentEvent  Event

	pending   []PendingSend
	cancelled map[string]bool

	invocations map[string]invocation
}

// invocation is a live <invoke>, tracked by id so an external event can be
// forwarded to it (autoforward="true") and so it can be cancelled when its
// invoking state exits.
type invocation struct {
	autoForward bool
	handle      actions.Invocation
}

// New constructs a StateChart over doc. Call Initialize before Step.
func New(doc *document.Document, opts ...Option) *StateChart {
	sc := &StateChart{
		doc:         doc,
		config:      NewConfiguration(doc),
		data:        datamodel.Tree{},
		history:     NewHistoryTracker(),
		evaluator:   eval.NewAdapter(),
		logger:      logging.NewMemoryAdapter(0, logging.Info),
		invokes:     make(map[string]actions.InvokeHandler),
		cancelled:   make(map[string]bool),
		invocations: make(map[string]invocation),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Configuration returns the chart's active-state set.
func (sc *StateChart) Configuration() *Configuration { return sc.config }

// Document returns the chart's underlying Document.
func (sc *StateChart) Document() *document.Document { return sc.doc }

// History returns the chart's history tracker.
func (sc *StateChart) History() *HistoryTracker { return sc.history }

// DrainPendingSends returns every PendingSend accumulated since the last
// call, clearing the internal buffer and skipping any whose id was
// cancelled via <cancel> in the meantime.
func (sc *StateChart) DrainPendingSends() []PendingSend {
	out := make([]PendingSend, 0, len(sc.pending))
	for _, p := range sc.pending {
		if sc.cancelled[p.ID] {
			delete(sc.cancelled, p.ID)
			continue
		}
		out = append(out, p)
	}
	sc.pending = nil
	return out
}

// DrainCancellations returns and clears every send id cancelled via
// <cancel> since the last call. A runtime that has already handed a
// PendingSend off to its own timer (the Actor does) needs this: by the
// time <cancel> runs, DrainPendingSends has long since taken that send out
// of sc.pending, so CancelSend's effect would otherwise be invisible to
// anything outside this package.
func (sc *StateChart) DrainCancellations() []string {
	if len(sc.cancelled) == 0 {
		return nil
	}
	out := make([]string, 0, len(sc.cancelled))
	for id := range sc.cancelled {
		out = append(out, id)
	}
	sc.cancelled = make(map[string]bool)
	return out
}

// --- actions.Context ---

func (sc *StateChart) Data() datamodel.Tree { return sc.data }

func (sc *StateChart) SetData(t datamodel.Tree) { sc.data = t }

func (sc *StateChart) EvalContext() eval.Context {
	return eval.Context{
		Data: sc.data,
		Event: eval.Event{
			Name: sc.currentEvent.Name,
			Type: string(sc.currentEvent.Kind),
			Data: sc.currentEvent.Data,
		},
		InState: func(stateID string) bool {
			return sc.config.IsActive(document.StateID(stateID))
		},
	}
}

func (sc *StateChart) Evaluator() *eval.Adapter { return sc.evaluator }

func (sc *StateChart) RaiseInternal(name string, data any) {
	sc.internalQueue = append(sc.internalQueue, Event{Name: name, Kind: KindInternal, Data: data})
}

// ScheduleSend implements actions.Context. A zero-delay send targeting the
// internal event delivery scheme ("" or "#_internal") is indistinguishable
// from <raise> and goes straight onto the internal queue; everything else
// (a real delay, or a non-internal target) is recorded as a PendingSend for
// the embedding runtime to actually deliver.
func (sc *StateChart) ScheduleSend(target, eventName string, data any, delay string, sendID string) {
	if target == "#_cancel" {
		sc.CancelSend(eventName)
		return
	}
	if sendID == "" {
		sendID = uuid.NewString()
	}
	if (target == "" || target == "#_internal") && delay == "" {
		sc.internalQueue = append(sc.internalQueue, Event{Name: eventName, Kind: KindInternal, Data: data, SendID: sendID})
		return
	}
	sc.pending = append(sc.pending, PendingSend{ID: sendID, Target: target, EventName: eventName, Data: data, DelayRaw: delay})
}

func (sc *StateChart) CancelSend(sendID string) {
	sc.cancelled[sendID] = true
}

// Log forwards to the installed adapter, auto-attaching the chart's
// current active leaves and current event name to metadata so every log
// record is traceable back to the exact step that produced it without
// every call site threading that context through by hand.
func (sc *StateChart) Log(level string, message string, metadata map[string]any) {
	sc.logger.Log(parseLevel(level), message, sc.withCoreMetadata(metadata))
}

func (sc *StateChart) withCoreMetadata(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}
	leaves := sc.config.ActiveLeaves()
	active := make([]string, len(leaves))
	for i, id := range leaves {
		active[i] = string(id)
	}
	out["active_leaves"] = active
	out["event"] = sc.currentEvent.Name
	return out
}

func (sc *StateChart) InState(stateID string) bool {
	return sc.config.IsActive(document.StateID(stateID))
}

func (sc *StateChart) InvokeHandler(invokeType string) (actions.InvokeHandler, bool) {
	h, ok := sc.invokes[invokeType]
	return h, ok
}

// RegisterInvocation records a live <invoke>'s handle under its id, so a
// later external event can be forwarded to it (autoForward) and exiting
// the invoking state can cancel it. A blank id means the invocation is
// never individually addressable; it is still cancelled, just not by id.
func (sc *StateChart) RegisterInvocation(id string, autoForward bool, handle actions.Invocation) {
	sc.invocations[id] = invocation{autoForward: autoForward, handle: handle}
}

// cancelInvocation cancels and forgets the invocation registered under id,
// a no-op if none is registered (the invoke never started, or already
// finished, or was already cancelled).
func (sc *StateChart) cancelInvocation(id string) {
	inv, ok := sc.invocations[id]
	if !ok {
		return
	}
	inv.handle.Cancel()
	delete(sc.invocations, id)
}

// forwardToInvocations relays an external event to every live invocation
// started with autoforward="true", per the <invoke> contract.
func (sc *StateChart) forwardToInvocations(eventName string, data any) {
	for _, inv := range sc.invocations {
		if inv.autoForward {
			inv.handle.Forward(eventName, data)
		}
	}
}

func parseLevel(level string) logging.Level {
	switch level {
	case "trace":
		return logging.Trace
	case "debug":
		return logging.Debug
	case "warn":
		return logging.Warn
	case "error":
		return logging.Error
	default:
		return logging.Info
	}
}
