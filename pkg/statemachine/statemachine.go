// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package statemachine drives a journey's steps, bindings, and transitions
// from a Manifest, serializing all event processing on a single logical
// queue (spec §4.4, §5).
package statemachine

import (
	"context"
	"errors"
	"time"

	"github.com/partnersdk/journeycore/pkg/apiclient"
	"github.com/partnersdk/journeycore/pkg/expression"
	"github.com/partnersdk/journeycore/pkg/manifest"
	"github.com/partnersdk/journeycore/pkg/observability"
	"github.com/partnersdk/journeycore/pkg/session"

	journeyerrors "github.com/partnersdk/journeycore/pkg/errors"
)

// EmitFunc delivers a named event with attributes to the page/host (spec
// §6 "Event sink: emit(name, attributes)").
type EmitFunc func(name string, payload map[string]interface{})

// Callbacks are the three lifecycle slots a StateMachine is constructed
// with (spec §4.4 "{ onStepEnter(stepId), onTerminal(step), onError(code,
// recoverable, message) }").
type Callbacks struct {
	OnStepEnter func(stepID string)
	OnTerminal  func(stepID string, step manifest.Step)
	OnError     func(code journeyerrors.Code, recoverable bool, message string)
}

// queueDepth bounds the internal event queue. Event arrival is expected to
// be driven by user interaction and a handful of API responses per step,
// never a tight producer loop, so a generous fixed depth is the single
// logical queue in practice without reaching for an unbounded structure.
const queueDepth = 256

// StateMachine drives one journey's steps from entry to a terminal state.
type StateMachine struct {
	journeyID     string
	steps         map[string]manifest.Step
	startStepID   string
	apiClient     *apiclient.Client
	sess          *session.Session
	emitToPage    EmitFunc
	callbacks     Callbacks

	queue chan func()
	ctx   context.Context

	currentStepID string
	timer         *time.Timer
	terminal      bool
}

// New constructs a StateMachine. Start must be called once to begin
// processing (spec §4.4 Entry).
func New(journeyID string, steps map[string]manifest.Step, startStepID string, apiClient *apiclient.Client, sess *session.Session, emitToPage EmitFunc, callbacks Callbacks) *StateMachine {
	sm := &StateMachine{
		journeyID:   journeyID,
		steps:       steps,
		startStepID: startStepID,
		apiClient:   apiClient,
		sess:        sess,
		emitToPage:  emitToPage,
		callbacks:   callbacks,
		queue:       make(chan func(), queueDepth),
	}
	go sm.run()
	return sm
}

func (sm *StateMachine) run() {
	for task := range sm.queue {
		task()
	}
}

func (sm *StateMachine) enqueue(task func()) {
	sm.queue <- task
}

// Start enters the manifest's startStep. ctx is retained for the lifetime
// of the journey: it is the context under which per-step timeout timers
// and their synthetic "timeout" events run, since those fire outside any
// caller's own request context.
func (sm *StateMachine) Start(ctx context.Context) {
	sm.ctx = ctx
	sm.enqueue(func() { sm.enter(ctx, sm.startStepID) })
}

// CurrentStepID returns the currently active step id.
func (sm *StateMachine) CurrentStepID() string {
	result := make(chan string, 1)
	sm.enqueue(func() { result <- sm.currentStepID })
	return <-result
}

// IsTerminal reports whether the journey has reached its absorbing state.
func (sm *StateMachine) IsTerminal() bool {
	result := make(chan bool, 1)
	sm.enqueue(func() { result <- sm.terminal })
	return <-result
}

// HandleEvent enqueues name/payload for processing and returns immediately
// (spec §4.4 handleEvent; §5 "non-blocking (enqueues)").
func (sm *StateMachine) HandleEvent(ctx context.Context, name string, payload map[string]interface{}) {
	sm.enqueue(func() { sm.processEvent(ctx, name, payload) })
}

// enter runs step entry: cancels any pending timer, emits step_enter,
// snapshots, invokes onStepEnter, and either halts (terminal) or arms a
// timeout timer (spec §4.4 Entry).
func (sm *StateMachine) enter(ctx context.Context, stepID string) {
	sm.cancelTimer()

	step, ok := sm.steps[stepID]
	if !ok {
		return
	}

	sm.currentStepID = stepID
	sm.emitToPage("step_enter", map[string]interface{}{"stepId": stepID})

	if sm.sess != nil {
		sm.sess.SaveSnapshot(ctx, sm.journeyID, stepID)
	}

	if sm.callbacks.OnStepEnter != nil {
		sm.callbacks.OnStepEnter(stepID)
	}

	if step.Type == manifest.StepTerminal {
		sm.terminal = true
		if sm.callbacks.OnTerminal != nil {
			sm.callbacks.OnTerminal(stepID, step)
		}
		return
	}

	if step.TimeoutMs != nil {
		d := time.Duration(*step.TimeoutMs) * time.Millisecond
		sm.timer = time.AfterFunc(d, func() {
			sm.enqueue(func() { sm.processEvent(sm.ctx, "timeout", map[string]interface{}{}) })
		})
	}
}

func (sm *StateMachine) cancelTimer() {
	if sm.timer != nil {
		sm.timer.Stop()
		sm.timer = nil
	}
}

// processEvent is spec §4.4 handleEvent(name, payload): bindings dispatch
// asynchronously and do not block the transition evaluated from the same
// event.
func (sm *StateMachine) processEvent(ctx context.Context, name string, payload map[string]interface{}) {
	if sm.terminal {
		return
	}

	step, ok := sm.steps[sm.currentStepID]
	if !ok {
		return
	}

	for _, binding := range step.Bindings {
		if binding.OnEvent != name {
			continue
		}
		b := binding
		go sm.dispatchBinding(ctx, step, b, payload)
	}

	transition, ok := step.On[name]
	if !ok {
		return
	}

	if transition.GuardExpr != "" {
		guardCtx := expression.Context{Payload: payload, Session: sm.sessionContext()}
		if !expression.Evaluate(transition.GuardExpr, guardCtx) {
			return
		}
	}

	if transition.Emit != "" {
		sm.emitToPage(transition.Emit, map[string]interface{}{})
	}

	if transition.To != "" {
		previousStepID := sm.currentStepID
		sm.currentStepID = transition.To
		sm.emitToPage("step_exit", map[string]interface{}{"stepId": previousStepID})
		sm.enter(ctx, transition.To)
	}
}

func (sm *StateMachine) sessionContext() map[string]interface{} {
	if sm.sess == nil {
		return map[string]interface{}{}
	}
	return map[string]interface{}{
		"resumeToken":    sm.sess.ResumeToken(),
		"idempotencyKey": sm.sess.IdempotencyKey(),
	}
}

// dispatchBinding resolves the binding's body, issues the API call, and
// reports the outcome via emitToPage/onError (spec §4.4 Binding execution).
// It runs as an independent task and never touches sm's fields directly
// except through the queue, to keep the single logical queue the only
// mutator of state-machine state.
func (sm *StateMachine) dispatchBinding(ctx context.Context, step manifest.Step, binding manifest.Binding, payload map[string]interface{}) {
	body := resolveArgsFrom(binding.Call.ArgsFrom, payload)

	result, err := sm.apiClient.Call(ctx, binding.Call.OperationID, body, binding.Call.Headers, step.IdempotencyKey)
	if err != nil {
		observability.RecordBindingDispatch(binding.Call.OperationID, "error")
		if binding.OnErrorEmit != "" {
			sm.emitToPage(binding.OnErrorEmit, map[string]interface{}{"error": err.Error()})
		}
		code, recoverable, ok := mapAPIError(err)
		if ok && sm.callbacks.OnError != nil {
			sm.callbacks.OnError(code, recoverable, err.Error())
		}
		return
	}

	observability.RecordBindingDispatch(binding.Call.OperationID, "success")
	if binding.OnSuccessEmit != "" {
		sm.emitToPage(binding.OnSuccessEmit, map[string]interface{}{"status": result.Status})
	}
	if sm.sess != nil {
		sm.enqueue(func() { sm.sess.SaveSnapshot(ctx, sm.journeyID, sm.currentStepID) })
	}
}

// resolveArgsFrom looks up a dotted path in payload; a non-mapping
// intermediate is treated as a miss (spec §4.4 Binding execution Body).
func resolveArgsFrom(argsFrom string, payload map[string]interface{}) interface{} {
	if argsFrom == "" {
		return nil
	}

	segments := splitPath(argsFrom)
	var current interface{} = payload
	for _, seg := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		v, ok := m[seg]
		if !ok {
			return nil
		}
		current = v
	}
	return current
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	segments = append(segments, path[start:])
	return segments
}

// mapAPIError derives (code, recoverable) from an apiclient error per
// spec §4.3/§7: recoverable = code ∈ {NET_TIMEOUT, RATE_LIMITED}. Bare
// transport-level failures (dial errors, timeouts with no HTTP status)
// have no entry in the §4.3 status table; this maps them to NET_TIMEOUT,
// since that is the taxonomy's only code describing a failed-to-complete
// network operation, and leaves them recoverable like any other
// NET_TIMEOUT (open question resolved in DESIGN.md).
func mapAPIError(err error) (journeyerrors.Code, bool, bool) {
	var httpErr *journeyerrors.HttpError
	if errors.As(err, &httpErr) {
		return httpErr.Mapped, httpErr.Mapped.Recoverable(), true
	}

	var retryErr *journeyerrors.RetryLimitExceededError
	if errors.As(err, &retryErr) {
		if code, recoverable, ok := mapAPIError(retryErr.LastErr); ok {
			return code, recoverable, true
		}
		return journeyerrors.CodeUnknown, false, true
	}

	var transportErr *journeyerrors.TransportError
	if errors.As(err, &transportErr) {
		return journeyerrors.CodeNetTimeout, true, true
	}

	var invalidDocErr *journeyerrors.InvalidDocumentError
	if errors.As(err, &invalidDocErr) {
		return journeyerrors.CodeUnknown, false, true
	}

	return journeyerrors.CodeUnknown, false, false
}
