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

package statemachine_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnersdk/journeycore/pkg/apiclient"
	"github.com/partnersdk/journeycore/pkg/manifest"
	"github.com/partnersdk/journeycore/pkg/openapi"
	"github.com/partnersdk/journeycore/pkg/session"
	"github.com/partnersdk/journeycore/pkg/statemachine"
)

func int64Ptr(v int64) *int64 { return &v }

func newTestAPIClient(t *testing.T) *apiclient.Client {
	t.Helper()
	bundle := []byte(`{"servers":[{"url":"https://api.example.com"}],"paths":{"/noop":{"post":{"operationId":"noop"}}}}`)
	resolver, err := openapi.Parse(bundle)
	require.NoError(t, err)
	return apiclient.New(http.DefaultClient, resolver, "")
}

type emittedEvent struct {
	name    string
	payload map[string]interface{}
}

func collectingEmitter() (statemachine.EmitFunc, func() []emittedEvent) {
	var mu sync.Mutex
	var events []emittedEvent
	emit := func(name string, payload map[string]interface{}) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, emittedEvent{name: name, payload: payload})
	}
	snapshot := func() []emittedEvent {
		mu.Lock()
		defer mu.Unlock()
		out := make([]emittedEvent, len(events))
		copy(out, events)
		return out
	}
	return emit, snapshot
}

// S3 (spec §8 scenario S3 "Guard blocks then allows").
func TestHandleEventGuardBlocksThenAllows(t *testing.T) {
	steps := map[string]manifest.Step{
		"g": {
			Type: manifest.StepWeb,
			On: map[string]manifest.Transition{
				"go": {To: "dest", GuardExpr: "payload.value == 2"},
			},
		},
		"dest": {Type: manifest.StepTerminal},
	}

	emit, _ := collectingEmitter()
	sm := statemachine.New("j1", steps, "g", newTestAPIClient(t), nil, emit, statemachine.Callbacks{})
	sm.Start(context.Background())

	sm.HandleEvent(context.Background(), "go", map[string]interface{}{"value": float64(1)})
	require.Eventually(t, func() bool { return sm.CurrentStepID() == "g" }, 50*time.Millisecond, 2*time.Millisecond)

	sm.HandleEvent(context.Background(), "go", map[string]interface{}{"value": float64(2)})
	require.Eventually(t, func() bool { return sm.CurrentStepID() == "dest" }, 50*time.Millisecond, 2*time.Millisecond)
}

// S4 (spec §8 scenario S4 "Timeout synth event").
func TestStepTimeoutFiresSyntheticEvent(t *testing.T) {
	steps := map[string]manifest.Step{
		"step2": {
			Type:      manifest.StepWeb,
			TimeoutMs: int64Ptr(50),
			On: map[string]manifest.Transition{
				"timeout": {To: "step3"},
			},
		},
		"step3": {Type: manifest.StepTerminal},
	}

	emit, _ := collectingEmitter()
	sm := statemachine.New("j1", steps, "step2", newTestAPIClient(t), nil, emit, statemachine.Callbacks{})
	sm.Start(context.Background())

	require.Eventually(t, func() bool { return sm.CurrentStepID() == "step3" }, 120*time.Millisecond, 5*time.Millisecond)
}

func TestTerminalStepHaltsProcessing(t *testing.T) {
	steps := map[string]manifest.Step{
		"start": {
			Type: manifest.StepWeb,
			On:   map[string]manifest.Transition{"go": {To: "end"}},
		},
		"end": {Type: manifest.StepTerminal},
	}

	var terminalCount int
	var mu sync.Mutex
	emit, _ := collectingEmitter()
	sm := statemachine.New("j1", steps, "start", newTestAPIClient(t), nil, emit, statemachine.Callbacks{
		OnTerminal: func(stepID string, step manifest.Step) {
			mu.Lock()
			terminalCount++
			mu.Unlock()
		},
	})
	sm.Start(context.Background())

	sm.HandleEvent(context.Background(), "go", map[string]interface{}{})
	require.Eventually(t, func() bool { return sm.IsTerminal() }, 50*time.Millisecond, 2*time.Millisecond)

	sm.HandleEvent(context.Background(), "go", map[string]interface{}{})
	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, terminalCount)
}

func TestSessionSnapshotWrittenOnStepEntry(t *testing.T) {
	steps := map[string]manifest.Step{
		"start": {Type: manifest.StepTerminal},
	}

	emit, _ := collectingEmitter()
	store := session.NewMemoryStore()
	sess := session.Start(store, "tok")
	sm := statemachine.New("j1", steps, "start", newTestAPIClient(t), sess, emit, statemachine.Callbacks{})
	sm.Start(context.Background())

	require.Eventually(t, func() bool {
		snap, ok := sess.LoadSnapshot(context.Background(), "resume")
		return ok && snap.StepPointer == "start"
	}, 50*time.Millisecond, 2*time.Millisecond)
}
