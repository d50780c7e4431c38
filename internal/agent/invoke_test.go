package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prospero-intel/prospero/internal/cache"
	"github.com/prospero-intel/prospero/provider"
)

// fakeProvider returns scripted responses in order, repeating the last one.
type fakeProvider struct {
	mu        sync.Mutex
	responses []string
	calls     int
}

func (f *fakeProvider) Chat(_ context.Context, _ string, _ []provider.Message, _ provider.ChatOptions) (string, provider.Usage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	f.calls++
	return f.responses[i], provider.Usage{PromptTokens: 10, CompletionTokens: 5}, nil
}

func (f *fakeProvider) Embed(context.Context, string, []string) ([][]float32, error) {
	return nil, nil
}
func (f *fakeProvider) Verify(context.Context) error                  { return nil }
func (f *fakeProvider) CostEstimate(string, provider.Usage) float64   { return 0 }
func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

const scoreSchema = `{"type":"object","required":["score"],"properties":{"score":{"type":"integer"}}}`

func TestInvokeRetryBound(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"wrong": true}`}}
	inv := NewSafeInvoker(fake, cache.NewMemory(8), time.Hour, 1, nil)
	a := &Agent{Name: "retry-bound", Model: "m", Schema: scoreSchema}

	res := inv.Invoke(context.Background(), a, "input")
	if res.Err == nil {
		t.Fatalf("expected terminal error for schema-invalid output")
	}
	if got := fake.callCount(); got != 2 { // 1 + MaxRetries
		t.Fatalf("provider invoked %d times, want 2", got)
	}
}

func TestInvokeRetrySucceedsSecondAttempt(t *testing.T) {
	fake := &fakeProvider{responses: []string{`not json`, `{"score": 7}`}}
	inv := NewSafeInvoker(fake, cache.NewMemory(8), time.Hour, 1, nil)
	a := &Agent{Name: "retry-recover", Model: "m", Schema: scoreSchema}

	res := inv.Invoke(context.Background(), a, "input")
	if res.Err != nil {
		t.Fatalf("expected recovery on retry: %v", res.Err)
	}
	if res.Usage.Total() != 30 { // usage accumulated across both attempts
		t.Fatalf("accumulated usage = %d, want 30", res.Usage.Total())
	}
}

func TestInvokeWriteThroughAndReadBeforeInvoke(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"score": 7}`}}
	inv := NewSafeInvoker(fake, cache.NewMemory(8), time.Hour, 1, nil)
	a := &Agent{Name: "cached", Model: "m", Schema: scoreSchema}

	first := inv.Invoke(context.Background(), a, "input")
	if first.Err != nil {
		t.Fatalf("first invoke: %v", first.Err)
	}
	second := inv.Invoke(context.Background(), a, "input")
	if second.Err != nil {
		t.Fatalf("second invoke: %v", second.Err)
	}
	if second.Raw != first.Raw {
		t.Fatalf("cached raw differs: %q vs %q", second.Raw, first.Raw)
	}
	if got := fake.callCount(); got != 1 {
		t.Fatalf("provider invoked %d times, want 1 (second call must hit cache)", got)
	}
}

func TestInvokeSingleFlightCoalesces(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"score": 7}`}}
	inv := NewSafeInvoker(fake, nil, time.Hour, 0, nil) // no cache, coalescing only
	a := &Agent{Name: "flight", Model: "m", Schema: scoreSchema}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if res := inv.Invoke(context.Background(), a, "same input"); res.Err != nil {
				t.Errorf("invoke: %v", res.Err)
			}
		}()
	}
	wg.Wait()
	// Calls may exceed 1 if a goroutine starts after a flight completes,
	// but must be far below the caller count.
	if got := fake.callCount(); got > 4 {
		t.Fatalf("expected coalesced upstream calls, got %d", got)
	}
}

type recordingObserver struct {
	mu         sync.Mutex
	agentCalls []string
	cacheOps   []string
}

func (o *recordingObserver) AgentCall(agent, result string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.agentCalls = append(o.agentCalls, agent+"/"+result)
}

func (o *recordingObserver) CacheOp(backend, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cacheOps = append(o.cacheOps, backend+"/"+result)
}

func TestInvokeReportsObserverEvents(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"score": 7}`}}
	obs := &recordingObserver{}
	inv := NewSafeInvoker(fake, cache.NewMemory(8), time.Hour, 1, nil)
	inv.Observe = obs
	a := &Agent{Name: "observed", Model: "m", Schema: scoreSchema}

	inv.Invoke(context.Background(), a, "input")
	inv.Invoke(context.Background(), a, "input") // served from cache

	if want := []string{"memory/miss", "memory/hit"}; len(obs.cacheOps) != 2 ||
		obs.cacheOps[0] != want[0] || obs.cacheOps[1] != want[1] {
		t.Fatalf("cache ops = %v, want %v", obs.cacheOps, want)
	}
	// Only the cold call reaches the model, so exactly one agent event.
	if len(obs.agentCalls) != 1 || obs.agentCalls[0] != "observed/ok" {
		t.Fatalf("agent calls = %v", obs.agentCalls)
	}
}

func TestInvokeReportsObserverErrorOutcome(t *testing.T) {
	fake := &fakeProvider{responses: []string{`{"wrong": true}`}}
	obs := &recordingObserver{}
	inv := NewSafeInvoker(fake, nil, time.Hour, 0, nil)
	inv.Observe = obs
	a := &Agent{Name: "observed-fail", Model: "m", Schema: scoreSchema}

	if res := inv.Invoke(context.Background(), a, "input"); res.Err == nil {
		t.Fatalf("expected validation failure")
	}
	if len(obs.agentCalls) != 1 || obs.agentCalls[0] != "observed-fail/error" {
		t.Fatalf("agent calls = %v", obs.agentCalls)
	}
}

func TestCacheKeyStableAndDistinct(t *testing.T) {
	k1 := CacheKey("agent-a", "input")
	k2 := CacheKey("agent-a", "input")
	k3 := CacheKey("agent-b", "input")
	if k1 != k2 {
		t.Fatalf("same inputs produced different keys")
	}
	if k1 == k3 {
		t.Fatalf("different agents produced the same key")
	}
}
