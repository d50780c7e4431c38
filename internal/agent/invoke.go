package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/prospero-intel/prospero/internal/cache"
	"github.com/prospero-intel/prospero/models"
	"github.com/prospero-intel/prospero/provider"
)

// SafeInvoker wraps agent execution with content-addressed caching, bounded
// retry on validation failure, and single-flight coalescing of concurrent
// identical calls. Cache failures are logged and never abort an invocation.
type SafeInvoker struct {
	Provider   provider.Provider
	Cache      cache.Store
	TTL        time.Duration
	MaxRetries int // re-invocations after the first validation failure
	Logger     *log.Logger
	Usage      UsageRecorder // optional cost accounting sink
	Observe    Observer      // optional metrics sink

	mu       sync.Mutex
	inflight map[string]*flightCall
}

// UsageRecorder receives token usage for every live model call.
type UsageRecorder interface {
	Record(model string, usage provider.Usage)
}

// Observer receives invocation and cache events. The telemetry metrics
// satisfy it.
type Observer interface {
	AgentCall(agent, result string, seconds float64)
	CacheOp(backend, result string)
}

type flightCall struct {
	done   chan struct{}
	result Result
}

// NewSafeInvoker constructs the resilience wrapper shared by all agents.
func NewSafeInvoker(p provider.Provider, store cache.Store, ttl time.Duration, maxRetries int, logger *log.Logger) *SafeInvoker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxRetries < 0 {
		maxRetries = 1
	}
	return &SafeInvoker{
		Provider:   p,
		Cache:      store,
		TTL:        ttl,
		MaxRetries: maxRetries,
		Logger:     logger,
		inflight:   make(map[string]*flightCall),
	}
}

// CacheKey derives the stable content-addressed key for an invocation.
func CacheKey(agentName, input string) string {
	h := sha256.New()
	h.Write([]byte(agentName))
	h.Write([]byte{0})
	h.Write([]byte(input))
	return "agent:" + hex.EncodeToString(h.Sum(nil))
}

// Invoke executes the agent with read-before-invoke caching. On a cold key
// concurrent identical callers share one upstream call; on validation
// failure the call is retried up to MaxRetries times before the terminal
// typed error is returned.
func (s *SafeInvoker) Invoke(ctx context.Context, a *Agent, input string) Result {
	key := CacheKey(a.Name, input)

	if cached, ok := s.cacheGet(ctx, key); ok {
		return Result{Raw: cached}
	}

	s.mu.Lock()
	if call, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.result
		case <-ctx.Done():
			return Result{Err: &models.AIError{Agent: a.Name, Stage: "invoke", Err: ctx.Err()}}
		}
	}
	call := &flightCall{done: make(chan struct{})}
	s.inflight[key] = call
	s.mu.Unlock()

	started := time.Now()
	call.result = s.invokeWithRetry(ctx, a, input, key)
	if s.Observe != nil {
		outcome := "ok"
		if call.result.Err != nil {
			outcome = "error"
		}
		s.Observe.AgentCall(a.Name, outcome, time.Since(started).Seconds())
	}
	close(call.done)

	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()

	return call.result
}

func (s *SafeInvoker) invokeWithRetry(ctx context.Context, a *Agent, input, key string) Result {
	var last Result
	var usage provider.Usage
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		last = a.Execute(ctx, s.Provider, input)
		usage.PromptTokens += last.Usage.PromptTokens
		usage.CompletionTokens += last.Usage.CompletionTokens
		if s.Usage != nil {
			s.Usage.Record(a.Model, last.Usage)
		}
		if last.Err == nil {
			last.Usage = usage
			s.cacheSet(ctx, key, last.Raw)
			return last
		}
		if s.Logger != nil {
			s.Logger.Printf("agent %s attempt %d/%d failed: %v", a.Name, attempt+1, s.MaxRetries+1, last.Err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	last.Usage = usage
	return last
}

func (s *SafeInvoker) cacheGet(ctx context.Context, key string) (string, bool) {
	if s.Cache == nil {
		return "", false
	}
	value, ok, err := s.Cache.Get(ctx, key)
	if err != nil {
		s.observeCache("error")
		if s.Logger != nil {
			s.Logger.Printf("cache get failed, invoking live: %v", err)
		}
		return "", false
	}
	if ok {
		s.observeCache("hit")
	} else {
		s.observeCache("miss")
	}
	return value, ok
}

func (s *SafeInvoker) observeCache(result string) {
	if s.Observe != nil {
		s.Observe.CacheOp(s.Cache.Name(), result)
	}
}

func (s *SafeInvoker) cacheSet(ctx context.Context, key, value string) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Set(ctx, key, value, s.TTL); err != nil && s.Logger != nil {
		s.Logger.Printf("cache set failed: %v", err)
	}
}
