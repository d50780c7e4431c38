package assess

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/internal/cache"
	"github.com/prospero-intel/prospero/provider"
)

// scriptedProvider routes responses by the system prompt of the incoming
// call, so tests can script each agent independently of call order.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts map[string][]string // system prompt -> queued responses
	calls   map[string]int
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{scripts: map[string][]string{}, calls: map[string]int{}}
}

func (p *scriptedProvider) script(systemPrompt string, responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[systemPrompt] = append(p.scripts[systemPrompt], responses...)
}

func (p *scriptedProvider) callCount(systemPrompt string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[systemPrompt]
}

func (p *scriptedProvider) Chat(_ context.Context, _ string, messages []provider.Message, _ provider.ChatOptions) (string, provider.Usage, error) {
	if len(messages) == 0 || messages[0].Role != "system" {
		return "", provider.Usage{}, fmt.Errorf("scripted provider: no system prompt")
	}
	system := messages[0].Content
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[system]++
	queue := p.scripts[system]
	if len(queue) == 0 {
		return "", provider.Usage{}, fmt.Errorf("scripted provider: no response queued for agent")
	}
	resp := queue[0]
	p.scripts[system] = queue[1:]
	return resp, provider.Usage{PromptTokens: 1, CompletionTokens: 1}, nil
}

func (p *scriptedProvider) Embed(context.Context, string, []string) ([][]float32, error) {
	return nil, nil
}
func (p *scriptedProvider) Verify(context.Context) error                { return nil }
func (p *scriptedProvider) CostEstimate(string, provider.Usage) float64 { return 0 }

func newTestSuite(p provider.Provider) *Suite {
	invoker := agent.NewSafeInvoker(p, cache.NewMemory(64), time.Hour, 1, nil)
	funnel := config.FunnelConfig{}.Normalize()
	routing := config.LLMRoutingConfig{Utility: "u", Assessment: "a", Synthesis: "s"}
	return NewSuite(invoker, funnel, routing, nil)
}
