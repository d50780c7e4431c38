package ragchat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/internal/cache"
	"github.com/prospero-intel/prospero/internal/vector"
	"github.com/prospero-intel/prospero/provider"
	"github.com/prospero-intel/prospero/tools/web_search"
)

type scriptedProvider struct {
	mu      sync.Mutex
	scripts map[string][]string
	embed   [][]float32
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{scripts: map[string][]string{}}
}

func (p *scriptedProvider) script(systemPrompt string, responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[systemPrompt] = append(p.scripts[systemPrompt], responses...)
}

func (p *scriptedProvider) Chat(_ context.Context, _ string, messages []provider.Message, _ provider.ChatOptions) (string, provider.Usage, error) {
	if len(messages) == 0 || messages[0].Role != "system" {
		return "", provider.Usage{}, fmt.Errorf("no system prompt")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	queue := p.scripts[messages[0].Content]
	if len(queue) == 0 {
		return "", provider.Usage{}, fmt.Errorf("no response queued")
	}
	resp := queue[0]
	p.scripts[messages[0].Content] = queue[1:]
	return resp, provider.Usage{}, nil
}

func (p *scriptedProvider) Embed(_ context.Context, _ string, input []string) ([][]float32, error) {
	out := make([][]float32, len(input))
	for i := range out {
		if i < len(p.embed) {
			out[i] = p.embed[i]
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}
func (p *scriptedProvider) Verify(context.Context) error                { return nil }
func (p *scriptedProvider) CostEstimate(string, provider.Usage) float64 { return 0 }

func newTestOrchestrator(t *testing.T, p provider.Provider) *Orchestrator {
	t.Helper()
	index, err := vector.NewIndex()
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	invoker := agent.NewSafeInvoker(p, cache.NewMemory(64), time.Hour, 0, nil)
	cfg := config.ChatConfig{}.Normalize()
	routing := config.LLMRoutingConfig{Utility: "u", Chat: "c", Embedding: "e"}
	return New(cfg, invoker, p, routing, index, nil, web_search.Nop{}, nil)
}

const planResponse = `{"reasoning": "look up the sale", "steps": ["search archive"], "queries": ["weber bakery sale"]}`

func TestChatRefusesUngroundedAnswer(t *testing.T) {
	p := newScriptedProvider()
	p.script(plannerPrompt, planResponse)
	p.script(expanderPrompt, `{"variants": ["bakery chain sold"]}`)
	p.script(generatorPrompt, `{"parts": [{"text": "Anna Weber bought a yacht.", "provenance": "llm"}]}`)
	p.script(validatorPrompt, `{"is_grounded": false, "critique": "yacht purchase absent from context"}`)

	o := newTestOrchestrator(t, p)
	resp, err := o.Chat(context.Background(), []provider.Message{{Role: "user", Content: "What did Anna Weber buy?"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Answer != RefusalAnswer {
		t.Fatalf("ungrounded answer surfaced: %q", resp.Answer)
	}
	if resp.Thoughts.Grounded {
		t.Fatalf("thoughts claim grounded")
	}
	if resp.Thoughts.Critique == "" {
		t.Fatalf("critique missing from trace")
	}
	if resp.Thoughts.Plan.Reasoning == "" {
		t.Fatalf("plan trace missing on refusal path")
	}
}

func TestChatReturnsGroundedAnswerWithParts(t *testing.T) {
	p := newScriptedProvider()
	p.script(plannerPrompt, planResponse)
	p.script(expanderPrompt, `{"variants": ["bakery chain sold"]}`)
	p.script(generatorPrompt, `{"parts": [
		{"text": "The bakery chain was sold for EUR 40m.", "provenance": "rag"},
		{"text": "Anna Weber founded it in 2001.", "provenance": "wiki"}
	]}`)
	p.script(validatorPrompt, `{"is_grounded": true}`)

	o := newTestOrchestrator(t, p)
	resp, err := o.Chat(context.Background(), []provider.Message{{Role: "user", Content: "Tell me about the bakery sale"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !resp.Thoughts.Grounded {
		t.Fatalf("grounded answer marked ungrounded")
	}
	if len(resp.Parts) != 2 || resp.Parts[0].Provenance != "rag" || resp.Parts[1].Provenance != "wiki" {
		t.Fatalf("provenance tags lost: %+v", resp.Parts)
	}
	if resp.Answer != "The bakery chain was sold for EUR 40m. Anna Weber founded it in 2001." {
		t.Fatalf("answer join wrong: %q", resp.Answer)
	}
}

func TestChatShortCircuitsOnHighConfidenceMatch(t *testing.T) {
	p := newScriptedProvider()
	p.script(plannerPrompt, `{"reasoning": "r", "steps": [], "queries": ["weber"], "wiki_topics": ["Anna Weber"]}`)
	p.script(expanderPrompt, `{"variants": []}`)
	p.script(generatorPrompt, `{"parts": [{"text": "Sold for EUR 40m.", "provenance": "rag"}]}`)
	p.script(validatorPrompt, `{"is_grounded": true}`)

	o := newTestOrchestrator(t, p)
	// Identical vectors give cosine similarity 1.0, above the shortcut
	// threshold.
	if err := o.Index.Add(vector.Document{ID: "ev1", Kind: "event", Title: "Bakery sale", Text: "Sold for EUR 40m"}, []float32{0, 0, 1}); err != nil {
		t.Fatalf("seed index: %v", err)
	}

	resp, err := o.Chat(context.Background(), []provider.Message{{Role: "user", Content: "bakery?"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if !resp.Thoughts.ShortCircuited {
		t.Fatalf("high-confidence match did not short-circuit external retrieval")
	}
	if len(resp.Thoughts.WikiMatches) != 0 || len(resp.Thoughts.SearchMatches) != 0 {
		t.Fatalf("external retrieval ran despite short-circuit")
	}
	if len(resp.Thoughts.RAGMatches) != 1 {
		t.Fatalf("rag matches = %v", resp.Thoughts.RAGMatches)
	}
}

func TestChatGenerationFailureKeepsTrace(t *testing.T) {
	p := newScriptedProvider()
	p.script(plannerPrompt, planResponse)
	p.script(expanderPrompt, `{"variants": []}`)
	// Nothing queued for the generator: the call fails.

	o := newTestOrchestrator(t, p)
	resp, err := o.Chat(context.Background(), []provider.Message{{Role: "user", Content: "bakery?"}})
	if err != nil {
		t.Fatalf("generation failure must not lose the turn: %v", err)
	}
	if resp.Answer != RefusalAnswer {
		t.Fatalf("answer = %q", resp.Answer)
	}
	if resp.Thoughts.Plan.Reasoning == "" {
		t.Fatalf("plan trace lost on generation failure")
	}
	if resp.Thoughts.Grounded {
		t.Fatalf("failed generation marked grounded")
	}
	if resp.Thoughts.Critique == "" {
		t.Fatalf("failure reason missing from trace")
	}
}

func TestChatToleratesMissingWikiClient(t *testing.T) {
	p := newScriptedProvider()
	// Wiki topics planned, no wiki client wired: full retrieval must skip
	// the source instead of panicking.
	p.script(plannerPrompt, `{"reasoning": "r", "steps": [], "queries": ["weber"], "wiki_topics": ["Anna Weber", "Bakery"]}`)
	p.script(expanderPrompt, `{"variants": []}`)
	p.script(generatorPrompt, `{"parts": [{"text": "No archive coverage.", "provenance": "llm"}]}`)
	p.script(validatorPrompt, `{"is_grounded": true}`)

	o := newTestOrchestrator(t, p)
	resp, err := o.Chat(context.Background(), []provider.Message{{Role: "user", Content: "bakery?"}})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(resp.Thoughts.WikiMatches) != 0 {
		t.Fatalf("wiki matches from a nil client: %v", resp.Thoughts.WikiMatches)
	}
}

func TestChatDedupesKeepingHighestScore(t *testing.T) {
	hits := []vector.Hit{
		{DocID: "a", Score: 0.7, Rank: 1},
		{DocID: "a", Score: 0.9, Rank: 2},
		{DocID: "b", Score: 0.6, Rank: 3},
	}
	best := map[string]vector.Hit{}
	for _, h := range hits {
		if prev, ok := best[h.DocID]; !ok || h.Score > prev.Score {
			best[h.DocID] = h
		}
	}
	if best["a"].Score != 0.9 {
		t.Fatalf("dedupe kept lower score: %v", best["a"])
	}
}
