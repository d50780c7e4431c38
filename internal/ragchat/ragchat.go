// Package ragchat implements the retrieval-augmented chat orchestrator:
// plan, narrow retrieval against the internal index, a confidence
// short-circuit, full retrieval from Wikipedia and web search, tagged
// answer generation and a groundedness gate.
package ragchat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/agent"
	"github.com/prospero-intel/prospero/internal/vector"
	"github.com/prospero-intel/prospero/provider"
	"github.com/prospero-intel/prospero/tools/web_search"
	"github.com/prospero-intel/prospero/tools/wikipedia"
)

// RefusalAnswer replaces any answer the validator judged ungrounded.
const RefusalAnswer = "I don't have enough grounded information in my sources to answer that reliably."

// Plan is the structured output of the planning call.
type Plan struct {
	Reasoning  string   `json:"reasoning"`
	Steps      []string `json:"steps"`
	Queries    []string `json:"queries"`
	WikiTopics []string `json:"wiki_topics"`
}

// AnswerPart is one provenance-tagged fragment of the final answer.
type AnswerPart struct {
	Text       string `json:"text"`
	Provenance string `json:"provenance"` // rag | wiki | search | llm
}

// Thoughts is the full reasoning trace, returned on every turn whether or
// not the answer survived validation.
type Thoughts struct {
	Plan           Plan                `json:"plan"`
	RAGMatches     []vector.Hit        `json:"rag_matches"`
	WikiMatches    []wikipedia.Summary `json:"wiki_matches"`
	SearchMatches  []web_search.Result `json:"search_matches"`
	ShortCircuited bool                `json:"short_circuited"`
	Grounded       bool                `json:"grounded"`
	Critique       string              `json:"critique,omitempty"`
}

// Response is one chat turn's result.
type Response struct {
	Answer   string       `json:"answer"`
	Parts    []AnswerPart `json:"parts"`
	Thoughts Thoughts     `json:"thoughts"`
}

// Orchestrator drives a chat turn end to end.
type Orchestrator struct {
	Cfg        config.ChatConfig
	Invoker    *agent.SafeInvoker
	Provider   provider.Provider
	EmbedModel string
	Index      *vector.Index
	Wiki       *wikipedia.Client
	Search     web_search.Searcher
	Logger     *log.Logger

	planner   *agent.Agent
	expander  *agent.Agent
	generator *agent.Agent
	validator *agent.Agent
}

// New wires the orchestrator's agents from the chat routing model.
func New(cfg config.ChatConfig, invoker *agent.SafeInvoker, prov provider.Provider, routing config.LLMRoutingConfig, index *vector.Index, wiki *wikipedia.Client, search web_search.Searcher, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		Cfg:        cfg,
		Invoker:    invoker,
		Provider:   prov,
		EmbedModel: routing.Embedding,
		Index:      index,
		Wiki:       wiki,
		Search:     search,
		Logger:     logger,
		planner: &agent.Agent{
			Name:         "chat-planner",
			Model:        routing.Chat,
			SystemPrompt: plannerPrompt,
			Schema:       plannerSchema,
		},
		expander: &agent.Agent{
			Name:         "query-expansion",
			Model:        routing.Utility,
			SystemPrompt: expanderPrompt,
			Schema:       expanderSchema,
		},
		generator: &agent.Agent{
			Name:         "chat-generation",
			Model:        routing.Chat,
			SystemPrompt: generatorPrompt,
			Schema:       generatorSchema,
		},
		validator: &agent.Agent{
			Name:         "groundedness-validation",
			Model:        routing.Chat,
			SystemPrompt: validatorPrompt,
			Schema:       validatorSchema,
		},
	}
}

// Chat answers the latest user turn in history. The thoughts trace is
// returned on every path, including refusals and planning failures.
func (o *Orchestrator) Chat(ctx context.Context, history []provider.Message) (*Response, error) {
	plan, err := o.plan(ctx, history)
	if err != nil {
		return nil, err
	}
	resp := &Response{Thoughts: Thoughts{Plan: *plan}}

	matches := o.retrieveNarrow(ctx, plan.Queries)
	resp.Thoughts.RAGMatches = matches

	// A single high-confidence internal match makes external retrieval
	// redundant.
	shortCircuit := false
	for _, m := range matches {
		if m.Score >= o.Cfg.ConfidenceShortcut {
			shortCircuit = true
			break
		}
	}
	resp.Thoughts.ShortCircuited = shortCircuit

	if !shortCircuit {
		wiki, search := o.retrieveFull(ctx, plan)
		resp.Thoughts.WikiMatches = wiki
		resp.Thoughts.SearchMatches = search
	}

	contextBlock := o.buildContext(resp.Thoughts)
	parts, err := o.generate(ctx, history, plan, contextBlock)
	if err != nil {
		// The trace assembled so far is still owed to the caller; a failed
		// generation degrades to a refusal, not a lost turn.
		if o.Logger != nil {
			o.Logger.Printf("[chat] generation failed, refusing: %v", err)
		}
		resp.Thoughts.Critique = err.Error()
		resp.Answer = RefusalAnswer
		resp.Parts = []AnswerPart{{Text: RefusalAnswer, Provenance: "llm"}}
		return resp, nil
	}
	answer := joinParts(parts)

	grounded, critique := o.validate(ctx, contextBlock, answer)
	resp.Thoughts.Grounded = grounded
	resp.Thoughts.Critique = critique
	if !grounded {
		resp.Answer = RefusalAnswer
		resp.Parts = []AnswerPart{{Text: RefusalAnswer, Provenance: "llm"}}
		return resp, nil
	}
	resp.Answer = answer
	resp.Parts = parts
	return resp, nil
}

func (o *Orchestrator) plan(ctx context.Context, history []provider.Message) (*Plan, error) {
	var sb strings.Builder
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	res := o.Invoker.Invoke(ctx, o.planner, sb.String())
	plan, aiErr := agent.Decode[Plan](o.planner.Name, res)
	if aiErr != nil {
		return nil, aiErr
	}
	if len(plan.Queries) == 0 {
		return nil, fmt.Errorf("chat planner produced no queries")
	}
	return &plan, nil
}

// retrieveNarrow expands each planned query, embeds the variants and
// searches the internal index. Matches below the similarity floor are
// dropped; duplicates keep their highest score; the result is capped to
// top-K.
func (o *Orchestrator) retrieveNarrow(ctx context.Context, queries []string) []vector.Hit {
	var variants []string
	for _, q := range queries {
		variants = append(variants, q)
		variants = append(variants, o.expand(ctx, q)...)
	}

	vecs, err := o.Provider.Embed(ctx, o.EmbedModel, variants)
	if err != nil {
		if o.Logger != nil {
			o.Logger.Printf("[chat] embedding failed, falling back to keyword search: %v", err)
		}
		return o.keywordFallback(queries)
	}

	best := make(map[string]vector.Hit)
	for _, v := range vecs {
		for _, hit := range o.Index.VectorSearch(v, o.Cfg.TopK) {
			if hit.Score < o.Cfg.SimilarityMin {
				continue
			}
			if prev, ok := best[hit.DocID]; !ok || hit.Score > prev.Score {
				best[hit.DocID] = hit
			}
		}
	}
	out := make([]vector.Hit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > o.Cfg.TopK {
		out = out[:o.Cfg.TopK]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func (o *Orchestrator) expand(ctx context.Context, q string) []string {
	res := o.Invoker.Invoke(ctx, o.expander, q)
	payload, aiErr := agent.Decode[struct {
		Variants []string `json:"variants"`
	}](o.expander.Name, res)
	if aiErr != nil {
		if o.Logger != nil {
			o.Logger.Printf("[chat] query expansion failed for %q: %v", q, aiErr)
		}
		return nil
	}
	if len(payload.Variants) > o.Cfg.QueryExpansions {
		payload.Variants = payload.Variants[:o.Cfg.QueryExpansions]
	}
	return payload.Variants
}

func (o *Orchestrator) keywordFallback(queries []string) []vector.Hit {
	var all []vector.Hit
	for _, q := range queries {
		hits, err := o.Index.BM25Search(q, o.Cfg.TopK)
		if err != nil {
			continue
		}
		all = vector.FuseRRF(all, hits, o.Cfg.TopK)
	}
	return all
}

// retrieveFull consults Wikipedia and web search in parallel. Both are
// best-effort: a failed or unconfigured source contributes nothing.
func (o *Orchestrator) retrieveFull(ctx context.Context, plan *Plan) ([]wikipedia.Summary, []web_search.Result) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wikis   []wikipedia.Summary
		results []web_search.Result
	)
	if o.Wiki != nil {
		for _, topic := range plan.WikiTopics {
			wg.Add(1)
			go func(topic string) {
				defer wg.Done()
				summary, err := o.Wiki.Lookup(ctx, topic)
				if err != nil {
					if o.Logger != nil {
						o.Logger.Printf("[chat] wikipedia lookup skipped: %v", err)
					}
					return
				}
				mu.Lock()
				wikis = append(wikis, *summary)
				mu.Unlock()
			}(topic)
		}
	}
	if o.Search.Configured() {
		for _, q := range plan.Queries {
			wg.Add(1)
			go func(q string) {
				defer wg.Done()
				hits, err := o.Search.Search(ctx, q, 3)
				if err != nil {
					if o.Logger != nil {
						o.Logger.Printf("[chat] web search skipped: %v", err)
					}
					return
				}
				mu.Lock()
				results = append(results, hits...)
				mu.Unlock()
			}(q)
		}
	}
	wg.Wait()
	return wikis, results
}

func (o *Orchestrator) buildContext(t Thoughts) string {
	var sb strings.Builder
	sb.WriteString("## Internal archive\n")
	if len(t.RAGMatches) == 0 {
		sb.WriteString("(no matches)\n")
	}
	for _, m := range t.RAGMatches {
		doc, ok := o.Index.Get(m.DocID)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "- [%s] %s: %s\n", doc.Kind, doc.Title, doc.Text)
	}
	if len(t.WikiMatches) > 0 {
		sb.WriteString("\n## Wikipedia\n")
		for _, w := range t.WikiMatches {
			fmt.Fprintf(&sb, "- %s: %s\n", w.Title, w.Extract)
		}
	}
	if len(t.SearchMatches) > 0 {
		sb.WriteString("\n## Web search\n")
		for _, r := range t.SearchMatches {
			fmt.Fprintf(&sb, "- %s (%s): %s\n", r.Title, r.URL, r.Snippet)
		}
	}
	return sb.String()
}

func (o *Orchestrator) generate(ctx context.Context, history []provider.Message, plan *Plan, contextBlock string) ([]AnswerPart, error) {
	var sb strings.Builder
	sb.WriteString("Plan:\n")
	for i, step := range plan.Steps {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
	}
	sb.WriteString("\nContext:\n")
	sb.WriteString(contextBlock)
	sb.WriteString("\nConversation:\n")
	for _, m := range history {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}

	res := o.Invoker.Invoke(ctx, o.generator, sb.String())
	payload, aiErr := agent.Decode[struct {
		Parts []AnswerPart `json:"parts"`
	}](o.generator.Name, res)
	if aiErr != nil {
		return nil, aiErr
	}
	return payload.Parts, nil
}

// validate asks the groundedness checker to verify the answer against the
// context. A validator failure counts as not grounded; an unverifiable
// answer must never be surfaced.
func (o *Orchestrator) validate(ctx context.Context, contextBlock, answer string) (bool, string) {
	input, _ := json.Marshal(map[string]string{"context": contextBlock, "answer": answer})
	res := o.Invoker.Invoke(ctx, o.validator, string(input))
	payload, aiErr := agent.Decode[struct {
		IsGrounded bool   `json:"is_grounded"`
		Critique   string `json:"critique"`
	}](o.validator.Name, res)
	if aiErr != nil {
		if o.Logger != nil {
			o.Logger.Printf("[chat] groundedness validation failed, refusing: %v", aiErr)
		}
		return false, aiErr.Error()
	}
	return payload.IsGrounded, payload.Critique
}

func joinParts(parts []AnswerPart) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, " ")
}
