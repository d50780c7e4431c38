// Package assess hosts the assessment and synthesis agents: headline
// scoring, pre-classification, batch content assessment, event clustering,
// narrative synthesis, opportunity extraction, quality judging, entity
// canonicalization and selector repair.
package assess

import (
	"log"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/internal/agent"
)

// Suite bundles every assessment agent behind one SafeInvoker so they share
// caching, retry and token accounting.
type Suite struct {
	Invoker *agent.SafeInvoker
	Funnel  config.FunnelConfig
	Logger  *log.Logger

	headline *agent.Agent
	preclass *agent.Agent
	article  *agent.Agent
	batch    *agent.Agent
	cluster  *agent.Agent
	synth    *agent.Agent
	salvage  *agent.Agent
	opp      *agent.Agent
	judge    *agent.Agent
	entity   *agent.Agent
	repair   *agent.Agent
}

// NewSuite constructs the agent suite with models resolved from routing.
func NewSuite(invoker *agent.SafeInvoker, funnel config.FunnelConfig, routing config.LLMRoutingConfig, logger *log.Logger) *Suite {
	s := &Suite{Invoker: invoker, Funnel: funnel, Logger: logger}

	s.headline = &agent.Agent{
		Name:         "headline-assessment",
		Model:        routing.Assessment,
		SystemPrompt: headlinePrompt,
		Schema:       headlineSchema,
	}
	s.preclass = &agent.Agent{
		Name:         "pre-classification",
		Model:        routing.Utility,
		SystemPrompt: preclassPrompt,
		Schema:       preclassSchema,
	}
	s.article = &agent.Agent{
		Name:         "article-assessment",
		Model:        routing.Assessment,
		SystemPrompt: articlePrompt,
		Schema:       articleSchema,
	}
	s.batch = &agent.Agent{
		Name:         "batch-assessment",
		Model:        routing.Assessment,
		SystemPrompt: batchPrompt,
		Schema:       batchSchema,
	}
	s.cluster = &agent.Agent{
		Name:         "event-clustering",
		Model:        routing.Assessment,
		SystemPrompt: clusterPrompt,
		Schema:       clusterSchema,
	}
	s.synth = &agent.Agent{
		Name:         "event-synthesis",
		Model:        routing.Synthesis,
		SystemPrompt: synthesisPrompt,
		Schema:       synthesisSchema,
	}
	s.salvage = &agent.Agent{
		Name:         "salvage-synthesis",
		Model:        routing.Synthesis,
		SystemPrompt: salvagePrompt,
		Schema:       synthesisSchema,
	}
	s.opp = &agent.Agent{
		Name:         "opportunity-generation",
		Model:        routing.Synthesis,
		SystemPrompt: opportunityPrompt,
		Schema:       opportunitySchema,
	}
	s.judge = &agent.Agent{
		Name:         "run-judge",
		Model:        routing.Synthesis,
		SystemPrompt: judgePrompt,
		Schema:       judgeSchema,
	}
	s.entity = &agent.Agent{
		Name:         "entity-canonicalization",
		Model:        routing.Utility,
		SystemPrompt: entityPrompt,
		Schema:       entitySchema,
	}
	s.repair = &agent.Agent{
		Name:         "selector-repair",
		Model:        routing.Utility,
		SystemPrompt: repairPrompt,
		Schema:       repairSchema,
	}
	return s
}
