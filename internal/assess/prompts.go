package assess

// Prompts and output schemas for the assessment agents. Only the contract
// matters to callers: inputs are assembled in the per-agent files and the
// schemas below are enforced by the agent framework.

const headlinePrompt = `You score news headlines for wealth-event relevance.
A relevant headline suggests a liquidity event, company sale, IPO, major
funding round, inheritance, lottery win, large legal settlement, real-estate
sale or similar sudden-wealth situation involving identifiable people.
Score 0-100 where 0 is clearly irrelevant and 100 is a confirmed major
wealth event. Consider the provided country context. Respond with JSON:
{"score": <0-100>, "assessment": "<one sentence reason>"}`

const headlineSchema = `{
  "type": "object",
  "required": ["score", "assessment"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "assessment": {"type": "string"}
  }
}`

const preclassPrompt = `You are a cheap triage classifier for news articles.
Classify the article into exactly one category: "wealth_event",
"business_news", "politics", "sport", "celebrity", "crime", "other".
Mark clearly irrelevant content so it can be culled before expensive
assessment. Respond with JSON:
{"category": "<category>", "proceed": <bool>, "reason": "<short reason>"}`

const preclassSchema = `{
  "type": "object",
  "required": ["category", "proceed"],
  "properties": {
    "category": {"type": "string"},
    "proceed": {"type": "boolean"},
    "reason": {"type": "string"}
  }
}`

const articlePrompt = `You assess one news article body for wealth-event
relevance. Score 0-100, summarize the signal, list the key individuals who
personally gain wealth (full names exactly as written in the text), and the
monetary amount in millions when stated. Respond with JSON:
{"score": <0-100>, "assessment": "<2-3 sentences>",
 "key_individuals": ["..."], "amount_mm": <number or null>,
 "classification": "<short label>"}`

const articleSchema = `{
  "type": "object",
  "required": ["score", "assessment", "key_individuals"],
  "properties": {
    "score": {"type": "integer", "minimum": 0, "maximum": 100},
    "assessment": {"type": "string"},
    "key_individuals": {"type": "array", "items": {"type": "string"}},
    "amount_mm": {"type": ["number", "null"]},
    "classification": {"type": "string"}
  }
}`

const batchPrompt = `You assess a numbered batch of news articles for
wealth-event relevance. Return exactly one assessment per input item, in
input order, as {"assessments": [...]} where each element follows the
single-article shape: {"index": <input index>, "score": <0-100>,
"assessment": "...", "key_individuals": [...], "amount_mm": <number or null>,
"classification": "..."}. Do not skip, merge or add items.`

const batchSchema = `{
  "type": "object",
  "required": ["assessments"],
  "properties": {
    "assessments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["index", "score", "assessment", "key_individuals"],
        "properties": {
          "index": {"type": "integer", "minimum": 0},
          "score": {"type": "integer", "minimum": 0, "maximum": 100},
          "assessment": {"type": "string"},
          "key_individuals": {"type": "array", "items": {"type": "string"}},
          "amount_mm": {"type": ["number", "null"]},
          "classification": {"type": "string"}
        }
      }
    }
  }
}`

const clusterPrompt = `You group assessed news articles into event clusters.
Two articles belong to the same cluster when their headline and summary
describe the same real-world event. Derive a stable snake_case event_key
from the main actor and event type (e.g. "mueller_bakery_sale"). Respond
with JSON: {"clusters": [{"event_key": "...", "article_ids": ["..."]}]}.
Every input article id must appear in exactly one cluster.`

const clusterSchema = `{
  "type": "object",
  "required": ["clusters"],
  "properties": {
    "clusters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["event_key", "article_ids"],
        "properties": {
          "event_key": {"type": "string"},
          "article_ids": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const synthesisPrompt = `You synthesize one news event from a cluster of
articles plus optional context: prior internal events, a Wikipedia summary
and recent news search snippets. Produce a unified headline, a factual
summary that reconciles the sources, a classification, the key individuals
gaining wealth, and a 0-100 relevance score. Respond with JSON:
{"headline": "...", "summary": "...", "classification": "...",
 "key_individuals": [...], "score": <0-100>}`

const salvagePrompt = `You synthesize a news event from a headline alone:
the article body could not be retrieved. State clearly in the summary that
full text was unavailable and only headline-level information is known.
Be conservative with claims. Respond with JSON:
{"headline": "...", "summary": "...", "classification": "...",
 "key_individuals": [...], "score": <0-100>}`

const synthesisSchema = `{
  "type": "object",
  "required": ["headline", "summary", "classification", "score"],
  "properties": {
    "headline": {"type": "string"},
    "summary": {"type": "string"},
    "classification": {"type": "string"},
    "key_individuals": {"type": "array", "items": {"type": "string"}},
    "score": {"type": "integer", "minimum": 0, "maximum": 100}
  }
}`

const opportunityPrompt = `You extract outreach opportunities from a
synthesized wealth event and its source articles. For each person who
plausibly gained significant wealth, produce a record with who to contact,
any contact details present in the text, an estimated wealth gain in
millions (null when unknown), and concrete reasons to reach out. Respond
with JSON: {"opportunities": [{"reach_out_to": "...",
 "contact_details": "...", "wealth_estimate_mm": <number or null>,
 "why_contact": ["..."]}]}`

const opportunitySchema = `{
  "type": "object",
  "required": ["opportunities"],
  "properties": {
    "opportunities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["reach_out_to"],
        "properties": {
          "reach_out_to": {"type": "string"},
          "contact_details": {"type": "string"},
          "wealth_estimate_mm": {"type": ["number", "null"]},
          "why_contact": {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

const judgePrompt = `You are a quality-control judge reviewing one pipeline
run: the synthesized events and extracted opportunities. For each event
give a verdict ("good", "questionable", "bad") with a short critique, and
an overall run comment. Verdicts are for operational reporting only.
Respond with JSON: {"overall": "...", "verdicts": [{"event_key": "...",
 "verdict": "...", "critique": "..."}]}`

const judgeSchema = `{
  "type": "object",
  "required": ["overall", "verdicts"],
  "properties": {
    "overall": {"type": "string"},
    "verdicts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["event_key", "verdict"],
        "properties": {
          "event_key": {"type": "string"},
          "verdict": {"type": "string"},
          "critique": {"type": "string"}
        }
      }
    }
  }
}`

const entityPrompt = `You canonicalize one named entity. Return the most
common canonical form of the name: expand initials when unambiguous, drop
honorifics and titles, keep the native spelling. Respond with JSON:
{"canonical": "..."}`

const entitySchema = `{
  "type": "object",
  "required": ["canonical"],
  "properties": {"canonical": {"type": "string"}}
}`

const repairPrompt = `A CSS selector stopped matching on a news site. Given
the failed selector, a trimmed HTML sample and heuristic candidate
selectors, propose up to three replacement selectors ranked by confidence,
for human review. Do not invent selectors that do not occur in the sample.
Respond with JSON: {"proposals": [{"selector": "...",
 "confidence": <0-1>, "rationale": "..."}]}`

const repairSchema = `{
  "type": "object",
  "required": ["proposals"],
  "properties": {
    "proposals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["selector", "confidence"],
        "properties": {
          "selector": {"type": "string"},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1},
          "rationale": {"type": "string"}
        }
      }
    }
  }
}`
