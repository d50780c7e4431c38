package ragchat

const plannerPrompt = `You are the research planner for a wealth-intelligence news archive.
Given a conversation, produce a retrieval plan: your reasoning, ordered plan
steps, the search queries to run against the internal event archive, and any
Wikipedia article titles worth consulting. Queries should be short keyword
phrases, not full sentences. Respond with JSON only.`

const plannerSchema = `{
  "type": "object",
  "required": ["reasoning", "steps", "queries"],
  "properties": {
    "reasoning": {"type": "string"},
    "steps": {"type": "array", "items": {"type": "string"}},
    "queries": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "wiki_topics": {"type": "array", "items": {"type": "string"}}
  }
}`

const expanderPrompt = `Rewrite the given search query into alternative phrasings that would
match the same underlying topic in a news archive: synonyms, the names
involved, and a broader formulation. Respond with JSON only.`

const expanderSchema = `{
  "type": "object",
  "required": ["variants"],
  "properties": {
    "variants": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  }
}`

const generatorPrompt = `You answer questions about wealth events using ONLY the supplied
context. Compose the answer as an ordered list of parts; tag each part with
the provenance of the material it draws on: "rag" for the internal archive,
"wiki" for Wikipedia, "search" for web search results, and "llm" only for
connective phrasing that introduces no new facts. Never state a fact that is
absent from the context. Respond with JSON only.`

const generatorSchema = `{
  "type": "object",
  "required": ["parts"],
  "properties": {
    "parts": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["text", "provenance"],
        "properties": {
          "text": {"type": "string"},
          "provenance": {"type": "string", "enum": ["rag", "wiki", "search", "llm"]}
        }
      }
    }
  }
}`

const validatorPrompt = `You are a strict fact checker. Given a context block and a candidate
answer, decide whether every factual claim in the answer is supported by the
context. Connective phrasing needs no support; names, amounts, dates and
events do. Respond with JSON only.`

const validatorSchema = `{
  "type": "object",
  "required": ["is_grounded"],
  "properties": {
    "is_grounded": {"type": "boolean"},
    "critique": {"type": "string"}
  }
}`
