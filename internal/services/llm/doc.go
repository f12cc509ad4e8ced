// Package llm provides the translation operation: a chat client for any
// OpenAI-compatible endpoint built on go-openai.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Ask: send a system prompt and optional user prompt, receive text.
// Client.HealthCheck: verify API key and model availability (single attempt).
//
// # Throttling
//
// Every request passes a shared token-bucket limiter (RequestsPerSecond) and
// a counting gate (MaxInFlight, 20 by default). Only connection setup has a
// timeout; generation may take as long as the provider needs.
//
// # Retry Behaviour
//
// Failed requests and empty completions are retried with exponential backoff
// starting at 1s and doubling up to 64s, without an attempt cap unless
// WithRetryMaxAttempts is set. HTTP 400/401/403/404 fail immediately.
// Context cancellation aborts retries.
//
// # Message Log
//
// WithMessageLog writes every successful exchange as [System]/[User]/[LLM]
// blocks, which is how translation prompts are audited after a run.
package llm
