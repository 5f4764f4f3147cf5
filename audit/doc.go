// Package audit records what the platform did: terminal function-call
// outcomes, per-character usage counters and token consumption. Sinks are
// fire-and-forget so the chat and executor hot paths never block or fail on
// accounting.
package audit
