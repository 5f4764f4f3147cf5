// Package executor runs function-call requests asynchronously. A bounded
// queue decouples the conversation runtime from execution; the executor
// consumes it, drives per-request retries with exponential backoff and writes
// a terminal outcome for every request it dequeues.
package executor
