// Package model defines the provider-neutral LLM boundary: packed request
// messages, tool definitions exposed for function calling, and the Provider
// interface implemented by the openai and anthropic sub-packages. A
// MockProvider supports tests and offline development.
package model
