// Package runtime orchestrates a chat turn: validate the caller, load
// conversation context, generate a reply, hand function-call intents to the
// execution queue and persist the new turns. It owns no storage or model
// logic itself; everything is injected through the core contracts.
package runtime
