// Package core centralizes the domain contracts of rolemesh: the Message and
// Conversation data model, characters and their generation configuration, the
// function-call request/outcome records exchanged with the executor, the
// shared error taxonomy and the store interfaces implemented by the memory
// package. Higher level packages (runtime, executor, fncall) depend only on
// these contracts, never on a concrete backend, so storage engines can be
// swapped at wiring time without touching orchestration code.
package core
