// Package fncall implements the function-calling subsystem: named handlers
// with schema-validated arguments, a transient/permanent failure
// classification consumed by the executor's retry policy, and an immutable
// registry built once at process start. The registry also exports tool
// definitions so providers can advertise callable functions to the model.
package fncall
