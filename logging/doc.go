// Package logging provides a tiny abstraction over slog so downstream code
// depends on a minimal interface (Logger) while hosts plug in any structured
// logger. NoOpLogger is the default everywhere, keeping the library silent
// unless the wiring layer opts in.
package logging
