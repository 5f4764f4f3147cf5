package audit

import (
	"sync"

	"github.com/rolemesh/rolemesh/core"
)

// Sink receives audit events. Methods return nothing: a sink that cannot
// record an event drops it rather than failing the caller.
type Sink interface {
	// RecordOutcome persists the terminal result of a function-call request.
	RecordOutcome(outcome core.ExecutionOutcome)

	// CountMessage increments the messages counter for a character.
	CountMessage(characterID string)

	// CountRegeneration increments the regenerations counter for a character.
	CountRegeneration(characterID string)

	// CountTokens adds total token consumption for a (model, character) pair.
	CountTokens(model, characterID string, total int)
}

// NoOpSink discards every event. It is the default wherever no sink is wired.
type NoOpSink struct{}

// RecordOutcome implements Sink.
func (NoOpSink) RecordOutcome(core.ExecutionOutcome) {}

// CountMessage implements Sink.
func (NoOpSink) CountMessage(string) {}

// CountRegeneration implements Sink.
func (NoOpSink) CountRegeneration(string) {}

// CountTokens implements Sink.
func (NoOpSink) CountTokens(string, string, int) {}

// Recorder is an in-process Sink that retains everything it receives. Hosts
// typically wrap it with an exporter; tests read it back directly.
type Recorder struct {
	mu            sync.RWMutex
	outcomes      []core.ExecutionOutcome
	messages      map[string]int
	regenerations map[string]int
	tokens        map[tokenKey]int
}

type tokenKey struct {
	model     string
	character string
}

var _ Sink = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		messages:      make(map[string]int),
		regenerations: make(map[string]int),
		tokens:        make(map[tokenKey]int),
	}
}

// RecordOutcome implements Sink.
func (r *Recorder) RecordOutcome(outcome core.ExecutionOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

// CountMessage implements Sink.
func (r *Recorder) CountMessage(characterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[characterID]++
}

// CountRegeneration implements Sink.
func (r *Recorder) CountRegeneration(characterID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regenerations[characterID]++
}

// CountTokens implements Sink.
func (r *Recorder) CountTokens(model, characterID string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenKey{model: model, character: characterID}] += total
}

// Outcomes returns a copy of all recorded outcomes in arrival order.
func (r *Recorder) Outcomes() []core.ExecutionOutcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.ExecutionOutcome, len(r.outcomes))
	copy(out, r.outcomes)
	return out
}

// Messages returns the message counter for a character.
func (r *Recorder) Messages(characterID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.messages[characterID]
}

// Regenerations returns the regeneration counter for a character.
func (r *Recorder) Regenerations(characterID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.regenerations[characterID]
}

// Tokens returns the token counter for a (model, character) pair.
func (r *Recorder) Tokens(model, characterID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tokens[tokenKey{model: model, character: characterID}]
}
