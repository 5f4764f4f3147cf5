package audit

import (
	"sync"
	"testing"

	"github.com/rolemesh/rolemesh/core"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounters(t *testing.T) {
	rec := NewRecorder()

	rec.CountMessage("char-1")
	rec.CountMessage("char-1")
	rec.CountMessage("char-2")
	rec.CountRegeneration("char-1")
	rec.CountTokens("gpt-4o-mini", "char-1", 120)
	rec.CountTokens("gpt-4o-mini", "char-1", 80)

	assert.Equal(t, 2, rec.Messages("char-1"))
	assert.Equal(t, 1, rec.Messages("char-2"))
	assert.Equal(t, 1, rec.Regenerations("char-1"))
	assert.Equal(t, 0, rec.Regenerations("char-2"))
	assert.Equal(t, 200, rec.Tokens("gpt-4o-mini", "char-1"))
	assert.Equal(t, 0, rec.Tokens("gpt-4o-mini", "char-2"))
}

func TestRecorderOutcomes(t *testing.T) {
	rec := NewRecorder()

	rec.RecordOutcome(core.ExecutionOutcome{RequestID: "r1", State: core.OutcomeSucceeded})
	rec.RecordOutcome(core.ExecutionOutcome{RequestID: "r2", State: core.OutcomeFailedPermanently})

	outcomes := rec.Outcomes()
	assert.Len(t, outcomes, 2)
	assert.Equal(t, "r1", outcomes[0].RequestID)
	assert.True(t, outcomes[0].Succeeded())
	assert.False(t, outcomes[1].Succeeded())

	// Returned slice is a copy.
	outcomes[0].RequestID = "tampered"
	assert.Equal(t, "r1", rec.Outcomes()[0].RequestID)
}

func TestRecorderConcurrentWrites(t *testing.T) {
	rec := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.CountMessage("char-1")
			rec.RecordOutcome(core.ExecutionOutcome{State: core.OutcomeSucceeded})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, rec.Messages("char-1"))
	assert.Len(t, rec.Outcomes(), 50)
}
