package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInternalCode(t *testing.T) {
	approved := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)

	t.Run("AdultMultiWordName", func(t *testing.T) {
		code := InternalCode("Jane R. Doe", false, approved)
		assert.Equal(t, "JRD-A-20260828", code)
	})

	t.Run("MinorSingleName", func(t *testing.T) {
		code := InternalCode("Quill", true, approved)
		assert.Equal(t, "Q-M-20260828", code)
	})

	t.Run("LowercaseAndExtraSpaces", func(t *testing.T) {
		code := InternalCode("  ada   lovelace ", false, approved)
		assert.Equal(t, "AL-A-20260828", code)
	})

	t.Run("Deterministic", func(t *testing.T) {
		a := InternalCode("Jane Doe", true, approved)
		b := InternalCode("Jane Doe", true, approved)
		assert.Equal(t, a, b)
	})

	t.Run("NonLetterParticlesSkipped", func(t *testing.T) {
		// A part with no letters contributes no initial.
		code := InternalCode("Jane :: Doe", false, approved)
		assert.Equal(t, "JD-A-20260828", code)
	})
}

func TestMemberMinorAdultFlag(t *testing.T) {
	assert.Equal(t, "M", (&Member{Minor: true}).MinorAdultFlag())
	assert.Equal(t, "A", (&Member{Minor: false}).MinorAdultFlag())
}

func TestSyncJobExhausted(t *testing.T) {
	job := &SyncJob{Status: SyncJobStatusFailed, Attempts: 5}
	assert.True(t, job.Exhausted(5))
	assert.False(t, job.Exhausted(6))

	// Only FAILED counts as exhausted, whatever the counter says.
	job.Status = SyncJobStatusSynced
	assert.False(t, job.Exhausted(5))
}

func TestCohortIsFull(t *testing.T) {
	c := &Cohort{Capacity: 10, CurrentCount: 9}
	assert.False(t, c.IsFull())
	c.CurrentCount = 10
	assert.True(t, c.IsFull())
}
