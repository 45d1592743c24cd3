package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_StartsAtEpoch(t *testing.T) {
	clock := NewStepClock(time.Second)
	assert.Equal(t, Epoch, clock.Now())
	assert.Equal(t, Epoch.Add(time.Second), clock.Now())
	assert.Equal(t, 2, clock.Calls())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(time.Minute)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, 0, clock.Calls())
	assert.Equal(t, Epoch, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	total := numGoroutines * callsPerGoroutine
	assert.Equal(t, total, clock.Calls())
	assert.Equal(t, Epoch.Add(time.Duration(total)*time.Millisecond), clock.Now())
}

func TestFixedIDs_InOrder(t *testing.T) {
	ids := NewFixedIDs("fail-1", "fail-2")
	assert.Equal(t, "fail-1", ids.Generate())
	assert.Equal(t, "fail-2", ids.Generate())
	assert.PanicsWithValue(t, "FixedIDs: all ids exhausted", func() { ids.Generate() })
}

func TestSequenceIDs(t *testing.T) {
	ids := NewSequenceIDs("fail")
	assert.Equal(t, "fail-1", ids.Generate())
	assert.Equal(t, "fail-2", ids.Generate())
	assert.Equal(t, "fail-3", ids.Generate())
}
