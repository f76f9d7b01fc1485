package schedule

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitterStaysInRange(t *testing.T) {
	j := Jitter{Min: 120 * time.Second, Max: 300 * time.Second, Rand: rand.New(rand.NewPCG(3, 4))}

	var low, high bool
	for i := 0; i < 5000; i++ {
		d := j.Next()
		assert.GreaterOrEqual(t, d, j.Min)
		assert.LessOrEqual(t, d, j.Max)
		low = low || d < 150*time.Second
		high = high || d > 270*time.Second
	}
	assert.True(t, low && high, "draws should cover the range")
}

func TestJitterDegenerateRange(t *testing.T) {
	assert.Equal(t, time.Minute, Jitter{Min: time.Minute, Max: time.Minute}.Next())
	assert.Equal(t, time.Minute, Jitter{Min: time.Minute, Max: time.Second}.Next())
	assert.Zero(t, Jitter{}.Next())
}

func TestSleepReturnsAfterDuration(t *testing.T) {
	start := time.Now()
	assert.NoError(t, Sleep(context.Background(), 10*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestSleepStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestSleepZeroChecksContext(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, 0), context.Canceled)
}
