package utils

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestTimestamperStrictlyIncreases(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	stamps := NewTimestamper(clock, time.Millisecond)

	first := stamps.Next()
	second := stamps.Next()
	assert.True(t, second.After(first))
	assert.Equal(t, time.Millisecond, second.Sub(first))

	clock.Advance(time.Second)
	third := stamps.Next()
	assert.Equal(t, clock.Now().UTC(), third)
}

func TestTimestamperTruncatesToPrecision(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 1234567, time.UTC))
	stamps := NewTimestamper(clock, time.Microsecond)

	assert.Equal(t, 1234000, stamps.Next().Nanosecond())
	assert.Equal(t, time.UTC, stamps.Next().Location())
}

func TestTimestamperDefaultsPrecision(t *testing.T) {
	stamps := NewTimestamper(clockwork.NewFakeClock(), 0)
	a, b := stamps.Next(), stamps.Next()
	assert.Equal(t, time.Microsecond, b.Sub(a))
}
