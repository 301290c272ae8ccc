package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualAdvance(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewManual(start)

	c.Advance(250 * time.Millisecond)
	assert.Equal(t, start.Add(250*time.Millisecond), c.Now())
	assert.Equal(t, 250*time.Millisecond, c.Since(start))

	c.Set(start.Add(time.Minute))
	assert.Equal(t, time.Minute, c.Since(start))
}

func TestManualRejectsGoingBackwards(t *testing.T) {
	c := NewManual(time.Unix(100, 0))
	assert.Panics(t, func() { c.Advance(-time.Second) })
	assert.Panics(t, func() { c.Set(time.Unix(99, 0)) })
}

func TestRealIsMonotonic(t *testing.T) {
	var c Clock = Real{}
	a := c.Now()
	assert.GreaterOrEqual(t, c.Since(a), time.Duration(0))
}
