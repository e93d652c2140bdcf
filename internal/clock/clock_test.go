package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fired(t Timer) bool {
	select {
	case <-t.C():
		return true
	default:
		return false
	}
}

func TestFakeTimerFiresOnAdvance(t *testing.T) {
	c := NewFake(epoch)
	timer := c.NewTimer(5 * time.Second)

	c.Advance(4 * time.Second)
	assert.False(t, fired(timer))

	c.Advance(time.Second)
	assert.True(t, fired(timer))
	assert.Equal(t, epoch.Add(5*time.Second), c.Now())
}

func TestFakeTimerResetPostponesDeadline(t *testing.T) {
	c := NewFake(epoch)
	timer := c.NewTimer(5 * time.Second)

	c.Advance(3 * time.Second)
	assert.True(t, timer.Reset(5*time.Second))

	c.Advance(3 * time.Second)
	assert.False(t, fired(timer), "reset should push the deadline out")

	c.Advance(2 * time.Second)
	assert.True(t, fired(timer))
}

func TestFakeTimerResetDiscardsStaleValue(t *testing.T) {
	c := NewFake(epoch)
	timer := c.NewTimer(time.Second)
	c.Advance(time.Second)

	require.False(t, timer.Reset(time.Minute))
	assert.False(t, fired(timer))
}

func TestFakeTimerStop(t *testing.T) {
	c := NewFake(epoch)
	timer := c.NewTimer(time.Second)

	assert.True(t, timer.Stop())
	assert.Equal(t, 0, c.PendingTimers())

	c.Advance(time.Hour)
	assert.False(t, fired(timer))
	assert.False(t, timer.Stop())
}

func TestFakeZeroDurationFiresImmediately(t *testing.T) {
	c := NewFake(epoch)
	timer := c.NewTimer(0)
	assert.True(t, fired(timer))
}

func TestRealClock(t *testing.T) {
	c := Real()
	before := time.Now()
	assert.False(t, c.Now().Before(before))

	timer := c.NewTimer(time.Millisecond)
	select {
	case <-timer.C():
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
