package console

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerRunsOnlyLastTrigger(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls, last int32
	for i := int32(1); i <= 5; i++ {
		v := i
		d.Trigger(func() {
			atomic.AddInt32(&calls, 1)
			atomic.StoreInt32(&last, v)
		})
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(5), atomic.LoadInt32(&last))
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(time.Hour)
	assert.False(t, d.Cancel())
	d.Trigger(func() { t.Error("cancelled call ran") })
	assert.True(t, d.Cancel())
}

func TestDebouncerZeroDelayRunsInline(t *testing.T) {
	d := NewDebouncer(0)
	ran := false
	d.Trigger(func() { ran = true })
	assert.True(t, ran)
}
