package eventloop

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPostRunsInOrder(t *testing.T) {
	l := New("order")
	defer l.Close()

	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	l.Sync()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPostFromCallback(t *testing.T) {
	l := New("nested")
	defer l.Close()

	var order []string
	done := make(chan struct{})
	l.Post(func() {
		order = append(order, "outer")
		l.Post(func() {
			order = append(order, "inner")
			close(done)
		})
		order = append(order, "outer-end")
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
	assert.Equal(t, []string{"outer", "outer-end", "inner"}, order)
}

func TestAfterRunsOnLoop(t *testing.T) {
	l := New("after")
	defer l.Close()

	var mu sync.Mutex
	fired := false
	l.After(5*time.Millisecond, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired
	}, time.Second, time.Millisecond)
}

func TestCloseDiscardsTimersAndRejectsPosts(t *testing.T) {
	l := New("close")

	ran := false
	l.After(time.Hour, func() { ran = true })
	_, timers := l.Pending()
	assert.Equal(t, 1, timers)

	l.Close()
	l.Close()

	assert.False(t, ran)
	assert.False(t, l.Post(func() {}))
	_, timers = l.Pending()
	assert.Zero(t, timers)
}

func TestCloseDrainsQueued(t *testing.T) {
	l := New("drain")

	count := 0
	block := make(chan struct{})
	l.Post(func() { <-block })
	for i := 0; i < 10; i++ {
		l.Post(func() { count++ })
	}

	go func() {
		time.Sleep(5 * time.Millisecond)
		close(block)
	}()
	l.Close()
	assert.Equal(t, 10, count)
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	l := New("panic")
	defer l.Close()

	l.Post(func() { panic("boom") })
	ok := false
	l.Post(func() { ok = true })
	l.Sync()
	assert.True(t, ok)
}
