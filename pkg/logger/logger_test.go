package logger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type capture struct {
	mu    sync.Mutex
	lines []string
}

func (c *capture) print(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, msg)
}

func (c *capture) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestDeduperCollapsesRepeats(t *testing.T) {
	out := &capture{}
	d := NewDeduper(time.Hour, out.print)

	d.Printf("cache hit for %s", "rtx 3070")
	d.Printf("cache hit for %s", "rtx 3070")
	d.Printf("cache hit for %s", "rtx 3070")
	d.Printf("cache miss")
	d.Flush()

	require.Equal(t, []string{"cache hit for rtx 3070 (3)", "cache miss"}, out.get())
}

func TestDeduperFlushesAfterDelay(t *testing.T) {
	out := &capture{}
	d := NewDeduper(10*time.Millisecond, out.print)

	d.Printf("throttled")
	require.Eventually(t, func() bool {
		return len(out.get()) == 1
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"throttled"}, out.get())
}
