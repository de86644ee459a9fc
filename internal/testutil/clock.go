package testutil

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"mcs-go/internal/mcs"
)

// StubClock is an mcs.Clock that only moves when a test moves it.
type StubClock struct {
	mu sync.RWMutex
	t  time.Time
}

// NewStubClock creates a StubClock reading t.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{t: t}
}

// FixedClock returns a StubClock at 2026-03-14 09:26:53 UTC, so generated
// keys start with "2026/03/14/".
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// StubIDGenerator hands out "id-1", "id-2", ... in call order.
type StubIDGenerator struct {
	n atomic.Int64
}

func NewStubIDGenerator() *StubIDGenerator {
	return &StubIDGenerator{}
}

func (g *StubIDGenerator) New() string {
	return "id-" + strconv.FormatInt(g.n.Add(1), 10)
}

// SequentialSuffix returns a key suffix source yielding "SFX00001",
// "SFX00002", ... in place of mcs.RandomSuffix.
func SequentialSuffix() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("SFX%05d", n.Add(1))
	}
}

var (
	_ mcs.Clock       = (*StubClock)(nil)
	_ mcs.IDGenerator = (*StubIDGenerator)(nil)
)
