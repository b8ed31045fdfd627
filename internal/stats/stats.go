// Package stats collects per-run execution statistics. A Collection is
// created per run and passed by reference into the stages that record
// into it; there is no ambient global state.
package stats

import (
	"sync"
	"time"
)

// Collection accumulates counters and stage durations for one run.
type Collection struct {
	mu        sync.Mutex
	counters  map[string]int
	durations map[string]time.Duration
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		counters:  make(map[string]int),
		durations: make(map[string]time.Duration),
	}
}

// Add increments a counter by n.
func (c *Collection) Add(name string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += n
}

// Record overwrites a counter with n.
func (c *Collection) Record(name string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] = n
}

// Count returns the current value of a counter.
func (c *Collection) Count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Timer starts timing a stage; the returned stop function records the
// elapsed duration under name.
func (c *Collection) Timer(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.durations[name] += elapsed
	}
}

// Fields flattens the collection into loggable fields.
func (c *Collection) Fields() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interface{}, len(c.counters)+len(c.durations))
	for k, v := range c.counters {
		out[k] = v
	}
	for k, v := range c.durations {
		out[k+"Ms"] = v.Milliseconds()
	}
	return out
}
