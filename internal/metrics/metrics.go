package metrics

import (
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"paylive-be/internal/utils"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Add(n uint64) {
	atomic.AddUint64(&c.value, n)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// timing accumulates call count and total latency for one operation.
type timing struct {
	count Counter
	nanos Counter
}

// Registry holds named counters and timings. The zero value is not usable;
// use NewRegistry.
type Registry struct {
	mu       sync.RWMutex
	counters map[string]*Counter
	timings  map[string]*timing
}

func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		timings:  make(map[string]*timing),
	}
}

// Default is the process-wide registry served on /metrics.
var Default = NewRegistry()

func (r *Registry) Counter(name string) *Counter {
	r.mu.RLock()
	c, ok := r.counters[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.counters[name]; !ok {
		c = &Counter{}
		r.counters[name] = c
	}
	return c
}

func (r *Registry) Inc(name string) {
	r.Counter(name).Inc()
}

func (r *Registry) Observe(name string, d time.Duration) {
	r.mu.RLock()
	t, ok := r.timings[name]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if t, ok = r.timings[name]; !ok {
			t = &timing{}
			r.timings[name] = t
		}
		r.mu.Unlock()
	}

	t.count.Inc()
	t.nanos.Add(uint64(d.Nanoseconds()))
}

type TimingSnapshot struct {
	Name    string  `json:"name"`
	Count   uint64  `json:"count"`
	AvgMsec float64 `json:"avg_ms"`
}

type Snapshot struct {
	Counters map[string]uint64 `json:"counters"`
	Timings  []TimingSnapshot  `json:"timings"`
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Counters: make(map[string]uint64, len(r.counters)),
		Timings:  make([]TimingSnapshot, 0, len(r.timings)),
	}
	for name, c := range r.counters {
		snap.Counters[name] = c.Load()
	}
	for name, t := range r.timings {
		ts := TimingSnapshot{Name: name, Count: t.count.Load()}
		if ts.Count > 0 {
			ts.AvgMsec = float64(t.nanos.Load()) / float64(ts.Count) / float64(time.Millisecond)
		}
		snap.Timings = append(snap.Timings, ts)
	}
	sort.Slice(snap.Timings, func(i, j int) bool { return snap.Timings[i].Name < snap.Timings[j].Name })
	return snap
}

func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		utils.WriteJSON(w, http.StatusOK, r.Snapshot())
	}
}
