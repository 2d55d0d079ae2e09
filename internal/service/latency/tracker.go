package latency

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Stats summarizes the retained samples of one route, in milliseconds.
type Stats struct {
	Route     string  `json:"route"`
	Current   float64 `json:"current"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Mean      float64 `json:"mean"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
	Count     int     `json:"count"`
	ErrorRate float64 `json:"errorRate"`
}

type sample struct {
	ms     float64
	failed bool
}

type ring struct {
	buf  []sample
	next int
	full bool
	last sample
}

func (r *ring) add(s sample) {
	r.buf[r.next] = s
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.last = s
}

func (r *ring) samples() []sample {
	if r.full {
		return append([]sample(nil), r.buf...)
	}
	return append([]sample(nil), r.buf[:r.next]...)
}

// Tracker keeps the last Size samples per route.
type Tracker struct {
	mu     sync.RWMutex
	size   int
	routes map[string]*ring
}

func NewTracker(size int) *Tracker {
	if size <= 0 {
		size = 100
	}
	return &Tracker{size: size, routes: make(map[string]*ring)}
}

func (t *Tracker) Record(route string, d time.Duration, failed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.routes[route]
	if !ok {
		r = &ring{buf: make([]sample, t.size)}
		t.routes[route] = r
	}
	r.add(sample{ms: float64(d.Microseconds()) / 1000, failed: failed})
}

// Route returns stats for one route; ok is false when nothing was recorded.
func (t *Tracker) Route(route string) (Stats, bool) {
	t.mu.RLock()
	r, ok := t.routes[route]
	if !ok {
		t.mu.RUnlock()
		return Stats{}, false
	}
	samples, last := r.samples(), r.last
	t.mu.RUnlock()
	return summarize(route, samples, last), true
}

// Stats returns every tracked route sorted by name.
func (t *Tracker) Stats() []Stats {
	t.mu.RLock()
	names := make([]string, 0, len(t.routes))
	for name := range t.routes {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)

	out := make([]Stats, 0, len(names))
	for _, name := range names {
		if s, ok := t.Route(name); ok {
			out = append(out, s)
		}
	}
	return out
}

func summarize(route string, samples []sample, last sample) Stats {
	st := Stats{Route: route, Count: len(samples), Current: last.ms}
	if len(samples) == 0 {
		return st
	}

	values := make([]float64, len(samples))
	sum, failures := 0.0, 0
	for i, s := range samples {
		values[i] = s.ms
		sum += s.ms
		if s.failed {
			failures++
		}
	}
	sort.Float64s(values)

	st.Min = values[0]
	st.Max = values[len(values)-1]
	st.Mean = sum / float64(len(values))
	st.P95 = nearestRank(values, 0.95)
	st.P99 = nearestRank(values, 0.99)
	st.ErrorRate = float64(failures) / float64(len(samples))
	return st
}

// nearestRank indexes floor(n*p) into the sorted values, clamped to the last.
func nearestRank(sorted []float64, p float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
