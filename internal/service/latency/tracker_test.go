package latency

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerStats(t *testing.T) {
	tr := NewTracker(100)
	for i := 1; i <= 100; i++ {
		tr.Record("/api/market-data", time.Duration(i)*time.Millisecond, i%10 == 0)
	}

	st, ok := tr.Route("/api/market-data")
	require.True(t, ok)
	assert.Equal(t, 100, st.Count)
	assert.Equal(t, 100.0, st.Current)
	assert.Equal(t, 1.0, st.Min)
	assert.Equal(t, 100.0, st.Max)
	assert.InDelta(t, 50.5, st.Mean, 1e-9)
	assert.Equal(t, 96.0, st.P95)
	assert.Equal(t, 100.0, st.P99)
	assert.InDelta(t, 0.1, st.ErrorRate, 1e-9)
}

func TestTrackerRingOverwritesOldest(t *testing.T) {
	tr := NewTracker(3)
	for _, ms := range []int{50, 1, 2, 3} {
		tr.Record("/r", time.Duration(ms)*time.Millisecond, false)
	}
	st, _ := tr.Route("/r")
	assert.Equal(t, 3, st.Count)
	assert.Equal(t, 3.0, st.Max)
	assert.Equal(t, 3.0, st.Current)
}

func TestTrackerListsRoutesSorted(t *testing.T) {
	tr := NewTracker(10)
	tr.Record("/b", time.Millisecond, false)
	tr.Record("/a", time.Millisecond, true)

	all := tr.Stats()
	require.Len(t, all, 2)
	assert.Equal(t, "/a", all[0].Route)
	assert.Equal(t, 1.0, all[0].ErrorRate)

	_, ok := tr.Route("/missing")
	assert.False(t, ok)
}
