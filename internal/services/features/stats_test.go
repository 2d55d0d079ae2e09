package features

import (
	"math"
	"testing"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleReturnsSkipsZeroBase(t *testing.T) {
	got := SimpleReturns([]float64{100, 110, 0, 50, 55})
	require.Len(t, got, 3)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, -1.0, got[1], 1e-12)
	assert.InDelta(t, 0.1, got[2], 1e-12)

	assert.Nil(t, SimpleReturns([]float64{1}))
}

func TestStdDevIsPopulation(t *testing.T) {
	assert.InDelta(t, 2.0, StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-12)
	assert.Equal(t, 0.0, StdDev([]float64{3}))
	assert.Equal(t, 0.0, StdDev(nil))
}

func TestDownsideDeviation(t *testing.T) {
	assert.InDelta(t, math.Sqrt((0.01+0.04)/2), DownsideDeviation([]float64{0.3, -0.1, -0.2, 0}), 1e-12)
	assert.Equal(t, 0.0, DownsideDeviation([]float64{0.1, 0.2}))
}

func TestSMAMatchesIndicatorLibrary(t *testing.T) {
	prices := []float64{10, 11, 12, 11.5, 13, 14.2, 13.8, 15, 16.1, 15.7, 17, 18.3, 17.9, 19, 20.5, 21, 20.2}
	for _, period := range []int{5, 15} {
		ours := SMA(prices, period)
		require.Len(t, ours, len(prices))
		for i := 0; i < period-1; i++ {
			assert.True(t, math.IsNaN(ours[i]), "index %d should be undefined", i)
		}

		sma := trend.NewSmaWithPeriod[float64](period)
		ref := helper.ChanToSlice(sma.Compute(helper.SliceToChan(prices)))
		require.Len(t, ref, len(prices)-period+1)
		for i, want := range ref {
			assert.InDelta(t, want, ours[i+period-1], 1e-9)
		}
	}
}

func TestFiniteAndClamp(t *testing.T) {
	assert.Equal(t, 0.0, Finite(math.NaN()))
	assert.Equal(t, 0.0, Finite(math.Inf(-1)))
	assert.Equal(t, 1.5, Finite(1.5))
	assert.Equal(t, 100.0, Clamp(250, -100, 100))
	assert.Equal(t, -100.0, Clamp(-250, -100, 100))
}
