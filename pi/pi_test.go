package pi

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/Davydov/phyinf/rates"
)

const depth = 174

func uniformDraw(t *testing.T) rates.Rates {
	t.Helper()
	r, err := rates.Ingest("../rates/testdata/uniform-draw.rates.json", 1, false)
	require.NoError(t, err)
	return r
}

func TestTownsendBoundary(t *testing.T) {
	for _, r := range []float64{0, 1e-6, 0.001, 0.1, 1, 100} {
		assert.Zero(t, Townsend(0, r), r)
	}
	for _, tm := range []float64{0, 1, 10, 174, 1e6} {
		assert.Zero(t, Townsend(tm, 0), tm)
	}
	// Maximum is at t = 1/(4r).
	assert.InDelta(t, 4*0.01/math.E, Townsend(25, 0.01), 1e-15)
}

func TestTimes(t *testing.T) {
	tm := Times(depth)
	require.Len(t, tm, depth+1)
	assert.Equal(t, 0.0, tm[0])
	assert.Equal(t, float64(depth), tm[depth])

	assert.Len(t, Times(3.9), 4)
	assert.Len(t, Times(0), 1)
	assert.Empty(t, Times(-1))
	assert.Empty(t, Times(math.NaN()))
}

func TestNetAtTimes(t *testing.T) {
	p := NewProfile(Times(depth), uniformDraw(t))
	r, c := p.Matrix.Dims()
	assert.Equal(t, depth+1, r)
	assert.Equal(t, 100, c)

	samples, err := NetAtTimes(p.Net(), []int{10, 20, 50})
	require.NoError(t, err)
	require.Len(t, samples, 3)
	for i, exp := range []float64{0.03448, 0.01111, 0.02293} {
		assert.InDelta(t, exp, samples[i].PI, 1e-3)
	}
	assert.Equal(t, 50, samples[2].Time)

	samples, err = NetAtTimes(p.Net(), []int{50, 0})
	require.NoError(t, err)
	assert.Equal(t, 50, samples[0].Time)
	assert.Zero(t, samples[1].PI)
}

func TestNetAtTimesOutOfRange(t *testing.T) {
	net := NewProfile(Times(depth), uniformDraw(t)).Net()
	for _, tm := range []int{depth + 1, 1000, -1} {
		_, err := NetAtTimes(net, []int{10, tm})
		assert.True(t, errors.Is(err, ErrOutOfRangeTime), tm)
	}
	_, err := NetAtTimes(net, []int{depth})
	assert.NoError(t, err)
}

func TestCheckTimes(t *testing.T) {
	n := len(Times(1.74))
	assert.NoError(t, CheckTimes([]int{0, 1}, n))
	assert.NoError(t, CheckTimes(nil, 0))
	for _, times := range [][]int{{0, 50}, {2}, {-1}} {
		err := CheckTimes(times, n)
		assert.True(t, errors.Is(err, ErrOutOfRangeTime), times)
	}
	assert.True(t, errors.Is(CheckTimes([]int{0}, len(Times(-1))), ErrOutOfRangeTime))
}

func TestMaskingExclusion(t *testing.T) {
	all := uniformDraw(t)
	masked := append(rates.Rates(nil), all...)
	masked[3] = rates.Excluded
	masked[42] = rates.Excluded
	var removed rates.Rates
	for i, r := range all {
		if i != 3 && i != 42 {
			removed = append(removed, r)
		}
	}

	times := Times(depth)
	pm := NewProfile(times, masked)
	assert.Equal(t, NewProfile(times, removed).Net(), pm.Net())
	assert.Len(t, pm.Sites, 98)

	_, ok := pm.Site(3)
	assert.False(t, ok)
	col, ok := pm.Site(4)
	require.True(t, ok)
	assert.Equal(t, Townsend(10, all[4].Value), col[10])

	for _, e := range []Epoch{{0, 10}, {20, 100}} {
		a, err := EpochIntegral(masked, e, Exact)
		require.NoError(t, err)
		b, err := EpochIntegral(removed, e, Exact)
		require.NoError(t, err)
		assert.Equal(t, b, a)
	}
}

func TestAllExcluded(t *testing.T) {
	r := rates.Rates{rates.Excluded, rates.Excluded}
	p := NewProfile(Times(10), r)
	assert.Nil(t, p.Matrix)
	assert.Equal(t, make([]float64, 11), p.Net())

	i, err := EpochIntegral(r, Epoch{0, 10}, Quadrature)
	require.NoError(t, err)
	assert.Zero(t, i.Sum)
	assert.Zero(t, i.Error)
}

func TestEpochIntegral(t *testing.T) {
	r := uniformDraw(t)
	epochs := []Epoch{{0, 10}, {10, 15}, {15, 20}, {20, 30}, {20, 70}, {20, 100}}
	exp := []float64{0.93453, 0.10628, 0.05855, 0.12638, 1.03698, 2.08840}
	for _, m := range []Method{Exact, Quadrature} {
		res, err := Epochs(r, epochs, m)
		require.NoError(t, err)
		for i := range epochs {
			assert.Equal(t, epochs[i].Label(), res[i].Label)
			assert.InDelta(t, exp[i], res[i].Sum, 1e-4, "%v %v", m, epochs[i])
		}
	}
}

func TestMethodsAgree(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		r := rates.FromValues([]float64{rnd.ExpFloat64() * 0.01, rnd.Float64(), rnd.Float64() * 10})
		a := rnd.Intn(100)
		e := Epoch{a, a + 1 + rnd.Intn(200)}
		exact, err := EpochIntegral(r, e, Exact)
		require.NoError(t, err)
		q, err := EpochIntegral(r, e, Quadrature)
		require.NoError(t, err)
		assert.InDelta(t, exact.Sum, q.Sum, 1e-8, e.Label())
		assert.True(t, q.Error < 1e-6, q.Error)
		assert.Zero(t, exact.Error)
	}
}

func TestEpochAdditivity(t *testing.T) {
	r := uniformDraw(t)
	for _, m := range []Method{Exact, Quadrature} {
		for _, abc := range [][3]int{{0, 10, 20}, {5, 6, 174}, {20, 70, 100}} {
			ac, err := EpochIntegral(r, Epoch{abc[0], abc[2]}, m)
			require.NoError(t, err)
			ab, err := EpochIntegral(r, Epoch{abc[0], abc[1]}, m)
			require.NoError(t, err)
			bc, err := EpochIntegral(r, Epoch{abc[1], abc[2]}, m)
			require.NoError(t, err)
			assert.InDelta(t, ac.Sum, ab.Sum+bc.Sum, 1e-9)
		}
	}
}

func TestEpochPrecondition(t *testing.T) {
	r := rates.FromValues([]float64{0.1})
	for _, e := range []Epoch{{5, 5}, {5, 3}} {
		for _, m := range []Method{Exact, Quadrature} {
			_, err := EpochIntegral(r, e, m)
			assert.True(t, errors.Is(err, ErrInvalidEpoch), e.Label())
		}
	}
}

func TestParseEpoch(t *testing.T) {
	e, err := ParseEpoch(" 20-70")
	require.NoError(t, err)
	assert.Equal(t, Epoch{20, 70}, e)
	assert.Equal(t, "20-70", e.Label())

	for _, s := range []string{"5-5", "5-3", "5", "a-10", "1-2-3", ""} {
		_, err := ParseEpoch(s)
		assert.True(t, errors.Is(err, ErrInvalidEpoch), s)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("Quadrature")
	require.NoError(t, err)
	assert.Equal(t, Quadrature, m)
	assert.Equal(t, "exact", Exact.String())
	_, err = ParseMethod("simpson")
	assert.Error(t, err)
}
