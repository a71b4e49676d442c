// Package pi implements phylogenetic informativeness (Townsend 2007)
// profiles for site rates.
package pi

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"bitbucket.org/Davydov/phyinf/rates"
)

// ErrOutOfRangeTime is returned for a requested time outside of the
// profile.
var ErrOutOfRangeTime = errors.New("time out of range")

// Townsend returns informativeness of a site with rate r at time t,
// 16 r^2 t exp(-4 r t).
func Townsend(t, r float64) float64 {
	return 16 * r * r * t * math.Exp(-4*r*t)
}

// Times returns integer times from 0 to floor(depth) inclusive.
func Times(depth float64) []float64 {
	if !(depth >= 0) {
		return nil
	}
	n := int(math.Floor(depth)) + 1
	t := make([]float64, n)
	for i := range t {
		t[i] = float64(i)
	}
	return t
}

// Profile is the informativeness of every defined site at every time.
type Profile struct {
	Times []float64
	// Sites contains the alignment position of every matrix column.
	Sites []int
	// Matrix is times x sites; nil if there are no times or no
	// defined sites.
	Matrix *mat.Dense
}

// NewProfile computes informativeness matrix. Excluded sites get no
// column.
func NewProfile(times []float64, r rates.Rates) *Profile {
	p := &Profile{Times: times}
	values := make([]float64, 0, len(r))
	for i, rate := range r {
		if rate.Defined {
			p.Sites = append(p.Sites, i)
			values = append(values, rate.Value)
		}
	}
	if len(times) == 0 || len(values) == 0 {
		return p
	}
	p.Matrix = mat.NewDense(len(times), len(values), nil)
	p.Matrix.Apply(func(i, j int, _ float64) float64 {
		return Townsend(times[i], values[j])
	}, p.Matrix)
	return p
}

// Net returns informativeness summed over sites for every time.
func (p *Profile) Net() []float64 {
	net := make([]float64, len(p.Times))
	if p.Matrix == nil {
		return net
	}
	for i := range net {
		net[i] = floats.Sum(p.Matrix.RawRowView(i))
	}
	return net
}

// Site returns the informativeness of site over time. The second
// value is false for an excluded site.
func (p *Profile) Site(site int) ([]float64, bool) {
	for j, s := range p.Sites {
		if s == site {
			return mat.Col(nil, j, p.Matrix), true
		}
	}
	return nil, false
}

// Sample is net informativeness at a given time.
type Sample struct {
	Time int     `json:"time"`
	PI   float64 `json:"pi"`
}

// NetAtTimes returns net informativeness at the requested times, in
// the request order. Times are indices in net.
func NetAtTimes(net []float64, times []int) ([]Sample, error) {
	if err := CheckTimes(times, len(net)); err != nil {
		return nil, err
	}
	samples := make([]Sample, len(times))
	for i, t := range times {
		samples[i] = Sample{t, net[t]}
	}
	return samples, nil
}

// CheckTimes returns ErrOutOfRangeTime unless every time is in
// 0..n-1, where n is the length of the time vector, e.g.
// len(Times(depth)).
func CheckTimes(times []int, n int) error {
	for _, t := range times {
		if t < 0 || t >= n {
			return fmt.Errorf("%w: %d not in 0..%d", ErrOutOfRangeTime, t, n-1)
		}
	}
	return nil
}
