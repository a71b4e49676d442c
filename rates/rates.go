// Package rates reads per-site substitution rates and masks the sites
// which are not informative.
//
// A rate is either defined or excluded. Excluded sites are skipped by
// every reduction in this package and in package pi; they never
// contribute zeros to sums or means.
package rates

import (
	"math"

	"github.com/op/go-logging"
	"gonum.org/v1/gonum/stat"
)

var log = logging.MustGetLogger("rates")

// Rate is a site rate in substitutions/site/time unit.
type Rate struct {
	Value   float64
	Defined bool
}

// Excluded is the rate of a site removed from the computations.
var Excluded = Rate{}

// Defined returns a defined rate.
func Defined(v float64) Rate {
	return Rate{Value: v, Defined: true}
}

// Rates is a vector of site rates in the alignment order.
type Rates []Rate

// FromValues creates defined rates from float values.
func FromValues(values []float64) Rates {
	r := make(Rates, len(values))
	for i, v := range values {
		r[i] = Defined(v)
	}
	return r
}

// Values returns defined rate values.
func (r Rates) Values() []float64 {
	v := make([]float64, 0, len(r))
	for _, rate := range r {
		if rate.Defined {
			v = append(v, rate.Value)
		}
	}
	return v
}

// NDefined returns the number of defined rates.
func (r Rates) NDefined() (n int) {
	for _, rate := range r {
		if rate.Defined {
			n++
		}
	}
	return
}

// Mean returns the mean of the defined rates, or NaN if no rate is
// defined.
func (r Rates) Mean() float64 {
	v := r.Values()
	if len(v) == 0 {
		return math.NaN()
	}
	return stat.Mean(v, nil)
}

// Scale returns rates divided by correction.
func (r Rates) Scale(correction float64) Rates {
	s := make(Rates, len(r))
	for i, rate := range r {
		if rate.Defined {
			s[i] = Defined(rate.Value / correction)
		}
	}
	return s
}
