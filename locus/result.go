package locus

import (
	"math"

	"bitbucket.org/Davydov/phyinf/pi"
	"bitbucket.org/Davydov/phyinf/rates"
)

// Result is informativeness of a locus.
type Result struct {
	Locus string
	Rates rates.Rates
	// MeanRate is the mean of the defined rates, NaN if there are
	// none.
	MeanRate float64
	Profile  *pi.Profile
	Net      []float64
	// Discrete is net informativeness at the requested times.
	Discrete  []pi.Sample
	Intervals []pi.Integral
}

// Summary is the part of the result which is stored.
type Summary struct {
	Locus string `json:"locus"`
	// Sites is the alignment length.
	Sites int `json:"sites"`
	// Informative is the number of sites with defined rates.
	Informative int `json:"informative"`
	// MeanRate is nil if no rate is defined.
	MeanRate  *float64      `json:"meanRate,omitempty"`
	Net       []float64     `json:"net"`
	Discrete  []pi.Sample   `json:"discrete"`
	Intervals []pi.Integral `json:"intervals"`
}

// Summary drops the rates and the matrix.
func (res *Result) Summary() *Summary {
	s := &Summary{
		Locus:       res.Locus,
		Sites:       len(res.Rates),
		Informative: res.Rates.NDefined(),
		Net:         res.Net,
		Discrete:    res.Discrete,
		Intervals:   res.Intervals,
	}
	if !math.IsNaN(res.MeanRate) {
		m := res.MeanRate
		s.MeanRate = &m
	}
	return s
}
