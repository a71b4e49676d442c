package rates

import (
	"errors"
	"fmt"

	"bitbucket.org/Davydov/phyinf/bio"
)

// ErrLengthMismatch is returned when the mask and the rates have
// different lengths.
var ErrLengthMismatch = errors.New("length mismatch")

// Mask is true for the informative sites.
type Mask []bool

// NInformative returns the number of informative sites.
func (m Mask) NInformative() (n int) {
	for _, ok := range m {
		if ok {
			n++
		}
	}
	return
}

// Informative returns a mask of the alignment sites where at least
// threshold taxa have a definite nucleotide. A threshold above the
// number of taxa masks out every site.
func Informative(seqs bio.Sequences, threshold int) (Mask, error) {
	l, err := seqs.Length()
	if err != nil {
		return nil, err
	}
	counts := make([]int, l)
	for _, seq := range seqs {
		for i := 0; i < l; i++ {
			if bio.IsDefinite(seq.Sequence[i]) {
				counts[i]++
			}
		}
	}
	m := make(Mask, l)
	for i, c := range counts {
		m[i] = c >= threshold
	}
	return m, nil
}

// Cull excludes the rates of the sites which are not informative.
func Cull(r Rates, m Mask) (Rates, error) {
	if len(r) != len(m) {
		return nil, fmt.Errorf("%w: %d rates, %d sites in the mask", ErrLengthMismatch, len(r), len(m))
	}
	c := make(Rates, len(r))
	for i, rate := range r {
		if m[i] {
			c[i] = rate
		}
	}
	return c, nil
}
