package pi

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/integrate/quad"

	"bitbucket.org/Davydov/phyinf/rates"
)

// ErrInvalidEpoch is returned for an epoch which does not end after
// it starts.
var ErrInvalidEpoch = errors.New("invalid epoch")

// Epoch is a time interval.
type Epoch struct {
	Start, End int
}

// ParseEpoch parses an epoch in the start-end form, e.g. "20-70".
func ParseEpoch(s string) (Epoch, error) {
	fields := strings.Split(strings.TrimSpace(s), "-")
	if len(fields) != 2 {
		return Epoch{}, fmt.Errorf("%w: %q, expected start-end", ErrInvalidEpoch, s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Epoch{}, fmt.Errorf("%w: %q: %v", ErrInvalidEpoch, s, err)
	}
	end, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return Epoch{}, fmt.Errorf("%w: %q: %v", ErrInvalidEpoch, s, err)
	}
	e := Epoch{start, end}
	return e, e.Validate()
}

// Validate checks that the epoch starts before it ends.
func (e Epoch) Validate() error {
	if e.Start >= e.End {
		return fmt.Errorf("%w: %s, start should be less than end", ErrInvalidEpoch, e.Label())
	}
	return nil
}

// Label is the epoch name used in the results, e.g. "20-70".
func (e Epoch) Label() string {
	return strconv.Itoa(e.Start) + "-" + strconv.Itoa(e.End)
}

func (e Epoch) String() string {
	return e.Label()
}

// Method is an integration method.
type Method int

const (
	// Exact uses the antiderivative.
	Exact Method = iota
	// Quadrature uses composite Gauss-Legendre quadrature.
	Quadrature
)

func (m Method) String() string {
	switch m {
	case Exact:
		return "exact"
	case Quadrature:
		return "quadrature"
	}
	return "Method(" + strconv.Itoa(int(m)) + ")"
}

// ParseMethod converts a method name to Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "exact":
		return Exact, nil
	case "quadrature", "quad":
		return Quadrature, nil
	}
	return Exact, fmt.Errorf("unknown integration method: %q", s)
}

// Integral is informativeness integrated over an epoch and summed
// over sites.
type Integral struct {
	Label string  `json:"epoch"`
	Sum   float64 `json:"pi"`
	// Error is the sum of the per site error estimates.
	Error float64 `json:"error"`
}

// EpochIntegral integrates informativeness of every defined site over
// the epoch.
func EpochIntegral(r rates.Rates, e Epoch, m Method) (Integral, error) {
	if err := e.Validate(); err != nil {
		return Integral{}, err
	}
	a, b := float64(e.Start), float64(e.End)
	res := Integral{Label: e.Label()}
	for _, rate := range r {
		if !rate.Defined {
			continue
		}
		var v, dv float64
		switch m {
		case Exact:
			v = antiderivative(rate.Value, a) - antiderivative(rate.Value, b)
		case Quadrature:
			v, dv = legendre(rate.Value, a, b)
		default:
			return Integral{}, fmt.Errorf("unknown integration method: %v", m)
		}
		res.Sum += v
		res.Error += dv
	}
	return res, nil
}

// Epochs integrates informativeness over every epoch.
func Epochs(r rates.Rates, epochs []Epoch, m Method) ([]Integral, error) {
	res := make([]Integral, len(epochs))
	for i, e := range epochs {
		var err error
		if res[i], err = EpochIntegral(r, e, m); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// antiderivative returns (4 r x + 1) exp(-4 r x); the integral of
// Townsend over [a, b] is F(a) - F(b).
func antiderivative(r, x float64) float64 {
	return (4*r*x + 1) * math.Exp(-4*r*x)
}

const (
	// legendrePoints is the number of nodes per panel.
	legendrePoints = 16
	// maxPanels bounds the number of panels for very fast sites.
	maxPanels = 10000
)

// legendre integrates Townsend(t, r) over [a, b]. The interval is
// split into panels of about two e-foldings of the exponent; the error
// is the difference with the rule of double order.
func legendre(r, a, b float64) (v, dv float64) {
	if r == 0 {
		return 0, 0
	}
	f := func(t float64) float64 {
		return Townsend(t, r)
	}
	panels := int(math.Ceil(2 * math.Abs(r) * (b - a)))
	if panels < 1 {
		panels = 1
	}
	if panels > maxPanels {
		panels = maxPanels
	}
	w := (b - a) / float64(panels)
	for i := 0; i < panels; i++ {
		lo := a + float64(i)*w
		hi := lo + w
		if i == panels-1 {
			hi = b
		}
		q := quad.Fixed(f, lo, hi, legendrePoints, quad.Legendre{}, 0)
		q2 := quad.Fixed(f, lo, hi, 2*legendrePoints, quad.Legendre{}, 0)
		v += q2
		dv += math.Abs(q2 - q)
	}
	return v, dv
}
