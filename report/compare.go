package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bitbucket.org/Davydov/phyinf/pi"
	"bitbucket.org/Davydov/phyinf/store"
)

// ErrIntervalMismatch is returned when the databases have different
// epochs.
var ErrIntervalMismatch = errors.New("databases have different intervals")

// Stat summarizes the top loci of an epoch.
type Stat struct {
	N    int
	Mean float64
	Sum  float64
}

// Comparison holds statistics of the top loci for every database and
// epoch.
type Comparison struct {
	Top       int
	Databases []string
	Epochs    []string
	// Stats is indexed by database and epoch.
	Stats [][]Stat
}

// Compare computes statistics of the top loci per epoch for every
// database. All the databases should have the same epochs.
func Compare(ctx context.Context, names []string, stores []*store.Store, top int) (*Comparison, error) {
	if len(names) != len(stores) {
		return nil, fmt.Errorf("%d names for %d databases", len(names), len(stores))
	}
	cmp := &Comparison{Top: top, Databases: names}
	for i, s := range stores {
		labels, err := s.Intervals(ctx)
		if err != nil {
			return nil, err
		}
		SortEpochs(labels)
		if i == 0 {
			cmp.Epochs = labels
		} else if strings.Join(labels, ",") != strings.Join(cmp.Epochs, ",") {
			return nil, fmt.Errorf("%w: %s has %v, %s has %v", ErrIntervalMismatch,
				names[0], cmp.Epochs, names[i], labels)
		}

		stats := make([]Stat, len(labels))
		for j, label := range labels {
			rows, err := s.TopByInterval(ctx, label, top)
			if err != nil {
				return nil, err
			}
			values := make([]float64, len(rows))
			for k, r := range rows {
				values[k] = r.PI
			}
			stats[j] = Stat{N: len(values), Mean: math.NaN(), Sum: floats.Sum(values)}
			if len(values) > 0 {
				stats[j].Mean = stat.Mean(values, nil)
			}
		}
		cmp.Stats = append(cmp.Stats, stats)
	}
	return cmp, nil
}

// SortEpochs sorts epoch labels by start and end time. Labels which
// are not epochs go last.
func SortEpochs(labels []string) {
	sort.SliceStable(labels, func(i, j int) bool {
		a, errA := pi.ParseEpoch(labels[i])
		b, errB := pi.ParseEpoch(labels[j])
		switch {
		case errA != nil || errB != nil:
			return errA == nil && errB != nil
		case a.Start != b.Start:
			return a.Start < b.Start
		}
		return a.End < b.End
	})
}

// Names returns short database names: the paths without the common
// prefix, or the base name of a single path.
func Names(paths []string) []string {
	names := make([]string, len(paths))
	if len(paths) == 1 {
		names[0] = filepath.Base(paths[0])
		return names
	}
	prefix := commonPrefix(paths)
	for i, p := range paths {
		names[i] = strings.TrimPrefix(p, prefix)
		if names[i] == "" {
			names[i] = p
		}
	}
	return names
}

func commonPrefix(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	prefix := paths[0]
	for _, p := range paths[1:] {
		for !strings.HasPrefix(p, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
