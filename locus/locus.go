// Package locus computes informativeness profile of a single locus.
package locus

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/phyinf/bio"
	"bitbucket.org/Davydov/phyinf/estimator"
	"bitbucket.org/Davydov/phyinf/pi"
	"bitbucket.org/Davydov/phyinf/rates"
)

var log = logging.MustGetLogger("locus")

// RateExt is the extension of the rate files produced by the
// estimator.
const RateExt = ".rates"

// AlignmentPatterns match alignment files.
var AlignmentPatterns = []string{"*.nex", "*.nexus"}

// RatePatterns match precomputed rate files.
var RatePatterns = []string{"*" + RateExt}

// Task is a single locus to process.
type Task struct {
	Name      string
	Alignment string
	RateFile  string
	// Precomputed tasks read an existing rate file and skip the
	// estimator.
	Precomputed bool
}

// Name returns the locus name for a file path: the base name without
// the rate and alignment extensions.
func Name(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".json", RateExt, ".nexus", ".nex", ".fasta", ".fas", ".fst", ".fa"} {
		name = strings.TrimSuffix(name, ext)
	}
	return name
}

// EstimateTask returns a task which runs the estimator for alignment
// and writes rates into outDir.
func EstimateTask(alignment, outDir string) Task {
	return Task{
		Name:      Name(alignment),
		Alignment: alignment,
		RateFile:  filepath.Join(outDir, filepath.Base(alignment)+RateExt),
	}
}

// PrecomputedTask returns a task for an existing rate file.
func PrecomputedTask(rateFile string) Task {
	return Task{
		Name:        Name(rateFile),
		RateFile:    rateFile,
		Precomputed: true,
	}
}

// Find returns sorted files in dir matching any of the patterns. An
// error is returned if there are none.
func Find(dir string, patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		m, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, err
		}
		files = append(files, m...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("there are no %s files in %s", strings.Join(patterns, ","), dir)
	}
	sort.Strings(files)
	return files, nil
}

// Tasks finds the input files in dir and creates tasks for them.
func Tasks(dir, outDir string, precomputed bool) ([]Task, error) {
	patterns := AlignmentPatterns
	if precomputed {
		patterns = RatePatterns
	}
	files, err := Find(dir, patterns)
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, len(files))
	for i, f := range files {
		if precomputed {
			tasks[i] = PrecomputedTask(f)
		} else {
			tasks[i] = EstimateTask(f, outDir)
		}
	}
	return tasks, nil
}

// Estimator produces a rate file.
type Estimator interface {
	Run(ctx context.Context, req estimator.Request) (*estimator.Response, error)
}

// Worker processes loci. All the fields are shared between the loci
// and are not modified.
type Worker struct {
	Estimator Estimator
	// Tree is the normalized tree file passed to the estimator.
	Tree       string
	Correction float64
	Times      []float64
	// Requested are the discrete times.
	Requested []int
	Epochs    []pi.Epoch
	Threshold int
	Method    pi.Method
	// DryRun leaves the rate files unchanged.
	DryRun bool
	// Retry controls rate file reading; zero value means
	// rates.DefaultOptions.
	Retry rates.Options
}

// Process computes informativeness for a locus.
func (w *Worker) Process(ctx context.Context, task Task) (*Result, error) {
	retry := w.Retry
	if retry.Attempts == 0 {
		retry = rates.DefaultOptions
	}

	var r rates.Rates
	if task.Precomputed {
		var err error
		if r, err = retry.Ingest(task.RateFile, w.Correction, false); err != nil {
			return nil, err
		}
	} else {
		seqs, err := bio.Read(task.Alignment)
		if err != nil {
			return nil, fmt.Errorf("reading alignment: %w", err)
		}
		mask, err := rates.Informative(seqs, w.Threshold)
		if err != nil {
			return nil, err
		}

		if w.Estimator == nil {
			return nil, estimator.ErrEstimatorNotFound
		}
		resp, err := w.Estimator.Run(ctx, estimator.Request{
			Alignment: task.Alignment,
			Tree:      w.Tree,
			Output:    task.RateFile,
		})
		if err != nil {
			return nil, err
		}
		if resp != nil && resp.Diagnostics != "" {
			log.Debugf("%s: %s", task.Name, strings.TrimSpace(resp.Diagnostics))
		}

		if r, err = retry.Ingest(task.RateFile, w.Correction, !w.DryRun); err != nil {
			return nil, err
		}
		if r, err = rates.Cull(r, mask); err != nil {
			return nil, fmt.Errorf("%s: %w", task.RateFile, err)
		}
		log.Infof("%s: %d of %d sites are informative", task.Name, mask.NInformative(), len(mask))
	}

	return w.compute(task.Name, r)
}

// compute evaluates informativeness for rates.
func (w *Worker) compute(name string, r rates.Rates) (*Result, error) {
	res := &Result{
		Locus:    name,
		Rates:    r,
		MeanRate: r.Mean(),
		Profile:  pi.NewProfile(w.Times, r),
	}
	res.Net = res.Profile.Net()

	var err error
	if res.Discrete, err = pi.NetAtTimes(res.Net, w.Requested); err != nil {
		return nil, err
	}
	if res.Intervals, err = pi.Epochs(r, w.Epochs, w.Method); err != nil {
		return nil, err
	}
	return res, nil
}
