package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bitbucket.org/Davydov/phyinf/batch"
	"bitbucket.org/Davydov/phyinf/checkpoint"
	"bitbucket.org/Davydov/phyinf/config"
	"bitbucket.org/Davydov/phyinf/estimator"
	"bitbucket.org/Davydov/phyinf/locus"
	"bitbucket.org/Davydov/phyinf/pi"
	"bitbucket.org/Davydov/phyinf/store"
	"bitbucket.org/Davydov/phyinf/tree"
)

// CheckpointName is the checkpoint file in the output directory.
const CheckpointName = "checkpoint.db"

// loadConfig reads the run file if there is one.
func loadConfig(fileName string) (*config.Config, error) {
	if fileName == "" {
		return config.Default(), nil
	}
	return config.Load(fileName)
}

// applyFlags overrides the configuration with the flags given on the
// command line.
func applyFlags(c *config.Config) {
	setString := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setString(&c.Alignments, *alignmentsDirName)
	setString(&c.Tree, *treeFileName)
	setString(&c.TreeFormat, *treeFormat)
	setString(&c.Output, *outDirName)
	setString(&c.Estimator, *estimatorBin)
	setString(&c.Template, *templateFileName)
	setString(&c.Times, *times)
	setString(&c.Intervals, *intervals)
	setString(&c.Method, *method)
	setString(&c.Database, *dbPolicy)
	setString(&c.OnFailure, *onFailure)
	if *timeout != 0 {
		c.Timeout = *timeout
	}
	if *threshold != 0 {
		c.Threshold = *threshold
	}
	if *workers != 0 {
		c.Workers = *workers
	}
	c.SiteRates = c.SiteRates || *siteRates
	c.Parallel = c.Parallel || *parallel
	c.DryRun = c.DryRun || *dryRun
	c.Resume = c.Resume || *resume
}

// outputDir returns the output directory of a run. A resumed run
// reuses the directory, otherwise a new one is created.
func outputDir(c *config.Config) (string, error) {
	if c.Resume {
		if err := os.MkdirAll(c.Output, 0777); err != nil {
			return "", err
		}
		return c.Output, nil
	}
	return config.UniqueDir(c.Output)
}

// compute runs the full pipeline: tree normalization, per locus
// informativeness and storage.
func compute(ctx context.Context, c *config.Config) error {
	r, err := c.Validate()
	if err != nil {
		return err
	}

	// Requested times are checked against the tree before anything is
	// written or estimated.
	t, err := tree.ReadFile(c.Tree, r.TreeFormat)
	if err != nil {
		return err
	}
	grid := pi.Times(t.Depth())
	if err := pi.CheckTimes(r.Times, len(grid)); err != nil {
		return fmt.Errorf("tree depth is %s: %w", tree.FormatLength(t.Depth()), err)
	}

	out, err := outputDir(c)
	if err != nil {
		return err
	}
	log.Noticef("Output directory: %s", out)

	// The database policy is resolved before anything is written.
	dbPath := filepath.Join(out, store.DefaultName)
	policy, err := resumePolicy(ctx, c, r.Database, dbPath)
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath, policy, c.Tables)
	if err != nil {
		return err
	}
	defer db.Close()

	norm, err := tree.WriteNormalized(t, c.Tree, out)
	if err != nil {
		return err
	}
	log.Noticef("Tree depth=%s, correction factor=%s",
		tree.FormatLength(norm.Depth), tree.FormatLength(norm.Correction))

	tasks, err := locus.Tasks(c.Alignments, out, c.SiteRates)
	if err != nil {
		return err
	}

	worker := &locus.Worker{
		Tree:       norm.Path,
		Correction: norm.Correction,
		Times:      grid,
		Requested:  r.Times,
		Epochs:     r.Epochs,
		Threshold:  c.Threshold,
		Method:     r.Method,
		DryRun:     c.DryRun,
	}
	if !c.SiteRates {
		runner := estimator.Runner{Binary: c.Estimator, Template: c.Template, Timeout: c.Timeout}
		if err := runner.Check(); err != nil {
			return err
		}
		worker.Estimator = runner
	}

	cp, err := checkpoint.Open(filepath.Join(out, CheckpointName))
	if err != nil {
		return err
	}
	defer cp.Close()

	done := make(map[string]*locus.Summary)
	if c.Resume {
		if done, err = finished(cp, tasks); err != nil {
			return err
		}
		log.Noticef("Resuming: %d of %d loci are finished", len(done), len(tasks))
	}
	var pending []locus.Task
	for _, t := range tasks {
		if _, ok := done[t.Name]; !ok {
			pending = append(pending, t)
		}
	}

	outcomes := batch.Run(ctx, pending, worker.Process, batch.Options{
		Parallel: c.Parallel,
		Workers:  c.Workers,
		Policy:   r.OnFailure,
		OnDone: func(i, n int, o batch.Outcome) {
			if o.Err != nil {
				if !errors.Is(o.Err, context.Canceled) {
					log.Errorf("locus %d/%d failed: %v", i, n, o.Err)
				}
				return
			}
			log.Noticef("locus %d/%d done: %s", i, n, o.Task.Name)
			if err := cp.Save(o.Result.Summary()); err != nil {
				log.Warningf("%s: checkpoint is not saved: %v", o.Task.Name, err)
			}
		},
	})

	for _, o := range outcomes {
		if o.Err == nil {
			done[o.Task.Name] = o.Result.Summary()
		}
	}
	summaries := ordered(tasks, done)

	errs := batch.Errors(outcomes)
	if len(errs) > 0 && r.OnFailure == batch.FailFast {
		return failed(errs)
	}

	records, err := newRecords(ctx, db, policy, summaries)
	if err != nil {
		return err
	}
	if err := db.Persist(ctx, records); err != nil {
		return err
	}
	log.Noticef("%d loci stored in %s", len(records), dbPath)

	if *jsonF != "" {
		if err := writeJSON(*jsonF, summaries); err != nil {
			log.Error("Error writing json summary:", err)
		}
	}

	if len(errs) > 0 {
		return failed(errs)
	}
	return nil
}

// resumePolicy returns the database policy of a run. A resumed run
// replaces a database without loci, which is left by a run that failed
// before storing the results.
func resumePolicy(ctx context.Context, c *config.Config, policy store.Policy, dbPath string) (store.Policy, error) {
	if !c.Resume || policy != store.Fail {
		return policy, nil
	}
	empty, err := store.Empty(ctx, dbPath, c.Tables)
	if err != nil {
		return policy, err
	}
	if empty {
		return store.Overwrite, nil
	}
	return policy, nil
}

// newRecords converts summaries to records. With the Append policy the
// loci already in the database are skipped.
func newRecords(ctx context.Context, db *store.Store, policy store.Policy, summaries []*locus.Summary) ([]store.Record, error) {
	stored := make(map[string]bool)
	if policy == store.Append {
		loci, err := db.Loci(ctx)
		if err != nil {
			return nil, err
		}
		for _, l := range loci {
			stored[l.Name] = true
		}
	}
	records := make([]store.Record, 0, len(summaries))
	for _, s := range summaries {
		if stored[s.Locus] {
			log.Infof("%s: already stored", s.Locus)
			continue
		}
		records = append(records, store.NewRecord(s))
	}
	return records, nil
}

// finished loads the checkpointed summaries of the tasks.
func finished(cp *checkpoint.Checkpoint, tasks []locus.Task) (map[string]*locus.Summary, error) {
	done := make(map[string]*locus.Summary)
	for _, t := range tasks {
		s, err := cp.Load(t.Name)
		if err != nil {
			return nil, err
		}
		if s != nil {
			log.Debugf("%s: using checkpoint", t.Name)
			done[t.Name] = s
		}
	}
	return done, nil
}

// ordered returns the summaries in the task order, skipping loci
// without one.
func ordered(tasks []locus.Task, done map[string]*locus.Summary) []*locus.Summary {
	summaries := make([]*locus.Summary, 0, len(done))
	for _, t := range tasks {
		if s, ok := done[t.Name]; ok {
			summaries = append(summaries, s)
		}
	}
	return summaries
}

// failed returns an error naming every failed locus. Loci cancelled
// after another failure are not named.
func failed(errs []*batch.TaskError) error {
	var names []string
	for _, e := range errs {
		if !errors.Is(e, context.Canceled) {
			names = append(names, e.Locus)
		}
	}
	if len(names) == 0 {
		return errs[0]
	}
	return fmt.Errorf("%d loci failed: %s", len(names), strings.Join(names, ", "))
}

func writeJSON(fileName string, summaries []*locus.Summary) error {
	j, err := json.Marshal(summaries)
	if err != nil {
		return err
	}
	log.Debug(string(j))
	return os.WriteFile(fileName, j, 0666)
}
