// Package config holds the run configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bitbucket.org/Davydov/phyinf/batch"
	"bitbucket.org/Davydov/phyinf/pi"
	"bitbucket.org/Davydov/phyinf/store"
	"bitbucket.org/Davydov/phyinf/tree"
)

// ErrInvalidConfig is returned for an inconsistent configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// MaxUniqueDirs is the number of suffixes tried by UniqueDir.
const MaxUniqueDirs = 100

// Config is the configuration of a compute run.
type Config struct {
	Alignments string `yaml:"alignments"`
	Tree       string `yaml:"tree"`
	TreeFormat string `yaml:"tree_format"`
	Output     string `yaml:"output"`

	Estimator string        `yaml:"estimator"`
	Template  string        `yaml:"template"`
	Timeout   time.Duration `yaml:"timeout"`

	Threshold int    `yaml:"threshold"`
	Times     string `yaml:"times"`
	Intervals string `yaml:"intervals"`
	Method    string `yaml:"method"`

	// SiteRates uses rate files from a previous run.
	SiteRates bool   `yaml:"site_rates"`
	Parallel  bool   `yaml:"parallel"`
	Workers   int    `yaml:"workers"`
	Database  string `yaml:"database"`
	OnFailure string `yaml:"on_failure"`
	DryRun    bool   `yaml:"dry_run"`
	Resume    bool   `yaml:"resume"`

	Tables store.Tables `yaml:"tables"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		TreeFormat: "newick",
		Output:     "phyinf-output",
		Estimator:  "HYPHYMP",
		Timeout:    time.Hour,
		Threshold:  3,
		Times:      "10,20,50",
		Intervals:  "0-10,10-20,20-50",
		Method:     "exact",
		Database:   "fail",
		OnFailure:  "failfast",
		Tables:     store.DefaultTables(),
	}
}

// Load reads a YAML run file over the defaults.
func Load(fileName string) (*Config, error) {
	c := Default()
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, fileName, err)
	}
	return c, nil
}

// Run is the validated configuration.
type Run struct {
	TreeFormat tree.Format
	Times      []int
	Epochs     []pi.Epoch
	Method     pi.Method
	Database   store.Policy
	OnFailure  batch.Policy
}

// Validate checks the configuration and parses the lists.
func (c *Config) Validate() (*Run, error) {
	var r Run
	var err error
	invalid := func(err error) (*Run, error) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Alignments == "" {
		return invalid(errors.New("alignments directory is not specified"))
	}
	if c.Tree == "" {
		return invalid(errors.New("tree is not specified"))
	}
	if !c.SiteRates && c.Estimator == "" {
		return invalid(errors.New("estimator is not specified"))
	}
	if !c.SiteRates && c.Template == "" {
		return invalid(errors.New("estimator template is not specified"))
	}
	if c.Threshold < 1 {
		return invalid(fmt.Errorf("threshold should be positive, got %d", c.Threshold))
	}
	if c.Workers < 0 {
		return invalid(fmt.Errorf("negative number of workers: %d", c.Workers))
	}
	if c.Timeout < 0 {
		return invalid(fmt.Errorf("negative timeout: %v", c.Timeout))
	}
	if r.TreeFormat, err = tree.ParseFormat(c.TreeFormat); err != nil {
		return invalid(err)
	}
	if r.Times, err = ParseTimes(c.Times); err != nil {
		return invalid(err)
	}
	if r.Epochs, err = ParseIntervals(c.Intervals); err != nil {
		return invalid(err)
	}
	if r.Method, err = pi.ParseMethod(c.Method); err != nil {
		return invalid(err)
	}
	if r.Database, err = store.ParsePolicy(c.Database); err != nil {
		return invalid(err)
	}
	if r.OnFailure, err = batch.ParsePolicy(c.OnFailure); err != nil {
		return invalid(err)
	}
	if err := c.Tables.Validate(); err != nil {
		return invalid(err)
	}
	return &r, nil
}

// ParseTimes parses a comma separated list of times, e.g. "10,20,50".
func ParseTimes(s string) ([]int, error) {
	var times []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		t, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad time %q: %v", f, err)
		}
		if t < 0 {
			return nil, fmt.Errorf("negative time: %d", t)
		}
		times = append(times, t)
	}
	if len(times) == 0 {
		return nil, errors.New("no times specified")
	}
	return times, nil
}

// ParseIntervals parses a comma separated list of epochs, e.g.
// "0-10,10-15".
func ParseIntervals(s string) ([]pi.Epoch, error) {
	var epochs []pi.Epoch
	for _, f := range strings.Split(s, ",") {
		if strings.TrimSpace(f) == "" {
			continue
		}
		e, err := pi.ParseEpoch(f)
		if err != nil {
			return nil, err
		}
		epochs = append(epochs, e)
	}
	if len(epochs) == 0 {
		return nil, errors.New("no intervals specified")
	}
	return epochs, nil
}

// UniqueDir creates directory path. If it exists, path.1, path.2 and
// so on are tried. The created directory is returned.
func UniqueDir(path string) (string, error) {
	p := path
	for i := 1; i <= MaxUniqueDirs; i++ {
		err := os.Mkdir(p, 0777)
		if err == nil {
			return p, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		p = path + "." + strconv.Itoa(i)
	}
	return "", fmt.Errorf("cannot create a unique directory for %s, tried %d names", path, MaxUniqueDirs)
}
