/*
Package estimator runs the external site rate estimator.

The estimator is started as

	binary template

and receives three lines on its standard input: the alignment path,
the tree path and the path of the rate file to produce. Output
starting with "Error" means that estimation has failed.
*/
package estimator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("estimator")

var (
	// ErrEstimatorNotFound is returned if the binary cannot be
	// started.
	ErrEstimatorNotFound = errors.New("estimator not found")
	// ErrEstimatorExecution is returned if the estimator reports an
	// error, exits with non-zero status or times out.
	ErrEstimatorExecution = errors.New("estimator execution failed")
)

// errorMarker is the output prefix of a failed estimation.
const errorMarker = "Error"

// Request is the estimator input.
type Request struct {
	Alignment string
	Tree      string
	Output    string
}

// MarshalText encodes the request as newline separated paths.
func (r Request) MarshalText() ([]byte, error) {
	fields := []string{r.Alignment, r.Tree, r.Output}
	for _, f := range fields {
		if f == "" {
			return nil, fmt.Errorf("empty path in request %+v", r)
		}
		if strings.ContainsAny(f, "\r\n") {
			return nil, fmt.Errorf("path contains a newline: %q", f)
		}
	}
	return []byte(strings.Join(fields, "\n") + "\n"), nil
}

// UnmarshalText decodes a request.
func (r *Request) UnmarshalText(text []byte) error {
	lines := strings.Split(strings.TrimRight(string(text), "\r\n"), "\n")
	if len(lines) != 3 {
		return fmt.Errorf("request should have 3 lines, got %d", len(lines))
	}
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
		if lines[i] == "" {
			return fmt.Errorf("empty line %d in request", i+1)
		}
	}
	r.Alignment, r.Tree, r.Output = lines[0], lines[1], lines[2]
	return nil
}

// ParseRequest decodes a request from text.
func ParseRequest(text []byte) (Request, error) {
	var r Request
	err := r.UnmarshalText(text)
	return r, err
}

// Response is the estimator output.
type Response struct {
	// Output is the standard output.
	Output string
	// Diagnostics is the standard error.
	Diagnostics string
}

// Runner starts the estimator.
type Runner struct {
	Binary   string
	Template string
	// Timeout limits the run time; zero means no limit.
	Timeout time.Duration
}

// Check tests that the binary can be found.
func (r Runner) Check() error {
	if _, err := exec.LookPath(r.Binary); err != nil {
		return fmt.Errorf("%w: %v", ErrEstimatorNotFound, err)
	}
	return nil
}

// Run runs the estimator and waits for it to finish.
func (r Runner) Run(ctx context.Context, req Request) (*Response, error) {
	input, err := req.MarshalText()
	if err != nil {
		return nil, err
	}
	if err := r.Check(); err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, r.Template)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Children may keep the pipes open after the estimator is killed.
	cmd.WaitDelay = time.Second

	log.Debugf("running %s %s for %s", r.Binary, r.Template, req.Alignment)
	start := time.Now()
	err = cmd.Run()
	resp := &Response{Output: stdout.String(), Diagnostics: stderr.String()}

	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		return resp, fmt.Errorf("%w: %s: timed out after %v", ErrEstimatorExecution, req.Alignment, r.Timeout)
	case err != nil && ctx.Err() != nil:
		return resp, ctx.Err()
	case errors.Is(err, exec.ErrNotFound):
		return resp, fmt.Errorf("%w: %v", ErrEstimatorNotFound, err)
	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return resp, fmt.Errorf("%w: %v", ErrEstimatorNotFound, err)
		}
		return resp, fmt.Errorf("%w: %s: %v: %s", ErrEstimatorExecution, req.Alignment, err,
			strings.TrimSpace(resp.Diagnostics))
	case strings.HasPrefix(strings.TrimLeft(resp.Output, " \t\r\n"), errorMarker):
		return resp, fmt.Errorf("%w: %s: %s", ErrEstimatorExecution, req.Alignment,
			strings.TrimSpace(resp.Output))
	}
	log.Debugf("%s done in %v", req.Alignment, time.Since(start))
	return resp, nil
}
