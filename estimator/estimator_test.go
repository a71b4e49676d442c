package estimator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stub writes an executable shell script which plays the estimator.
func stub(t *testing.T, body string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "estimator.sh")
	require.NoError(t, os.WriteFile(fn, []byte("#!/bin/sh\n"+body), 0755))
	return fn
}

func TestRequestText(t *testing.T) {
	req := Request{"data/locus1.nex", "Tree_1000_174.newick", "data/locus1.rates.json"}
	text, err := req.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "data/locus1.nex\nTree_1000_174.newick\ndata/locus1.rates.json\n", string(text))

	parsed, err := ParseRequest(text)
	require.NoError(t, err)
	assert.Equal(t, req, parsed)

	parsed, err = ParseRequest([]byte("a\r\nb\r\nc"))
	require.NoError(t, err)
	assert.Equal(t, Request{"a", "b", "c"}, parsed)
}

func TestRequestInvalid(t *testing.T) {
	_, err := Request{"a", "", "c"}.MarshalText()
	assert.Error(t, err)
	_, err = Request{"a", "b\nc", "d"}.MarshalText()
	assert.Error(t, err)

	for _, s := range []string{"", "a\nb", "a\n\nc", "a\nb\nc\nd"} {
		_, err := ParseRequest([]byte(s))
		assert.Error(t, err, s)
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	bin := stub(t, `read aln; read tree; read out
echo "$1 $aln $tree" > "$out"
echo "rates written"
echo "progress" >&2
`)
	out := filepath.Join(dir, "rates.json")
	r := Runner{Binary: bin, Template: "rates.bf", Timeout: 10 * time.Second}
	resp, err := r.Run(context.Background(), Request{"aln.nex", "tree.newick", out})
	require.NoError(t, err)
	assert.Equal(t, "rates written\n", resp.Output)
	assert.Equal(t, "progress\n", resp.Diagnostics)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "rates.bf aln.nex tree.newick\n", string(data))
}

func TestRunNotFound(t *testing.T) {
	r := Runner{Binary: filepath.Join(t.TempDir(), "missing"), Template: "rates.bf"}
	_, err := r.Run(context.Background(), Request{"a", "b", "c"})
	assert.True(t, errors.Is(err, ErrEstimatorNotFound), err)

	r.Binary = "phyinf-no-such-estimator"
	assert.True(t, errors.Is(r.Check(), ErrEstimatorNotFound))
}

func TestRunErrorOutput(t *testing.T) {
	r := Runner{Binary: stub(t, "cat > /dev/null\necho 'Error: alignment is not readable'\n")}
	resp, err := r.Run(context.Background(), Request{"a", "b", "c"})
	assert.True(t, errors.Is(err, ErrEstimatorExecution), err)
	assert.True(t, strings.Contains(err.Error(), "alignment is not readable"))
	assert.Equal(t, "Error: alignment is not readable\n", resp.Output)
}

func TestRunExitStatus(t *testing.T) {
	r := Runner{Binary: stub(t, "cat > /dev/null\necho broken >&2\nexit 3\n")}
	_, err := r.Run(context.Background(), Request{"a", "b", "c"})
	assert.True(t, errors.Is(err, ErrEstimatorExecution), err)
	assert.True(t, strings.Contains(err.Error(), "broken"))
}

func TestRunTimeout(t *testing.T) {
	r := Runner{Binary: stub(t, "exec sleep 10\n"), Timeout: 100 * time.Millisecond}
	start := time.Now()
	_, err := r.Run(context.Background(), Request{"a", "b", "c"})
	assert.True(t, errors.Is(err, ErrEstimatorExecution), err)
	assert.True(t, time.Since(start) < 5*time.Second)
}

func TestRunCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := Runner{Binary: stub(t, "exec sleep 10\n")}
	_, err := r.Run(ctx, Request{"a", "b", "c"})
	assert.True(t, errors.Is(err, context.Canceled), err)
}
