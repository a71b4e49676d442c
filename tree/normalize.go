package tree

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("tree")

// ErrInvalidTree is returned when a tree cannot be read or cannot be
// normalized.
var ErrInvalidTree = errors.New("invalid tree")

// Normalization is the result of branch length normalization.
type Normalization struct {
	// Depth is the root to tip distance before rescaling.
	Depth float64
	// Correction is the factor all the branch lengths were divided by.
	Correction float64
	// MeanBranchLength is the mean branch length before rescaling.
	MeanBranchLength float64
	// Path is the rescaled tree file (only set by NormalizeFile).
	Path string
}

// CorrectionFactor returns the power of ten which brings the mean
// branch length to a single digit before the decimal point, or 1 if
// it is already there.
func CorrectionFactor(mean float64) float64 {
	digits := len(strconv.FormatInt(int64(mean+0.5), 10))
	if digits > 1 {
		return math.Pow(10, float64(digits))
	}
	return 1
}

// Normalize rescales the branch lengths of t in place. The mean branch
// length is computed assuming an unrooted bifurcating tree, i.e.
// 2n-3 branches for n leaves.
func Normalize(t *Tree) (Normalization, error) {
	nLeaves := t.NLeaves()
	if nLeaves < 2 {
		return Normalization{}, fmt.Errorf("%w: %d leaves, at least 2 required", ErrInvalidTree, nLeaves)
	}
	n := Normalization{
		Depth:            t.Depth(),
		MeanBranchLength: t.Length() / float64(2*nLeaves-3),
	}
	n.Correction = CorrectionFactor(n.MeanBranchLength)
	t.Rescale(n.Correction)
	log.Debugf("mean branch length=%v, correction=%v, depth=%v", n.MeanBranchLength, n.Correction, n.Depth)
	return n, nil
}

// Rescale divides all the defined branch lengths by factor.
func (tree *Tree) Rescale(factor float64) {
	if factor == 1 {
		return
	}
	for node := range tree.Walker(nil) {
		if node.HasLength {
			node.BranchLength /= factor
		}
	}
}

// RescaledName returns the file name of a tree rescaled by
// correction with the given depth.
func RescaledName(correction, depth float64) string {
	return fmt.Sprintf("Tree_%s_%s.newick", FormatLength(correction), FormatLength(depth))
}

// ReadFile reads a tree file in the given format.
func ReadFile(fileName string, format Format) (*Tree, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f, format)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTree, fileName, err)
	}
	return t, nil
}

// NormalizeFile reads a tree, normalizes it and writes the result in
// the newick format to dir. The input file is not modified.
func NormalizeFile(fileName string, format Format, dir string) (Normalization, error) {
	t, err := ReadFile(fileName, format)
	if err != nil {
		return Normalization{}, err
	}
	return WriteNormalized(t, fileName, dir)
}

// WriteNormalized normalizes a copy of t, which was read from
// fileName, and writes it to dir. t itself is not modified.
func WriteNormalized(t *Tree, fileName, dir string) (Normalization, error) {
	rescaled := t.Copy()
	n, err := Normalize(rescaled)
	if err != nil {
		return n, err
	}

	n.Path = filepath.Join(dir, RescaledName(n.Correction, n.Depth))
	abs, err := filepath.Abs(fileName)
	if err == nil {
		if out, err := filepath.Abs(n.Path); err == nil && out == abs {
			return n, fmt.Errorf("rescaled tree would overwrite the input tree %s", fileName)
		}
	}
	if err := os.WriteFile(n.Path, []byte(rescaled.Newick()+"\n"), 0666); err != nil {
		return n, err
	}
	log.Debugf("input tree: %s", t.Newick())
	log.Infof("Rescaled tree (correction=%s, depth=%s) written to %s",
		FormatLength(n.Correction), FormatLength(n.Depth), n.Path)
	return n, nil
}
