package tree

import (
	"bytes"
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
)

const tree4 = "((a:120,b:340):200,(c:560,d:80):100,e:900);"

func TestNormalizeEuteleost(tst *testing.T) {
	dir := tst.TempDir()
	n, err := NormalizeFile("testdata/Euteleost.tree", Newick, dir)
	if err != nil {
		tst.Fatal("Error normalizing tree", err)
	}
	if n.Correction != 1 {
		tst.Error("Expected correction 1, got", n.Correction)
	}
	if math.Abs(n.Depth-1.74) > 1e-9 {
		tst.Error("Expected depth 1.74, got", n.Depth)
	}
	if filepath.Dir(n.Path) != dir {
		tst.Error("Rescaled tree written to a wrong directory:", n.Path)
	}

	f, err := os.Open(n.Path)
	if err != nil {
		tst.Fatal(err)
	}
	defer f.Close()
	t, err := ParseNewick(f)
	if err != nil {
		tst.Fatal("Error reading rescaled tree", err)
	}
	if t.Newick() != euteleost+";" {
		tst.Error("Expected", euteleost, "got", t)
	}

	orig, err := os.ReadFile("testdata/Euteleost.tree")
	if err != nil {
		tst.Fatal(err)
	}
	if string(orig) != euteleost+";\n" {
		tst.Error("Input tree was modified")
	}
}

func TestNormalizeGolden(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree4))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	n, err := Normalize(t)
	if err != nil {
		tst.Fatal("Error normalizing tree", err)
	}
	if n.Correction != 1000 {
		tst.Error("Expected correction 1000, got", n.Correction)
	}
	if n.Depth != 900 {
		tst.Error("Expected depth 900, got", n.Depth)
	}
	if name := RescaledName(n.Correction, n.Depth); name != "Tree_1000_900.newick" {
		tst.Error("Wrong rescaled tree name", name)
	}

	g := goldie.New(tst)
	g.Assert(tst, "rescaled", []byte(t.Newick()+"\n"))
}

func TestWriteNormalizedKeepsInput(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree4))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	dir := tst.TempDir()
	n, err := WriteNormalized(t, "tree4.newick", dir)
	if err != nil {
		tst.Fatal("Error normalizing tree", err)
	}
	if t.Newick() != tree4 {
		tst.Error("Input tree was rescaled:", t)
	}
	if n.Path != filepath.Join(dir, "Tree_1000_900.newick") {
		tst.Error("Wrong rescaled tree path", n.Path)
	}
	data, err := os.ReadFile(n.Path)
	if err != nil {
		tst.Fatal(err)
	}
	g := goldie.New(tst)
	g.Assert(tst, "rescaled", data)
}

func TestNormalizeTooFewLeaves(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString("(a:1);"))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if _, err := Normalize(t); !errors.Is(err, ErrInvalidTree) {
		tst.Error("Expected ErrInvalidTree, got", err)
	}
}

func TestNormalizeUnparsable(tst *testing.T) {
	_, err := NormalizeFile("testdata/Euteleost.tree", Nexus, tst.TempDir())
	if !errors.Is(err, ErrInvalidTree) {
		tst.Error("Expected ErrInvalidTree, got", err)
	}
}

func TestCorrectionFactor(tst *testing.T) {
	for mean, exp := range map[float64]float64{
		0.3:   1,
		9.49:  1,
		9.5:   100,
		12:    100,
		99.4:  100,
		174:   1000,
		12345: 100000,
	} {
		if c := CorrectionFactor(mean); c != exp {
			tst.Errorf("CorrectionFactor(%v)=%v, expected %v", mean, c, exp)
		}
	}
}

// randomTree builds a caterpillar tree with n leaves and branch
// lengths scaled by scale.
func randomTree(rnd *rand.Rand, n int, scale float64) *Tree {
	id := 0
	root := NewNode(nil, id)
	t := &Tree{Node: root}
	node := root
	for i := 0; i < n-1; i++ {
		id++
		leaf := NewNode(nil, id)
		leaf.BranchLength = rnd.Float64() * scale
		leaf.HasLength = true
		node.AddChild(leaf)
		id++
		next := NewNode(nil, id)
		next.BranchLength = rnd.Float64() * scale
		next.HasLength = true
		node.AddChild(next)
		node = next
	}
	return t
}

func TestNormalizeInvariant(tst *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		scale := math.Pow(10, rnd.Float64()*7-2)
		t := randomTree(rnd, 3+rnd.Intn(30), scale)
		n, err := Normalize(t)
		if err != nil {
			tst.Fatal("Error normalizing tree", err)
		}
		mean := t.Length() / float64(2*t.NLeaves()-3)
		if r := math.Round(mean); r < 0 || r > 9 {
			tst.Errorf("rescaled mean %v (correction %v, original mean %v) has more than one digit",
				mean, n.Correction, n.MeanBranchLength)
		}
	}
}
