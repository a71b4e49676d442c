package tree

import (
	"bytes"
	"math"
	"os"
	"strings"
	"testing"
)

const (
	euteleost = "(danRer6:1.74,(oryLat2:1,(gasAcu1:0.93,(fr2:0.37,tetNig2:0.37):0.56):0.07):0.74)"
	tree2     = "((a:1,b:2):3,c:1);"
	tree3     = "[&R] ((a:1,b:2)ab:3, 'c' [comment] :1)root;"
)

func TestParseNewick1(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(euteleost + ";"))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.Newick() != euteleost+";" {
		tst.Error("Expected", euteleost, "got", t)
	}
	if n := t.NLeaves(); n != 5 {
		tst.Error("Expected 5 leaves, got", n)
	}
	if t.HasLength {
		tst.Error("Root should not have a defined length")
	}
	if l := t.Length(); math.Abs(l-5.78) > 1e-9 {
		tst.Error("Expected length 5.78, got", l)
	}
	if d := t.Depth(); math.Abs(d-1.74) > 1e-9 {
		tst.Error("Expected depth 1.74, got", d)
	}
}

func TestParseNewick2(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree2))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if d := t.Depth(); d != 5 {
		tst.Error("Expected depth 5, got", d)
	}
	leaves := make([]string, 0, 3)
	for leaf := range t.Terminals() {
		leaves = append(leaves, leaf.Name)
		if leaf.LeafId != len(leaves)-1 {
			tst.Error("Wrong leaf id", leaf.LeafId, "for", leaf.Name)
		}
	}
	if strings.Join(leaves, ",") != "a,b,c" {
		tst.Error("Wrong leaves order:", leaves)
	}
}

func TestParseNewickComments(tst *testing.T) {
	t, err := ParseNewick(bytes.NewBufferString(tree3))
	if err != nil {
		tst.Fatal("Error parsing tree", err)
	}
	if t.Newick() != "((a:1,b:2)ab:3,'c':1)root;" {
		tst.Error("Error parsing comments, got:", t)
	}
}

func TestParseNewickErrors(tst *testing.T) {
	for _, s := range []string{
		"((a:1,b:2);",
		"(a:1,b:2));",
		"(a:x,b:2);",
		"(a:-1,b:2);",
		"(a:1,b:2)[unterminated;",
	} {
		if _, err := ParseNewick(bytes.NewBufferString(s)); err == nil {
			tst.Error("Expected error parsing", s)
		}
	}
}

func TestParseNexus(tst *testing.T) {
	f, err := os.Open("testdata/Euteleost.nex")
	if err != nil {
		tst.Fatal(err)
	}
	defer f.Close()

	t, err := Read(f, Nexus)
	if err != nil {
		tst.Fatal("Error parsing nexus tree", err)
	}
	if t.Newick() != euteleost+";" {
		tst.Error("Expected", euteleost, "got", t)
	}
}

func TestParseFormat(tst *testing.T) {
	for s, exp := range map[string]Format{"newick": Newick, "NEXUS": Nexus, "nex": Nexus} {
		f, err := ParseFormat(s)
		if err != nil || f != exp {
			tst.Error("Wrong format for", s, f, err)
		}
	}
	if _, err := ParseFormat("phyloxml"); err == nil {
		tst.Error("Expected error for an unknown format")
	}
}
