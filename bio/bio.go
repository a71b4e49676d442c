// Package bio provides nucleotide alignment readers.
package bio

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnequalLength is returned for alignments with sequences of
// different length.
var ErrUnequalLength = errors.New("sequences have different lengths")

// Sequence is a type which is intended for storing nucleotide or
// protein sequence with it's name.
type Sequence struct {
	Name     string
	Sequence string
}

// Sequences stores multiple sequences. E.g. a sequence alignment.
type Sequences []Sequence

// IsDefinite tests if a character is a definite nucleotide, i.e. not a
// gap, a missing or an ambiguous state.
func IsDefinite(c byte) bool {
	switch c {
	case 'A', 'C', 'G', 'T', 'a', 'c', 'g', 't':
		return true
	}
	return false
}

// Length returns the alignment length. Error is returned if sequences
// have different lengths.
func (seqs Sequences) Length() (int, error) {
	if len(seqs) == 0 {
		return 0, nil
	}
	l := len(seqs[0].Sequence)
	for _, seq := range seqs[1:] {
		if len(seq.Sequence) != l {
			return 0, fmt.Errorf("%w: %s has %d positions, %s has %d",
				ErrUnequalLength, seqs[0].Name, l, seq.Name, len(seq.Sequence))
		}
	}
	return l, nil
}

// ParseFasta parses FASTA sequences from a reader.
func ParseFasta(rd io.Reader) (seqs Sequences, err error) {
	seqs = make(Sequences, 0, 10)
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line[0] == '>' {
			seq := Sequence{Name: line[1:]}
			seqs = append(seqs, seq)
		} else {
			if len(seqs) == 0 {
				return nil, errors.New("sequence w/o prefix")
			}
			line = strings.ToUpper(strings.Replace(line, " ", "", -1))
			seqs[len(seqs)-1].Sequence += line
		}
	}
	err = scanner.Err()
	return
}

// Read reads an alignment file. Files with .nex or .nexus extension
// are parsed as NEXUS, all the others as FASTA.
func Read(fileName string) (Sequences, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var seqs Sequences
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".nex", ".nexus":
		seqs, err = ParseNexus(f)
	default:
		seqs, err = ParseFasta(f)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	if _, err := seqs.Length(); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return seqs, nil
}

// Wrap inputs a string and wraps it so string length is n characters
// or less.
func Wrap(seq string, n int) (s string) {
	for i := 0; i < len(seq); i += n {
		end := i + n
		if end > len(seq) {
			end = len(seq)
		}
		s += seq[i:end] + "\n"
	}
	return
}

// String returns a sequence in FASTA format.
func (seq Sequence) String() (s string) {
	s = ">" + seq.Name + "\n" + Wrap(seq.Sequence, 80)
	return
}

// String returns sequences in FASTA format.
func (seqs Sequences) String() (s string) {
	for _, seq := range seqs {
		s += seq.String()
	}
	if len(s) == 0 {
		return s
	}
	return s[:len(s)-1]
}
