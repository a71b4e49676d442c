package bio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNexusInterleaved(t *testing.T) {
	seqs, err := Read("testdata/interleaved.nex")
	require.NoError(t, err)
	require.Len(t, seqs, 3)

	assert.Equal(t, "danRer6", seqs[0].Name)
	assert.Equal(t, "ACGT-AGGCCTT", seqs[0].Sequence)
	assert.Equal(t, "ACGTNAGGCCTA", seqs[1].Sequence)
	assert.Equal(t, "gas acu", seqs[2].Name)
	assert.Equal(t, "AC?T-AGG--TA", seqs[2].Sequence)

	l, err := seqs.Length()
	require.NoError(t, err)
	assert.Equal(t, 12, l)
}

func TestParseNexusErrors(t *testing.T) {
	for name, data := range map[string]string{
		"no header":  "BEGIN DATA;\nMATRIX\na AC\n;\nEND;\n",
		"no matrix":  "#NEXUS\nBEGIN TAXA;\nEND;\n",
		"open":       "#NEXUS\nBEGIN DATA;\nMATRIX\na AC\n",
		"bad quotes": "#NEXUS\nBEGIN DATA;\nMATRIX\n'a AC\n;\nEND;\n",
	} {
		_, err := ParseNexus(strings.NewReader(data))
		assert.Error(t, err, name)
	}
}

func TestReadFasta(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "locus.fst")
	require.NoError(t, os.WriteFile(fn, []byte(">a\nac gt\n\n>b\nAC-T\n"), 0666))

	seqs, err := Read(fn)
	require.NoError(t, err)
	require.Len(t, seqs, 2)
	assert.Equal(t, "ACGT", seqs[0].Sequence)
	assert.Equal(t, ">a\nACGT\n>b\nAC-T\n", seqs.String()+"\n")
}

func TestReadUnequal(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "locus.fasta")
	require.NoError(t, os.WriteFile(fn, []byte(">a\nACGT\n>b\nAC\n"), 0666))

	_, err := Read(fn)
	assert.True(t, errors.Is(err, ErrUnequalLength), err)
}

func TestIsDefinite(t *testing.T) {
	for _, c := range []byte("ACGTacgt") {
		assert.True(t, IsDefinite(c), string(c))
	}
	for _, c := range []byte("-?NnRYU.") {
		assert.False(t, IsDefinite(c), string(c))
	}
}
