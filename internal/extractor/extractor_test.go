package extractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSample = `package analysis

import "encoding/csv"

// Threshold is the cut-off applied to every row.
const Threshold = 0.5

// Row is one parsed record.
type Row struct {
	Value float64
}

// Filter keeps rows above the threshold.
func Filter(rows []Row) []Row {
	type local struct{}
	return rows
}

func (r Row) Above() bool { return r.Value > Threshold }
`

const pySample = `import pandas as pd
from pathlib import Path

class Cleaner:
    """Drops empty rows."""

    def run(self, df):
        def helper(x):
            return x
        return df.dropna()

def main(path: str) -> None:
    """Entry point.

    Reads the input table.
    """
    df = pd.read_csv(path)
`

func symbolsByName(o *Outline) map[string]Symbol {
	out := make(map[string]Symbol)
	for _, s := range o.Symbols {
		out[s.Name] = s
	}
	return out
}

func TestExtract_Go(t *testing.T) {
	outline, err := Extract(context.Background(), "go", []byte(goSample))
	require.NoError(t, err)
	assert.Equal(t, "analysis", outline.Package)

	byName := symbolsByName(outline)
	assert.Len(t, outline.Symbols, 5, "import, Threshold, Row, Filter, Above")

	t.Run("Imports", func(t *testing.T) {
		assert.Equal(t, "import", byName["encoding/csv"].Kind)
	})

	t.Run("Declarations", func(t *testing.T) {
		assert.Equal(t, "constant", byName["Threshold"].Kind)
		assert.Equal(t, "Threshold is the cut-off applied to every row.", byName["Threshold"].Doc)
		assert.Equal(t, "struct", byName["Row"].Kind)
		assert.Equal(t, "function", byName["Filter"].Kind)
		assert.Equal(t, "func Filter(rows []Row) []Row", byName["Filter"].Signature)
		assert.Equal(t, "method", byName["Above"].Kind)
	})

	t.Run("Nested Types Skipped", func(t *testing.T) {
		_, ok := byName["local"]
		assert.False(t, ok)
	})
}

func TestExtract_Python(t *testing.T) {
	outline, err := Extract(context.Background(), "python", []byte(pySample))
	require.NoError(t, err)

	byName := symbolsByName(outline)
	assert.Equal(t, "import", byName["import pandas as pd"].Kind)
	assert.Equal(t, "import", byName["from pathlib import Path"].Kind)
	assert.Equal(t, "class", byName["Cleaner"].Kind)
	assert.Equal(t, "Drops empty rows.", byName["Cleaner"].Doc)
	assert.Equal(t, "method", byName["run"].Kind)
	assert.Equal(t, "function", byName["main"].Kind)
	assert.Equal(t, "def main(path: str) -> None", byName["main"].Signature)
	assert.Equal(t, "Entry point.", byName["main"].Doc)

	_, nested := byName["helper"]
	assert.False(t, nested)

	lines := outline.Lines()
	assert.Contains(t, lines, "function def main(path: str) -> None (line 12)")
}

func TestExtract_UnsupportedLanguageIsEmpty(t *testing.T) {
	outline, err := Extract(context.Background(), "r", []byte("x <- 1"))
	require.NoError(t, err)
	assert.Empty(t, outline.Symbols)
	assert.Equal(t, "r", outline.Language)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "python", DetectLanguage("clean.py", ""))
	assert.Equal(t, "go", DetectLanguage("", "package main\n"))
	assert.Equal(t, "python", DetectLanguage("", "#!/usr/bin/env python3\nprint(1)"))
	assert.Equal(t, "python", DetectLanguage("", "import os\n"))
	assert.Equal(t, "shell", DetectLanguage("run.sh", ""))
	assert.Equal(t, "", DetectLanguage("", "SELECT 1"))
	assert.Equal(t, ".py", Extension("python"))
	assert.Equal(t, ".txt", Extension(""))
}
