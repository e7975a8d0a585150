package git

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	out := []byte(" M analysis/clean.py\n?? results/out.csv\nR  old.py -> new.py\nA  \"with space.txt\"\n")
	assert.Equal(t, []string{"analysis/clean.py", "results/out.csv", "new.py", "with space.txt"}, parseStatus(out))
	assert.Empty(t, parseStatus(nil))
}

func TestVersion_OutsideRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	assert.Equal(t, "", Version(context.Background(), t.TempDir()))
}
