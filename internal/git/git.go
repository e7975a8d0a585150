package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Revision returns the abbreviated HEAD commit of the repository containing
// dir.
func Revision(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--short", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// ModifiedFiles lists paths with uncommitted changes, relative to the
// repository root.
func ModifiedFiles(ctx context.Context, dir string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "status", "--porcelain")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	return parseStatus(output), nil
}

// Version describes the working tree of dir as "<rev>" or "<rev>-dirty".
// It returns "" outside a repository.
func Version(ctx context.Context, dir string) string {
	rev, err := Revision(ctx, dir)
	if err != nil || rev == "" {
		return ""
	}
	modified, err := ModifiedFiles(ctx, dir)
	if err == nil && len(modified) > 0 {
		return rev + "-dirty"
	}
	return rev
}

func parseStatus(output []byte) []string {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var paths []string
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		// XY PATH, or XY ORIG -> PATH for renames
		path := line[3:]
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		paths = append(paths, strings.Trim(path, `"`))
	}
	return paths
}
