package git

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

type ChangedFile struct {
	// Path is absolute, resolved against the repository top level.
	Path    string
	Status  string
	Deleted bool
}

// ChangedFiles lists files that differ from baseRef in the repository
// containing dir, including untracked files that are not ignored.
func ChangedFiles(ctx context.Context, dir, baseRef string) ([]ChangedFile, error) {
	top, err := run(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, err
	}
	root := strings.TrimSpace(string(top))

	diff, err := run(ctx, dir, "diff", "--name-status", "--no-renames", baseRef)
	if err != nil {
		return nil, err
	}
	changes, err := parseNameStatus(diff, root)
	if err != nil {
		return nil, err
	}

	untracked, err := run(ctx, dir, "ls-files", "--others", "--exclude-standard", "--full-name")
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(bytes.NewReader(untracked))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			changes = append(changes, ChangedFile{Path: filepath.Join(root, filepath.FromSlash(line)), Status: "?"})
		}
	}
	return changes, scanner.Err()
}

func run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s failed: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// parseNameStatus reads `git diff --name-status` output such as
//
//	M	docs/html/navtreedata.js
//	D	docs/html/files.js
func parseNameStatus(output []byte, root string) ([]ChangedFile, error) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var changes []ChangedFile
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			return nil, fmt.Errorf("unexpected diff line %q", line)
		}
		status := parts[0]
		// Copies and renames carry the new path last.
		path := parts[len(parts)-1]
		changes = append(changes, ChangedFile{
			Path:    filepath.Join(root, filepath.FromSlash(path)),
			Status:  status,
			Deleted: strings.HasPrefix(status, "D"),
		})
	}
	return changes, scanner.Err()
}
