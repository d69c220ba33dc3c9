// Package git runs the few git commands needed to commit snapshots.
package git

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Available reports whether a git binary is on PATH.
func Available() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// IsRepo reports whether root is the top of a git work tree.
func IsRepo(root string) bool {
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}

// Init runs git init in root.
func Init(root string) error {
	return run(root, "init", "--quiet")
}

// Add stages paths relative to root.
func Add(root string, paths ...string) error {
	return run(root, append([]string{"add", "--"}, paths...)...)
}

// Commit records the staged changes with message.
func Commit(root, message string) error {
	return run(root, "commit", "--quiet", "-m", message)
}

// StatusShort returns git status --short, one entry per line.
func StatusShort(root string) ([]string, error) {
	cmd := exec.Command("git", "status", "--short")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git status: %w", err)
	}
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func run(root string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
