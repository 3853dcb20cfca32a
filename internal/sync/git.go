package sync

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// GitDestination keeps the archive as a file in an existing local clone,
// committing and pushing whenever its content changes.
type GitDestination struct {
	repo   string
	file   string // relative to repo
	branch string

	mu sync.Mutex
}

// NewGitDestination returns a destination writing file on branch of the
// clone at repo.
func NewGitDestination(repo, file, branch string) *GitDestination {
	return &GitDestination{repo: repo, file: file, branch: branch}
}

func (d *GitDestination) Name() string {
	return fmt.Sprintf("git:%s@%s", filepath.Join(d.repo, d.file), d.branch)
}

func (d *GitDestination) Write(ctx context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.git(ctx, "checkout", d.branch); err != nil {
		return err
	}
	// Fails harmlessly when the branch is not on the remote yet.
	_, _ = d.git(ctx, "pull", "--ff-only", "origin", d.branch)

	if err := replaceFile(filepath.Join(d.repo, d.file), data); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	if _, err := d.git(ctx, "add", "--", d.file); err != nil {
		return err
	}
	changed, err := d.git(ctx, "status", "--porcelain", "--", d.file)
	if err != nil {
		return err
	}
	if changed == "" {
		return nil
	}
	if _, err := d.git(ctx, "commit", "-m", commitMessage(data), "--", d.file); err != nil {
		return err
	}
	_, err = d.git(ctx, "push", "origin", d.branch)
	return err
}

// git runs a subcommand in the clone and returns its trimmed stdout.
func (d *GitDestination) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", d.repo}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".archive-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// commitMessage summarizes the archive's header record.
func commitMessage(data []byte) string {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadBytes('\n')
	var h header
	if err := json.Unmarshal(line, &h); err != nil || h.Type != "header" {
		return "archive: replay session"
	}
	return fmt.Sprintf("archive: session %s at %s (%d/%d events)",
		h.SessionID, h.VirtualClock.UTC().Format("2006-01-02T15:04:05Z"), h.CursorIndex, h.LogLength)
}
