package source

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ocipack/ocipack/types"
)

type execFn func(ctx context.Context, dir string, args ...string) (string, error)

// Repository runs git commands against a working tree with "git -C <dir>".
type Repository struct {
	dir  string
	exec execFn
}

// NewRepository returns a Repository for the working tree in dir.
func NewRepository(dir string) *Repository {
	return &Repository{dir: dir, exec: gitExec}
}

// Dir returns the repository directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Run executes a git command and returns stdout.
func (r *Repository) Run(ctx context.Context, args ...string) (string, error) {
	return r.exec(ctx, r.dir, args...)
}

// Commit returns the commit recorded in HEAD for the submodule at path.
func (r *Repository) Commit(ctx context.Context, path string) (string, error) {
	out, err := r.Run(ctx, "ls-tree", "HEAD", "--", path)
	if err != nil {
		return "", err
	}
	// <mode> SP <type> SP <object> TAB <path>
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		meta, _, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		fields := strings.Fields(meta)
		if len(fields) == 3 && fields[1] == "commit" {
			return fields[2], nil
		}
	}
	return "", fmt.Errorf("no submodule commit recorded for %s%.0w", path, types.ErrNotFound)
}

func gitExec(ctx context.Context, dir string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", dir}, args...)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s in %s: %w (stderr: %s)",
			strings.Join(args, " "), dir, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
