package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// escapeRepoURL replaces path separators in a repository URL with "-" so it
// can be used as a single workspace directory component.
func escapeRepoURL(url string) string {
	r := strings.NewReplacer("/", "-", "\\", "-")
	return r.Replace(url)
}

// workspacePath computes <root>/pipeline/<name>/<escaped repository URL>.
func workspacePath(root, name, repository string) string {
	return filepath.Join(root, "pipeline", name, escapeRepoURL(repository))
}

// prepareWorkspace creates the workspace directory if missing and brings it
// to a clean checkout of ref: clone if .git is absent, else clean and pull.
func prepareWorkspace(ctx context.Context, dir, repository, ref string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("worker: create workspace %s: %w", dir, err)
	}

	gitDir := filepath.Join(dir, ".git")
	if _, err := os.Stat(gitDir); err == nil {
		if err := runGit(ctx, dir, "clean", "-xdf"); err != nil {
			return err
		}
		if err := runGit(ctx, dir, "pull"); err != nil {
			return err
		}
	} else {
		if err := runGit(ctx, dir, "clone", repository, "."); err != nil {
			return err
		}
	}

	if err := runGit(ctx, dir, "checkout", ref, "."); err != nil {
		return err
	}
	// For observability only; failure here is not fatal to the build.
	_ = runGit(ctx, dir, "show-ref")
	return nil
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("worker: git %s: %w: %s", strings.Join(args, " "), err, out)
	}
	return nil
}

// resolveChangeset runs `git diff-tree --no-commit-id --name-only -r <ref>`
// for each entry in changedRefs and returns the union of changed paths,
// deduplicated and order-preserving by first occurrence.
func resolveChangeset(ctx context.Context, dir string, changedRefs []string) ([]string, error) {
	seen := map[string]struct{}{}
	var union []string

	for _, ref := range changedRefs {
		cmd := exec.CommandContext(ctx, "git", "diff-tree", "--no-commit-id", "--name-only", "-r", ref)
		cmd.Dir = dir
		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("worker: git diff-tree %s: %w", ref, err)
		}
		for _, line := range strings.Split(string(out), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			if _, ok := seen[line]; !ok {
				seen[line] = struct{}{}
				union = append(union, line)
			}
		}
	}
	return union, nil
}

// writeChangesetFile writes paths one per line to a new temp file and
// returns its path. The caller is responsible for removing it.
func writeChangesetFile(paths []string) (string, error) {
	f, err := os.CreateTemp("", "bass-changeset-*.txt")
	if err != nil {
		return "", fmt.Errorf("worker: create changeset file: %w", err)
	}
	defer f.Close()
	for _, p := range paths {
		if _, err := fmt.Fprintln(f, p); err != nil {
			return "", fmt.Errorf("worker: write changeset file: %w", err)
		}
	}
	return f.Name(), nil
}
