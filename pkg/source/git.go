package source

import (
	"context"
	"strings"

	"github.com/pipeship/pipeship/pkg/shell"
)

// gitContext is what the packaging step knows about the git state of
// the project directory.
type gitContext struct {
	available  bool
	insideRepo bool
	dirty      bool
	tracked    map[string]bool
}

// inspectGit gathers the git state. A missing git binary or a directory
// outside any repository is not an error, just an empty context.
func inspectGit(ctx context.Context, sh shell.Runner, dir string) gitContext {
	var gc gitContext

	out, err := sh.Output(ctx, "git", "-C", dir, "rev-parse", "--is-inside-work-tree")
	if err != nil || strings.TrimSpace(string(out)) != "true" {
		return gc
	}
	gc.available = true
	gc.insideRepo = true

	out, err = sh.Output(ctx, "git", "-C", dir, "ls-files")
	if err != nil {
		gc.available = false
		return gc
	}
	gc.tracked = make(map[string]bool)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			gc.tracked[line] = true
		}
	}

	out, err = sh.Output(ctx, "git", "-C", dir, "status", "--porcelain")
	if err == nil && strings.TrimSpace(string(out)) != "" {
		gc.dirty = true
	}
	return gc
}
