package source

import (
	"context"
	"path"
	"path/filepath"

	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/pipeship/pipeship/pkg/shell"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	// ErrIncludeExcludeOverlap indicates the same path was both included and excluded
	ErrIncludeExcludeOverlap = errors.New("include and exclude must not have overlapping elements")

	// ErrNoTrackedFiles indicates a git repository where nothing in the
	// project directory is committed
	ErrNoTrackedFiles = errors.New(
		"running inside a git repository, but no files in the current working directory " +
			"are tracked by git. Commit the files to include them in the Docker image " +
			"or pass the --ignore-git flag to pipeship export")
)

// CopyOptions tune file selection when packaging source
type CopyOptions struct {
	// Include forces paths into the copy even when git does not track them
	Include []string

	// Exclude drops paths even when git tracks them
	Exclude []string

	// IgnoreGit skips git-based selection entirely
	IgnoreGit bool

	// Rename maps source paths to different destination paths
	Rename map[string]string
}

// Copy replicates the project tree at src into dst, selecting files the
// way the docker build context expects:
//
//   - committed files only, when src is a git repository
//   - include overrides git-ignore, exclude overrides tracking
//   - __pycache__ and the destination itself are never copied
func Copy(ctx context.Context, fs afero.Fs, sh shell.Runner, log *zap.Logger, src, dst string, opts CopyOptions) error {
	if both := Overlap(opts.Include, opts.Exclude); len(both) > 0 {
		return ErrIncludeExcludeOverlap.WrapMessage("%v", both)
	}

	var tracked map[string]bool
	if !opts.IgnoreGit {
		gc := inspectGit(ctx, sh, src)
		switch {
		case !gc.available:
			log.Warn("unable to get git tracked files, copying all files instead")
		case len(gc.tracked) == 0:
			return ErrNoTrackedFiles
		default:
			tracked = gc.tracked
			if gc.dirty {
				log.Warn("your git repository contains uncommitted changes, " +
					"which will be ignored when copying source code")
			}
		}
	}

	// GlobAll skips are relative to src, dst may be nested inside it
	skip := filepath.ToSlash(dst)
	if rel, err := filepath.Rel(src, dst); err == nil {
		skip = filepath.ToSlash(rel)
	}

	files, err := GlobAll(fs, src, skip)
	if err != nil {
		return err
	}

	for _, rel := range files {
		if Matches(rel, opts.Exclude) {
			continue
		}
		if !Matches(rel, opts.Include) && tracked != nil && !tracked[rel] {
			continue
		}
		target := rel
		if renamed, ok := opts.Rename[rel]; ok {
			target = renamed
		}
		if err := copyFile(fs, path.Join(src, rel), path.Join(dst, target)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	b, err := afero.ReadFile(fs, src)
	if err != nil {
		return err
	}
	if dir := path.Dir(dst); dir != "." {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return afero.WriteFile(fs, dst, b, 0644)
}
