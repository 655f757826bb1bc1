// Package dependencies validates the dependency manifests of a pipeline
// project: requirements.txt / environment.yml files, their lock twins
// and the optional per-task-pattern variants (requirements.fit-*.txt).
package dependencies

import (
	"sort"
	"strings"

	"github.com/pipeship/pipeship/pkg/errors"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/spf13/afero"
)

const (
	pipPrefix   = "requirements"
	pipSuffix   = "txt"
	condaPrefix = "environment"
	condaSuffix = "yml"
	lockMarker  = "lock"
)

var (
	// ErrMissingLock indicates the root lock file is absent
	ErrMissingLock = errors.Newf(`expected %s or %s at the root directory, add one and try again.

pip: pip freeze > requirements.lock.txt
conda: conda env export --no-build --file environment.lock.yml`,
		pipLock(""), condaLock(""))

	// ErrUnpairedManifest indicates a per-pattern manifest without its lock twin
	ErrUnpairedManifest = errors.New("dependency manifest without a matching lock file")
)

// Manifest pairs a dependency file with its lock file for one task pattern
type Manifest struct {
	Pattern string
	File    string
	Lock    string
	Conda   bool
}

func pipManifest(pattern string) string   { return join(pipPrefix, pattern, pipSuffix) }
func condaManifest(pattern string) string { return join(condaPrefix, pattern, condaSuffix) }
func pipLock(pattern string) string       { return join(pipPrefix, pattern, lockMarker, pipSuffix) }
func condaLock(pattern string) string     { return join(condaPrefix, pattern, lockMarker, condaSuffix) }

func join(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

// CanonicalLockName is the lock file name expected inside build contexts,
// whichever pattern the lock was produced for.
func CanonicalLockName(conda bool) string {
	if conda {
		return condaLock("")
	}
	return pipLock("")
}

// CheckLockFiles requires a root lock file and a lock twin for every
// per-pattern manifest present at the project root.
func CheckLockFiles(fs afero.Fs, root string) error {
	pip, _ := afero.Exists(fs, path(root, pipLock("")))
	conda, _ := afero.Exists(fs, path(root, condaLock("")))
	if !pip && !conda {
		return ErrMissingLock
	}
	manifests, err := TaskManifests(fs, root)
	if err != nil {
		return err
	}
	for _, m := range manifests {
		if ok, _ := afero.Exists(fs, path(root, m.Lock)); !ok {
			return ErrUnpairedManifest.WrapMessage(
				"expected %s for %s", m.Lock, m.File)
		}
	}
	return nil
}

// TaskManifests maps task patterns to their dependency files. The bare
// requirements.txt / environment.yml pair is reported under the default
// pattern. When both flavors exist for a pattern, pip wins.
func TaskManifests(fs afero.Fs, root string) ([]Manifest, error) {
	entries, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, err
	}
	byPattern := make(map[string]Manifest)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m, ok := parseManifestName(entry.Name())
		if !ok {
			continue
		}
		if prev, exists := byPattern[m.Pattern]; exists && !prev.Conda {
			continue
		}
		byPattern[m.Pattern] = m
	}
	patterns := make([]string, 0, len(byPattern))
	for p := range byPattern {
		patterns = append(patterns, p)
	}
	sort.Strings(patterns)
	manifests := make([]Manifest, 0, len(patterns))
	for _, p := range patterns {
		manifests = append(manifests, byPattern[p])
	}
	return manifests, nil
}

// parseManifestName recognizes requirements[.<pattern>].txt and
// environment[.<pattern>].yml, skipping lock files.
func parseManifestName(name string) (Manifest, bool) {
	for _, flavor := range []struct {
		prefix, suffix string
		conda          bool
	}{
		{pipPrefix, pipSuffix, false},
		{condaPrefix, condaSuffix, true},
	} {
		if !strings.HasPrefix(name, flavor.prefix+".") || !strings.HasSuffix(name, "."+flavor.suffix) {
			continue
		}
		middle := strings.TrimSuffix(strings.TrimPrefix(name, flavor.prefix+"."), flavor.suffix)
		middle = strings.Trim(middle, ".")
		if middle == lockMarker || strings.HasSuffix(middle, "."+lockMarker) {
			continue
		}
		pattern := middle
		if pattern == "" {
			pattern = model.DefaultPattern
		}
		m := Manifest{Pattern: pattern, Conda: flavor.conda}
		if flavor.conda {
			m.File = condaManifest(middle)
			m.Lock = condaLock(middle)
		} else {
			m.File = pipManifest(middle)
			m.Lock = pipLock(middle)
		}
		return m, true
	}
	return Manifest{}, false
}

func path(root, name string) string {
	if root == "" || root == "." {
		return name
	}
	return strings.TrimSuffix(root, "/") + "/" + name
}
