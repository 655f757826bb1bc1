// Package project inspects a pipeline project layout and reports
// findings without stopping at the first problem, so users can fix
// everything in one pass.
package project

import (
	"fmt"
	"path"

	"github.com/pipeship/pipeship/pkg/config"
	"github.com/pipeship/pipeship/pkg/dependencies"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/spf13/afero"
)

// Severity ranks a finding
type Severity int

const (
	// SeverityInfo is advice, the project still exports
	SeverityInfo Severity = iota

	// SeverityWarning is a problem some backends tolerate
	SeverityWarning

	// SeverityError blocks an export
	SeverityError
)

// String renders the severity for tables and logs
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// Finding is one observation about the project layout
type Finding struct {
	Severity Severity
	Message  string
}

// Report is the ordered findings of a check run
type Report []Finding

// OK reports whether the project is exportable
func (r Report) OK() bool {
	for _, f := range r {
		if f.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Check inspects the project rooted at root. A missing pipeline file is
// the only finding that short-circuits the rest, nothing else is
// checkable without it.
func Check(fs afero.Fs, root string) Report {
	var report Report

	specPath, err := model.FindSpec(fs, root, "")
	if err != nil {
		return append(report, Finding{SeverityError, err.Error()})
	}
	spec, err := model.LoadSpec(fs, specPath)
	if err != nil {
		return append(report, Finding{SeverityError, err.Error()})
	}

	// source paths resolve relative to the spec file, which may live
	// under src/<pkg> in packaged layouts
	report = append(report, checkSources(fs, path.Dir(specPath), spec)...)
	report = append(report, checkManifests(fs, root)...)
	report = append(report, checkOutput(fs, root)...)
	report = append(report, checkConfig(fs, root)...)
	return report
}

// checkSources verifies every task's source script exists
func checkSources(fs afero.Fs, dir string, spec *model.Spec) Report {
	var report Report
	for _, task := range spec.Tasks {
		if task.Source == "" {
			continue
		}
		if ok, _ := afero.Exists(fs, path.Join(dir, task.Source)); !ok {
			report = append(report, Finding{SeverityError,
				fmt.Sprintf("task %q references missing source file %q", task.Name, task.Source)})
		}
	}
	return report
}

func checkManifests(fs afero.Fs, root string) Report {
	var report Report
	if err := dependencies.CheckLockFiles(fs, root); err != nil {
		report = append(report, Finding{SeverityError, err.Error()})
	}
	manifests, err := dependencies.TaskManifests(fs, root)
	if err != nil {
		report = append(report, Finding{SeverityError, err.Error()})
	}
	for _, m := range manifests {
		if !m.Conda {
			continue
		}
		// pip packages inside a conda env only pin through the pip
		// section, so a missing one is worth a heads-up
		if _, err := dependencies.PipFromCondaEnv(fs, path.Join(root, m.File)); err != nil {
			report = append(report, Finding{SeverityWarning,
				fmt.Sprintf("conda manifest %q: %v", m.File, err)})
		}
	}
	return report
}

// checkOutput flags a missing output directory. Most runners create it
// on demand, so this is informational.
func checkOutput(fs afero.Fs, root string) Report {
	if ok, _ := afero.DirExists(fs, path.Join(root, "output")); !ok {
		return Report{{SeverityInfo,
			`missing "output" directory, task products will create it on first run`}}
	}
	return nil
}

// checkConfig warns about scaffolded placeholder values left in
// pipeship.yaml.
func checkConfig(fs afero.Fs, root string) Report {
	cfgPath := path.Join(root, config.FileName)
	if ok, _ := afero.Exists(fs, cfgPath); !ok {
		return nil
	}
	cfg, err := config.Load(fs, cfgPath)
	if err != nil {
		return Report{{SeverityError, err.Error()}}
	}
	var report Report
	for name, target := range cfg.Targets {
		if target.Repository == config.PlaceholderRepository {
			report = append(report, Finding{SeverityWarning,
				fmt.Sprintf("target %q still has the scaffolded repository placeholder in %s",
					name, config.FileName)})
		}
		if target.JobQueue == config.PlaceholderJobQueue {
			report = append(report, Finding{SeverityWarning,
				fmt.Sprintf("target %q still has the scaffolded job queue placeholder in %s",
					name, config.FileName)})
		}
	}
	return report
}
