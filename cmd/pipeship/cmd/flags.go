package cmd

import (
	"github.com/pipeship/pipeship/pkg/image"
	"github.com/pipeship/pipeship/pkg/logging"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/spf13/cobra"
)

type flagsT struct {
	root struct {
		logLevel string
		cpuProf  bool
	}
	project struct {
		root string
	}
	add struct {
		backend string
	}
	export struct {
		mode      string
		until     string
		skipTests bool
		ignoreGit bool
	}
	tasks struct {
		mode string
	}
	doc struct {
		docTarget string
	}
}

var pipeshipFlags = flagsT{}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "loglevel"
	cmd.PersistentFlags().StringVar(&pipeshipFlags.root.logLevel, logLevel, logging.LogLevelInfo,
		"The logging level, one of: info, debug, warn, none")
	return logLevel
}

func addCPUProfFlag(cmd *cobra.Command) string {
	cpuprof := "cpuprof"
	cmd.PersistentFlags().BoolVar(&pipeshipFlags.root.cpuProf, cpuprof, false,
		"Toggle runtime profiling")
	return cpuprof
}

func addRootFlag(cmd *cobra.Command) string {
	root := "root"
	cmd.Flags().StringVar(&pipeshipFlags.project.root, root, ".",
		"The project root, the directory holding pipeline.yaml")
	return root
}

func addBackendFlag(cmd *cobra.Command) string {
	backend := "backend"
	cmd.Flags().StringVar(&pipeshipFlags.add.backend, backend, "",
		"The execution backend for the new target, one of: aws-batch, argo-workflows, slurm")
	return backend
}

func addModeFlag(cmd *cobra.Command) string {
	mode := "mode"
	cmd.Flags().StringVar(&pipeshipFlags.export.mode, mode, model.ModeIncremental,
		"Task selection mode, one of: incremental, regular, force")
	return mode
}

func addTasksModeFlag(cmd *cobra.Command) string {
	mode := "mode"
	cmd.Flags().StringVar(&pipeshipFlags.tasks.mode, mode, model.ModeRegular,
		"Task selection mode applied before listing, one of: incremental, regular, force")
	return mode
}

func addUntilFlag(cmd *cobra.Command) string {
	until := "until"
	cmd.Flags().StringVar(&pipeshipFlags.export.until, until, "",
		"Stop after the given stage, one of: "+image.UntilBuild+", "+image.UntilPush)
	return until
}

func addSkipTestsFlag(cmd *cobra.Command) string {
	skipTests := "skip-tests"
	cmd.Flags().BoolVar(&pipeshipFlags.export.skipTests, skipTests, false,
		"Do not smoke-test images after building them")
	return skipTests
}

func addIgnoreGitFlag(cmd *cobra.Command) string {
	ignoreGit := "ignore-git"
	cmd.Flags().BoolVar(&pipeshipFlags.export.ignoreGit, ignoreGit, false,
		"Package all project files instead of only the git-tracked ones")
	return ignoreGit
}

func addDocTargetFlag(cmd *cobra.Command) string {
	target := "target-dir"
	cmd.Flags().StringVar(&pipeshipFlags.doc.docTarget, target, ".",
		"The target directory where to generate the markdown documentation")
	return target
}

/** misc util */

// requireFlags sets a flag (local to the command or inherited) as required
func requireFlags(cmd *cobra.Command, flags ...string) {
	for _, flag := range flags {
		err := cmd.MarkFlagRequired(flag)
		if err != nil {
			err = cmd.MarkPersistentFlagRequired(flag)
		}
		if err != nil {
			wrapFatalln("error attempting to mark the required flag "+flag, err)
			return
		}
	}
}
