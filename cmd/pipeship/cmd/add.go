package cmd

import (
	"context"

	"github.com/pipeship/pipeship/pkg/export"
	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [target]",
	Short: "Add an execution target to the project",
	Long: `Add an execution target: creates the target directory with the backend's
starter files and records a new section in pipeship.yaml.

Fill in the scaffolded configuration (repository, job queue) before exporting.
`,
	Example: `% pipeship add training --backend aws-batch
% pipeship add cluster --backend slurm`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := newWorkspace(args[0])
		if err != nil {
			wrapFatalln("configure logging", err)
			return
		}
		if err := export.Add(context.Background(), ws, pipeshipFlags.add.backend); err != nil {
			wrapFatalln("add target "+args[0], err)
			return
		}
	},
}

func init() {
	requireFlags(addCmd, addBackendFlag(addCmd))
	addRootFlag(addCmd)
	rootCmd.AddCommand(addCmd)
}
