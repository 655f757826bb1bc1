package cmd

import (
	"strings"

	"github.com/gosuri/uitable"
	"github.com/pipeship/pipeship/pkg/model"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the pipeline's tasks",
	Long: `List the pipeline's tasks in execution order along with their sources and
upstream dependencies. --mode applies the same task selection an export would,
so "--mode incremental" shows what the next export will submit.`,
	Run: func(cmd *cobra.Command, args []string) {
		fs := afero.NewOsFs()
		root := pipeshipFlags.project.root
		specPath, err := model.FindSpec(fs, root, "")
		if err != nil {
			wrapFatalln("locate pipeline", err)
			return
		}
		spec, err := model.LoadSpec(fs, specPath)
		if err != nil {
			wrapFatalln("load pipeline", err)
			return
		}
		mode := pipeshipFlags.tasks.mode
		if mode == "" {
			mode = model.ModeRegular
		}
		plan, err := spec.Select(fs, root, mode)
		if err != nil {
			wrapFatalln("select tasks", err)
			return
		}
		order, err := plan.Graph.Sorted()
		if err != nil {
			wrapFatalln("order tasks", err)
			return
		}

		table := uitable.New()
		table.AddRow("NAME", "SOURCE", "UPSTREAM")
		for _, name := range order {
			task, _ := spec.Task(name)
			table.AddRow(task.Name, task.Source, strings.Join(plan.Graph[name], ", "))
		}
		infoLogger.Println(table.String())
	},
}

func init() {
	addRootFlag(tasksCmd)
	addTasksModeFlag(tasksCmd)
	rootCmd.AddCommand(tasksCmd)
}
