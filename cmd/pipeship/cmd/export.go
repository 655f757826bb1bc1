package cmd

import (
	"context"

	"github.com/pipeship/pipeship/pkg/export"
	"github.com/pipeship/pipeship/pkg/image"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [target]",
	Short: "Export the pipeline to the target's backend",
	Long: `Export the pipeline to the execution backend configured for the target:
package the source, build and push one docker image per dependency pattern,
then submit the tasks (or generate the backend's manifest).

Task selection honors --mode: incremental skips tasks whose products are
already up to date, force submits everything.
`,
	Example: `% pipeship export training
% pipeship export training --mode force --until build`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ws, err := newWorkspace(args[0])
		if err != nil {
			wrapFatalln("configure logging", err)
			return
		}
		if err := loadTargetConfig(ws); err != nil {
			wrapFatalln("load configuration", err)
			return
		}
		err = export.Run(context.Background(), ws, export.Options{
			Mode:      pipeshipFlags.export.mode,
			Until:     pipeshipFlags.export.until,
			SkipTests: pipeshipFlags.export.skipTests,
			IgnoreGit: pipeshipFlags.export.ignoreGit,
		})
		switch {
		case err == nil:
		case image.ErrStoppedAfterBuild.Is(err), image.ErrStoppedAfterPush.Is(err):
			// --until makes an early stop the expected outcome
			infoLogger.Println(err)
		default:
			wrapFatalln("export "+args[0], err)
			return
		}
	},
}

func init() {
	addRootFlag(exportCmd)
	addModeFlag(exportCmd)
	addUntilFlag(exportCmd)
	addSkipTestsFlag(exportCmd)
	addIgnoreGitFlag(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
