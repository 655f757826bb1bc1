package cmd

import (
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/pipeship/pipeship/pkg/project"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the project layout",
	Long: `Check the project layout without exporting: pipeline file, task sources,
dependency manifests and their lock files, target configuration.

Exits non-zero when a finding blocks an export.
`,
	Run: func(cmd *cobra.Command, args []string) {
		report := project.Check(afero.NewOsFs(), pipeshipFlags.project.root)
		if len(report) == 0 {
			infoLogger.Println("all good, project is exportable")
			return
		}

		table := uitable.New()
		table.AddRow("SEVERITY", "MESSAGE")
		for _, finding := range report {
			table.AddRow(severityLabel(finding.Severity), finding.Message)
		}
		infoLogger.Println(table.String())

		if !report.OK() {
			osExit(1)
		}
	},
}

func severityLabel(s project.Severity) string {
	switch s {
	case project.SeverityError:
		return color.RedString(s.String())
	case project.SeverityWarning:
		return color.YellowString(s.String())
	default:
		return s.String()
	}
}

func init() {
	addRootFlag(checkCmd)
	rootCmd.AddCommand(checkCmd)
}
