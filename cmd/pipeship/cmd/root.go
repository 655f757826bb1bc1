package cmd

import (
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	// register the built-in backends
	_ "github.com/pipeship/pipeship/pkg/export/argo"
	_ "github.com/pipeship/pipeship/pkg/export/awsbatch"
	_ "github.com/pipeship/pipeship/pkg/export/slurm"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pipeship",
	Short: "Pipeship exports data pipelines to execution backends",
	Long: `Pipeship packages a pipeline project (pipeline.yaml plus task scripts and
dependency manifests) and exports it to an execution backend: AWS Batch,
Argo Workflows or SLURM.

It does not run pipelines itself. Tasks execute through the configured
runner inside the environment each backend provides.
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if pipeshipFlags.root.cpuProf {
			f, err := os.Create("cpu.prof")
			if err != nil {
				log.Fatal(err)
			}
			_ = pprof.StartCPUProfile(f)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if pipeshipFlags.root.cpuProf {
			pprof.StopCPUProfile()
		}
	},
}

var cliConfig *CLIConfig

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)
	addLogLevelFlag(rootCmd)
	addCPUProfFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if os.Getenv("PIPESHIP_CONFIG") != "" {
		viper.SetConfigFile(os.Getenv("PIPESHIP_CONFIG"))
	} else {
		viper.AddConfigPath("$HOME/.pipeship")
		viper.AddConfigPath("/etc/pipeship")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		log.Println("Using config file:", viper.ConfigFileUsed())
	}
	var err error
	cliConfig, err = newConfig()
	if err != nil {
		logFatalln(err)
	}
	cliConfig.setPipeshipParams(&pipeshipFlags)
}
