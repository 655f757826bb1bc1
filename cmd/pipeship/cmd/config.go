package cmd

import (
	"github.com/spf13/viper"
)

// CLIConfig describes the CLI configuration, the set of flag defaults
// that do not change across runs.
type CLIConfig struct {
	// bug in viper? Need to keep names of fields the same as the serialized names..
	LogLevel string `json:"loglevel" yaml:"loglevel"` // Default logging level
	Mode     string `json:"mode" yaml:"mode"`         // Default task selection mode for export
}

func newConfig() (*CLIConfig, error) {
	var config CLIConfig
	err := viper.Unmarshal(&config)
	if err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *CLIConfig) setPipeshipParams(flags *flagsT) {
	if c.LogLevel != "" && !rootCmd.PersistentFlags().Changed("loglevel") {
		flags.root.logLevel = c.LogLevel
	}
	// the mode flags carry non-empty defaults, so only an unchanged flag
	// yields to the config file
	if c.Mode != "" && !exportCmd.Flags().Changed("mode") {
		flags.export.mode = c.Mode
	}
	if c.Mode != "" && !tasksCmd.Flags().Changed("mode") {
		flags.tasks.mode = c.Mode
	}
}
